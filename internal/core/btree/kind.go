package btree

import (
	"fmt"
	"strings"
)

// Kind is the closed set of node variants. The evaluator dispatches on it with a
// single switch, so adding a kind means adding a case there.
type Kind uint8

const (
	KindInvalid Kind = iota

	KindSequence
	KindSelector
	KindParallel

	KindInverter
	KindSucceeder
	KindRepeater
	KindConditional
	KindCooldown

	KindAction
	KindCondition
)

// Category groups kinds by arity.
type Category uint8

const (
	CategoryInvalid Category = iota
	CategoryComposite
	CategoryDecorator
	CategoryLeaf
)

var kindNames = map[Kind]string{
	KindSequence:    "Sequence",
	KindSelector:    "Selector",
	KindParallel:    "Parallel",
	KindInverter:    "Inverter",
	KindSucceeder:   "Succeeder",
	KindRepeater:    "Repeater",
	KindConditional: "Conditional",
	KindCooldown:    "Cooldown",
	KindAction:      "Action",
	KindCondition:   "Condition",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Invalid"
}

func (k Kind) Category() Category {
	switch k {
	case KindSequence, KindSelector, KindParallel:
		return CategoryComposite
	case KindInverter, KindSucceeder, KindRepeater, KindConditional, KindCooldown:
		return CategoryDecorator
	case KindAction, KindCondition:
		return CategoryLeaf
	default:
		return CategoryInvalid
	}
}

// ParseKind accepts kind names case-insensitively. "ConditionalAbort" and
// "Blackboard" are accepted as aliases of Conditional.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "conditionalabort", "blackboard":
		return KindConditional, nil
	case "repeat":
		return KindRepeater, nil
	}
	for k, n := range kindNames {
		if strings.ToLower(n) == name {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("unknown node kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if k.Category() == CategoryInvalid {
		return nil, fmt.Errorf("invalid node kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// AbortType governs which running branches a decorator may interrupt when its
// guard changes.
type AbortType uint8

const (
	AbortNone AbortType = iota
	AbortLowerPriority
	AbortSelf
	AbortBoth
)

func (a AbortType) String() string {
	switch a {
	case AbortNone:
		return "None"
	case AbortLowerPriority:
		return "LowerPriority"
	case AbortSelf:
		return "Self"
	case AbortBoth:
		return "Both"
	default:
		return "Invalid"
	}
}

func (a AbortType) watchesSelf() bool {
	return a == AbortSelf || a == AbortBoth
}

func (a AbortType) watchesLowerPriority() bool {
	return a == AbortLowerPriority || a == AbortBoth
}

func ParseAbortType(s string) (AbortType, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "", "none":
		return AbortNone, nil
	case "lowerpriority", "lower":
		return AbortLowerPriority, nil
	case "self":
		return AbortSelf, nil
	case "both":
		return AbortBoth, nil
	default:
		return AbortNone, fmt.Errorf("unknown abort type %q", s)
	}
}

func (a AbortType) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AbortType) UnmarshalText(b []byte) error {
	parsed, err := ParseAbortType(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParallelPolicy decides when a Parallel composite terminates.
type ParallelPolicy uint8

const (
	// ParallelRequireAll succeeds once every child succeeded and fails on the first failure.
	ParallelRequireAll ParallelPolicy = iota
	// ParallelRequireOne succeeds on the first success and fails once every child failed.
	ParallelRequireOne
)

func (p ParallelPolicy) String() string {
	if p == ParallelRequireOne {
		return "one"
	}
	return "all"
}
