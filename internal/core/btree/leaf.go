package btree

// LeafResult is what a leaf reports for one tick. Action leaves may attach a domain
// value (a target position, a chosen entity); condition leaves leave it nil.
type LeafResult struct {
	Status Status
	Value  any
}

// Leaf is the opaque action contract. Leaves are shared by every agent running the
// tree, so any per-agent state they need lives on the agent's blackboard. A leaf that
// cannot act reports StatusFailure; it never returns an error to the engine.
type Leaf interface {
	Execute(f *Frame, agent AgentID) LeafResult
}

// Exiter is implemented by leaves that must clean up when interrupted while Running.
type Exiter interface {
	OnExit(f *Frame, agent AgentID)
}

// Condition is a side-effect free predicate. Decorators use it as their guard and
// call it during dry runs, so it must not mutate anything.
type Condition interface {
	Check(f *Frame, agent AgentID) bool
}

// LeafFunc adapts a function to Leaf.
type LeafFunc func(f *Frame, agent AgentID) LeafResult

func (fn LeafFunc) Execute(f *Frame, agent AgentID) LeafResult { return fn(f, agent) }

// ConditionFunc adapts a function to Condition.
type ConditionFunc func(f *Frame, agent AgentID) bool

func (fn ConditionFunc) Check(f *Frame, agent AgentID) bool { return fn(f, agent) }

// Function computes a typed value for an agent, e.g. a steering target.
type Function[T any] interface {
	Execute(f *Frame, agent AgentID) T
}

// FunctionOf adapts a plain function to Function.
type FunctionOf[T any] func(f *Frame, agent AgentID) T

func (fn FunctionOf[T]) Execute(f *Frame, agent AgentID) T { return fn(f, agent) }

// DefaultFunction yields the zero value of T. It stands in for unset function slots.
type DefaultFunction[T any] struct{}

func (DefaultFunction[T]) Execute(*Frame, AgentID) T {
	var zero T
	return zero
}

// ValueLeaf evaluates fn, stores the result under key on the agent's blackboard and
// succeeds with the value attached. Without a blackboard it fails.
func ValueLeaf[T any](fn Function[T], key string) Leaf {
	if fn == nil {
		fn = DefaultFunction[T]{}
	}
	return LeafFunc(func(f *Frame, agent AgentID) LeafResult {
		bb := f.Blackboard(agent)
		if bb == nil {
			return LeafResult{Status: StatusFailure}
		}
		v := fn.Execute(f, agent)
		bb.Set(key, v)
		return LeafResult{Status: StatusSuccess, Value: v}
	})
}

// Status helpers for leaves that have nothing to attach.

func Succeeded() LeafResult { return LeafResult{Status: StatusSuccess} }
func Failed() LeafResult    { return LeafResult{Status: StatusFailure} }
func Running() LeafResult   { return LeafResult{Status: StatusRunning} }

// conditionLeaf runs a Condition as a leaf.
type conditionLeaf struct{ cond Condition }

func (c conditionLeaf) Execute(f *Frame, agent AgentID) LeafResult {
	if c.cond.Check(f, agent) {
		return Succeeded()
	}
	return Failed()
}
