package btree

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/zeusync/btcore/pkg/generic"
)

// RegisterBuiltins registers the stock leaves and conditions. Trees loaded from data
// can use them without any host code.
func RegisterBuiltins(r *Registry) {
	// Conditions
	r.RegisterCondition("IsTrue", func(params map[string]any) (Condition, error) {
		key, err := requireString(params, "key")
		if err != nil {
			return nil, fmt.Errorf("IsTrue: %w", err)
		}
		return ConditionFunc(func(f *Frame, agent AgentID) bool {
			bb := f.Blackboard(agent)
			if bb == nil {
				return false
			}
			b, ok := bb.GetBool(key)
			return ok && b
		}), nil
	})

	r.RegisterCondition("Expr", func(params map[string]any) (Condition, error) {
		src, err := requireString(params, "expression")
		if err != nil {
			return nil, fmt.Errorf("Expr: %w", err)
		}
		return NewExprCondition(src)
	})

	// Actions
	r.RegisterLeafValue("Noop", LeafFunc(func(*Frame, AgentID) LeafResult { return Succeeded() }))
	r.RegisterLeafValue("Succeed", LeafFunc(func(*Frame, AgentID) LeafResult { return Succeeded() }))
	r.RegisterLeafValue("Fail", LeafFunc(func(*Frame, AgentID) LeafResult { return Failed() }))
	r.RegisterLeafValue("Running", LeafFunc(func(*Frame, AgentID) LeafResult { return Running() }))

	r.RegisterLeaf("SetBool", func(params map[string]any) (Leaf, error) {
		key, err := requireString(params, "key")
		if err != nil {
			return nil, fmt.Errorf("SetBool: %w", err)
		}
		val, _, err := paramBool(params, "value")
		if err != nil {
			return nil, fmt.Errorf("SetBool: %w", err)
		}
		return LeafFunc(func(f *Frame, agent AgentID) LeafResult {
			bb := f.Blackboard(agent)
			if bb == nil {
				return Failed()
			}
			bb.Set(key, val)
			return LeafResult{Status: StatusSuccess, Value: val}
		}), nil
	})

	// Offset stores blackboard[from] + by under key; from defaults to key, so the
	// plain form is a counter.
	r.RegisterLeaf("Offset", func(params map[string]any) (Leaf, error) {
		key, err := requireString(params, "key")
		if err != nil {
			return nil, fmt.Errorf("Offset: %w", err)
		}
		from, ok, err := paramString(params, "from")
		if err != nil {
			return nil, fmt.Errorf("Offset: %w", err)
		}
		if !ok || from == "" {
			from = key
		}
		by, ok, err := paramInt(params, "by")
		if err != nil {
			return nil, fmt.Errorf("Offset: %w", err)
		}
		if !ok {
			by = 1
		}
		return ValueLeaf[int64](FunctionOf[int64](func(f *Frame, agent AgentID) int64 {
			v, _ := f.Blackboard(agent).GetInt(from)
			return v + by
		}), key), nil
	})

	r.RegisterLeaf("Wait", func(params map[string]any) (Leaf, error) {
		ticks, _, err := paramUint(params, "ticks")
		if err != nil {
			return nil, fmt.Errorf("Wait: %w", err)
		}
		key, ok, err := paramString(params, "key")
		if err != nil {
			return nil, fmt.Errorf("Wait: %w", err)
		}
		if !ok || key == "" {
			// Unkeyed waits must not share a start frame with each other.
			if key, err = requireString(params, ParamNode); err != nil {
				return nil, fmt.Errorf("Wait: %w", err)
			}
		}
		return &waitLeaf{ticks: ticks, key: "wait:" + key}, nil
	})
}

// waitLeaf stays Running for a number of frames. The start frame lives on the
// agent's blackboard so one instance serves every agent.
type waitLeaf struct {
	ticks uint64
	key   string
}

func (w *waitLeaf) Execute(f *Frame, agent AgentID) LeafResult {
	bb := f.Blackboard(agent)
	if bb == nil {
		return Failed()
	}
	start, ok := bb.GetInt(w.key)
	if !ok {
		start = int64(f.Number)
		bb.Set(w.key, start)
	}
	if f.Number-uint64(start) >= w.ticks {
		bb.Delete(w.key)
		return Succeeded()
	}
	return Running()
}

func (w *waitLeaf) OnExit(f *Frame, agent AgentID) {
	if bb := f.Blackboard(agent); bb != nil {
		bb.Delete(w.key)
	}
}

// ExprCondition evaluates a boolean expr-lang expression against the agent's
// blackboard. The expression also sees "frame" and "agent".
type ExprCondition struct {
	src     string
	program *vm.Program
}

// NewExprCondition compiles src once; a compile error surfaces at bind time.
func NewExprCondition(src string) (*ExprCondition, error) {
	program, err := expr.Compile(src, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", src, err)
	}
	return &ExprCondition{src: src, program: program}, nil
}

func (c *ExprCondition) String() string { return c.src }

// exprEnvs recycles expression environments; guards run on every tick of every
// agent and must not allocate a fresh copy of the blackboard each time.
var exprEnvs = generic.NewResetPool(
	func() map[string]any { return make(map[string]any, 16) },
	func(env map[string]any) { clear(env) },
)

func (c *ExprCondition) Check(f *Frame, agent AgentID) bool {
	env := exprEnvs.Get()
	defer exprEnvs.Put(env)

	if bb := f.Blackboard(agent); bb != nil {
		bb.CopyTo(env)
	}
	env["agent"] = int(agent)
	if f != nil {
		env["frame"] = int(f.Number)
	}

	out, err := expr.Run(c.program, env)
	if err != nil {
		return false
	}
	b, ok := out.(bool)
	return ok && b
}
