package btree

import (
	"fmt"
	"sync/atomic"

	"github.com/petermattis/goid"
)

type guardMemo int8

const (
	guardUnknown guardMemo = iota
	guardFailed
	guardPassed
)

func memoOf(passed bool) guardMemo {
	if passed {
		return guardPassed
	}
	return guardFailed
}

type abortKind uint8

const (
	abortIdle abortKind = iota
	abortSelf
	abortLowerPriority
)

// Runtime is the per-agent mutable overlay on a shared Graph. Every slice is
// indexed by arena index and allocated once; evaluation never grows them.
// A Runtime must only ever be evaluated by one goroutine at a time.
type Runtime struct {
	graph *Graph
	agent AgentID

	status []Status
	// cursor holds -1 before the first child and len(children) once exhausted.
	cursor []int32
	// counter is the repeater iteration count, or the cooldown's last
	// termination frame plus one.
	counter []uint64
	guard   []guardMemo
	value   []any

	aborting    bool
	abortKind   abortKind
	abortSource int32
	abortTarget int32
	suppressed  uint64

	// owner is the goroutine id of the evaluation in progress, 0 when idle.
	owner atomic.Int64
}

// NewRuntime allocates the overlay for one agent running g.
func NewRuntime(g *Graph, agent AgentID) *Runtime {
	rt := &Runtime{}
	rt.Rebind(g, agent)
	return rt
}

// Rebind points the runtime at another graph or agent, reusing capacity. Leaf exit
// hooks are not called; reset through the evaluator first when that matters.
func (rt *Runtime) Rebind(g *Graph, agent AgentID) {
	n := g.Len()
	rt.graph = g
	rt.agent = agent
	rt.status = resize(rt.status, n)
	rt.cursor = resize(rt.cursor, n)
	rt.counter = resize(rt.counter, n)
	rt.guard = resize(rt.guard, n)
	rt.value = resize(rt.value, n)
	rt.Clear()
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}

// Clear wipes all state, including cooldown stamps, without calling exit hooks.
func (rt *Runtime) Clear() {
	clear(rt.status)
	for i := range rt.cursor {
		rt.cursor[i] = noIndex
	}
	clear(rt.counter)
	clear(rt.guard)
	clear(rt.value)
	rt.clearAbort()
	rt.suppressed = 0
}

func (rt *Runtime) Agent() AgentID { return rt.agent }
func (rt *Runtime) Graph() *Graph  { return rt.graph }

// Status returns the cached status of node i.
func (rt *Runtime) Status(i int32) Status { return rt.status[i] }

// Value returns the domain value node i's leaf attached on its last execution.
func (rt *Runtime) Value(i int32) any { return rt.value[i] }

// Cursor reports the child cursor of composite i. Non-composites are always
// before their first child.
func (rt *Runtime) Cursor(i int32) (CursorState, int) {
	n := &rt.graph.nodes[i]
	c := rt.cursor[i]
	switch {
	case !n.IsComposite() || c < 0:
		return CursorBeforeFirstChild, 0
	case int(c) >= len(n.children):
		return CursorExhausted, len(n.children)
	default:
		return CursorAtChild, int(c)
	}
}

// IsAborting reports whether an abort is in flight. It is only ever true while an
// evaluation is running.
func (rt *Runtime) IsAborting() bool { return rt.aborting }

// SuppressedAborts counts aborts dropped because another was already in flight.
func (rt *Runtime) SuppressedAborts() uint64 { return rt.suppressed }

func (rt *Runtime) raise(kind abortKind, source, target int32) {
	rt.aborting = true
	rt.abortKind = kind
	rt.abortSource = source
	rt.abortTarget = target
}

func (rt *Runtime) clearAbort() {
	rt.aborting = false
	rt.abortKind = abortIdle
	rt.abortSource = noIndex
	rt.abortTarget = noIndex
}

func (rt *Runtime) acquire() error {
	id := goid.Get()
	if !rt.owner.CompareAndSwap(0, id) {
		return fmt.Errorf("%w: agent %d held by goroutine %d", ErrConcurrentEvaluation, rt.agent, rt.owner.Load())
	}
	return nil
}

func (rt *Runtime) release() {
	rt.owner.Store(0)
}

// activeLeaf follows running children down from i and returns the deepest
// running node.
func (rt *Runtime) activeLeaf(i int32) int32 {
	for {
		n := &rt.graph.nodes[i]
		next := noIndex
		switch {
		case n.IsDecorator():
			if c := n.child(); c != noIndex && rt.status[c] == StatusRunning {
				next = c
			}
		case n.kind == KindParallel:
			for _, c := range n.children {
				if rt.status[c] == StatusRunning {
					next = c
					break
				}
			}
		case n.IsComposite():
			if c := rt.cursor[i]; c >= 0 && int(c) < len(n.children) && rt.status[n.children[c]] == StatusRunning {
				next = n.children[c]
			}
		}
		if next == noIndex {
			return i
		}
		i = next
	}
}
