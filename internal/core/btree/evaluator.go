package btree

import (
	"context"

	"github.com/zeusync/btcore/internal/core/observability/log"
)

// Evaluator walks bound graphs. It holds no per-agent state, so one instance may
// evaluate any number of runtimes concurrently as long as each runtime is
// evaluated by one goroutine at a time.
type Evaluator struct {
	obs Observer
	log log.Log
}

type Option func(*Evaluator)

// WithObserver attaches an observer. Several options fan out in order.
func WithObserver(o Observer) Option {
	return func(e *Evaluator) {
		if _, nop := e.obs.(NopObserver); nop {
			e.obs = o
			return
		}
		e.obs = Observers(e.obs, o)
	}
}

func WithLogger(l log.Log) Option {
	return func(e *Evaluator) { e.log = l }
}

func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{obs: NopObserver{}, log: log.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.obs == nil {
		e.obs = NopObserver{}
	}
	return e
}

var background = &Frame{Context: context.Background()}

// Evaluate runs one tick of rt's tree. Pending aborts are fully resolved before it
// returns. The only errors are ErrUnboundRuntime and ErrConcurrentEvaluation;
// tree outcomes are reported through the status.
func (e *Evaluator) Evaluate(rt *Runtime, f *Frame) (Status, error) {
	if rt == nil {
		return StatusInactive, ErrUnboundRuntime
	}
	if err := rt.acquire(); err != nil {
		return StatusInactive, err
	}
	defer rt.release()
	if rt.graph.Len() == 0 {
		return StatusInactive, ErrUnboundRuntime
	}

	if f == nil {
		f = background
	}

	e.checkAborts(rt, f)
	s := e.tick(rt, f, 0)
	if rt.aborting {
		e.forceResolve(rt, f)
	}
	return s, nil
}

// DynamicRun dry-runs the guard of node i and of the decorator chain directly below
// it. It never mutates the runtime.
func (e *Evaluator) DynamicRun(rt *Runtime, f *Frame, i int32) bool {
	if f == nil {
		f = background
	}
	return e.dynamicRun(rt, f, i)
}

// Reset clears the subtree rooted at i, calling exit hooks of interrupted leaves.
func (e *Evaluator) Reset(rt *Runtime, f *Frame, i int32) error {
	if err := rt.acquire(); err != nil {
		return err
	}
	defer rt.release()

	if f == nil {
		f = background
	}
	e.reset(rt, f, i)
	return nil
}

// Restart resets the whole tree so the next tick starts from the root. Cooldown
// stamps survive a restart.
func (e *Evaluator) Restart(rt *Runtime, f *Frame) error {
	if err := rt.acquire(); err != nil {
		return err
	}
	defer rt.release()
	if rt.graph.Len() == 0 {
		return nil
	}

	if f == nil {
		f = background
	}
	e.reset(rt, f, 0)
	rt.clearAbort()
	return nil
}

// Attach restarts rt and binds it to g for agent while holding the runtime, so no
// evaluation sees it half switched. A nil g detaches it. Cooldown stamps do not
// survive.
func (e *Evaluator) Attach(rt *Runtime, f *Frame, g *Graph, agent AgentID) error {
	if err := rt.acquire(); err != nil {
		return err
	}
	defer rt.release()

	if f == nil {
		f = background
	}
	if rt.graph.Len() > 0 {
		e.reset(rt, f, 0)
	}
	rt.Rebind(g, agent)
	return nil
}

func (e *Evaluator) tick(rt *Runtime, f *Frame, i int32) Status {
	n := &rt.graph.nodes[i]

	if rt.aborting && i == rt.abortTarget {
		return e.finish(rt, f, n, StatusAborted)
	}

	prev := rt.status[i]
	entering := prev != StatusRunning
	if entering {
		if prev != StatusInactive {
			e.reset(rt, f, i)
		}
		rt.status[i] = StatusRunning
		e.obs.OnNodeEnter(rt.agent, n.id)
	}

	var s Status
	switch n.kind {
	case KindSequence:
		s = e.composite(rt, f, n, entering, StatusFailure, StatusSuccess)
	case KindSelector:
		s = e.composite(rt, f, n, entering, StatusSuccess, StatusFailure)
	case KindParallel:
		s = e.parallel(rt, f, n)
	case KindInverter, KindSucceeder, KindRepeater, KindConditional, KindCooldown:
		s = e.decorate(rt, f, n, entering)
	case KindAction, KindCondition:
		s = e.leaf(rt, f, n)
	default:
		s = StatusFailure
	}
	return e.finish(rt, f, n, s)
}

// finish records s for n and fires exit notifications. A node that ends Aborted
// leaves nothing running below it.
func (e *Evaluator) finish(rt *Runtime, f *Frame, n *Node, s Status) Status {
	if s == StatusAborted {
		e.reset(rt, f, n.index)
	}
	rt.status[n.index] = s
	if s != StatusRunning {
		e.obs.OnNodeExit(rt.agent, n.id, s)
		if s == StatusSuccess {
			e.obs.OnNodeSuccess(rt.agent, n.id)
		}
	}
	return s
}

// composite evaluates Sequence (stop on Failure, Success when exhausted) and
// Selector (stop on Success, Failure when exhausted).
func (e *Evaluator) composite(rt *Runtime, f *Frame, n *Node, entering bool, stop, exhausted Status) Status {
	i := n.index
	count := int32(len(n.children))
	if entering {
		rt.cursor[i] = noIndex
	}

	c := rt.cursor[i]
	if c >= count && count > 0 {
		err := &InvalidCursorError{Node: n.name, Cursor: int(c), Children: int(count)}
		e.log.Warn("invalid composite cursor", log.Uint64("agent", uint64(rt.agent)), log.Error(err))
		rt.cursor[i] = count
		return StatusFailure
	}
	if c < 0 {
		c = 0
	}

	for c < count {
		rt.cursor[i] = c
		s := e.tick(rt, f, n.children[c])
		if s == StatusAborted {
			if rt.aborting {
				anchor, ok := e.handoff(rt, f, i)
				if !ok {
					return StatusAborted
				}
				c = anchor
				continue
			}
			s = StatusFailure
		}

		switch s {
		case StatusRunning:
			return StatusRunning
		case stop:
			rt.cursor[i] = count
			return stop
		}
		c++
	}

	rt.cursor[i] = count
	return exhausted
}

func (e *Evaluator) parallel(rt *Runtime, f *Frame, n *Node) Status {
	var succeeded, failed int
	total := len(n.children)

	for _, c := range n.children {
		switch rt.status[c] {
		case StatusSuccess:
			succeeded++
			continue
		case StatusFailure, StatusAborted:
			failed++
			continue
		}

		s := e.tick(rt, f, c)
		if s == StatusAborted {
			if rt.aborting {
				return StatusAborted
			}
			s = StatusFailure
		}

		switch s {
		case StatusSuccess:
			succeeded++
			if n.policy == ParallelRequireOne {
				return e.stopParallel(rt, f, n, StatusSuccess)
			}
		case StatusFailure:
			failed++
			if n.policy == ParallelRequireAll {
				return e.stopParallel(rt, f, n, StatusFailure)
			}
		}
	}

	switch {
	case n.policy == ParallelRequireAll && succeeded == total:
		return StatusSuccess
	case n.policy == ParallelRequireOne && failed == total:
		return StatusFailure
	}
	return StatusRunning
}

func (e *Evaluator) stopParallel(rt *Runtime, f *Frame, n *Node, s Status) Status {
	for _, c := range n.children {
		if rt.status[c] == StatusRunning {
			e.reset(rt, f, c)
		}
	}
	return s
}

func (e *Evaluator) decorate(rt *Runtime, f *Frame, n *Node, entering bool) Status {
	i := n.index
	if entering {
		passed := e.guard(rt, f, n)
		rt.guard[i] = memoOf(passed)
		e.obs.OnDecoratorChecked(rt.agent, n.id, passed)
		if !passed {
			return StatusFailure
		}
	} else if !rt.aborting && !n.abort.watchesSelf() && !e.guard(rt, f, n) {
		// A Self watcher was already settled by the abort pre-pass; anyone else
		// whose guard broke mid-run fails here and drops the running child.
		rt.guard[i] = guardFailed
		e.obs.OnDecoratorChecked(rt.agent, n.id, false)
		e.reset(rt, f, n.child())
		return StatusFailure
	}

	s := e.tick(rt, f, n.child())
	if s == StatusAborted {
		return e.onChildAborted(rt, n)
	}

	switch n.kind {
	case KindInverter:
		switch s {
		case StatusSuccess:
			return StatusFailure
		case StatusFailure:
			return StatusSuccess
		}
	case KindSucceeder:
		if s != StatusRunning {
			return StatusSuccess
		}
	case KindRepeater:
		if s == StatusRunning {
			return StatusRunning
		}
		if s == StatusFailure && n.stopOnFailure {
			return StatusFailure
		}
		rt.counter[i]++
		if n.times > 0 && rt.counter[i] >= n.times {
			return StatusSuccess
		}
		return StatusRunning
	case KindCooldown:
		if s != StatusRunning {
			rt.counter[i] = f.Number + 1
		}
	}
	return s
}

func (e *Evaluator) leaf(rt *Runtime, f *Frame, n *Node) Status {
	r := n.leaf.Execute(f, rt.agent)
	rt.value[n.index] = r.Value
	switch r.Status {
	case StatusRunning, StatusSuccess, StatusFailure:
		return r.Status
	default:
		return StatusFailure
	}
}

// guard is the decorator's own dry run.
func (e *Evaluator) guard(rt *Runtime, f *Frame, n *Node) bool {
	switch n.kind {
	case KindConditional:
		return n.guard.Check(f, rt.agent)
	case KindCooldown:
		last := rt.counter[n.index]
		return last == 0 || f.Number >= last-1+n.cooldown
	default:
		return true
	}
}

func (e *Evaluator) dynamicRun(rt *Runtime, f *Frame, i int32) bool {
	for i != noIndex {
		n := &rt.graph.nodes[i]
		if !n.IsDecorator() {
			return true
		}
		if !e.guard(rt, f, n) {
			return false
		}
		i = n.child()
	}
	return true
}

// reset clears the subtree rooted at i top-down. Nodes that never ran since their
// last reset are skipped along with their subtree.
func (e *Evaluator) reset(rt *Runtime, f *Frame, i int32) {
	prev := rt.status[i]
	if prev == StatusInactive {
		return
	}
	n := &rt.graph.nodes[i]

	rt.status[i] = StatusInactive
	rt.cursor[i] = noIndex
	rt.guard[i] = guardUnknown
	rt.value[i] = nil

	switch n.kind.Category() {
	case CategoryLeaf:
		if prev == StatusRunning {
			if ex, ok := n.leaf.(Exiter); ok {
				ex.OnExit(f, rt.agent)
			}
		}
	case CategoryDecorator:
		if n.kind == KindRepeater {
			rt.counter[i] = 0
		}
		e.obs.OnDecoratorReset(rt.agent, n.id)
	}

	for _, c := range n.children {
		e.reset(rt, f, c)
	}
}
