package btree

import (
	"github.com/zeusync/btcore/internal/core/observability/log"
)

// checkAborts re-checks every abort watcher before the walk trusts cached Running
// statuses. Watchers are visited in pre-order, so on a tie the upper one wins and
// then the leftmost. At most one abort is raised per tick; later candidates are
// counted and dropped.
func (e *Evaluator) checkAborts(rt *Runtime, f *Frame) {
	g := rt.graph
	for _, w := range g.watchers {
		n := &g.nodes[w]
		kind, target := e.abortCandidate(rt, f, n)
		if kind == abortIdle {
			continue
		}

		if rt.aborting {
			rt.suppressed++
			if e.log.Enabled(log.LevelDebug) {
				err := &ReentrantAbortError{Agent: rt.agent, Source: n.name, InFlight: g.nodes[rt.abortSource].name}
				e.log.Debug("abort suppressed", log.Error(err))
			}
			continue
		}

		rt.raise(kind, w, target)
		e.obs.OnAbort(rt.agent, n.id, g.nodes[target].id)
	}
}

// abortCandidate decides whether watcher n interrupts something this tick and
// returns the deepest running node of the branch to interrupt.
func (e *Evaluator) abortCandidate(rt *Runtime, f *Frame, n *Node) (abortKind, int32) {
	i := n.index

	if n.abort.watchesSelf() && rt.status[i] == StatusRunning {
		if !e.dynamicRun(rt, f, i) {
			return abortSelf, rt.activeLeaf(n.child())
		}
	}

	if !n.abort.watchesLowerPriority() || n.scope == noIndex || rt.guard[i] == guardUnknown {
		return abortIdle, noIndex
	}
	scope := &rt.graph.nodes[n.scope]
	if rt.status[scope.index] != StatusRunning {
		return abortIdle, noIndex
	}
	c := rt.cursor[scope.index]
	if c <= n.anchor || int(c) >= len(scope.children) {
		return abortIdle, noIndex
	}
	branch := scope.children[c]
	if rt.status[branch] != StatusRunning {
		return abortIdle, noIndex
	}
	if memoOf(e.guard(rt, f, n)) == rt.guard[i] {
		return abortIdle, noIndex
	}
	return abortLowerPriority, rt.activeLeaf(branch)
}

// handoff is called by a composite that received Aborted while an abort is in
// flight. When the composite is the scope of a lower-priority abort, the raising
// decorator reports Aborted in its place, the abort is absorbed and the scope
// resumes at the decorator's branch.
func (e *Evaluator) handoff(rt *Runtime, f *Frame, scope int32) (int32, bool) {
	if rt.abortKind != abortLowerPriority {
		return 0, false
	}
	src := &rt.graph.nodes[rt.abortSource]
	if src.scope != scope {
		return 0, false
	}

	rt.clearAbort()
	e.finish(rt, f, src, StatusAborted)
	return src.anchor, true
}

// onChildAborted is the decorator abort handler. A decorator cancelling its own
// child absorbs the abort; every other decorator passes it up.
func (e *Evaluator) onChildAborted(rt *Runtime, n *Node) Status {
	if rt.aborting && rt.abortKind == abortSelf && rt.abortSource == n.index {
		rt.clearAbort()
	}
	return StatusAborted
}

// forceResolve settles an abort whose target the walk never reached.
func (e *Evaluator) forceResolve(rt *Runtime, f *Frame) {
	target := rt.abortTarget
	if e.log.Enabled(log.LevelDebug) {
		e.log.Debug("abort target not reached",
			log.Uint64("agent", uint64(rt.agent)),
			log.String("source", rt.graph.nodes[rt.abortSource].name),
			log.String("target", rt.graph.nodes[target].name),
		)
	}
	rt.clearAbort()
	e.reset(rt, f, target)
}
