package btree

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// defs is an in-memory ResourceLookup.
type defs map[AssetID]*Definition

func (d defs) GetAsset(id AssetID) (*Definition, error) {
	if def, ok := d[id]; ok {
		return def, nil
	}
	return nil, &MissingAssetError{ID: id}
}

// probe is a scripted leaf: it returns whatever status is set and counts calls.
type probe struct {
	status Status
	calls  int
	exits  int
}

func (p *probe) Execute(*Frame, AgentID) LeafResult {
	p.calls++
	return LeafResult{Status: p.status}
}

func (p *probe) OnExit(*Frame, AgentID) { p.exits++ }

type event struct {
	kind   string
	node   uuid.UUID
	status Status
}

// recorder keeps every observer notification.
type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) add(ev event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) OnNodeEnter(_ AgentID, n uuid.UUID) { r.add(event{kind: "enter", node: n}) }
func (r *recorder) OnNodeExit(_ AgentID, n uuid.UUID, s Status) {
	r.add(event{kind: "exit", node: n, status: s})
}
func (r *recorder) OnNodeSuccess(_ AgentID, n uuid.UUID) { r.add(event{kind: "success", node: n}) }
func (r *recorder) OnDecoratorChecked(_ AgentID, n uuid.UUID, passed bool) {
	r.add(event{kind: "checked", node: n})
}
func (r *recorder) OnDecoratorReset(_ AgentID, n uuid.UUID) { r.add(event{kind: "reset", node: n}) }
func (r *recorder) OnAbort(_ AgentID, src, _ uuid.UUID) { r.add(event{kind: "abort", node: src}) }

// count returns how many events of kind were recorded for node, optionally
// filtered by status.
func (r *recorder) count(kind string, node uuid.UUID, status ...Status) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.kind != kind || ev.node != node {
			continue
		}
		if len(status) > 0 && ev.status != status[0] {
			continue
		}
		n++
	}
	return n
}

type fixture struct {
	t      *testing.T
	reg    *Registry
	lookup defs
	world  *Blackboards
	rec    *recorder
	eval   *Evaluator
	binder *Binder
	probes map[string]*probe
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := NewRegistry()
	RegisterBuiltins(reg)
	rec := &recorder{}
	return &fixture{
		t:      t,
		reg:    reg,
		lookup: defs{},
		world:  NewBlackboards(),
		rec:    rec,
		eval:   NewEvaluator(WithObserver(rec)),
		binder: NewBinder(reg, nil),
		probes: map[string]*probe{},
	}
}

func (fx *fixture) add(ds ...*Definition) {
	for _, d := range ds {
		fx.lookup[d.ID()] = d
	}
}

// probe registers a scripted action leaf under path and adds its definition.
func (fx *fixture) probe(path string, s Status) *probe {
	p := &probe{status: s}
	fx.probes[path] = p
	fx.reg.RegisterLeafValue(path, p)
	fx.add(&Definition{Path: path, Kind: KindAction, Leaf: path})
	return p
}

func (fx *fixture) bind(root string) *Graph {
	fx.t.Helper()
	def, err := fx.lookup.GetAsset(AssetIDFromPath(root))
	require.NoError(fx.t, err)
	g, err := fx.binder.Bind(def, fx.lookup)
	require.NoError(fx.t, err)
	return g
}

func (fx *fixture) runtime(root string) *Runtime {
	return NewRuntime(fx.bind(root), 1)
}

func (fx *fixture) frame(n uint64) *Frame {
	return &Frame{Context: context.Background(), Number: n, World: fx.world}
}

func (fx *fixture) tick(rt *Runtime, n uint64) Status {
	fx.t.Helper()
	s, err := fx.eval.Evaluate(rt, fx.frame(n))
	require.NoError(fx.t, err)
	require.False(fx.t, rt.IsAborting(), "abort left in flight after tick %d", n)
	return s
}

func (fx *fixture) bb() *Blackboard {
	return fx.world.Blackboard(1)
}

func (fx *fixture) node(g *Graph, name string) *Node {
	fx.t.Helper()
	n, ok := g.Find(name)
	require.True(fx.t, ok, "node %q", name)
	return n
}

func seq(path string, children ...string) *Definition {
	return &Definition{Path: path, Kind: KindSequence, Children: children}
}

func sel(path string, children ...string) *Definition {
	return &Definition{Path: path, Kind: KindSelector, Children: children}
}

func guarded(path, key string, abort AbortType, child string) *Definition {
	return &Definition{
		Path:      path,
		Kind:      KindConditional,
		Abort:     abort,
		Condition: "IsTrue",
		Params:    map[string]any{"key": key},
		Child:     child,
	}
}

// snapshot copies the mutable per-node state for equality checks.
func snapshot(rt *Runtime) ([]Status, []int32, []uint64, []guardMemo) {
	return append([]Status(nil), rt.status...),
		append([]int32(nil), rt.cursor...),
		append([]uint64(nil), rt.counter...),
		append([]guardMemo(nil), rt.guard...)
}
