package agents

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/zeusync/btcore/internal/core/btree"
	"github.com/zeusync/btcore/internal/core/observability/log"
	"github.com/zeusync/btcore/pkg/concurrent"
	"github.com/zeusync/btcore/pkg/generic"
)

var (
	ErrAgentExists  = errors.New("agent already exists")
	ErrUnknownAgent = errors.New("unknown agent")
)

const defaultShards = 16

// Result is one agent's outcome of a Tick.
type Result struct {
	Agent  btree.AgentID
	Status btree.Status
	Err    error
}

type shard struct {
	mx     sync.RWMutex
	agents map[btree.AgentID]*btree.Runtime
}

// Manager owns the per-agent runtimes of a simulation. Agents are spread over
// xxhash-sharded maps so spawning and lookups from many goroutines do not contend
// on one lock. Runtimes of despawned agents are pooled and reused.
type Manager struct {
	shards  []shard
	eval    *btree.Evaluator
	world   btree.World
	pool    *generic.Pool[*btree.Runtime]
	workers int
	log     log.Log
	size    atomic.Int64
}

type Option func(*Manager)

func WithShards(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.shards = make([]shard, n)
		}
	}
}

// WithWorkers bounds the goroutines Tick uses. Zero means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(m *Manager) { m.workers = n }
}

func WithWorld(w btree.World) Option {
	return func(m *Manager) { m.world = w }
}

func WithLogger(l log.Log) Option {
	return func(m *Manager) { m.log = l }
}

func NewManager(eval *btree.Evaluator, opts ...Option) *Manager {
	m := &Manager{
		shards: make([]shard, defaultShards),
		eval:   eval,
		world:  btree.NewBlackboards(),
		log:    log.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	for i := range m.shards {
		m.shards[i].agents = make(map[btree.AgentID]*btree.Runtime)
	}
	// Runtimes are detached by the evaluator before they are put back.
	m.pool = generic.NewPool(func() *btree.Runtime { return btree.NewRuntime(nil, 0) })
	return m
}

func (m *Manager) shardFor(agent btree.AgentID) *shard {
	var key [8]byte
	binary.LittleEndian.PutUint64(key[:], uint64(agent))
	return &m.shards[xxhash.Sum64(key[:])%uint64(len(m.shards))]
}

// World is the blackboard provider leaves see.
func (m *Manager) World() btree.World { return m.world }

// Frame builds the frame for a simulation step.
func (m *Manager) Frame(ctx context.Context, number uint64) *btree.Frame {
	return &btree.Frame{Context: ctx, Number: number, World: m.world}
}

// Spawn starts agent on g.
func (m *Manager) Spawn(agent btree.AgentID, g *btree.Graph) error {
	sh := m.shardFor(agent)
	sh.mx.Lock()
	defer sh.mx.Unlock()

	if _, ok := sh.agents[agent]; ok {
		return fmt.Errorf("%w: %d", ErrAgentExists, agent)
	}
	rt := m.pool.Get()
	if err := m.eval.Attach(rt, nil, g, agent); err != nil {
		return err
	}
	sh.agents[agent] = rt
	m.size.Add(1)
	return nil
}

// Despawn interrupts whatever the agent is running and drops it. It fails with
// btree.ErrConcurrentEvaluation while the agent is being evaluated.
func (m *Manager) Despawn(agent btree.AgentID, f *btree.Frame) error {
	sh := m.shardFor(agent)
	sh.mx.Lock()
	defer sh.mx.Unlock()

	rt, ok := sh.agents[agent]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAgent, agent)
	}
	if err := m.eval.Attach(rt, f, nil, 0); err != nil {
		return err
	}
	delete(sh.agents, agent)
	m.size.Add(-1)
	m.pool.Put(rt)

	if w, ok := m.world.(interface{ Forget(btree.AgentID) }); ok {
		w.Forget(agent)
	}
	return nil
}

// SwitchTree interrupts the agent's current tree and points its runtime at g,
// reusing the runtime's storage.
func (m *Manager) SwitchTree(agent btree.AgentID, g *btree.Graph, f *btree.Frame) error {
	rt, ok := m.Runtime(agent)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAgent, agent)
	}
	return m.switchTree(rt, g, f)
}

func (m *Manager) switchTree(rt *btree.Runtime, g *btree.Graph, f *btree.Frame) error {
	if rt.Graph() == g {
		return nil
	}
	return m.eval.Attach(rt, f, g, rt.Agent())
}

// Restart resets the agent's tree so the next tick starts from the root.
func (m *Manager) Restart(agent btree.AgentID, f *btree.Frame) error {
	rt, ok := m.Runtime(agent)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAgent, agent)
	}
	return m.eval.Restart(rt, f)
}

// Runtime returns the agent's runtime.
func (m *Manager) Runtime(agent btree.AgentID) (*btree.Runtime, bool) {
	sh := m.shardFor(agent)
	sh.mx.RLock()
	rt, ok := sh.agents[agent]
	sh.mx.RUnlock()
	return rt, ok
}

// Evaluate is the per-agent tick entry point: it spawns the agent on root if
// needed, switches it over when it was running another tree, and evaluates once.
func (m *Manager) Evaluate(root *btree.Graph, agent btree.AgentID, f *btree.Frame) (btree.Status, error) {
	rt, ok := m.Runtime(agent)
	if !ok {
		if err := m.Spawn(agent, root); err != nil && !errors.Is(err, ErrAgentExists) {
			return btree.StatusInactive, err
		}
		rt, _ = m.Runtime(agent)
	}
	if err := m.switchTree(rt, root, f); err != nil {
		return btree.StatusInactive, err
	}
	return m.eval.Evaluate(rt, f)
}

// Tick evaluates every agent once for simulation step frame. Each runtime is
// evaluated by exactly one worker. Results come back in ascending agent order;
// per-agent failures are reported in the results, not as the returned error.
func (m *Manager) Tick(ctx context.Context, frame uint64) ([]Result, error) {
	runtimes := m.snapshot()
	results := make([]Result, len(runtimes))
	f := m.Frame(ctx, frame)

	err := concurrent.ForEach(ctx, runtimes, m.workers, func(_ context.Context, i int, rt *btree.Runtime) error {
		s, err := m.eval.Evaluate(rt, f)
		results[i] = Result{Agent: rt.Agent(), Status: s, Err: err}
		if err != nil {
			m.log.Warn("agent evaluation failed", log.Uint64("agent", uint64(rt.Agent())), log.Error(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Retarget moves every agent running from onto to, e.g. after a hot reload
// produced a new graph for the same asset. It returns how many agents moved.
func (m *Manager) Retarget(from, to *btree.Graph, f *btree.Frame) (int, error) {
	moved := 0
	for _, rt := range m.snapshot() {
		if rt.Graph() != from {
			continue
		}
		if err := m.switchTree(rt, to, f); err != nil {
			return moved, fmt.Errorf("retarget agent %d: %w", rt.Agent(), err)
		}
		moved++
	}
	return moved, nil
}

// Agents lists the spawned agents in ascending order.
func (m *Manager) Agents() []btree.AgentID {
	runtimes := m.snapshot()
	out := make([]btree.AgentID, len(runtimes))
	for i, rt := range runtimes {
		out[i] = rt.Agent()
	}
	return out
}

func (m *Manager) Len() int { return int(m.size.Load()) }

// snapshot collects the runtimes sorted by agent.
func (m *Manager) snapshot() []*btree.Runtime {
	out := make([]*btree.Runtime, 0, m.Len())
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mx.RLock()
		for _, rt := range sh.agents {
			out = append(out, rt)
		}
		sh.mx.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agent() < out[j].Agent() })
	return out
}
