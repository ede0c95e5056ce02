package btree

import (
	"context"
	"sync"
)

// AgentID identifies the simulated entity a runtime belongs to.
type AgentID uint64

// World is the host-side view leaves need: per-agent blackboards.
type World interface {
	Blackboard(agent AgentID) *Blackboard
}

// Frame is the per-tick context handed to leaves and guards.
type Frame struct {
	Context context.Context
	// Number is the simulation step. Tick-based decorators count in frames, never wall time.
	Number uint64
	World  World
}

// Blackboard returns the agent's blackboard or nil when the frame carries no world.
func (f *Frame) Blackboard(agent AgentID) *Blackboard {
	if f == nil || f.World == nil {
		return nil
	}
	return f.World.Blackboard(agent)
}

// Blackboards is a World keeping one lazily created blackboard per agent.
type Blackboards struct {
	mu     sync.RWMutex
	boards map[AgentID]*Blackboard
}

func NewBlackboards() *Blackboards {
	return &Blackboards{boards: make(map[AgentID]*Blackboard)}
}

func (w *Blackboards) Blackboard(agent AgentID) *Blackboard {
	w.mu.RLock()
	bb, ok := w.boards[agent]
	w.mu.RUnlock()
	if ok {
		return bb
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if bb, ok = w.boards[agent]; ok {
		return bb
	}
	bb = NewBlackboard()
	w.boards[agent] = bb
	return bb
}

// Forget drops the agent's blackboard.
func (w *Blackboards) Forget(agent AgentID) {
	w.mu.Lock()
	delete(w.boards, agent)
	w.mu.Unlock()
}
