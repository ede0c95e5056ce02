package btree

import (
	"github.com/google/uuid"
	"github.com/zeusync/btcore/internal/core/observability/log"
)

// Observer receives fire-and-forget notifications during evaluation. Observers must
// not influence control flow; the engine behaves identically with or without them.
// Implementations attached to a concurrently ticked manager must be goroutine safe.
type Observer interface {
	OnNodeEnter(agent AgentID, node uuid.UUID)
	OnNodeExit(agent AgentID, node uuid.UUID, status Status)
	OnNodeSuccess(agent AgentID, node uuid.UUID)
	OnDecoratorChecked(agent AgentID, node uuid.UUID, passed bool)
	OnDecoratorReset(agent AgentID, node uuid.UUID)
	OnAbort(agent AgentID, source, target uuid.UUID)
}

// NopObserver ignores every notification. Embed it to implement only a few hooks.
type NopObserver struct{}

func (NopObserver) OnNodeEnter(AgentID, uuid.UUID)              {}
func (NopObserver) OnNodeExit(AgentID, uuid.UUID, Status)       {}
func (NopObserver) OnNodeSuccess(AgentID, uuid.UUID)            {}
func (NopObserver) OnDecoratorChecked(AgentID, uuid.UUID, bool) {}
func (NopObserver) OnDecoratorReset(AgentID, uuid.UUID)         {}
func (NopObserver) OnAbort(AgentID, uuid.UUID, uuid.UUID)       {}

var _ Observer = NopObserver{}

type multiObserver []Observer

// Observers fans notifications out in order. Nil entries are skipped.
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	switch len(out) {
	case 0:
		return NopObserver{}
	case 1:
		return out[0]
	}
	return out
}

func (m multiObserver) OnNodeEnter(a AgentID, n uuid.UUID) {
	for _, o := range m {
		o.OnNodeEnter(a, n)
	}
}

func (m multiObserver) OnNodeExit(a AgentID, n uuid.UUID, s Status) {
	for _, o := range m {
		o.OnNodeExit(a, n, s)
	}
}

func (m multiObserver) OnNodeSuccess(a AgentID, n uuid.UUID) {
	for _, o := range m {
		o.OnNodeSuccess(a, n)
	}
}

func (m multiObserver) OnDecoratorChecked(a AgentID, n uuid.UUID, passed bool) {
	for _, o := range m {
		o.OnDecoratorChecked(a, n, passed)
	}
}

func (m multiObserver) OnDecoratorReset(a AgentID, n uuid.UUID) {
	for _, o := range m {
		o.OnDecoratorReset(a, n)
	}
}

func (m multiObserver) OnAbort(a AgentID, src, dst uuid.UUID) {
	for _, o := range m {
		o.OnAbort(a, src, dst)
	}
}

// LogObserver writes every notification at debug level.
type LogObserver struct {
	log log.Log
}

func NewLogObserver(l log.Log) *LogObserver {
	return &LogObserver{log: l}
}

func (o *LogObserver) OnNodeEnter(a AgentID, n uuid.UUID) {
	o.log.Debug("node enter", log.Uint64("agent", uint64(a)), log.Stringer("node", n))
}

func (o *LogObserver) OnNodeExit(a AgentID, n uuid.UUID, s Status) {
	o.log.Debug("node exit", log.Uint64("agent", uint64(a)), log.Stringer("node", n), log.Stringer("status", s))
}

func (o *LogObserver) OnNodeSuccess(a AgentID, n uuid.UUID) {
	o.log.Debug("node success", log.Uint64("agent", uint64(a)), log.Stringer("node", n))
}

func (o *LogObserver) OnDecoratorChecked(a AgentID, n uuid.UUID, passed bool) {
	o.log.Debug("decorator checked", log.Uint64("agent", uint64(a)), log.Stringer("node", n), log.Bool("passed", passed))
}

func (o *LogObserver) OnDecoratorReset(a AgentID, n uuid.UUID) {
	o.log.Debug("decorator reset", log.Uint64("agent", uint64(a)), log.Stringer("node", n))
}

func (o *LogObserver) OnAbort(a AgentID, src, dst uuid.UUID) {
	o.log.Debug("abort raised", log.Uint64("agent", uint64(a)), log.Stringer("source", src), log.Stringer("target", dst))
}
