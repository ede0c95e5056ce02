package injector

import (
	"github.com/google/wire"
	"github.com/zeusync/btcore/internal/config"
	"github.com/zeusync/btcore/internal/core/agents"
	"github.com/zeusync/btcore/internal/core/assets"
	"github.com/zeusync/btcore/internal/core/btree"
	"github.com/zeusync/btcore/internal/core/events"
	"github.com/zeusync/btcore/internal/core/observability/log"
	"github.com/zeusync/btcore/internal/host"
	"github.com/zeusync/btcore/internal/interop/gobt"
	"github.com/zeusync/btcore/internal/telemetry"
)

// HostSet wires a simulation host from a config.
var HostSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideHub,
	ProvideEvaluator,
	ProvideManager,
	assets.NewCache,
	btree.NewBinder,
	events.NewBus,
	host.New,
)

func ProvideLogger(cfg *config.Config) log.Log {
	return log.New(cfg.Level())
}

// ProvideRegistry returns a registry holding the builtin leaves and conditions
// plus the go-behaviortree backed ones.
func ProvideRegistry() *btree.Registry {
	reg := btree.NewRegistry()
	btree.RegisterBuiltins(reg)
	gobt.RegisterLeaves(reg)
	return reg
}

// ProvideHub returns nil unless telemetry is configured.
func ProvideHub(cfg *config.Config, logger log.Log) (*telemetry.Hub, func()) {
	if cfg.TelemetryAddr == "" {
		return nil, func() {}
	}
	hub := telemetry.NewHub(logger)
	return hub, hub.Close
}

func ProvideEvaluator(logger log.Log, hub *telemetry.Hub) *btree.Evaluator {
	opts := []btree.Option{btree.WithLogger(logger)}
	if hub != nil {
		opts = append(opts, btree.WithObserver(hub))
	}
	if logger.Enabled(log.LevelDebug) {
		opts = append(opts, btree.WithObserver(btree.NewLogObserver(logger)))
	}
	return btree.NewEvaluator(opts...)
}

func ProvideManager(cfg *config.Config, eval *btree.Evaluator, logger log.Log) *agents.Manager {
	return agents.NewManager(eval,
		agents.WithShards(cfg.Shards),
		agents.WithWorkers(cfg.Workers),
		agents.WithLogger(logger),
	)
}
