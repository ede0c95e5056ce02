package host

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/zeusync/btcore/internal/config"
	"github.com/zeusync/btcore/internal/core/agents"
	"github.com/zeusync/btcore/internal/core/assets"
	"github.com/zeusync/btcore/internal/core/btree"
	"github.com/zeusync/btcore/internal/core/events"
	"github.com/zeusync/btcore/internal/core/observability/log"
	"github.com/zeusync/btcore/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// StepFunc receives the results of every simulated frame.
type StepFunc func(frame uint64, results []agents.Result)

// Host drives a simulation: it loads tree assets, keeps the bound graphs current
// as files change and ticks every agent once per frame.
type Host struct {
	cfg     *config.Config
	log     log.Log
	cache   *assets.Cache
	binder  *btree.Binder
	manager *agents.Manager
	hub     *telemetry.Hub
	bus     *events.Bus

	// step serializes ticking with reloads so no agent is retargeted mid-tick.
	step sync.Mutex

	mu     sync.Mutex
	graphs map[string]*btree.Graph
	frame  uint64
	onStep StepFunc
}

func New(
	cfg *config.Config,
	logger log.Log,
	cache *assets.Cache,
	binder *btree.Binder,
	manager *agents.Manager,
	hub *telemetry.Hub,
	bus *events.Bus,
) *Host {
	return &Host{
		cfg:     cfg,
		log:     logger,
		cache:   cache,
		binder:  binder,
		manager: manager,
		hub:     hub,
		bus:     bus,
		graphs:  make(map[string]*btree.Graph),
	}
}

// OnStep installs a callback invoked after each frame.
func (h *Host) OnStep(fn StepFunc) { h.onStep = fn }

func (h *Host) Manager() *agents.Manager { return h.manager }

// Events is the lifecycle bus.
func (h *Host) Events() *events.Bus { return h.bus }

func (h *Host) publish(typ events.Type, data any) {
	if err := h.bus.Publish(events.Event{Type: typ, Source: "host", Frame: h.Frame(), Data: data}); err != nil {
		h.log.Warn("event handler failed", log.String("event", string(typ)), log.Error(err))
	}
}

// Frame is the number of the last simulated frame.
func (h *Host) Frame() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frame
}

// Graph returns the current graph bound for root.
func (h *Host) Graph(root string) (*btree.Graph, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.graphs[root]
	return g, ok
}

// Load reads the assets directory, binds the root tree and spawns the configured
// agents on it.
func (h *Host) Load() error {
	if err := h.cache.LoadDir(h.cfg.AssetsDir); err != nil {
		return err
	}
	g, err := h.bind(h.cfg.RootTree)
	if err != nil {
		return err
	}
	for i := 1; i <= h.cfg.Agents; i++ {
		if err := h.manager.Spawn(btree.AgentID(i), g); err != nil && !errors.Is(err, agents.ErrAgentExists) {
			return err
		}
	}
	h.log.Info("simulation loaded",
		log.String("root", h.cfg.RootTree),
		log.Int("nodes", g.Len()),
		log.Int("agents", h.manager.Len()),
	)
	h.publish(events.TreeLoaded, events.TreeChange{
		Root:   h.cfg.RootTree,
		Nodes:  g.Len(),
		Agents: h.manager.Len(),
	})
	return nil
}

func (h *Host) bind(root string) (*btree.Graph, error) {
	def, err := h.cache.Lookup(root)
	if err != nil {
		return nil, fmt.Errorf("root tree %q: %w", root, err)
	}
	g, err := h.binder.Bind(def, h.cache)
	if err != nil {
		return nil, fmt.Errorf("bind %q: %w", root, err)
	}
	h.mu.Lock()
	h.graphs[root] = g
	h.mu.Unlock()
	return g, nil
}

// Step simulates one frame.
func (h *Host) Step(ctx context.Context) ([]agents.Result, error) {
	h.step.Lock()
	defer h.step.Unlock()

	h.mu.Lock()
	h.frame++
	frame := h.frame
	h.mu.Unlock()

	results, err := h.manager.Tick(ctx, frame)
	if err != nil {
		return nil, err
	}
	if h.onStep != nil {
		h.onStep(frame, results)
	}
	return results, nil
}

// Reload re-reads path and moves agents onto any graph whose definitions changed.
// A tree that no longer binds keeps running its previous graph. Event handlers
// run while the simulation is held and must not call Step.
func (h *Host) Reload(ctx context.Context, path string) error {
	h.step.Lock()
	defer h.step.Unlock()

	if err := h.cache.LoadFile(path); err != nil {
		h.publish(events.ReloadFailed, err)
		return err
	}

	h.mu.Lock()
	roots := make(map[string]*btree.Graph, len(h.graphs))
	for root, g := range h.graphs {
		roots[root] = g
	}
	frame := h.manager.Frame(ctx, h.frame)
	h.mu.Unlock()

	var errs []error
	for root, old := range roots {
		g, err := h.bind(root)
		if err != nil {
			h.log.Warn("reload kept previous tree", log.String("root", root), log.Error(err))
			h.publish(events.ReloadFailed, err)
			errs = append(errs, err)
			continue
		}
		if g == old {
			continue
		}
		moved, err := h.manager.Retarget(old, g, frame)
		if err != nil {
			errs = append(errs, err)
		}
		h.log.Info("tree reloaded", log.String("root", root), log.String("file", path), log.Int("agents", moved))
		h.publish(events.TreeReloaded, events.TreeChange{Root: root, File: path, Nodes: g.Len(), Agents: moved})
	}
	return errors.Join(errs...)
}

// Run loads the simulation and ticks it until ctx is done or the configured number
// of frames has run. With Watch set it reloads changed tree files; with a
// TelemetryAddr it serves the event stream on /ws.
func (h *Host) Run(ctx context.Context) error {
	if err := h.Load(); err != nil {
		return err
	}

	var w *assets.Watcher
	if h.cfg.Watch {
		var err error
		if w, err = assets.NewWatcher(assets.DefaultDebounce, h.cfg.AssetsDir); err != nil {
			return fmt.Errorf("watch %s: %w", h.cfg.AssetsDir, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if h.cfg.TelemetryAddr != "" && h.hub != nil {
		srv, ln, err := h.listen()
		if err != nil {
			if w != nil {
				_ = w.Close()
			}
			return err
		}
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("telemetry: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			h.hub.Close()
			shutdown, done := context.WithTimeout(context.Background(), time.Second)
			defer done()
			return srv.Shutdown(shutdown)
		})
	}

	if w != nil {
		g.Go(func() error {
			defer w.Close()
			h.watch(ctx, w)
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		return h.loop(ctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (h *Host) listen() (*http.Server, net.Listener, error) {
	ln, err := net.Listen("tcp", h.cfg.TelemetryAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/ws", h.hub)
	h.log.Info("telemetry listening", log.String("addr", ln.Addr().String()))
	return &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}, ln, nil
}

func (h *Host) loop(ctx context.Context) error {
	var tick <-chan time.Time
	if h.cfg.TickRate > 0 {
		t := time.NewTicker(h.cfg.TickRate)
		defer t.Stop()
		tick = t.C
	}

	for n := uint64(0); h.cfg.Ticks == 0 || n < h.cfg.Ticks; n++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := h.Step(ctx); err != nil {
			return err
		}
	}
	h.log.Info("simulation finished", log.Uint64("frames", h.Frame()))
	h.publish(events.SimulationFinished, nil)
	return nil
}

func (h *Host) watch(ctx context.Context, w *assets.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-w.Events:
			if !ok {
				return
			}
			if err := h.Reload(ctx, path); err != nil {
				h.log.Warn("reload failed", log.String("file", path), log.Error(err))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.log.Warn("watch error", log.Error(err))
		}
	}
}
