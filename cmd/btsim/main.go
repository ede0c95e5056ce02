package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/btcore/internal/config"
	"github.com/zeusync/btcore/internal/core/agents"
	"github.com/zeusync/btcore/internal/core/btree"
	"github.com/zeusync/btcore/internal/core/events"
	"github.com/zeusync/btcore/internal/injector"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML simulation config")
		assetsDir  = flag.String("assets", "", "override assets_dir")
		root       = flag.String("root", "", "override root_tree")
		agentCount = flag.Int("agents", -1, "override agents")
		ticks      = flag.Int("ticks", -1, "override ticks (0 runs until interrupted)")
		verbose    = flag.Bool("v", false, "print a status summary every frame")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *assetsDir != "" {
		cfg.AssetsDir = *assetsDir
	}
	if *root != "" {
		cfg.RootTree = *root
	}
	if *agentCount >= 0 {
		cfg.Agents = *agentCount
	}
	if *ticks >= 0 {
		cfg.Ticks = uint64(*ticks)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	h, cleanup, err := injector.InitializeHost(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error building host:", err)
		os.Exit(1)
	}
	defer cleanup()

	h.Events().Subscribe(events.TreeReloaded, func(e events.Event) error {
		c := e.Data.(events.TreeChange)
		fmt.Printf("frame %d: reloaded %s from %s, %d agents moved\n", e.Frame, c.Root, c.File, c.Agents)
		return nil
	})

	if *verbose {
		h.OnStep(func(frame uint64, results []agents.Result) {
			var counts [btree.StatusAborted + 1]int
			for _, r := range results {
				counts[r.Status]++
			}
			fmt.Printf("frame %d: running=%d success=%d failure=%d\n", frame,
				counts[btree.StatusRunning], counts[btree.StatusSuccess], counts[btree.StatusFailure])
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := h.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error running simulation:", err)
		cleanup()
		os.Exit(1)
	}
}
