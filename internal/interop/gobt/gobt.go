// Package gobt runs github.com/joeycumines/go-behaviortree nodes as engine leaves
// and registers the leaves built on them.
package gobt

import (
	"fmt"
	"time"

	bt "github.com/joeycumines/go-behaviortree"
	"github.com/zeusync/btcore/internal/core/btree"
)

// FromStatus maps a go-behaviortree tick result onto the engine. Errors and
// unknown statuses are failures.
func FromStatus(s bt.Status, err error) btree.Status {
	if err != nil {
		return btree.StatusFailure
	}
	switch s {
	case bt.Running:
		return btree.StatusRunning
	case bt.Success:
		return btree.StatusSuccess
	default:
		return btree.StatusFailure
	}
}

// Leaf runs a go-behaviortree node as an engine leaf. The node is shared by all
// agents running the tree, so it must be stateless or goroutine safe.
func Leaf(node bt.Node) btree.Leaf {
	return btree.LeafFunc(func(*btree.Frame, btree.AgentID) btree.LeafResult {
		return btree.LeafResult{Status: FromStatus(node.Tick())}
	})
}

// RegisterLeaves adds the go-behaviortree backed leaves to reg.
//
// Throttle succeeds at most once per wall-clock "interval" across every agent
// running that node and fails otherwise. It gates host-wide work such as path
// requests, not per-agent behavior.
func RegisterLeaves(reg *btree.Registry) {
	reg.RegisterLeaf("Throttle", func(params map[string]any) (btree.Leaf, error) {
		raw, ok := params["interval"].(string)
		if !ok {
			return nil, fmt.Errorf("Throttle: param %q must be a duration string", "interval")
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("Throttle: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("Throttle: interval must be positive, got %s", d)
		}
		return Leaf(bt.New(bt.RateLimit(d))), nil
	})
}
