// Package crawl walks the server's address space depth-first from a
// starting node, bounded by depth and node count and safe against the
// shared/cyclic references an OPC-UA reference graph can contain.
package crawl

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/uascope/uascope/pkg/client"
)

// Browser is the one session operation the crawler needs. *client.Client
// satisfies it; tests substitute an in-memory graph.
type Browser interface {
	Children(ctx context.Context, nodeID string) ([]client.Node, error)
}

// Config bounds one crawl invocation.
type Config struct {
	// StartNode is the NodeId string the crawl descends from.
	StartNode string `yaml:"start_node"`
	// MaxDepth stops descent below this many levels under StartNode.
	MaxDepth int `yaml:"max_depth"`
	// MaxNodes caps the result size. The bound is checked after each
	// append, so the crawl stops the moment it is reached.
	MaxNodes int `yaml:"max_nodes"`
}

// DefaultConfig returns the limits used when the caller provides none.
func DefaultConfig() Config {
	return Config{
		StartNode: client.ObjectsFolder,
		MaxDepth:  5,
		MaxNodes:  1000,
	}
}

type workItem struct {
	nodeID string
	depth  int
}

// Crawl traverses the address space under cfg.StartNode. Individual
// browse failures are logged and skipped; the crawl keeps whatever was
// already collected. Cancellation is observed once per node visit.
func Crawl(ctx context.Context, b Browser, cfg Config, log *zap.Logger) ([]client.Node, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.StartNode == "" {
		cfg.StartNode = client.ObjectsFolder
	}
	if cfg.MaxDepth <= 0 || cfg.MaxNodes <= 0 {
		return nil, fmt.Errorf("crawl limits must be positive (depth=%d nodes=%d)", cfg.MaxDepth, cfg.MaxNodes)
	}

	log.Info("crawl started",
		zap.String("start", cfg.StartNode),
		zap.Int("max_depth", cfg.MaxDepth),
		zap.Int("max_nodes", cfg.MaxNodes))
	began := time.Now()

	visited := make(map[string]struct{})
	var results []client.Node

	// Explicit work list instead of recursion: cancellation and bound
	// checks run uniformly once per iteration.
	stack := []workItem{{nodeID: cfg.StartNode, depth: 0}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if len(results) >= cfg.MaxNodes {
			break
		}

		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if w.depth >= cfg.MaxDepth {
			continue
		}
		if _, seen := visited[w.nodeID]; seen {
			continue
		}
		visited[w.nodeID] = struct{}{}

		children, err := b.Children(ctx, w.nodeID)
		if err != nil {
			log.Warn("browse failed, skipping node", zap.String("node", w.nodeID), zap.Error(err))
			continue
		}

		// Per-child bound check: the level stops as soon as the cap is
		// reached instead of appending its whole sibling batch.
		for _, child := range children {
			results = append(results, child)
			if len(results) >= cfg.MaxNodes {
				break
			}
			if client.Container(child.Class) {
				stack = append(stack, workItem{nodeID: child.ID, depth: w.depth + 1})
			}
		}
	}

	log.Info("crawl finished",
		zap.Int("nodes", len(results)),
		zap.Duration("elapsed", time.Since(began)))
	return results, nil
}
