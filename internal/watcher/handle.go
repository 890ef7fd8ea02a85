package watcher

import (
	"context"
	"sync"

	"github.com/ramonehamilton/EDH-Recommender/internal/engine"
)

// Handle publishes the engine built from the most recent snapshot. Swaps
// happen under a lock, so requests in flight keep the engine they started
// with while new requests see the rebuilt one.
type Handle struct {
	mu      sync.RWMutex
	current *engine.Engine
}

// NewHandle creates a handle serving the given engine.
func NewHandle(initial *engine.Engine) *Handle {
	return &Handle{current: initial}
}

// Engine returns the currently active engine.
func (h *Handle) Engine() *engine.Engine {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reloader returns a ReloadFunc that rebuilds the engine from cfg and swaps
// it in. On error the previous engine stays active.
func (h *Handle) Reloader(cfg engine.Config) ReloadFunc {
	return func(ctx context.Context) error {
		rebuilt, err := engine.New(ctx, cfg)
		if err != nil {
			return err
		}
		h.mu.Lock()
		h.current = rebuilt
		h.mu.Unlock()
		return nil
	}
}
