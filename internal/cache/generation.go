package cache

import (
	"context"
	"sync"
)

// Generational wraps a Cache and counts invalidations. A reader snapshots
// Generation before loading the source data and stores the result with
// SetIfCurrent, which refuses values computed before the latest Clear.
type Generational[T any] struct {
	Cache[T]

	mu  sync.Mutex
	gen uint64
}

func NewGenerational[T any](c Cache[T]) *Generational[T] {
	return &Generational[T]{Cache: c}
}

func (g *Generational[T]) Generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen
}

// Clear bumps the generation and drops every entry.
func (g *Generational[T]) Clear(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen++
	g.Cache.Clear(ctx)
}

// SetIfCurrent stores data only when no Clear happened since gen was read.
func (g *Generational[T]) SetIfCurrent(ctx context.Context, key string, data T, gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen != gen {
		return false
	}
	g.Cache.Set(ctx, key, data)
	return true
}
