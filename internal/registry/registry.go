// Package registry memoizes one Engine per (symbol, strategyName) pair,
// constructed lazily on first access. Grounded on the teacher's
// internal/portfolio.PortfolioManager (an RWMutex-guarded map keyed by
// symbol), repurposed here from multi-exchange position aggregation into
// engine-instance memoization: callers ask for "the engine for BTCUSDT/
// momentum" without caring whether it already exists.
package registry

import (
	"sync"

	"github.com/tripolskypetr/backtest-kit-sub014/internal/engine"
)

// Key identifies one memoized engine slot.
type Key struct {
	Symbol       string
	StrategyName string
}

// Factory constructs a fresh Engine for (symbol, strategyName) the first
// time it is requested. Under concurrent first access two goroutines may
// both invoke Factory for the same key; only one resulting Engine is
// kept (sync.Map.LoadOrStore semantics) and the other is simply
// discarded, since Engine construction has no side effects until its
// Tick/Backtest methods are called.
type Factory func(symbol, strategyName string) *engine.Engine

// Registry holds no global mutable singleton beyond its own map; callers
// own the Registry instance (typically one per process).
type Registry struct {
	engines sync.Map // Key -> *engine.Engine
	factory Factory
}

// New constructs an empty Registry backed by factory.
func New(factory Factory) *Registry {
	return &Registry{factory: factory}
}

// Get returns the memoized Engine for (symbol, strategyName), building
// it via Factory on first access.
func (r *Registry) Get(symbol, strategyName string) *engine.Engine {
	key := Key{Symbol: symbol, StrategyName: strategyName}
	if v, ok := r.engines.Load(key); ok {
		return v.(*engine.Engine)
	}
	candidate := r.factory(symbol, strategyName)
	actual, _ := r.engines.LoadOrStore(key, candidate)
	return actual.(*engine.Engine)
}

// Lookup returns the Engine for (symbol, strategyName) if it has already
// been constructed, without triggering Factory.
func (r *Registry) Lookup(symbol, strategyName string) (*engine.Engine, bool) {
	v, ok := r.engines.Load(Key{Symbol: symbol, StrategyName: strategyName})
	if !ok {
		return nil, false
	}
	return v.(*engine.Engine), true
}

// Delete evicts the memoized Engine for (symbol, strategyName), if any.
// A subsequent Get constructs a fresh one.
func (r *Registry) Delete(symbol, strategyName string) {
	r.engines.Delete(Key{Symbol: symbol, StrategyName: strategyName})
}

// All returns every currently memoized Engine, in unspecified order.
func (r *Registry) All() []*engine.Engine {
	var out []*engine.Engine
	r.engines.Range(func(_, v any) bool {
		out = append(out, v.(*engine.Engine))
		return true
	})
	return out
}

// Keys returns every currently memoized (symbol, strategyName) pair, in
// unspecified order.
func (r *Registry) Keys() []Key {
	var out []Key
	r.engines.Range(func(k, _ any) bool {
		out = append(out, k.(Key))
		return true
	})
	return out
}
