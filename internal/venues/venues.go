// Package venues defines the uniform market-data adapter contract, the venue
// registry, and the wiring that installs the built-in venue integrations.
package venues

import (
	"context"
	"fmt"
	"sync"

	"github.com/coachpo/spreadscan/internal/schema"
)

// Adapter is the per-venue market-data surface consumed by the pipeline
// stages. Implementations normalize vendor payloads into schema types and
// never block beyond the request deadline.
type Adapter interface {
	// Venue returns the adapter's venue identifier.
	Venue() schema.VenueID
	// Tickers fetches 24h ticker statistics for every listed spot symbol.
	Tickers(ctx context.Context) ([]schema.TickerStat, error)
	// TopOfBook fetches the current best bid/ask for every listed spot symbol.
	TopOfBook(ctx context.Context) (schema.QuoteBook, error)
	// OrderBook fetches the order book for one native symbol, truncated to the
	// configured depth.
	OrderBook(ctx context.Context, nativeSymbol string) (schema.OrderBook, error)
	// NativeSymbol renders the canonical pair in the venue's spelling.
	NativeSymbol(pair schema.CanonicalPair) string
}

// Registry resolves venue identifiers to adapters. It is populated once at
// startup; stage cores dispatch through it and never name a venue inline.
type Registry struct {
	mu       sync.RWMutex
	adapters map[schema.VenueID]Adapter
	order    []schema.VenueID
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		mu:       sync.RWMutex{},
		adapters: make(map[schema.VenueID]Adapter),
		order:    nil,
	}
}

// Register installs an adapter. Registering the same venue twice is a
// programming error and fails.
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return fmt.Errorf("venues: nil adapter")
	}
	venue := adapter.Venue()
	if !venue.Valid() {
		return fmt.Errorf("venues: invalid venue %q", venue)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[venue]; exists {
		return fmt.Errorf("venues: venue %q already registered", venue)
	}
	r.adapters[venue] = adapter
	r.order = append(r.order, venue)
	return nil
}

// Lookup resolves the adapter for a venue.
func (r *Registry) Lookup(venue schema.VenueID) (Adapter, error) {
	r.mu.RLock()
	adapter, ok := r.adapters[venue]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("venues: venue %q not registered", venue)
	}
	return adapter, nil
}

// Venues returns the registered venue identifiers in registration order.
func (r *Registry) Venues() []schema.VenueID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schema.VenueID, len(r.order))
	copy(out, r.order)
	return out
}

// Adapters returns the registered adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, 0, len(r.order))
	for _, venue := range r.order {
		out = append(out, r.adapters[venue])
	}
	return out
}
