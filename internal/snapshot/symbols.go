// Package snapshot provides in-memory storage for the canonical symbol map.
package snapshot

import (
	"sync"
	"time"

	"github.com/coachpo/spreadscan/internal/schema"
)

// SymbolSnapshot is one published symbol map plus its bookkeeping.
type SymbolSnapshot struct {
	Symbols   schema.SymbolMap
	Version   uint64
	UpdatedAt time.Time
}

// SymbolStore holds the latest symbol map produced by the normalizer.
// The map is replaced wholesale each cycle; readers always observe a
// complete build, never a partial one.
type SymbolStore struct {
	mu      sync.RWMutex
	current SymbolSnapshot
}

// NewSymbolStore creates an empty store. Current reports no snapshot
// until the first Replace.
func NewSymbolStore() *SymbolStore {
	return &SymbolStore{
		mu:      sync.RWMutex{},
		current: SymbolSnapshot{},
	}
}

// Replace swaps in a freshly built symbol map and bumps the version.
// The stored copy is detached from the caller's map.
func (s *SymbolStore) Replace(symbols schema.SymbolMap) SymbolSnapshot {
	cloned := cloneSymbols(symbols)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = SymbolSnapshot{
		Symbols:   cloned,
		Version:   s.current.Version + 1,
		UpdatedAt: time.Now().UTC(),
	}
	return SymbolSnapshot{
		Symbols:   cloneSymbols(s.current.Symbols),
		Version:   s.current.Version,
		UpdatedAt: s.current.UpdatedAt,
	}
}

// Current returns a deep copy of the latest snapshot. ok is false until
// the normalizer has published at least once.
func (s *SymbolStore) Current() (SymbolSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current.Version == 0 {
		return SymbolSnapshot{}, false
	}
	return SymbolSnapshot{
		Symbols:   cloneSymbols(s.current.Symbols),
		Version:   s.current.Version,
		UpdatedAt: s.current.UpdatedAt,
	}, true
}

func cloneSymbols(symbols schema.SymbolMap) schema.SymbolMap {
	clone := make(schema.SymbolMap, len(symbols))
	for pair, venueSymbols := range symbols {
		inner := make(schema.VenueSymbols, len(venueSymbols))
		for venue, native := range venueSymbols {
			inner[venue] = native
		}
		clone[pair] = inner
	}
	return clone
}
