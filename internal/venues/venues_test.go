package venues

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/coachpo/spreadscan/config"
	"github.com/coachpo/spreadscan/internal/schema"
)

type stubAdapter struct {
	venue schema.VenueID
}

func (s stubAdapter) Venue() schema.VenueID { return s.venue }
func (s stubAdapter) Tickers(context.Context) ([]schema.TickerStat, error) {
	return nil, nil
}
func (s stubAdapter) TopOfBook(context.Context) (schema.QuoteBook, error) {
	return nil, nil
}
func (s stubAdapter) OrderBook(context.Context, string) (schema.OrderBook, error) {
	return schema.OrderBook{}, nil
}
func (s stubAdapter) NativeSymbol(pair schema.CanonicalPair) string {
	return string(pair)
}

func TestRegistryRejectsInvalidRegistrations(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(nil); err == nil {
		t.Fatalf("nil adapter must be rejected")
	}
	if err := reg.Register(stubAdapter{venue: "nasdaq"}); err == nil {
		t.Fatalf("unknown venue must be rejected")
	}
	if err := reg.Register(stubAdapter{venue: schema.VenueGate}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(stubAdapter{venue: schema.VenueGate}); err == nil {
		t.Fatalf("duplicate venue must be rejected")
	}
}

func TestRegistryLookupAndOrder(t *testing.T) {
	reg := NewRegistry()
	for _, venue := range []schema.VenueID{schema.VenueKucoin, schema.VenueBinance} {
		if err := reg.Register(stubAdapter{venue: venue}); err != nil {
			t.Fatalf("Register(%s): %v", venue, err)
		}
	}

	adapter, err := reg.Lookup(schema.VenueBinance)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if adapter.Venue() != schema.VenueBinance {
		t.Fatalf("Lookup returned adapter for %q", adapter.Venue())
	}
	if _, err := reg.Lookup(schema.VenueOKX); err == nil {
		t.Fatalf("expected error for unregistered venue")
	}

	venues := reg.Venues()
	if len(venues) != 2 || venues[0] != schema.VenueKucoin || venues[1] != schema.VenueBinance {
		t.Fatalf("unexpected registration order %v", venues)
	}
}

func TestRegisterAllInstallsEnabledVenues(t *testing.T) {
	cfg := config.Default()
	reg := NewRegistry()
	if err := RegisterAll(reg, cfg.Venues, cfg.Thresholds.OrderbookDepth, zerolog.Nop()); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}

	got := reg.Venues()
	want := schema.Venues()
	if len(got) != len(want) {
		t.Fatalf("registered %d venues, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("venue %d = %q, want %q", i, got[i], want[i])
		}
	}
	for _, venue := range want {
		adapter, err := reg.Lookup(venue)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", venue, err)
		}
		if adapter.Venue() != venue {
			t.Fatalf("adapter for %q reports %q", venue, adapter.Venue())
		}
	}
}
