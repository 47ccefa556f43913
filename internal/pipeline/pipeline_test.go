package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/coachpo/spreadscan/internal/schema"
	"github.com/coachpo/spreadscan/internal/venues"
)

// stubAdapter serves canned responses for one venue.
type stubAdapter struct {
	venue     schema.VenueID
	stats     []schema.TickerStat
	statsErr  error
	quotes    schema.QuoteBook
	quotesErr error
	books     map[string]schema.OrderBook
	bookErr   error
}

func (s *stubAdapter) Venue() schema.VenueID { return s.venue }

func (s *stubAdapter) Tickers(_ context.Context) ([]schema.TickerStat, error) {
	return s.stats, s.statsErr
}

func (s *stubAdapter) TopOfBook(_ context.Context) (schema.QuoteBook, error) {
	return s.quotes, s.quotesErr
}

func (s *stubAdapter) OrderBook(_ context.Context, symbol string) (schema.OrderBook, error) {
	if s.bookErr != nil {
		return schema.OrderBook{}, s.bookErr
	}
	return s.books[symbol], nil
}

func (s *stubAdapter) NativeSymbol(pair schema.CanonicalPair) string {
	return strings.ReplaceAll(string(pair), "_", "")
}

func newStubRegistry(t *testing.T, adapters ...*stubAdapter) *venues.Registry {
	t.Helper()
	reg := venues.NewRegistry()
	for _, adapter := range adapters {
		if err := reg.Register(adapter); err != nil {
			t.Fatalf("register %s: %v", adapter.venue, err)
		}
	}
	return reg
}

// stubFees maps venues to taker fee percentages, defaulting to 0.10.
type stubFees map[schema.VenueID]string

func (f stubFees) TakerFeeFor(venue schema.VenueID) decimal.Decimal {
	if pct, ok := f[venue]; ok {
		return decimal.RequireFromString(pct)
	}
	return decimal.RequireFromString("0.10")
}

// recordingSpreadLog captures candidates written to the spread sink.
type recordingSpreadLog struct {
	mu         sync.Mutex
	candidates []schema.Candidate
	err        error
}

func (r *recordingSpreadLog) Write(candidate schema.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.candidates = append(r.candidates, candidate)
	return nil
}

// recordingConfirmedLog captures results written to the confirmed sink.
type recordingConfirmedLog struct {
	mu      sync.Mutex
	results []schema.DepthResult
}

func (r *recordingConfirmedLog) Write(result schema.DepthResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return nil
}

func dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	return decimal.RequireFromString(value)
}

func level(t *testing.T, price, qty string) schema.PriceLevel {
	t.Helper()
	return schema.PriceLevel{
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(qty),
	}
}
