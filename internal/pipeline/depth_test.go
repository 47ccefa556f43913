package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/coachpo/spreadscan/internal/schema"
	"github.com/coachpo/spreadscan/internal/signalbus"
)

func testCandidate(buy, sell schema.VenueID) schema.Candidate {
	return schema.Candidate{
		ID:            uuid.New(),
		Pair:          schema.CanonicalPair("AAA_USDT"),
		BuyVenue:      buy,
		SellVenue:     sell,
		BuyQuote:      schema.Quote{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(100)},
		SellQuote:     schema.Quote{Bid: decimal.NewFromInt(101), Ask: decimal.NewFromInt(102)},
		BestSpreadPct: decimal.NewFromInt(1),
		SpreadA2BPct:  decimal.NewFromInt(1),
		TS:            time.Now().UTC(),
	}
}

func newTestChecker(t *testing.T, log ConfirmedWriter, adapters ...*stubAdapter) (*DepthChecker, *signalbus.Queue) {
	t.Helper()
	queue := signalbus.New(signalbus.Config{Capacity: 16}, zerolog.Nop())
	checker, err := NewDepthChecker(DepthCheckerConfig{
		Registry:     newStubRegistry(t, adapters...),
		Queue:        queue,
		ConfirmedLog: log,
		Fees:         stubFees{},
		MinNotional:  dec(t, "500"),
		MaxLevels:    10,
		SafetyBuffer: dec(t, "0.30"),
		TargetNet:    dec(t, "0.20"),
		Logger:       zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewDepthChecker: %v", err)
	}
	return checker, queue
}

func TestDepthCheckerConfirms(t *testing.T) {
	buyVenue := &stubAdapter{
		venue: schema.VenueBinance,
		books: map[string]schema.OrderBook{
			"AAAUSDT": {
				Bids: []schema.PriceLevel{level(t, "99.9", "10")},
				Asks: []schema.PriceLevel{level(t, "100", "10")},
			},
		},
	}
	sellVenue := &stubAdapter{
		venue: schema.VenueBybit,
		books: map[string]schema.OrderBook{
			"AAAUSDT": {
				Bids: []schema.PriceLevel{level(t, "100.8", "10")},
				Asks: []schema.PriceLevel{level(t, "100.9", "10")},
			},
		},
	}
	log := &recordingConfirmedLog{}
	checker, _ := newTestChecker(t, log, buyVenue, sellVenue)

	result := checker.check(context.Background(), testCandidate(schema.VenueBinance, schema.VenueBybit))

	if !result.Confirmed() {
		t.Fatalf("status = %s reason = %s, want confirmed", result.Status, result.Reason)
	}
	if result.Reason != schema.ReasonOK {
		t.Fatalf("reason = %s, want ok", result.Reason)
	}
	if got := result.ExecBuyPrice.Round(4).String(); got != "100" {
		t.Fatalf("exec buy = %s, want 100", got)
	}
	// The sell walk divides through the level quantity, so compare rounded.
	if got := result.ExecSellPrice.Round(4).String(); got != "100.8" {
		t.Fatalf("exec sell = %s, want 100.8", got)
	}
	if !result.ExecNotionalUSDT.Equal(dec(t, "500")) {
		t.Fatalf("exec notional = %s, want 500", result.ExecNotionalUSDT)
	}
	// effective_buy 100.1, effective_sell 100.6992, minus the 0.30 buffer.
	if got := result.ExecSpreadPctNet.Round(4).String(); got != "0.2986" {
		t.Fatalf("net = %s, want 0.2986", got)
	}
	if result.CheckedAt.IsZero() {
		t.Fatal("result must carry the check time")
	}
}

func TestDepthCheckerRejectsInsufficientDepth(t *testing.T) {
	buyVenue := &stubAdapter{
		venue: schema.VenueBinance,
		books: map[string]schema.OrderBook{
			"AAAUSDT": {
				Bids: []schema.PriceLevel{level(t, "9.9", "1000")},
				// 100 + 303 = 403 of notional, short of 500.
				Asks: []schema.PriceLevel{level(t, "10.0", "10"), level(t, "10.1", "30")},
			},
		},
	}
	sellVenue := &stubAdapter{
		venue: schema.VenueBybit,
		books: map[string]schema.OrderBook{
			"AAAUSDT": {
				Bids: []schema.PriceLevel{level(t, "10.2", "1000")},
				Asks: []schema.PriceLevel{level(t, "10.3", "1000")},
			},
		},
	}
	checker, _ := newTestChecker(t, nil, buyVenue, sellVenue)

	result := checker.check(context.Background(), testCandidate(schema.VenueBinance, schema.VenueBybit))

	if result.Confirmed() {
		t.Fatal("expected rejection")
	}
	if result.Reason != schema.ReasonInsufficientDepth {
		t.Fatalf("reason = %s, want insufficient_depth", result.Reason)
	}
	if !result.ExecBuyPrice.IsZero() || !result.ExecSellPrice.IsZero() {
		t.Fatal("exec prices are meaningless on a short walk")
	}
}

func TestDepthCheckerRejectsFetchFailure(t *testing.T) {
	buyVenue := &stubAdapter{
		venue:   schema.VenueBinance,
		bookErr: errors.New("bad gateway"),
	}
	sellVenue := &stubAdapter{
		venue: schema.VenueBybit,
		books: map[string]schema.OrderBook{
			"AAAUSDT": {
				Bids: []schema.PriceLevel{level(t, "10.2", "1000")},
				Asks: []schema.PriceLevel{level(t, "10.3", "1000")},
			},
		},
	}
	checker, _ := newTestChecker(t, nil, buyVenue, sellVenue)

	result := checker.check(context.Background(), testCandidate(schema.VenueBinance, schema.VenueBybit))
	if result.Reason != schema.ReasonEmptyOrderBook {
		t.Fatalf("reason = %s, want fetch_failed_or_empty_orderbook", result.Reason)
	}
}

func TestDepthCheckerRejectsEmptyRelevantSide(t *testing.T) {
	// The buy leg walks asks; a bid-only book on the buy venue is unusable.
	buyVenue := &stubAdapter{
		venue: schema.VenueBinance,
		books: map[string]schema.OrderBook{
			"AAAUSDT": {Bids: []schema.PriceLevel{level(t, "100", "100")}},
		},
	}
	sellVenue := &stubAdapter{
		venue: schema.VenueBybit,
		books: map[string]schema.OrderBook{
			"AAAUSDT": {
				Bids: []schema.PriceLevel{level(t, "100.8", "100")},
				Asks: []schema.PriceLevel{level(t, "100.9", "100")},
			},
		},
	}
	checker, _ := newTestChecker(t, nil, buyVenue, sellVenue)

	result := checker.check(context.Background(), testCandidate(schema.VenueBinance, schema.VenueBybit))
	if result.Reason != schema.ReasonEmptyOrderBook {
		t.Fatalf("reason = %s, want fetch_failed_or_empty_orderbook", result.Reason)
	}
}

func TestDepthCheckerToleratesEmptyIrrelevantSides(t *testing.T) {
	// Only X.asks and Y.bids matter; the opposite sides may be empty.
	buyVenue := &stubAdapter{
		venue: schema.VenueBinance,
		books: map[string]schema.OrderBook{
			"AAAUSDT": {Asks: []schema.PriceLevel{level(t, "100", "10")}},
		},
	}
	sellVenue := &stubAdapter{
		venue: schema.VenueBybit,
		books: map[string]schema.OrderBook{
			"AAAUSDT": {Bids: []schema.PriceLevel{level(t, "100.8", "10")}},
		},
	}
	checker, _ := newTestChecker(t, nil, buyVenue, sellVenue)

	result := checker.check(context.Background(), testCandidate(schema.VenueBinance, schema.VenueBybit))
	if !result.Confirmed() {
		t.Fatalf("status = %s reason = %s, want confirmed", result.Status, result.Reason)
	}
}

func TestDepthCheckerRejectsThinNet(t *testing.T) {
	// Gross 0.40% collapses under two 0.10% fees plus the 0.30 buffer.
	buyVenue := &stubAdapter{
		venue: schema.VenueBinance,
		books: map[string]schema.OrderBook{
			"AAAUSDT": {Asks: []schema.PriceLevel{level(t, "100", "10")}},
		},
	}
	sellVenue := &stubAdapter{
		venue: schema.VenueBybit,
		books: map[string]schema.OrderBook{
			"AAAUSDT": {Bids: []schema.PriceLevel{level(t, "100.4", "10")}},
		},
	}
	checker, _ := newTestChecker(t, nil, buyVenue, sellVenue)

	result := checker.check(context.Background(), testCandidate(schema.VenueBinance, schema.VenueBybit))
	if result.Confirmed() {
		t.Fatal("expected rejection")
	}
	if result.Reason != schema.ReasonSpreadAfterFeesLow {
		t.Fatalf("reason = %s, want spread_after_fees_too_low", result.Reason)
	}
	// A completed walk keeps its exec prices even on rejection.
	if !result.ExecBuyPrice.Equal(dec(t, "100")) {
		t.Fatalf("exec buy = %s, want 100", result.ExecBuyPrice)
	}
}

func TestDepthCheckerRejectsInvalidSignals(t *testing.T) {
	adapter := &stubAdapter{venue: schema.VenueBinance}
	checker, _ := newTestChecker(t, nil, adapter)

	cases := []struct {
		name      string
		candidate schema.Candidate
	}{
		{"same venue both legs", testCandidate(schema.VenueBinance, schema.VenueBinance)},
		{"unknown venue", testCandidate(schema.VenueBinance, schema.VenueID("nasdaq"))},
		{"unregistered venue", testCandidate(schema.VenueBinance, schema.VenueGate)},
		{"empty pair", func() schema.Candidate {
			c := testCandidate(schema.VenueBinance, schema.VenueGate)
			c.Pair = ""
			return c
		}()},
	}
	for _, tc := range cases {
		result := checker.check(context.Background(), tc.candidate)
		if result.Reason != schema.ReasonInvalidSignal {
			t.Fatalf("%s: reason = %s, want invalid_signal", tc.name, result.Reason)
		}
	}
}

func TestDepthCheckerRunDrainsQueueThenStops(t *testing.T) {
	buyVenue := &stubAdapter{
		venue: schema.VenueBinance,
		books: map[string]schema.OrderBook{
			"AAAUSDT": {Asks: []schema.PriceLevel{level(t, "100", "10")}},
		},
	}
	sellVenue := &stubAdapter{
		venue: schema.VenueBybit,
		books: map[string]schema.OrderBook{
			"AAAUSDT": {Bids: []schema.PriceLevel{level(t, "100.8", "10")}},
		},
	}
	log := &recordingConfirmedLog{}
	checker, queue := newTestChecker(t, log, buyVenue, sellVenue)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := queue.Enqueue(ctx, testCandidate(schema.VenueBinance, schema.VenueBybit)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	queue.Close()

	done := make(chan error, 1)
	go func() { done <- checker.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after the queue closed")
	}
	if len(log.results) != 2 {
		t.Fatalf("confirmed rows = %d, want 2", len(log.results))
	}
}
