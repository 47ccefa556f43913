package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"

	"github.com/coachpo/spreadscan/errs"
	"github.com/coachpo/spreadscan/internal/schema"
	"github.com/coachpo/spreadscan/internal/signalbus"
	"github.com/coachpo/spreadscan/internal/snapshot"
	"github.com/coachpo/spreadscan/internal/telemetry"
	"github.com/coachpo/spreadscan/internal/venues"
)

var hundred = decimal.NewFromInt(100)

// errSnapshotNotReady marks a cycle that found nothing to scan yet.
var errSnapshotNotReady = errors.New("pipeline: symbol snapshot not ready")

// ScannerConfig wires the Stage-1 worker.
type ScannerConfig struct {
	Registry  *venues.Registry
	Store     *snapshot.SymbolStore
	Queue     *signalbus.Queue
	SpreadLog SpreadWriter
	MinProfit decimal.Decimal
	Interval  time.Duration
	RetryWait time.Duration
	Logger    zerolog.Logger
	Metrics   *telemetry.PipelineMetrics
}

// Scanner joins live top-of-book quotes against the symbol snapshot and
// emits the best spread per pair at or above the gross threshold.
type Scanner struct {
	cfg ScannerConfig
}

// NewScanner validates dependencies and returns the Stage-1 worker.
func NewScanner(cfg ScannerConfig) (*Scanner, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("pipeline: scanner requires a venue registry")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("pipeline: scanner requires a symbol store")
	}
	if cfg.Queue == nil {
		return nil, fmt.Errorf("pipeline: scanner requires a signal queue")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 2 * time.Second
	}
	return &Scanner{cfg: cfg}, nil
}

// Run executes scan cycles until ctx is cancelled or the queue closes.
func (s *Scanner) Run(ctx context.Context) error {
	for {
		err := s.runCycle(ctx)
		switch {
		case err == nil:
			if !sleepCtx(ctx, s.cfg.Interval) {
				return ctx.Err()
			}
		case errors.Is(err, errSnapshotNotReady):
			if !sleepCtx(ctx, s.cfg.RetryWait) {
				return ctx.Err()
			}
		case errors.Is(err, signalbus.ErrClosed):
			return err
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.cfg.Logger.Error().Err(err).Msg("scan cycle failed")
			if !sleepCtx(ctx, s.cfg.RetryWait) {
				return ctx.Err()
			}
		}
	}
}

// runCycle performs one scan: fan out top-of-book fetches, join against the
// snapshot, compute bidirectional spreads, and enqueue survivors.
func (s *Scanner) runCycle(ctx context.Context) error {
	snap, ok := s.cfg.Store.Current()
	if !ok || len(snap.Symbols) == 0 {
		return errSnapshotNotReady
	}

	start := time.Now()
	books := s.fetchQuoteBooks(ctx)
	if len(books) == 0 {
		s.cfg.Metrics.RecordCycle(ctx, telemetry.StageScanner, telemetry.ResultError, time.Since(start))
		return errs.New("scanner", errs.CodeUnavailable,
			errs.WithOp("top_of_book"),
			errs.WithMessage("every venue quote fetch failed"))
	}

	venueOrder := s.cfg.Registry.Venues()
	emitted := 0
	for pair, listings := range snap.Symbols {
		candidate, ok := bestCandidate(pair, listings, books, venueOrder, s.cfg.MinProfit)
		if !ok {
			continue
		}
		candidate.ID = uuid.New()
		candidate.TS = time.Now().UTC()

		if s.cfg.SpreadLog != nil {
			if err := s.cfg.SpreadLog.Write(candidate); err != nil {
				s.cfg.Logger.Warn().Err(err).Str("pair", string(pair)).Msg("spread log append failed")
			}
		}
		if err := s.cfg.Queue.Enqueue(ctx, candidate); err != nil {
			if errors.Is(err, signalbus.ErrClosed) {
				return err
			}
			return fmt.Errorf("pipeline: enqueue candidate: %w", err)
		}
		s.cfg.Metrics.RecordSignal(ctx, candidate.Direction())
		s.cfg.Logger.Info().
			Str("pair", string(pair)).
			Str("direction", candidate.Direction()).
			Str("spread_pct", candidate.BestSpreadPct.Round(4).String()).
			Msg("candidate emitted")
		emitted++
	}

	elapsed := time.Since(start)
	s.cfg.Metrics.RecordCycle(ctx, telemetry.StageScanner, telemetry.ResultOK, elapsed)
	s.cfg.Logger.Debug().
		Int("pairs", len(snap.Symbols)).
		Int("candidates", emitted).
		Uint64("version", snap.Version).
		Dur("elapsed", elapsed).
		Msg("scan cycle complete")
	return nil
}

// fetchQuoteBooks gathers top-of-book snapshots from every venue in
// parallel. A failed venue is left out and contributes no quotes.
func (s *Scanner) fetchQuoteBooks(ctx context.Context) map[schema.VenueID]schema.QuoteBook {
	adapters := s.cfg.Registry.Adapters()
	var mu sync.Mutex
	books := make(map[schema.VenueID]schema.QuoteBook, len(adapters))

	p := pool.New().WithMaxGoroutines(len(adapters))
	for _, adapter := range adapters {
		ad := adapter
		p.Go(func() {
			book, err := ad.TopOfBook(ctx)
			if err != nil {
				s.cfg.Logger.Warn().
					Err(err).
					Str("venue", string(ad.Venue())).
					Msg("top-of-book fetch failed")
				s.cfg.Metrics.RecordVenueError(ctx, string(ad.Venue()), "top_of_book", string(errs.CodeOf(err)))
				return
			}
			mu.Lock()
			books[ad.Venue()] = book
			mu.Unlock()
		})
	}
	p.Wait()
	return books
}

// venueQuote pairs a venue with its current quote for one canonical pair.
type venueQuote struct {
	venue schema.VenueID
	quote schema.Quote
}

// bestCandidate evaluates every unordered venue pair for one canonical pair
// and returns the best admissible candidate. Venues are visited in registry
// order, so ties resolve deterministically; within one venue pair an exact
// tie between the two directions resolves to buying at the earlier venue.
func bestCandidate(
	pair schema.CanonicalPair,
	listings schema.VenueSymbols,
	books map[schema.VenueID]schema.QuoteBook,
	venueOrder []schema.VenueID,
	minProfit decimal.Decimal,
) (schema.Candidate, bool) {
	quotes := make([]venueQuote, 0, len(listings))
	for _, venue := range venueOrder {
		native, listed := listings[venue]
		if !listed {
			continue
		}
		book, fetched := books[venue]
		if !fetched {
			continue
		}
		quote, present := book[native]
		if !present || !quote.Tradable() {
			continue
		}
		quotes = append(quotes, venueQuote{venue: venue, quote: quote})
	}
	if len(quotes) < 2 {
		return schema.Candidate{}, false
	}

	var best schema.Candidate
	found := false
	for i := 0; i < len(quotes); i++ {
		for j := i + 1; j < len(quotes); j++ {
			a, b := quotes[i], quotes[j]
			a2b := spreadPct(a.quote.Ask, b.quote.Bid)
			b2a := spreadPct(b.quote.Ask, a.quote.Bid)

			buy, sell := a, b
			chosen, reverse := a2b, b2a
			if b2a.GreaterThan(a2b) {
				buy, sell = b, a
				chosen, reverse = b2a, a2b
			}
			if chosen.LessThan(minProfit) {
				continue
			}
			if found && !chosen.GreaterThan(best.BestSpreadPct) {
				continue
			}
			best = schema.Candidate{
				Pair:          pair,
				BuyVenue:      buy.venue,
				SellVenue:     sell.venue,
				BuyQuote:      buy.quote,
				SellQuote:     sell.quote,
				SpreadA2BPct:  chosen,
				SpreadB2APct:  reverse,
				BestSpreadPct: chosen,
			}
			found = true
		}
	}
	return best, found
}

// spreadPct is the gross gain of buying at ask and selling at bid, in percent.
func spreadPct(buyAsk, sellBid decimal.Decimal) decimal.Decimal {
	return sellBid.Sub(buyAsk).Div(buyAsk).Mul(hundred)
}
