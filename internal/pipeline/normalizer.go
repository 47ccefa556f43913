package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"

	"github.com/coachpo/spreadscan/errs"
	"github.com/coachpo/spreadscan/internal/schema"
	"github.com/coachpo/spreadscan/internal/snapshot"
	"github.com/coachpo/spreadscan/internal/telemetry"
	"github.com/coachpo/spreadscan/internal/venues"
)

// NormalizerConfig wires the Stage-0 worker.
type NormalizerConfig struct {
	Registry  *venues.Registry
	Store     *snapshot.SymbolStore
	MinVolume decimal.Decimal
	Interval  time.Duration
	RetryWait time.Duration
	Logger    zerolog.Logger
	Metrics   *telemetry.PipelineMetrics
}

// Normalizer builds the canonical pair snapshot from venue 24h tickers and
// publishes it to the symbol store once per cycle.
type Normalizer struct {
	cfg NormalizerConfig
}

// NewNormalizer validates dependencies and returns the Stage-0 worker.
func NewNormalizer(cfg NormalizerConfig) (*Normalizer, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("pipeline: normalizer requires a venue registry")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("pipeline: normalizer requires a symbol store")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 5 * time.Second
	}
	return &Normalizer{cfg: cfg}, nil
}

// Run executes normalize cycles until ctx is cancelled.
func (n *Normalizer) Run(ctx context.Context) error {
	for {
		if err := n.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n.cfg.Logger.Error().Err(err).Msg("normalize cycle failed")
			if !sleepCtx(ctx, n.cfg.RetryWait) {
				return ctx.Err()
			}
			continue
		}
		if !sleepCtx(ctx, n.cfg.Interval) {
			return ctx.Err()
		}
	}
}

// runCycle fetches 24h tickers from every venue in parallel, filters by
// volume, canonicalizes symbols, and publishes the resulting map. A failed
// venue contributes nothing; the cycle fails only when every venue failed,
// which keeps an outage from wiping a previously good snapshot.
func (n *Normalizer) runCycle(ctx context.Context) error {
	start := time.Now()
	adapters := n.cfg.Registry.Adapters()

	var mu sync.Mutex
	collected := make(map[schema.VenueID][]schema.TickerStat, len(adapters))

	p := pool.New().WithMaxGoroutines(len(adapters))
	for _, adapter := range adapters {
		ad := adapter
		p.Go(func() {
			stats, err := ad.Tickers(ctx)
			if err != nil {
				n.cfg.Logger.Warn().
					Err(err).
					Str("venue", string(ad.Venue())).
					Msg("ticker fetch failed")
				n.cfg.Metrics.RecordVenueError(ctx, string(ad.Venue()), "tickers", string(errs.CodeOf(err)))
				return
			}
			mu.Lock()
			collected[ad.Venue()] = stats
			mu.Unlock()
		})
	}
	p.Wait()

	if len(collected) == 0 {
		n.cfg.Metrics.RecordCycle(ctx, telemetry.StageNormalizer, telemetry.ResultError, time.Since(start))
		return errs.New("normalizer", errs.CodeUnavailable,
			errs.WithOp("tickers"),
			errs.WithMessage("every venue ticker fetch failed"))
	}

	symbols := make(schema.SymbolMap)
	for _, venue := range n.cfg.Registry.Venues() {
		stats, ok := collected[venue]
		if !ok {
			continue
		}
		for _, stat := range stats {
			if stat.QuoteVolumeUSDT.LessThan(n.cfg.MinVolume) {
				continue
			}
			pair, ok := schema.Canonicalize(stat.NativeSymbol)
			if !ok {
				continue
			}
			entry, ok := symbols[pair]
			if !ok {
				entry = make(schema.VenueSymbols)
				symbols[pair] = entry
			}
			entry[venue] = stat.NativeSymbol
		}
	}

	snap := n.cfg.Store.Replace(symbols)
	elapsed := time.Since(start)
	n.cfg.Metrics.RecordSymbolMap(ctx, len(symbols))
	n.cfg.Metrics.RecordCycle(ctx, telemetry.StageNormalizer, telemetry.ResultOK, elapsed)
	n.cfg.Logger.Info().
		Int("pairs", len(symbols)).
		Int("venues", len(collected)).
		Uint64("version", snap.Version).
		Dur("elapsed", elapsed).
		Msg("symbol map published")
	return nil
}
