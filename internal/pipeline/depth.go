package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"

	"github.com/coachpo/spreadscan/errs"
	"github.com/coachpo/spreadscan/internal/schema"
	"github.com/coachpo/spreadscan/internal/signalbus"
	"github.com/coachpo/spreadscan/internal/telemetry"
	"github.com/coachpo/spreadscan/internal/venues"
)

var one = decimal.NewFromInt(1)

// DepthCheckerConfig wires the Stage-2 worker.
type DepthCheckerConfig struct {
	Registry     *venues.Registry
	Queue        *signalbus.Queue
	ConfirmedLog ConfirmedWriter
	Fees         FeeTable
	MinNotional  decimal.Decimal
	MaxLevels    int
	SafetyBuffer decimal.Decimal
	TargetNet    decimal.Decimal
	Logger       zerolog.Logger
	Metrics      *telemetry.PipelineMetrics
}

// DepthChecker consumes candidates from the signal queue and validates each
// against live order books: both legs must fill the execution notional, and
// the fee-adjusted spread must clear the target after the safety buffer.
type DepthChecker struct {
	cfg DepthCheckerConfig
}

// NewDepthChecker validates dependencies and returns the Stage-2 worker.
func NewDepthChecker(cfg DepthCheckerConfig) (*DepthChecker, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("pipeline: depth checker requires a venue registry")
	}
	if cfg.Queue == nil {
		return nil, fmt.Errorf("pipeline: depth checker requires a signal queue")
	}
	if cfg.Fees == nil {
		return nil, fmt.Errorf("pipeline: depth checker requires a fee table")
	}
	if !cfg.MinNotional.IsPositive() {
		return nil, fmt.Errorf("pipeline: execution notional must be positive")
	}
	if cfg.MaxLevels <= 0 {
		cfg.MaxLevels = 10
	}
	return &DepthChecker{cfg: cfg}, nil
}

// Run consumes candidates until ctx is cancelled. A closed and drained queue
// ends the worker cleanly.
func (d *DepthChecker) Run(ctx context.Context) error {
	for {
		candidate, err := d.cfg.Queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, signalbus.ErrClosed) {
				return nil
			}
			return err
		}

		start := time.Now()
		result := d.check(ctx, candidate)
		elapsed := time.Since(start)

		if result.Confirmed() {
			d.cfg.Metrics.RecordDepthResult(ctx, telemetry.ResultConfirmed, string(result.Reason), elapsed)
			if d.cfg.ConfirmedLog != nil {
				if err := d.cfg.ConfirmedLog.Write(result); err != nil {
					d.cfg.Logger.Warn().
						Err(err).
						Str("pair", string(candidate.Pair)).
						Msg("confirmed log append failed")
				}
			}
			d.cfg.Logger.Info().
				Str("pair", string(candidate.Pair)).
				Str("direction", candidate.Direction()).
				Str("exec_spread_pct", result.ExecSpreadPctNet.Round(4).String()).
				Str("exec_notional", result.ExecNotionalUSDT.String()).
				Msg("candidate confirmed")
		} else {
			d.cfg.Metrics.RecordDepthResult(ctx, telemetry.ResultRejected, string(result.Reason), elapsed)
			d.cfg.Logger.Debug().
				Str("pair", string(candidate.Pair)).
				Str("direction", candidate.Direction()).
				Str("reason", string(result.Reason)).
				Msg("candidate rejected")
		}
	}
}

// check runs the full depth validation for one candidate.
func (d *DepthChecker) check(ctx context.Context, candidate schema.Candidate) schema.DepthResult {
	result := schema.DepthResult{
		Candidate: candidate,
		Status:    schema.DepthRejected,
		CheckedAt: time.Now().UTC(),
	}

	if candidate.Pair == "" || !candidate.BuyVenue.Valid() || !candidate.SellVenue.Valid() ||
		candidate.BuyVenue == candidate.SellVenue {
		result.Reason = schema.ReasonInvalidSignal
		return result
	}
	buyAdapter, err := d.cfg.Registry.Lookup(candidate.BuyVenue)
	if err != nil {
		result.Reason = schema.ReasonInvalidSignal
		return result
	}
	sellAdapter, err := d.cfg.Registry.Lookup(candidate.SellVenue)
	if err != nil {
		result.Reason = schema.ReasonInvalidSignal
		return result
	}

	buySymbol := buyAdapter.NativeSymbol(candidate.Pair)
	sellSymbol := sellAdapter.NativeSymbol(candidate.Pair)

	var (
		buyBook, sellBook schema.OrderBook
		buyErr, sellErr   error
	)
	var wg conc.WaitGroup
	wg.Go(func() {
		buyBook, buyErr = buyAdapter.OrderBook(ctx, buySymbol)
	})
	wg.Go(func() {
		sellBook, sellErr = sellAdapter.OrderBook(ctx, sellSymbol)
	})
	wg.Wait()

	if buyErr != nil {
		d.logFetchFailure(ctx, candidate.BuyVenue, buySymbol, buyErr)
	}
	if sellErr != nil {
		d.logFetchFailure(ctx, candidate.SellVenue, sellSymbol, sellErr)
	}
	if buyErr != nil || sellErr != nil || len(buyBook.Asks) == 0 || len(sellBook.Bids) == 0 {
		result.Reason = schema.ReasonEmptyOrderBook
		return result
	}

	want := d.cfg.MinNotional
	execBuy, buyFilled := vwap(buyBook.Asks, want, d.cfg.MaxLevels)
	execSell, sellFilled := vwap(sellBook.Bids, want, d.cfg.MaxLevels)
	if !buyFilled || !sellFilled {
		result.Reason = schema.ReasonInsufficientDepth
		return result
	}

	feeBuy := d.cfg.Fees.TakerFeeFor(candidate.BuyVenue)
	feeSell := d.cfg.Fees.TakerFeeFor(candidate.SellVenue)
	effectiveBuy := execBuy.Mul(one.Add(feeBuy.Div(hundred)))
	effectiveSell := execSell.Mul(one.Sub(feeSell.Div(hundred)))
	net := effectiveSell.Sub(effectiveBuy).Div(effectiveBuy).Mul(hundred).Sub(d.cfg.SafetyBuffer)

	result.ExecNotionalUSDT = want
	result.ExecBuyPrice = execBuy
	result.ExecSellPrice = execSell
	result.ExecSpreadPctNet = net

	if net.LessThan(d.cfg.TargetNet) {
		result.Reason = schema.ReasonSpreadAfterFeesLow
		return result
	}
	result.Status = schema.DepthConfirmed
	result.Reason = schema.ReasonOK
	return result
}

func (d *DepthChecker) logFetchFailure(ctx context.Context, venue schema.VenueID, symbol string, err error) {
	d.cfg.Logger.Warn().
		Err(err).
		Str("venue", string(venue)).
		Str("symbol", symbol).
		Msg("order book fetch failed")
	d.cfg.Metrics.RecordVenueError(ctx, string(venue), "order_book", string(errs.CodeOf(err)))
}
