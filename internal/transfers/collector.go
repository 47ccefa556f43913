package transfers

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/coachpo/spreadscan/errs"
	"github.com/coachpo/spreadscan/internal/schema"
	"github.com/coachpo/spreadscan/internal/telemetry"
)

const usdtAsset = "USDT"

var hundred = decimal.NewFromInt(100)

// CollectorConfig wires the transfer metadata collector.
type CollectorConfig struct {
	Source CoinSource
	Store  Store
	Fees   FeeTable

	// Interval between refresh cycles. The first cycle runs immediately.
	Interval time.Duration

	Logger  zerolog.Logger
	Metrics *telemetry.PipelineMetrics
}

// Collector refreshes the transfers store from binance's signed endpoints
// and watches live taker fees for drift against the configured table.
type Collector struct {
	cfg CollectorConfig
}

// NewCollector validates the configuration and builds a Collector.
func NewCollector(cfg CollectorConfig) (*Collector, error) {
	if cfg.Source == nil {
		return nil, errs.New("transfers", errs.CodeInvalid, errs.WithMessage("coin source required"))
	}
	if cfg.Store == nil {
		return nil, errs.New("transfers", errs.CodeInvalid, errs.WithMessage("store required"))
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	return &Collector{cfg: cfg}, nil
}

// Run refreshes transfer metadata once immediately and then on the
// configured cadence until the context ends. Cycle failures are logged and
// retried at the next tick, so a revoked key degrades to warnings instead of
// killing the worker.
func (c *Collector) Run(ctx context.Context) error {
	for {
		if err := c.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.cfg.Logger.Error().Err(err).Msg("transfer metadata refresh failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.Interval):
		}
	}
}

func (c *Collector) runCycle(ctx context.Context) error {
	started := time.Now()

	coins, err := c.cfg.Source.CoinInfo(ctx)
	if err != nil {
		c.cfg.Metrics.RecordVenueError(ctx, string(schema.VenueBinance), "coin_info", string(errs.CodeOf(err)))
		c.cfg.Metrics.RecordCycle(ctx, telemetry.StageCollector, telemetry.ResultError, time.Since(started))
		return err
	}

	assetRows := assetRowsFromCoins(coins)
	networkRows := networkRowsFromCoins(coins)

	if err := c.cfg.Store.UpsertAssetNetworks(ctx, assetRows); err != nil {
		c.cfg.Metrics.RecordCycle(ctx, telemetry.StageCollector, telemetry.ResultError, time.Since(started))
		return err
	}
	if err := c.cfg.Store.UpsertNetworks(ctx, networkRows); err != nil {
		c.cfg.Metrics.RecordCycle(ctx, telemetry.StageCollector, telemetry.ResultError, time.Since(started))
		return err
	}

	feeSymbols := c.checkFeeDrift(ctx)

	c.cfg.Metrics.RecordCycle(ctx, telemetry.StageCollector, telemetry.ResultOK, time.Since(started))
	c.cfg.Logger.Info().
		Int("coins", len(coins)).
		Int("asset_rows", len(assetRows)).
		Int("network_rows", len(networkRows)).
		Int("fee_symbols", feeSymbols).
		Dur("elapsed", time.Since(started)).
		Msg("transfer metadata refreshed")
	return nil
}

// checkFeeDrift compares live USDT-market taker fees against the configured
// table. Fee fetch failures only cost the drift check, never the cycle.
func (c *Collector) checkFeeDrift(ctx context.Context) int {
	if c.cfg.Fees == nil {
		return 0
	}
	fees, err := c.cfg.Source.TradeFees(ctx, "")
	if err != nil {
		c.cfg.Metrics.RecordVenueError(ctx, string(schema.VenueBinance), "trade_fees", string(errs.CodeOf(err)))
		c.cfg.Logger.Warn().Err(err).Msg("trade fee fetch failed")
		return 0
	}

	configured := c.cfg.Fees.TakerFeeFor(schema.VenueBinance)
	counted := 0
	drifted := make(map[string]driftGroup)
	for _, fee := range fees {
		if !strings.HasSuffix(fee.Symbol, usdtAsset) {
			continue
		}
		counted++
		livePct := fee.Taker.Mul(hundred)
		if livePct.Equal(configured) {
			continue
		}
		key := livePct.String()
		group := drifted[key]
		group.livePct = livePct
		group.symbols++
		if group.example == "" {
			group.example = fee.Symbol
		}
		drifted[key] = group
	}

	keys := make([]string, 0, len(drifted))
	for key := range drifted {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		group := drifted[key]
		c.cfg.Logger.Warn().
			Str("venue", string(schema.VenueBinance)).
			Str("configured_pct", configured.String()).
			Str("live_pct", group.livePct.String()).
			Int("symbols", group.symbols).
			Str("example", group.example).
			Msg("live taker fee differs from configured table")
	}
	return counted
}

type driftGroup struct {
	livePct decimal.Decimal
	symbols int
	example string
}

// assetRowsFromCoins flattens coin info into per-asset-per-network rows.
func assetRowsFromCoins(coins []CoinInfo) []AssetNetwork {
	var rows []AssetNetwork
	for _, coin := range coins {
		for _, network := range coin.Networks {
			rows = append(rows, AssetNetwork{
				Exchange:        string(schema.VenueBinance),
				Asset:           coin.Coin,
				NetworkCode:     network.Network,
				WithdrawFee:     network.WithdrawFee,
				MinWithdraw:     network.WithdrawMin,
				WithdrawEnabled: network.WithdrawEnabled,
				DepositEnabled:  network.DepositEnabled,
			})
		}
	}
	return rows
}

// networkRowsFromCoins derives the venue-level network view from the USDT
// coin entry. The transfer leg of a cross-venue trade moves USDT, so fees on
// those networks are already in USDT terms.
func networkRowsFromCoins(coins []CoinInfo) []NetworkStatus {
	var rows []NetworkStatus
	for _, coin := range coins {
		if coin.Coin != usdtAsset {
			continue
		}
		for _, network := range coin.Networks {
			rows = append(rows, NetworkStatus{
				Exchange:        string(schema.VenueBinance),
				NetworkCode:     network.Network,
				WithdrawEnabled: network.WithdrawEnabled,
				DepositEnabled:  network.DepositEnabled,
				WithdrawFeeUSDT: network.WithdrawFee,
				MinWithdrawUSDT: network.WithdrawMin,
			})
		}
	}
	return rows
}
