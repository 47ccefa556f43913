package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/coachpo/spreadscan/internal/schema"
	"github.com/coachpo/spreadscan/internal/snapshot"
)

func newTestNormalizer(t *testing.T, store *snapshot.SymbolStore, adapters ...*stubAdapter) *Normalizer {
	t.Helper()
	normalizer, err := NewNormalizer(NormalizerConfig{
		Registry:  newStubRegistry(t, adapters...),
		Store:     store,
		MinVolume: dec(t, "300000"),
		Interval:  time.Minute,
		RetryWait: time.Second,
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}
	return normalizer
}

func TestNormalizerBuildsSymbolMap(t *testing.T) {
	binance := &stubAdapter{
		venue: schema.VenueBinance,
		stats: []schema.TickerStat{
			{NativeSymbol: "BTCUSDT", QuoteVolumeUSDT: dec(t, "500000")},
			{NativeSymbol: "ETHUSDT", QuoteVolumeUSDT: dec(t, "100000")}, // below threshold
			{NativeSymbol: "ETHBTC", QuoteVolumeUSDT: dec(t, "900000")},  // not a USDT pair
			{NativeSymbol: "SOLUSDT", QuoteVolumeUSDT: dec(t, "350000")},
		},
	}
	okx := &stubAdapter{
		venue: schema.VenueOKX,
		stats: []schema.TickerStat{
			{NativeSymbol: "BTC-USDT", QuoteVolumeUSDT: dec(t, "400000")},
		},
	}
	store := snapshot.NewSymbolStore()
	normalizer := newTestNormalizer(t, store, binance, okx)

	if err := normalizer.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}

	snap, ok := store.Current()
	if !ok {
		t.Fatal("expected a published snapshot")
	}
	if snap.Version != 1 {
		t.Fatalf("version = %d, want 1", snap.Version)
	}
	if len(snap.Symbols) != 2 {
		t.Fatalf("expected 2 pairs, got %d: %v", len(snap.Symbols), snap.Symbols)
	}

	btc := snap.Symbols[schema.CanonicalPair("BTC_USDT")]
	if btc[schema.VenueBinance] != "BTCUSDT" || btc[schema.VenueOKX] != "BTC-USDT" {
		t.Fatalf("BTC_USDT columns wrong: %v", btc)
	}
	// A single-venue listing stays in the map; Stage-1 skips it.
	sol := snap.Symbols[schema.CanonicalPair("SOL_USDT")]
	if len(sol) != 1 || sol[schema.VenueBinance] != "SOLUSDT" {
		t.Fatalf("SOL_USDT columns wrong: %v", sol)
	}
	if _, present := snap.Symbols[schema.CanonicalPair("ETH_USDT")]; present {
		t.Fatal("ETH_USDT is below the volume threshold and must be dropped")
	}
}

func TestNormalizerVolumeBoundaryInclusive(t *testing.T) {
	binance := &stubAdapter{
		venue: schema.VenueBinance,
		stats: []schema.TickerStat{
			{NativeSymbol: "AAAUSDT", QuoteVolumeUSDT: dec(t, "300000")},
		},
	}
	store := snapshot.NewSymbolStore()
	normalizer := newTestNormalizer(t, store, binance)

	if err := normalizer.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	snap, _ := store.Current()
	if _, present := snap.Symbols[schema.CanonicalPair("AAA_USDT")]; !present {
		t.Fatal("volume exactly at the threshold must pass")
	}
}

func TestNormalizerPartialSnapshotOnVenueFailure(t *testing.T) {
	binance := &stubAdapter{
		venue: schema.VenueBinance,
		stats: []schema.TickerStat{
			{NativeSymbol: "BTCUSDT", QuoteVolumeUSDT: dec(t, "500000")},
		},
	}
	bybit := &stubAdapter{
		venue:    schema.VenueBybit,
		statsErr: errors.New("gateway timeout"),
	}
	store := snapshot.NewSymbolStore()
	normalizer := newTestNormalizer(t, store, binance, bybit)

	if err := normalizer.runCycle(context.Background()); err != nil {
		t.Fatalf("a partial cycle should still publish: %v", err)
	}
	snap, _ := store.Current()
	btc := snap.Symbols[schema.CanonicalPair("BTC_USDT")]
	if _, present := btc[schema.VenueBybit]; present {
		t.Fatal("failed venue must contribute no columns")
	}
	if btc[schema.VenueBinance] != "BTCUSDT" {
		t.Fatalf("healthy venue missing: %v", btc)
	}
}

func TestNormalizerKeepsSnapshotWhenAllVenuesFail(t *testing.T) {
	binance := &stubAdapter{
		venue: schema.VenueBinance,
		stats: []schema.TickerStat{
			{NativeSymbol: "BTCUSDT", QuoteVolumeUSDT: dec(t, "500000")},
		},
	}
	store := snapshot.NewSymbolStore()
	normalizer := newTestNormalizer(t, store, binance)

	if err := normalizer.runCycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	binance.statsErr = errors.New("connection refused")
	if err := normalizer.runCycle(context.Background()); err == nil {
		t.Fatal("expected an error when every venue fails")
	}

	snap, ok := store.Current()
	if !ok || snap.Version != 1 {
		t.Fatalf("outage must not advance the snapshot, got version %d", snap.Version)
	}
	if _, present := snap.Symbols[schema.CanonicalPair("BTC_USDT")]; !present {
		t.Fatal("previous snapshot must survive the outage")
	}
}

func TestNormalizerRequiresDependencies(t *testing.T) {
	if _, err := NewNormalizer(NormalizerConfig{Store: snapshot.NewSymbolStore()}); err == nil {
		t.Fatal("expected error without a registry")
	}
	if _, err := NewNormalizer(NormalizerConfig{Registry: newStubRegistry(t)}); err == nil {
		t.Fatal("expected error without a store")
	}
}
