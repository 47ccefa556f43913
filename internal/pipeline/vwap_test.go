package pipeline

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/coachpo/spreadscan/internal/schema"
)

func TestVWAPPartialSecondLevel(t *testing.T) {
	asks := []schema.PriceLevel{
		level(t, "10.0", "10"),
		level(t, "10.1", "50"),
	}

	price, ok := vwap(asks, dec(t, "500"), 10)
	if !ok {
		t.Fatal("walk should fill 500 notional")
	}

	// take 100 at 10.0 and 400 at 10.1: 500 / (10 + 400/10.1)
	want := dec(t, "500").Div(dec(t, "10").Add(dec(t, "400").Div(dec(t, "10.1"))))
	if !price.Equal(want) {
		t.Fatalf("vwap = %s, want %s", price, want)
	}
	rounded := price.Round(4)
	if got := rounded.String(); got != "10.0798" {
		t.Fatalf("vwap rounds to %s, want 10.0798", got)
	}
}

func TestVWAPInsufficientDepth(t *testing.T) {
	asks := []schema.PriceLevel{
		level(t, "10.0", "10"),
		level(t, "10.1", "30"),
	}
	// Total notional 100 + 303 = 403 < 500.
	if _, ok := vwap(asks, dec(t, "500"), 10); ok {
		t.Fatal("walk should not fill 500 from 403 of notional")
	}
}

func TestVWAPExactFillAtLastAllowedLevel(t *testing.T) {
	asks := []schema.PriceLevel{
		level(t, "10", "10"),
		level(t, "20", "20"),
	}
	// 100 + 400 = exactly 500 at the depth cap.
	price, ok := vwap(asks, dec(t, "500"), 2)
	if !ok {
		t.Fatal("walk should fill exactly at the last allowed level")
	}
	want := dec(t, "500").Div(dec(t, "10").Add(dec(t, "20")))
	if !price.Equal(want) {
		t.Fatalf("vwap = %s, want %s", price, want)
	}
}

func TestVWAPDepthCapStopsWalk(t *testing.T) {
	asks := []schema.PriceLevel{
		level(t, "10", "10"),
		level(t, "10", "10"),
		level(t, "10", "1000"),
	}
	// 200 of notional within the cap, the rest out of reach.
	if _, ok := vwap(asks, dec(t, "500"), 2); ok {
		t.Fatal("levels past the cap must not contribute")
	}
	if _, ok := vwap(asks, dec(t, "500"), 3); !ok {
		t.Fatal("raising the cap should let the walk fill")
	}
}

func TestVWAPZeroPriceAborts(t *testing.T) {
	asks := []schema.PriceLevel{
		level(t, "10", "10"),
		level(t, "0", "100"),
		level(t, "10", "100"),
	}
	if _, ok := vwap(asks, dec(t, "500"), 10); ok {
		t.Fatal("zero-price level must abort the walk")
	}
}

func TestVWAPIgnoresZeroQuantityLevels(t *testing.T) {
	asks := []schema.PriceLevel{
		level(t, "10", "0"),
		level(t, "10", "50"),
	}
	price, ok := vwap(asks, dec(t, "500"), 10)
	if !ok {
		t.Fatal("walk should fill past an empty level")
	}
	if !price.Equal(dec(t, "10")) {
		t.Fatalf("vwap = %s, want 10", price)
	}
}

func TestVWAPGuards(t *testing.T) {
	if _, ok := vwap(nil, dec(t, "500"), 10); ok {
		t.Fatal("empty book cannot fill")
	}
	if _, ok := vwap([]schema.PriceLevel{level(t, "10", "100")}, decimal.Zero, 10); ok {
		t.Fatal("zero want is absent, not trivially filled")
	}
	if _, ok := vwap([]schema.PriceLevel{level(t, "10", "100")}, dec(t, "-5"), 10); ok {
		t.Fatal("negative want is absent")
	}
}

func TestVWAPWeaklyMonotonicInWant(t *testing.T) {
	asks := []schema.PriceLevel{
		level(t, "10.0", "10"),
		level(t, "10.5", "10"),
		level(t, "11.0", "10"),
	}
	prev := decimal.Zero
	for _, want := range []string{"50", "100", "150", "200", "250", "300"} {
		price, ok := vwap(asks, dec(t, want), 10)
		if !ok {
			t.Fatalf("want %s should fill", want)
		}
		if price.LessThan(prev) {
			t.Fatalf("vwap decreased from %s to %s at want %s", prev, price, want)
		}
		prev = price
	}
}
