package gate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestAdapter(t *testing.T, handler http.Handler) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{Config: Config{BaseURL: srv.URL, RateLimitRPS: 1000}})
}

func TestTickersParsesQuoteVolume(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/spot/tickers" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[
			{"currency_pair":"BTC_USDT","highest_bid":"64000.1","lowest_ask":"64000.2","base_volume":"12.5","quote_volume":"800000"},
			{"currency_pair":"DEAD_USDT","highest_bid":"","lowest_ask":"","base_volume":"0","quote_volume":"0"}
		]`))
	}))

	stats, err := adapter.Tickers(context.Background())
	if err != nil {
		t.Fatalf("Tickers: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 records, got %d", len(stats))
	}
	if !stats[0].QuoteVolumeUSDT.Equal(decimal.NewFromInt(800000)) {
		t.Fatalf("unexpected quote volume %s", stats[0].QuoteVolumeUSDT)
	}
}

func TestTopOfBookSkipsInactiveMarkets(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"currency_pair":"BTC_USDT","highest_bid":"64000.1","lowest_ask":"64000.2","base_volume":"12.5","quote_volume":"800000"},
			{"currency_pair":"DEAD_USDT","highest_bid":"","lowest_ask":"0.5","base_volume":"1","quote_volume":"1"},
			{"currency_pair":"GONE_USDT","highest_bid":"0.4","lowest_ask":"","base_volume":"1","quote_volume":"1"}
		]`))
	}))

	book, err := adapter.TopOfBook(context.Background())
	if err != nil {
		t.Fatalf("TopOfBook: %v", err)
	}
	if len(book) != 1 {
		t.Fatalf("expected 1 active quote, got %d", len(book))
	}
	quote := book["BTC_USDT"]
	if !quote.Bid.Equal(decimal.RequireFromString("64000.1")) {
		t.Fatalf("unexpected bid %s", quote.Bid)
	}
	if !quote.BidSize.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("bid size should proxy base_volume, got %s", quote.BidSize)
	}
}

func TestOrderBookPassesCurrencyPair(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/spot/order_book" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("currency_pair"); got != "BTC_USDT" {
			t.Errorf("currency_pair = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit = %q, want 50", got)
		}
		_, _ = w.Write([]byte(`{"current":1700000000,"update":1700000000,
			"asks":[["64000.2","0.4"]],"bids":[["64000.1","1.5"],["64000.0","3"]]}`))
	}))

	book, err := adapter.OrderBook(context.Background(), "BTC_USDT")
	if err != nil {
		t.Fatalf("OrderBook: %v", err)
	}
	if len(book.Bids) != 2 || len(book.Asks) != 1 {
		t.Fatalf("unexpected book shape: %d bids / %d asks", len(book.Bids), len(book.Asks))
	}
}

func TestNativeSymbolKeepsUnderscore(t *testing.T) {
	adapter := New(Options{})
	if got := adapter.NativeSymbol("BTC_USDT"); got != "BTC_USDT" {
		t.Fatalf("NativeSymbol = %q, want BTC_USDT", got)
	}
}
