package okx

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

func TestTickersPrefersQuoteTurnover(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v5/market/tickers" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("instType"); got != "SPOT" {
			t.Errorf("instType = %q, want SPOT", got)
		}
		_, _ = w.Write([]byte(`{"code":"0","msg":"","data":[
			{"instId":"BTC-USDT","bidPx":"64000.1","bidSz":"1","askPx":"64000.2","askSz":"1","volCcy24h":"500000","vol24h":"8"},
			{"instId":"ETH-USDT","bidPx":"3100","bidSz":"1","askPx":"3101","askSz":"1","volCcy24h":"","vol24h":"120"}
		]}`))
	}))

	stats, err := adapter.Tickers(context.Background())
	if err != nil {
		t.Fatalf("Tickers: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 records, got %d", len(stats))
	}
	if !stats[0].QuoteVolumeUSDT.Equal(decimal.NewFromInt(500000)) {
		t.Fatalf("expected volCcy24h, got %s", stats[0].QuoteVolumeUSDT)
	}
	if !stats[1].QuoteVolumeUSDT.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected vol24h fallback, got %s", stats[1].QuoteVolumeUSDT)
	}
}

func TestOrderBookReadsSizeFromSecondColumn(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v5/market/books" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("instId"); got != "BTC-USDT" {
			t.Errorf("instId = %q", got)
		}
		if got := r.URL.Query().Get("sz"); got != "50" {
			t.Errorf("sz = %q, want 50", got)
		}
		_, _ = w.Write([]byte(`{"code":"0","msg":"","data":[{
			"asks":[["64000.2","0.4","0","3"],["64000.3","2","0","1"]],
			"bids":[["64000.1","1.5","0","7"]],
			"ts":"1700000000000"}]}`))
	}))

	book, err := adapter.OrderBook(context.Background(), "BTC-USDT")
	if err != nil {
		t.Fatalf("OrderBook: %v", err)
	}
	if len(book.Asks) != 2 || len(book.Bids) != 1 {
		t.Fatalf("unexpected book shape: %d bids / %d asks", len(book.Bids), len(book.Asks))
	}
	if !book.Asks[0].Quantity.Equal(decimal.RequireFromString("0.4")) {
		t.Fatalf("size must come from index 1, got %+v", book.Asks[0])
	}
}

func TestOrderBookEmptyDataYieldsEmptyBook(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"0","msg":"","data":[]}`))
	}))

	book, err := adapter.OrderBook(context.Background(), "BTC-USDT")
	if err != nil {
		t.Fatalf("OrderBook: %v", err)
	}
	if !book.Empty() {
		t.Fatalf("expected empty book, got %+v", book)
	}
}

func TestEnvelopeError(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"51001","msg":"Instrument ID does not exist","data":[]}`))
	}))

	if _, err := adapter.Tickers(context.Background()); err == nil {
		t.Fatalf("expected envelope error")
	}
}

func TestNativeSymbol(t *testing.T) {
	adapter := New(Options{})
	if got := adapter.NativeSymbol("BTC_USDT"); got != "BTC-USDT" {
		t.Fatalf("NativeSymbol = %q, want BTC-USDT", got)
	}
}
