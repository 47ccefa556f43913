// Package kucoin implements the KuCoin spot market-data adapter.
package kucoin

import (
	"context"
	"net/url"
	"strings"

	"github.com/coachpo/spreadscan/errs"
	"github.com/coachpo/spreadscan/internal/schema"
	"github.com/coachpo/spreadscan/internal/venues/rest"
)

type tickerRecord struct {
	Symbol      string `json:"symbol"`
	Buy         string `json:"buy"`
	Sell        string `json:"sell"`
	BestBidSize string `json:"bestBidSize"`
	BestAskSize string `json:"bestAskSize"`
	VolValue    string `json:"volValue"`
}

type allTickersResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Time   int64          `json:"time"`
		Ticker []tickerRecord `json:"ticker"`
	} `json:"data"`
}

type orderBookResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Sequence string     `json:"sequence"`
		Time     int64      `json:"time"`
		Bids     [][]string `json:"bids"`
		Asks     [][]string `json:"asks"`
	} `json:"data"`
}

// Adapter serves KuCoin spot market data.
type Adapter struct {
	opts   Options
	client *rest.Client
}

// New constructs the adapter with defaults applied.
func New(opts Options) *Adapter {
	opts = withDefaults(opts)
	return &Adapter{
		opts:   opts,
		client: rest.NewClient(schema.VenueKucoin, opts.Config.HTTPTimeout, opts.Config.RateLimitRPS, opts.Config.RateBurst),
	}
}

// Venue implements venues.Adapter.
func (a *Adapter) Venue() schema.VenueID { return schema.VenueKucoin }

func envelopeErr(op, code, msg string) error {
	if code == "200000" {
		return nil
	}
	return errs.New(string(schema.VenueKucoin), errs.CodeExchange,
		errs.WithOp(op),
		errs.WithRawCode(code),
		errs.WithRawMessage(msg))
}

// Tickers fetches 24h statistics; volValue carries the USDT turnover.
func (a *Adapter) Tickers(ctx context.Context) ([]schema.TickerStat, error) {
	payload, err := a.fetchTickers(ctx, "tickers")
	if err != nil {
		return nil, err
	}
	stats := make([]schema.TickerStat, 0, len(payload))
	for _, record := range payload {
		symbol := strings.TrimSpace(record.Symbol)
		if symbol == "" {
			continue
		}
		stats = append(stats, schema.TickerStat{
			NativeSymbol:    symbol,
			QuoteVolumeUSDT: rest.ParseVolume(record.VolValue),
		})
	}
	return stats, nil
}

// TopOfBook extracts best bid/ask from the allTickers payload. Halted
// markets report null buy/sell quotes, which decode as empty strings.
func (a *Adapter) TopOfBook(ctx context.Context) (schema.QuoteBook, error) {
	payload, err := a.fetchTickers(ctx, "top_of_book")
	if err != nil {
		return nil, err
	}
	book := make(schema.QuoteBook, len(payload))
	for _, record := range payload {
		symbol := strings.TrimSpace(record.Symbol)
		if symbol == "" {
			continue
		}
		if strings.TrimSpace(record.Buy) == "" || strings.TrimSpace(record.Sell) == "" {
			continue
		}
		quote, err := rest.ParseQuote(record.Buy, record.Sell, record.BestBidSize, record.BestAskSize)
		if err != nil {
			a.opts.Logger.Warn().Str("venue", "kucoin").Str("symbol", symbol).Err(err).Msg("dropping malformed quote")
			continue
		}
		if !quote.Tradable() {
			continue
		}
		book[symbol] = quote
	}
	return book, nil
}

func (a *Adapter) fetchTickers(ctx context.Context, op string) ([]tickerRecord, error) {
	var payload allTickersResponse
	if err := a.client.GetJSON(ctx, op, a.opts.allTickersEndpoint(), &payload); err != nil {
		return nil, err
	}
	if err := envelopeErr(op, payload.Code, payload.Msg); err != nil {
		return nil, err
	}
	return payload.Data.Ticker, nil
}

// OrderBook fetches the aggregated level-2 snapshot for one native symbol.
// The route returns up to 100 levels; the configured depth truncates them.
func (a *Adapter) OrderBook(ctx context.Context, nativeSymbol string) (schema.OrderBook, error) {
	params := url.Values{}
	params.Set("symbol", nativeSymbol)

	var payload orderBookResponse
	if err := a.client.GetJSON(ctx, "orderbook", a.opts.orderBookEndpoint()+"?"+params.Encode(), &payload); err != nil {
		return schema.OrderBook{}, err
	}
	if err := envelopeErr("orderbook", payload.Code, payload.Msg); err != nil {
		return schema.OrderBook{}, err
	}
	return schema.OrderBook{
		Bids: rest.ParseLevels(payload.Data.Bids, a.opts.Config.OrderbookDepth),
		Asks: rest.ParseLevels(payload.Data.Asks, a.opts.Config.OrderbookDepth),
	}, nil
}

// NativeSymbol renders BTC_USDT as BTC-USDT.
func (a *Adapter) NativeSymbol(pair schema.CanonicalPair) string {
	return pair.Base() + "-USDT"
}
