// Package binance implements the Binance spot market-data adapter.
package binance

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/coachpo/spreadscan/internal/schema"
	"github.com/coachpo/spreadscan/internal/venues/rest"
)

type ticker24hRecord struct {
	Symbol      string `json:"symbol"`
	QuoteVolume string `json:"quoteVolume"`
}

type bookTickerRecord struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	BidQty   string `json:"bidQty"`
	AskPrice string `json:"askPrice"`
	AskQty   string `json:"askQty"`
}

type depthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// Adapter serves Binance spot market data.
type Adapter struct {
	opts   Options
	client *rest.Client
}

// New constructs the adapter with defaults applied.
func New(opts Options) *Adapter {
	opts = withDefaults(opts)
	return &Adapter{
		opts:   opts,
		client: rest.NewClient(schema.VenueBinance, opts.Config.HTTPTimeout, opts.Config.RateLimitRPS, opts.Config.RateBurst),
	}
}

// Venue implements venues.Adapter.
func (a *Adapter) Venue() schema.VenueID { return schema.VenueBinance }

// Tickers fetches 24h statistics; quoteVolume carries the USDT turnover.
func (a *Adapter) Tickers(ctx context.Context) ([]schema.TickerStat, error) {
	var payload []ticker24hRecord
	if err := a.client.GetJSON(ctx, "tickers", a.opts.tickers24hEndpoint(), &payload); err != nil {
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
			QuoteVolumeUSDT: rest.ParseVolume(record.QuoteVolume),
		})
	}
	return stats, nil
}

// TopOfBook fetches best bid/ask via the dedicated bookTicker endpoint.
func (a *Adapter) TopOfBook(ctx context.Context) (schema.QuoteBook, error) {
	var payload []bookTickerRecord
	if err := a.client.GetJSON(ctx, "top_of_book", a.opts.bookTickerEndpoint(), &payload); err != nil {
		return nil, err
	}
	book := make(schema.QuoteBook, len(payload))
	for _, record := range payload {
		symbol := strings.TrimSpace(record.Symbol)
		if symbol == "" {
			continue
		}
		quote, err := rest.ParseQuote(record.BidPrice, record.AskPrice, record.BidQty, record.AskQty)
		if err != nil {
			a.opts.Logger.Warn().Str("venue", "binance").Str("symbol", symbol).Err(err).Msg("dropping malformed quote")
			continue
		}
		if !quote.Tradable() {
			continue
		}
		book[symbol] = quote
	}
	return book, nil
}

// OrderBook fetches the depth snapshot for one native symbol.
func (a *Adapter) OrderBook(ctx context.Context, nativeSymbol string) (schema.OrderBook, error) {
	params := url.Values{}
	params.Set("symbol", nativeSymbol)
	params.Set(a.opts.privateMeta.depthParam, strconv.Itoa(a.opts.Config.OrderbookDepth))

	var payload depthResponse
	if err := a.client.GetJSON(ctx, "orderbook", a.opts.depthEndpoint()+"?"+params.Encode(), &payload); err != nil {
		return schema.OrderBook{}, err
	}
	return schema.OrderBook{
		Bids: rest.ParseLevels(payload.Bids, a.opts.Config.OrderbookDepth),
		Asks: rest.ParseLevels(payload.Asks, a.opts.Config.OrderbookDepth),
	}, nil
}

// NativeSymbol renders BTC_USDT as BTCUSDT.
func (a *Adapter) NativeSymbol(pair schema.CanonicalPair) string {
	return pair.Base() + "USDT"
}
