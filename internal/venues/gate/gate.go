// Package gate implements the Gate.io v4 spot market-data adapter.
package gate

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/coachpo/spreadscan/internal/schema"
	"github.com/coachpo/spreadscan/internal/venues/rest"
)

type tickerRecord struct {
	CurrencyPair string `json:"currency_pair"`
	HighestBid   string `json:"highest_bid"`
	LowestAsk    string `json:"lowest_ask"`
	BaseVolume   string `json:"base_volume"`
	QuoteVolume  string `json:"quote_volume"`
}

type orderBookResponse struct {
	Current int64      `json:"current"`
	Update  int64      `json:"update"`
	Bids    [][]string `json:"bids"`
	Asks    [][]string `json:"asks"`
}

// Adapter serves Gate.io spot market data. Gate responds with bare JSON
// arrays and objects; errors arrive as non-200 statuses.
type Adapter struct {
	opts   Options
	client *rest.Client
}

// New constructs the adapter with defaults applied.
func New(opts Options) *Adapter {
	opts = withDefaults(opts)
	return &Adapter{
		opts:   opts,
		client: rest.NewClient(schema.VenueGate, opts.Config.HTTPTimeout, opts.Config.RateLimitRPS, opts.Config.RateBurst),
	}
}

// Venue implements venues.Adapter.
func (a *Adapter) Venue() schema.VenueID { return schema.VenueGate }

// Tickers fetches 24h statistics; quote_volume carries the USDT turnover.
func (a *Adapter) Tickers(ctx context.Context) ([]schema.TickerStat, error) {
	payload, err := a.fetchTickers(ctx, "tickers")
	if err != nil {
		return nil, err
	}
	stats := make([]schema.TickerStat, 0, len(payload))
	for _, record := range payload {
		symbol := strings.TrimSpace(record.CurrencyPair)
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

// TopOfBook extracts best bid/ask from the tickers payload. Inactive
// markets report empty-string quotes and are skipped. The ticker feed
// carries no best-quote sizes, so 24h volumes stand in for them.
func (a *Adapter) TopOfBook(ctx context.Context) (schema.QuoteBook, error) {
	payload, err := a.fetchTickers(ctx, "top_of_book")
	if err != nil {
		return nil, err
	}
	book := make(schema.QuoteBook, len(payload))
	for _, record := range payload {
		symbol := strings.TrimSpace(record.CurrencyPair)
		if symbol == "" {
			continue
		}
		if strings.TrimSpace(record.HighestBid) == "" || strings.TrimSpace(record.LowestAsk) == "" {
			continue
		}
		quote, err := rest.ParseQuote(record.HighestBid, record.LowestAsk, record.BaseVolume, record.QuoteVolume)
		if err != nil {
			a.opts.Logger.Warn().Str("venue", "gate").Str("symbol", symbol).Err(err).Msg("dropping malformed quote")
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
	var payload []tickerRecord
	if err := a.client.GetJSON(ctx, op, a.opts.tickersEndpoint(), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// OrderBook fetches the depth snapshot for one native symbol.
func (a *Adapter) OrderBook(ctx context.Context, nativeSymbol string) (schema.OrderBook, error) {
	params := url.Values{}
	params.Set("currency_pair", nativeSymbol)
	params.Set("limit", strconv.Itoa(a.opts.Config.OrderbookDepth))

	var payload orderBookResponse
	if err := a.client.GetJSON(ctx, "orderbook", a.opts.orderBookEndpoint()+"?"+params.Encode(), &payload); err != nil {
		return schema.OrderBook{}, err
	}
	return schema.OrderBook{
		Bids: rest.ParseLevels(payload.Bids, a.opts.Config.OrderbookDepth),
		Asks: rest.ParseLevels(payload.Asks, a.opts.Config.OrderbookDepth),
	}, nil
}

// NativeSymbol renders BTC_USDT unchanged; Gate uses the same separator.
func (a *Adapter) NativeSymbol(pair schema.CanonicalPair) string {
	return string(pair)
}
