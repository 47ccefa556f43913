// Package bybit implements the Bybit v5 spot market-data adapter.
package bybit

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/coachpo/spreadscan/errs"
	"github.com/coachpo/spreadscan/internal/schema"
	"github.com/coachpo/spreadscan/internal/venues/rest"
)

type tickerRecord struct {
	Symbol      string `json:"symbol"`
	Bid1Price   string `json:"bid1Price"`
	Bid1Size    string `json:"bid1Size"`
	Ask1Price   string `json:"ask1Price"`
	Ask1Size    string `json:"ask1Size"`
	Turnover24h string `json:"turnover24h"`
}

type tickersResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []tickerRecord `json:"list"`
	} `json:"result"`
}

type orderbookResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Bids [][]string `json:"b"`
		Asks [][]string `json:"a"`
	} `json:"result"`
}

// Adapter serves Bybit spot market data.
type Adapter struct {
	opts   Options
	client *rest.Client
}

// New constructs the adapter with defaults applied.
func New(opts Options) *Adapter {
	opts = withDefaults(opts)
	return &Adapter{
		opts:   opts,
		client: rest.NewClient(schema.VenueBybit, opts.Config.HTTPTimeout, opts.Config.RateLimitRPS, opts.Config.RateBurst),
	}
}

// Venue implements venues.Adapter.
func (a *Adapter) Venue() schema.VenueID { return schema.VenueBybit }

func envelopeErr(op string, retCode int, retMsg string) error {
	if retCode == 0 {
		return nil
	}
	return errs.New(string(schema.VenueBybit), errs.CodeExchange,
		errs.WithOp(op),
		errs.WithRawCode(strconv.Itoa(retCode)),
		errs.WithRawMessage(retMsg))
}

// Tickers fetches 24h statistics; turnover24h carries the USDT turnover.
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
			QuoteVolumeUSDT: rest.ParseVolume(record.Turnover24h),
		})
	}
	return stats, nil
}

// TopOfBook extracts best bid/ask from the same tickers endpoint;
// Bybit has no separate spot book-ticker route.
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
		quote, err := rest.ParseQuote(record.Bid1Price, record.Ask1Price, record.Bid1Size, record.Ask1Size)
		if err != nil {
			a.opts.Logger.Warn().Str("venue", "bybit").Str("symbol", symbol).Err(err).Msg("dropping malformed quote")
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
	params := url.Values{}
	params.Set("category", a.opts.privateMeta.category)

	var payload tickersResponse
	if err := a.client.GetJSON(ctx, op, a.opts.tickersEndpoint()+"?"+params.Encode(), &payload); err != nil {
		return nil, err
	}
	if err := envelopeErr(op, payload.RetCode, payload.RetMsg); err != nil {
		return nil, err
	}
	return payload.Result.List, nil
}

// OrderBook fetches the depth snapshot for one native symbol.
func (a *Adapter) OrderBook(ctx context.Context, nativeSymbol string) (schema.OrderBook, error) {
	params := url.Values{}
	params.Set("category", a.opts.privateMeta.category)
	params.Set("symbol", nativeSymbol)
	params.Set("limit", strconv.Itoa(a.opts.Config.OrderbookDepth))

	var payload orderbookResponse
	if err := a.client.GetJSON(ctx, "orderbook", a.opts.orderbookEndpoint()+"?"+params.Encode(), &payload); err != nil {
		return schema.OrderBook{}, err
	}
	if err := envelopeErr("orderbook", payload.RetCode, payload.RetMsg); err != nil {
		return schema.OrderBook{}, err
	}
	return schema.OrderBook{
		Bids: rest.ParseLevels(payload.Result.Bids, a.opts.Config.OrderbookDepth),
		Asks: rest.ParseLevels(payload.Result.Asks, a.opts.Config.OrderbookDepth),
	}, nil
}

// NativeSymbol renders BTC_USDT as BTCUSDT.
func (a *Adapter) NativeSymbol(pair schema.CanonicalPair) string {
	return pair.Base() + "USDT"
}
