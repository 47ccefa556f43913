// Package okx implements the OKX v5 spot market-data adapter.
package okx

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
	InstID    string `json:"instId"`
	BidPx     string `json:"bidPx"`
	BidSz     string `json:"bidSz"`
	AskPx     string `json:"askPx"`
	AskSz     string `json:"askSz"`
	VolCcy24h string `json:"volCcy24h"`
	Vol24h    string `json:"vol24h"`
}

type tickersResponse struct {
	Code string         `json:"code"`
	Msg  string         `json:"msg"`
	Data []tickerRecord `json:"data"`
}

type bookRecord struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
	TS   string     `json:"ts"`
}

type booksResponse struct {
	Code string       `json:"code"`
	Msg  string       `json:"msg"`
	Data []bookRecord `json:"data"`
}

// Adapter serves OKX spot market data.
type Adapter struct {
	opts   Options
	client *rest.Client
}

// New constructs the adapter with defaults applied.
func New(opts Options) *Adapter {
	opts = withDefaults(opts)
	return &Adapter{
		opts:   opts,
		client: rest.NewClient(schema.VenueOKX, opts.Config.HTTPTimeout, opts.Config.RateLimitRPS, opts.Config.RateBurst),
	}
}

// Venue implements venues.Adapter.
func (a *Adapter) Venue() schema.VenueID { return schema.VenueOKX }

func envelopeErr(op, code, msg string) error {
	if code == "0" {
		return nil
	}
	return errs.New(string(schema.VenueOKX), errs.CodeExchange,
		errs.WithOp(op),
		errs.WithRawCode(code),
		errs.WithRawMessage(msg))
}

// Tickers fetches 24h statistics. volCcy24h carries the quote-denominated
// turnover; vol24h is the base-volume fallback when it is absent.
func (a *Adapter) Tickers(ctx context.Context) ([]schema.TickerStat, error) {
	payload, err := a.fetchTickers(ctx, "tickers")
	if err != nil {
		return nil, err
	}
	stats := make([]schema.TickerStat, 0, len(payload))
	for _, record := range payload {
		symbol := strings.TrimSpace(record.InstID)
		if symbol == "" {
			continue
		}
		volume := rest.ParseVolume(record.VolCcy24h)
		if !volume.IsPositive() {
			volume = rest.ParseVolume(record.Vol24h)
		}
		stats = append(stats, schema.TickerStat{
			NativeSymbol:    symbol,
			QuoteVolumeUSDT: volume,
		})
	}
	return stats, nil
}

// TopOfBook extracts best bid/ask from the same tickers endpoint.
func (a *Adapter) TopOfBook(ctx context.Context) (schema.QuoteBook, error) {
	payload, err := a.fetchTickers(ctx, "top_of_book")
	if err != nil {
		return nil, err
	}
	book := make(schema.QuoteBook, len(payload))
	for _, record := range payload {
		symbol := strings.TrimSpace(record.InstID)
		if symbol == "" {
			continue
		}
		quote, err := rest.ParseQuote(record.BidPx, record.AskPx, record.BidSz, record.AskSz)
		if err != nil {
			a.opts.Logger.Warn().Str("venue", "okx").Str("symbol", symbol).Err(err).Msg("dropping malformed quote")
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
	params.Set("instType", a.opts.privateMeta.instType)

	var payload tickersResponse
	if err := a.client.GetJSON(ctx, op, a.opts.tickersEndpoint()+"?"+params.Encode(), &payload); err != nil {
		return nil, err
	}
	if err := envelopeErr(op, payload.Code, payload.Msg); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// OrderBook fetches the depth snapshot for one native symbol.
// Rows are [price, size, liquidatedOrders, orderCount]; size sits at index 1.
func (a *Adapter) OrderBook(ctx context.Context, nativeSymbol string) (schema.OrderBook, error) {
	params := url.Values{}
	params.Set("instId", nativeSymbol)
	params.Set("sz", strconv.Itoa(a.opts.Config.OrderbookDepth))

	var payload booksResponse
	if err := a.client.GetJSON(ctx, "orderbook", a.opts.booksEndpoint()+"?"+params.Encode(), &payload); err != nil {
		return schema.OrderBook{}, err
	}
	if err := envelopeErr("orderbook", payload.Code, payload.Msg); err != nil {
		return schema.OrderBook{}, err
	}
	if len(payload.Data) == 0 {
		return schema.OrderBook{}, nil
	}
	return schema.OrderBook{
		Bids: rest.ParseLevels(payload.Data[0].Bids, a.opts.Config.OrderbookDepth),
		Asks: rest.ParseLevels(payload.Data[0].Asks, a.opts.Config.OrderbookDepth),
	}, nil
}

// NativeSymbol renders BTC_USDT as BTC-USDT.
func (a *Adapter) NativeSymbol(pair schema.CanonicalPair) string {
	return pair.Base() + "-USDT"
}
