package schema

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VenueID identifies a supported spot exchange.
type VenueID string

const (
	VenueBinance VenueID = "binance"
	VenueBybit   VenueID = "bybit"
	VenueOKX     VenueID = "okx"
	VenueGate    VenueID = "gate"
	VenueKucoin  VenueID = "kucoin"
)

// Venues returns the supported venue set in deterministic order.
func Venues() []VenueID {
	return []VenueID{VenueBinance, VenueBybit, VenueOKX, VenueGate, VenueKucoin}
}

// Valid reports whether the venue belongs to the supported set.
func (v VenueID) Valid() bool {
	switch v {
	case VenueBinance, VenueBybit, VenueOKX, VenueGate, VenueKucoin:
		return true
	default:
		return false
	}
}

func (v VenueID) String() string { return string(v) }

// TickerStat is one 24h ticker record after adapter normalization.
type TickerStat struct {
	NativeSymbol    string
	QuoteVolumeUSDT decimal.Decimal
}

// Quote is a top-of-book observation. Zero bid or ask marks the side unusable.
type Quote struct {
	Bid     decimal.Decimal
	Ask     decimal.Decimal
	BidSize decimal.Decimal
	AskSize decimal.Decimal
}

// Tradable reports whether both sides carry a positive price.
func (q Quote) Tradable() bool {
	return q.Bid.IsPositive() && q.Ask.IsPositive()
}

// QuoteBook maps native symbols to quotes from a single top-of-book fetch.
type QuoteBook map[string]Quote

// PriceLevel is one order-book level.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderBook holds normalized levels: bids descending, asks ascending.
type OrderBook struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// Empty reports whether both sides are empty.
func (b OrderBook) Empty() bool {
	return len(b.Bids) == 0 && len(b.Asks) == 0
}

// VenueSymbols records the native spelling of one pair at each venue where it
// passed the liquidity filter.
type VenueSymbols map[VenueID]string

// SymbolMap is the Stage-0 snapshot: canonical pair to per-venue native symbols.
type SymbolMap map[CanonicalPair]VenueSymbols

// Candidate is a Stage-1 signal: the best spread found for one pair in one scan
// cycle, at or above the gross admission threshold. Spread fields are oriented
// to the resolved route: SpreadA2BPct is the buy→sell spread and equals
// BestSpreadPct; SpreadB2APct is the reverse route's spread.
type Candidate struct {
	ID            uuid.UUID
	Pair          CanonicalPair
	BuyVenue      VenueID
	SellVenue     VenueID
	BuyQuote      Quote
	SellQuote     Quote
	SpreadA2BPct  decimal.Decimal
	SpreadB2APct  decimal.Decimal
	BestSpreadPct decimal.Decimal
	TS            time.Time
}

// Direction renders the candidate route as "buy→sell".
func (c Candidate) Direction() string {
	return string(c.BuyVenue) + "→" + string(c.SellVenue)
}

// DepthStatus is the Stage-2 verdict for a candidate.
type DepthStatus string

const (
	DepthConfirmed DepthStatus = "confirmed"
	DepthRejected  DepthStatus = "rejected"
)

// RejectReason explains a Stage-2 verdict. Reasons are data, not errors.
type RejectReason string

const (
	ReasonOK                 RejectReason = "ok"
	ReasonInvalidSignal      RejectReason = "invalid_signal"
	ReasonEmptyOrderBook     RejectReason = "fetch_failed_or_empty_orderbook"
	ReasonInsufficientDepth  RejectReason = "insufficient_depth"
	ReasonSpreadAfterFeesLow RejectReason = "spread_after_fees_too_low"
)

// DepthResult is the Stage-2 outcome for one candidate. Exec prices are only
// meaningful when both VWAP walks filled the target notional.
type DepthResult struct {
	Candidate        Candidate
	Status           DepthStatus
	Reason           RejectReason
	ExecNotionalUSDT decimal.Decimal
	ExecBuyPrice     decimal.Decimal
	ExecSellPrice    decimal.Decimal
	ExecSpreadPctNet decimal.Decimal
	CheckedAt        time.Time
}

// Confirmed reports whether the candidate survived the depth check.
func (r DepthResult) Confirmed() bool {
	return r.Status == DepthConfirmed
}
