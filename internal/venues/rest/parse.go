package rest

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/coachpo/spreadscan/internal/schema"
)

// ParseVolume parses a vendor volume or size field. Malformed, missing, or
// negative values become zero.
func ParseVolume(raw string) decimal.Decimal {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil || value.IsNegative() {
		return decimal.Zero
	}
	return value
}

// ParseQuote builds a Quote from vendor bid/ask fields. Price parse failures
// are errors; zero-priced sides parse fine and mark an inactive market, which
// callers detect through Quote.Tradable.
func ParseQuote(bidPrice, askPrice, bidSize, askSize string) (schema.Quote, error) {
	bid, err := decimal.NewFromString(strings.TrimSpace(bidPrice))
	if err != nil {
		return schema.Quote{}, fmt.Errorf("bid price %q: %w", bidPrice, err)
	}
	ask, err := decimal.NewFromString(strings.TrimSpace(askPrice))
	if err != nil {
		return schema.Quote{}, fmt.Errorf("ask price %q: %w", askPrice, err)
	}
	return schema.Quote{
		Bid:     bid,
		Ask:     ask,
		BidSize: ParseVolume(bidSize),
		AskSize: ParseVolume(askSize),
	}, nil
}

// ParseLevels converts vendor [price, qty, ...] rows into price levels in the
// vendor's order, dropping rows that fail to parse and truncating to depth.
// Extra row elements beyond the first two are ignored.
func ParseLevels(rows [][]string, depth int) []schema.PriceLevel {
	limit := len(rows)
	if depth > 0 && depth < limit {
		limit = depth
	}
	levels := make([]schema.PriceLevel, 0, limit)
	for _, row := range rows {
		if len(levels) == limit {
			break
		}
		if len(row) < 2 {
			continue
		}
		price, err := decimal.NewFromString(strings.TrimSpace(row[0]))
		if err != nil {
			continue
		}
		qty, err := decimal.NewFromString(strings.TrimSpace(row[1]))
		if err != nil {
			continue
		}
		levels = append(levels, schema.PriceLevel{Price: price, Quantity: qty})
	}
	return levels
}
