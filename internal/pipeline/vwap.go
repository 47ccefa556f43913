package pipeline

import (
	"github.com/shopspring/decimal"

	"github.com/coachpo/spreadscan/internal/schema"
)

// vwap walks order-book levels in natural order, accumulating notional until
// want is filled or maxLevels have been examined. It returns the
// volume-weighted average price of the filled quantity and whether the walk
// filled completely. A level with non-positive price aborts the walk.
func vwap(levels []schema.PriceLevel, want decimal.Decimal, maxLevels int) (decimal.Decimal, bool) {
	if !want.IsPositive() {
		return decimal.Decimal{}, false
	}
	var filled, totalQty decimal.Decimal
	for i, level := range levels {
		if maxLevels > 0 && i >= maxLevels {
			break
		}
		if !level.Price.IsPositive() {
			return decimal.Decimal{}, false
		}
		available := level.Price.Mul(level.Quantity)
		take := decimal.Min(available, want.Sub(filled))
		if !take.IsPositive() {
			continue
		}
		filled = filled.Add(take)
		totalQty = totalQty.Add(take.Div(level.Price))
		if filled.GreaterThanOrEqual(want) {
			break
		}
	}
	if filled.LessThan(want) {
		return decimal.Decimal{}, false
	}
	return filled.Div(totalQty), true
}
