// Package pipeline implements the three-stage scanning pipeline: the Stage-0
// normalizer that discovers tradable pairs, the Stage-1 scanner that turns
// top-of-book quotes into spread candidates, and the Stage-2 depth checker
// that validates candidates against live order books.
//
// Each stage is a worker with a Run loop driven by the supervisor. Stages
// share no state directly; they communicate through the snapshot store and
// the signal queue.
package pipeline

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/spreadscan/internal/schema"
)

// SpreadWriter receives every candidate that cleared the gross threshold.
type SpreadWriter interface {
	Write(candidate schema.Candidate) error
}

// ConfirmedWriter receives every candidate that survived the depth check.
type ConfirmedWriter interface {
	Write(result schema.DepthResult) error
}

// FeeTable resolves a venue's taker fee percentage.
type FeeTable interface {
	TakerFeeFor(venue schema.VenueID) decimal.Decimal
}

// sleepCtx pauses for d and reports false when ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
