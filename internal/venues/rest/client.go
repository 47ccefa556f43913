// Package rest provides the throttled HTTP/JSON fetcher and the wire-field
// parsing helpers shared by the per-venue adapters.
package rest

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/coachpo/spreadscan/errs"
	"github.com/coachpo/spreadscan/internal/schema"
)

// Client fetches JSON payloads for one venue. Requests are throttled per
// venue and fail rather than block past the configured timeout.
type Client struct {
	venue      schema.VenueID
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient builds a throttled client for one venue.
func NewClient(venue schema.VenueID, timeout time.Duration, rps float64, burst int) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		venue:      venue,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// GetJSON fetches fullURL and decodes the response body into out. Failures
// carry the venue and operation so callers can log them without context of
// their own.
func (c *Client) GetJSON(ctx context.Context, op, fullURL string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errs.New(string(c.venue), errs.CodeNetwork, errs.WithOp(op), errs.WithCause(err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return errs.New(string(c.venue), errs.CodeInvalid, errs.WithOp(op), errs.WithCause(err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.New(string(c.venue), errs.CodeNetwork, errs.WithOp(op), errs.WithCause(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return errs.New(string(c.venue), CodeForStatus(resp.StatusCode),
			errs.WithOp(op),
			errs.WithHTTP(resp.StatusCode),
			errs.WithRawMessage(strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.New(string(c.venue), errs.CodeDecode, errs.WithOp(op), errs.WithCause(err))
	}
	return nil
}

// CodeForStatus maps an HTTP status to the closest error code.
func CodeForStatus(status int) errs.Code {
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusTeapot:
		// Binance uses 418 for repeat rate-limit offenders.
		return errs.CodeRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.CodeAuth
	case status >= 500:
		return errs.CodeUnavailable
	default:
		return errs.CodeExchange
	}
}
