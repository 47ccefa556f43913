package okx

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type publicMetadata struct {
	identifier  string
	displayName string
	description string
}

type privateMetadata struct {
	apiBaseURL  string
	tickersPath string
	booksPath   string
	instType    string
}

var okxPublicMetadata = publicMetadata{
	identifier:  "okx",
	displayName: "OKX Spot",
	description: "OKX v5 spot market-data adapter",
}

var okxPrivateMetadata = privateMetadata{
	apiBaseURL:  "https://www.okx.com",
	tickersPath: "/api/v5/market/tickers",
	booksPath:   "/api/v5/market/books",
	instType:    "SPOT",
}

const (
	defaultHTTPTimeout    = 10 * time.Second
	defaultOrderbookDepth = 50
	defaultRateLimitRPS   = 10
	defaultRateBurst      = 1
)

// Config captures user-overridable OKX settings.
type Config struct {
	Name           string
	BaseURL        string
	HTTPTimeout    time.Duration
	OrderbookDepth int
	RateLimitRPS   float64
	RateBurst      int
}

// Options configure the OKX adapter.
type Options struct {
	Config Config
	Logger zerolog.Logger

	publicMeta  publicMetadata
	privateMeta privateMetadata
}

func withDefaults(in Options) Options {
	in.publicMeta = okxPublicMetadata
	in.privateMeta = okxPrivateMetadata
	if override := strings.TrimSpace(in.Config.BaseURL); override != "" {
		in.privateMeta.apiBaseURL = override
	}
	if strings.TrimSpace(in.Config.Name) == "" {
		in.Config.Name = in.publicMeta.identifier
	}
	if in.Config.HTTPTimeout <= 0 {
		in.Config.HTTPTimeout = defaultHTTPTimeout
	}
	if in.Config.OrderbookDepth <= 0 {
		in.Config.OrderbookDepth = defaultOrderbookDepth
	}
	if in.Config.RateLimitRPS <= 0 {
		in.Config.RateLimitRPS = defaultRateLimitRPS
	}
	if in.Config.RateBurst <= 0 {
		in.Config.RateBurst = defaultRateBurst
	}
	return in
}

func (o Options) restEndpoint(path string) string {
	base := strings.TrimSuffix(strings.TrimSpace(o.privateMeta.apiBaseURL), "/")
	if base == "" {
		return ""
	}
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return base
	}
	if strings.HasPrefix(trimmed, "/") {
		return base + trimmed
	}
	return base + "/" + trimmed
}

func (o Options) tickersEndpoint() string {
	return o.restEndpoint(o.privateMeta.tickersPath)
}

func (o Options) booksEndpoint() string {
	return o.restEndpoint(o.privateMeta.booksPath)
}
