package binance

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
	apiBaseURL     string
	tickers24hPath string
	bookTickerPath string
	depthPath      string
	depthParam     string
}

var binancePublicMetadata = publicMetadata{
	identifier:  "binance",
	displayName: "Binance Spot",
	description: "Binance spot market-data adapter",
}

var binancePrivateMetadata = privateMetadata{
	apiBaseURL:     "https://api.binance.com",
	tickers24hPath: "/api/v3/ticker/24hr",
	bookTickerPath: "/api/v3/ticker/bookTicker",
	depthPath:      "/api/v3/depth",
	depthParam:     "limit",
}

const (
	defaultHTTPTimeout    = 10 * time.Second
	defaultOrderbookDepth = 50
	defaultRateLimitRPS   = 10
	defaultRateBurst      = 1
)

// Config captures user-overridable Binance settings.
type Config struct {
	Name           string
	BaseURL        string
	HTTPTimeout    time.Duration
	OrderbookDepth int
	RateLimitRPS   float64
	RateBurst      int
}

// Options configure the Binance adapter.
type Options struct {
	Config Config
	Logger zerolog.Logger

	publicMeta  publicMetadata
	privateMeta privateMetadata
}

func withDefaults(in Options) Options {
	in.publicMeta = binancePublicMetadata
	in.privateMeta = binancePrivateMetadata
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

func (o Options) tickers24hEndpoint() string {
	return o.restEndpoint(o.privateMeta.tickers24hPath)
}

func (o Options) bookTickerEndpoint() string {
	return o.restEndpoint(o.privateMeta.bookTickerPath)
}

func (o Options) depthEndpoint() string {
	return o.restEndpoint(o.privateMeta.depthPath)
}
