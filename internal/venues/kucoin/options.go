package kucoin

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
	allTickersPath string
	orderBookPath  string
}

var kucoinPublicMetadata = publicMetadata{
	identifier:  "kucoin",
	displayName: "KuCoin Spot",
	description: "KuCoin spot market-data adapter",
}

var kucoinPrivateMetadata = privateMetadata{
	apiBaseURL:     "https://api.kucoin.com",
	allTickersPath: "/api/v1/market/allTickers",
	orderBookPath:  "/api/v1/market/orderbook/level2_100",
}

const (
	defaultHTTPTimeout    = 10 * time.Second
	defaultOrderbookDepth = 50
	defaultRateLimitRPS   = 10
	defaultRateBurst      = 1
)

// Config captures user-overridable KuCoin settings.
type Config struct {
	Name           string
	BaseURL        string
	HTTPTimeout    time.Duration
	OrderbookDepth int
	RateLimitRPS   float64
	RateBurst      int
}

// Options configure the KuCoin adapter.
type Options struct {
	Config Config
	Logger zerolog.Logger

	publicMeta  publicMetadata
	privateMeta privateMetadata
}

func withDefaults(in Options) Options {
	in.publicMeta = kucoinPublicMetadata
	in.privateMeta = kucoinPrivateMetadata
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

func (o Options) allTickersEndpoint() string {
	return o.restEndpoint(o.privateMeta.allTickersPath)
}

func (o Options) orderBookEndpoint() string {
	return o.restEndpoint(o.privateMeta.orderBookPath)
}
