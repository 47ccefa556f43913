package venues

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coachpo/spreadscan/config"
	"github.com/coachpo/spreadscan/internal/schema"
	"github.com/coachpo/spreadscan/internal/venues/binance"
	"github.com/coachpo/spreadscan/internal/venues/bybit"
	"github.com/coachpo/spreadscan/internal/venues/gate"
	"github.com/coachpo/spreadscan/internal/venues/kucoin"
	"github.com/coachpo/spreadscan/internal/venues/okx"
)

// RegisterAll installs every enabled built-in adapter into the registry.
// Each adapter inherits the shared polling settings plus any per-venue
// base-URL override.
func RegisterAll(reg *Registry, cfg config.VenuesConfig, orderbookDepth int, logger zerolog.Logger) error {
	if reg == nil {
		return fmt.Errorf("venues: nil registry")
	}
	for _, venue := range cfg.EnabledVenues() {
		adapter, err := build(venue, cfg, orderbookDepth, logger)
		if err != nil {
			return err
		}
		if err := reg.Register(adapter); err != nil {
			return err
		}
	}
	return nil
}

func build(venue schema.VenueID, cfg config.VenuesConfig, orderbookDepth int, logger zerolog.Logger) (Adapter, error) {
	switch venue {
	case schema.VenueBinance:
		return binance.New(binance.Options{
			Config: binance.Config{
				BaseURL:        cfg.BaseURLFor(venue),
				HTTPTimeout:    cfg.RequestTimeout,
				OrderbookDepth: orderbookDepth,
				RateLimitRPS:   cfg.RateLimitRPS,
				RateBurst:      cfg.RateBurst,
			},
			Logger: logger,
		}), nil
	case schema.VenueBybit:
		return bybit.New(bybit.Options{
			Config: bybit.Config{
				BaseURL:        cfg.BaseURLFor(venue),
				HTTPTimeout:    cfg.RequestTimeout,
				OrderbookDepth: orderbookDepth,
				RateLimitRPS:   cfg.RateLimitRPS,
				RateBurst:      cfg.RateBurst,
			},
			Logger: logger,
		}), nil
	case schema.VenueOKX:
		return okx.New(okx.Options{
			Config: okx.Config{
				BaseURL:        cfg.BaseURLFor(venue),
				HTTPTimeout:    cfg.RequestTimeout,
				OrderbookDepth: orderbookDepth,
				RateLimitRPS:   cfg.RateLimitRPS,
				RateBurst:      cfg.RateBurst,
			},
			Logger: logger,
		}), nil
	case schema.VenueGate:
		return gate.New(gate.Options{
			Config: gate.Config{
				BaseURL:        cfg.BaseURLFor(venue),
				HTTPTimeout:    cfg.RequestTimeout,
				OrderbookDepth: orderbookDepth,
				RateLimitRPS:   cfg.RateLimitRPS,
				RateBurst:      cfg.RateBurst,
			},
			Logger: logger,
		}), nil
	case schema.VenueKucoin:
		return kucoin.New(kucoin.Options{
			Config: kucoin.Config{
				BaseURL:        cfg.BaseURLFor(venue),
				HTTPTimeout:    cfg.RequestTimeout,
				OrderbookDepth: orderbookDepth,
				RateLimitRPS:   cfg.RateLimitRPS,
				RateBurst:      cfg.RateBurst,
			},
			Logger: logger,
		}), nil
	default:
		return nil, fmt.Errorf("venues: no adapter for venue %q", venue)
	}
}
