// Package transfers collects withdrawal-network metadata and live trading
// fees from venues that publish them behind authenticated endpoints. The
// scanner never moves funds; collected rows back the manual transfer check an
// operator runs on a confirmed signal.
package transfers

import (
	"context"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/coachpo/spreadscan/internal/schema"
)

// Credentials holds the API key pair for a venue's signed endpoints.
type Credentials struct {
	Key    string
	Secret string
}

// CredentialsFromEnv reads the binance key pair from the environment. The
// second return is false when either half is missing, which keeps the
// collector off without treating the absence as an error.
func CredentialsFromEnv() (Credentials, bool) {
	key := strings.TrimSpace(os.Getenv("BINANCE_API_KEY"))
	secret := strings.TrimSpace(os.Getenv("BINANCE_API_SECRET"))
	if key == "" || secret == "" {
		return Credentials{}, false
	}
	return Credentials{Key: key, Secret: secret}, true
}

// CoinInfo is one coin's transfer standing across a venue's networks.
type CoinInfo struct {
	Coin     string
	Networks []CoinNetwork
}

// CoinNetwork is one network's transfer terms for a coin. Fee values are
// quoted in the coin itself.
type CoinNetwork struct {
	Network         string
	DepositEnabled  bool
	WithdrawEnabled bool
	WithdrawFee     decimal.NullDecimal
	WithdrawMin     decimal.NullDecimal
	IsDefault       bool
}

// TradeFee is a venue's live commission for one symbol. Rates arrive as
// fractions, so a 0.1% taker fee reads 0.001.
type TradeFee struct {
	Symbol string
	Maker  decimal.Decimal
	Taker  decimal.Decimal
}

// NetworkStatus is the venue-level transfer standing of one network, with
// fee and minimum quoted in USDT.
type NetworkStatus struct {
	Exchange        string
	NetworkCode     string
	WithdrawEnabled bool
	DepositEnabled  bool
	WithdrawFeeUSDT decimal.NullDecimal
	MinWithdrawUSDT decimal.NullDecimal
}

// AssetNetwork is one asset's standing on one network of one venue. Fee
// values are quoted in the asset itself.
type AssetNetwork struct {
	Exchange        string
	Asset           string
	NetworkCode     string
	WithdrawFee     decimal.NullDecimal
	MinWithdraw     decimal.NullDecimal
	WithdrawEnabled bool
	DepositEnabled  bool
}

// Store persists collected transfer metadata.
type Store interface {
	UpsertNetworks(ctx context.Context, rows []NetworkStatus) error
	UpsertAssetNetworks(ctx context.Context, rows []AssetNetwork) error
}

// CoinSource fetches coin transfer metadata and live trade fees.
type CoinSource interface {
	CoinInfo(ctx context.Context) ([]CoinInfo, error)
	TradeFees(ctx context.Context, symbol string) ([]TradeFee, error)
}

// FeeTable exposes the configured taker fee for a venue in percent.
type FeeTable interface {
	TakerFeeFor(venue schema.VenueID) decimal.Decimal
}
