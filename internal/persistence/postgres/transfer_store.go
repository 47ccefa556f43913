// Package postgres implements the transfers store on a pgx connection pool.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coachpo/spreadscan/internal/transfers"
)

// TransferStore persists withdrawal-network metadata in PostgreSQL.
type TransferStore struct {
	pool *pgxpool.Pool
}

// NewTransferStore constructs a TransferStore backed by the provided pgx pool.
func NewTransferStore(pool *pgxpool.Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

const (
	transferExchangeUpsertSQL = `
INSERT INTO transfer_exchanges (
    exchange,
    network_code,
    withdraw_enabled,
    deposit_enabled,
    withdraw_fee_usdt,
    min_withdraw_usdt,
    updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
ON CONFLICT (exchange, network_code) DO UPDATE SET
    withdraw_enabled = EXCLUDED.withdraw_enabled,
    deposit_enabled = EXCLUDED.deposit_enabled,
    withdraw_fee_usdt = EXCLUDED.withdraw_fee_usdt,
    min_withdraw_usdt = EXCLUDED.min_withdraw_usdt,
    updated_at = NOW();
`
	transferAssetUpsertSQL = `
INSERT INTO transfer_assets (
    exchange,
    asset,
    network_code,
    withdraw_fee,
    min_withdraw,
    withdraw_enabled,
    deposit_enabled,
    updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
ON CONFLICT (exchange, asset, network_code) DO UPDATE SET
    withdraw_fee = EXCLUDED.withdraw_fee,
    min_withdraw = EXCLUDED.min_withdraw,
    withdraw_enabled = EXCLUDED.withdraw_enabled,
    deposit_enabled = EXCLUDED.deposit_enabled,
    updated_at = NOW();
`
	transferNetworkListSQL = `
SELECT exchange, network_code, withdraw_enabled, deposit_enabled, withdraw_fee_usdt, min_withdraw_usdt
FROM transfer_exchanges
WHERE exchange = $1
ORDER BY network_code;
`
	transferAssetListSQL = `
SELECT exchange, asset, network_code, withdraw_fee, min_withdraw, withdraw_enabled, deposit_enabled
FROM transfer_assets
WHERE exchange = $1 AND ($2 = '' OR asset = $2)
ORDER BY asset, network_code;
`
)

// UpsertNetworks writes venue-level network rows in one transaction.
func (s *TransferStore) UpsertNetworks(ctx context.Context, rows []transfers.NetworkStatus) error {
	if len(rows) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		for _, row := range rows {
			exchange := strings.TrimSpace(row.Exchange)
			network := strings.TrimSpace(row.NetworkCode)
			if exchange == "" || network == "" {
				return fmt.Errorf("transfer store: exchange and network code required")
			}
			fee, err := numericFromNullDecimal(row.WithdrawFeeUSDT)
			if err != nil {
				return fmt.Errorf("transfer store: withdraw fee: %w", err)
			}
			minWithdraw, err := numericFromNullDecimal(row.MinWithdrawUSDT)
			if err != nil {
				return fmt.Errorf("transfer store: min withdraw: %w", err)
			}
			if _, err := tx.Exec(ctx, transferExchangeUpsertSQL,
				exchange, network, row.WithdrawEnabled, row.DepositEnabled, fee, minWithdraw); err != nil {
				return fmt.Errorf("transfer store: upsert network %s/%s: %w", exchange, network, err)
			}
		}
		return nil
	})
}

// UpsertAssetNetworks writes per-asset network rows in one transaction.
func (s *TransferStore) UpsertAssetNetworks(ctx context.Context, rows []transfers.AssetNetwork) error {
	if len(rows) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		for _, row := range rows {
			exchange := strings.TrimSpace(row.Exchange)
			asset := strings.TrimSpace(row.Asset)
			network := strings.TrimSpace(row.NetworkCode)
			if exchange == "" || asset == "" || network == "" {
				return fmt.Errorf("transfer store: exchange, asset, and network code required")
			}
			fee, err := numericFromNullDecimal(row.WithdrawFee)
			if err != nil {
				return fmt.Errorf("transfer store: withdraw fee: %w", err)
			}
			minWithdraw, err := numericFromNullDecimal(row.MinWithdraw)
			if err != nil {
				return fmt.Errorf("transfer store: min withdraw: %w", err)
			}
			if _, err := tx.Exec(ctx, transferAssetUpsertSQL,
				exchange, asset, network, fee, minWithdraw, row.WithdrawEnabled, row.DepositEnabled); err != nil {
				return fmt.Errorf("transfer store: upsert asset %s/%s/%s: %w", exchange, asset, network, err)
			}
		}
		return nil
	})
}

// ListNetworks retrieves the venue-level network rows for one exchange.
func (s *TransferStore) ListNetworks(ctx context.Context, exchange string) ([]transfers.NetworkStatus, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("transfer store: nil pool")
	}
	rows, err := s.pool.Query(ctx, transferNetworkListSQL, strings.TrimSpace(exchange))
	if err != nil {
		return nil, fmt.Errorf("transfer store: list networks: %w", err)
	}
	defer rows.Close()

	var out []transfers.NetworkStatus
	for rows.Next() {
		var (
			record      transfers.NetworkStatus
			fee         sql.NullString
			minWithdraw sql.NullString
		)
		if err := rows.Scan(
			&record.Exchange,
			&record.NetworkCode,
			&record.WithdrawEnabled,
			&record.DepositEnabled,
			&fee,
			&minWithdraw,
		); err != nil {
			return nil, fmt.Errorf("transfer store: scan network: %w", err)
		}
		if record.WithdrawFeeUSDT, err = nullDecimalFromColumn(fee); err != nil {
			return nil, fmt.Errorf("transfer store: %w", err)
		}
		if record.MinWithdrawUSDT, err = nullDecimalFromColumn(minWithdraw); err != nil {
			return nil, fmt.Errorf("transfer store: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transfer store: iterate networks: %w", err)
	}
	return out, nil
}

// ListAssetNetworks retrieves per-asset rows for one exchange. An empty
// asset returns every asset.
func (s *TransferStore) ListAssetNetworks(ctx context.Context, exchange, asset string) ([]transfers.AssetNetwork, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("transfer store: nil pool")
	}
	rows, err := s.pool.Query(ctx, transferAssetListSQL, strings.TrimSpace(exchange), strings.ToUpper(strings.TrimSpace(asset)))
	if err != nil {
		return nil, fmt.Errorf("transfer store: list assets: %w", err)
	}
	defer rows.Close()

	var out []transfers.AssetNetwork
	for rows.Next() {
		var (
			record      transfers.AssetNetwork
			fee         sql.NullString
			minWithdraw sql.NullString
		)
		if err := rows.Scan(
			&record.Exchange,
			&record.Asset,
			&record.NetworkCode,
			&fee,
			&minWithdraw,
			&record.WithdrawEnabled,
			&record.DepositEnabled,
		); err != nil {
			return nil, fmt.Errorf("transfer store: scan asset: %w", err)
		}
		if record.WithdrawFee, err = nullDecimalFromColumn(fee); err != nil {
			return nil, fmt.Errorf("transfer store: %w", err)
		}
		if record.MinWithdraw, err = nullDecimalFromColumn(minWithdraw); err != nil {
			return nil, fmt.Errorf("transfer store: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transfer store: iterate assets: %w", err)
	}
	return out, nil
}

func (s *TransferStore) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	if s.pool == nil {
		return fmt.Errorf("transfer store: nil pool")
	}
	var txOptions pgx.TxOptions
	txOptions.IsoLevel = pgx.ReadCommitted
	txOptions.AccessMode = pgx.ReadWrite
	txOptions.DeferrableMode = pgx.NotDeferrable

	tx, err := s.pool.BeginTx(ctx, txOptions)
	if err != nil {
		return fmt.Errorf("transfer store: begin tx: %w", err)
	}
	if runErr := fn(tx); runErr != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("transfer store: rollback tx: %w (original error: %v)", rbErr, runErr)
		}
		return runErr
	}
	if err := tx.Commit(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("transfer store: commit tx: %w", err)
	}
	return nil
}
