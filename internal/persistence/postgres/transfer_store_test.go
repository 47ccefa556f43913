package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/coachpo/spreadscan/internal/persistence/migrations"
	pgstore "github.com/coachpo/spreadscan/internal/persistence/postgres"
	"github.com/coachpo/spreadscan/internal/transfers"
)

var (
	testPool    *pgxpool.Pool
	pgContainer testcontainers.Container
	setupErr    error
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_PASSWORD": "secret", "POSTGRES_USER": "postgres", "POSTGRES_DB": "arb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		setupErr = fmt.Errorf("start postgres container: %w", err)
	} else {
		pgContainer = container
		setupErr = initialiseDatabase(ctx)
	}
	if setupErr != nil {
		fmt.Fprintf(os.Stderr, "transfer store tests will skip: %v\n", setupErr)
	}

	exitCode := m.Run()

	if testPool != nil {
		testPool.Close()
	}
	if pgContainer != nil {
		_ = pgContainer.Terminate(ctx)
	}
	os.Exit(exitCode)
}

func initialiseDatabase(ctx context.Context) error {
	host, err := pgContainer.Host(ctx)
	if err != nil {
		return fmt.Errorf("container host: %w", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return fmt.Errorf("container port: %w", err)
	}
	dsn := fmt.Sprintf("postgres://postgres:secret@%s:%s/arb?sslmode=disable", host, port.Port())

	if err := migrations.ApplyEmbedded(ctx, dsn, nil); err != nil {
		return fmt.Errorf("apply embedded migrations: %w", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("pgx pool: %w", err)
	}
	testPool = pool
	return nil
}

func nullDec(t *testing.T, value string) decimal.NullDecimal {
	t.Helper()
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", value, err)
	}
	return decimal.NullDecimal{Decimal: parsed, Valid: true}
}

func TestTransferStoreNetworkRoundTrip(t *testing.T) {
	if setupErr != nil {
		t.Skipf("postgres unavailable: %v", setupErr)
	}
	ctx := context.Background()
	store := pgstore.NewTransferStore(testPool)

	rows := []transfers.NetworkStatus{
		{
			Exchange:        "binance",
			NetworkCode:     "TRX",
			WithdrawEnabled: true,
			DepositEnabled:  true,
			WithdrawFeeUSDT: nullDec(t, "1"),
			MinWithdrawUSDT: nullDec(t, "10"),
		},
		{
			Exchange:        "binance",
			NetworkCode:     "ETH",
			WithdrawEnabled: true,
			DepositEnabled:  false,
		},
	}
	if err := store.UpsertNetworks(ctx, rows); err != nil {
		t.Fatalf("upsert networks: %v", err)
	}

	listed, err := store.ListNetworks(ctx, "binance")
	if err != nil {
		t.Fatalf("list networks: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 networks, got %d", len(listed))
	}
	// ORDER BY network_code puts ETH first.
	if listed[0].NetworkCode != "ETH" || listed[1].NetworkCode != "TRX" {
		t.Fatalf("unexpected ordering: %s, %s", listed[0].NetworkCode, listed[1].NetworkCode)
	}
	if listed[0].WithdrawFeeUSDT.Valid {
		t.Fatalf("expected NULL fee for ETH, got %+v", listed[0].WithdrawFeeUSDT)
	}
	trx := listed[1]
	if !trx.WithdrawFeeUSDT.Valid || !trx.WithdrawFeeUSDT.Decimal.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected TRX fee 1, got %+v", trx.WithdrawFeeUSDT)
	}
	if !trx.MinWithdrawUSDT.Valid || !trx.MinWithdrawUSDT.Decimal.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected TRX minimum 10, got %+v", trx.MinWithdrawUSDT)
	}

	update := []transfers.NetworkStatus{
		{
			Exchange:        "binance",
			NetworkCode:     "TRX",
			WithdrawEnabled: false,
			DepositEnabled:  true,
			WithdrawFeeUSDT: nullDec(t, "1.2"),
			MinWithdrawUSDT: nullDec(t, "10"),
		},
	}
	if err := store.UpsertNetworks(ctx, update); err != nil {
		t.Fatalf("upsert updated network: %v", err)
	}

	listed, err = store.ListNetworks(ctx, "binance")
	if err != nil {
		t.Fatalf("list networks after update: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected upsert to keep 2 rows, got %d", len(listed))
	}
	trx = listed[1]
	if trx.WithdrawEnabled {
		t.Fatal("expected TRX withdrawals disabled after update")
	}
	if !trx.WithdrawFeeUSDT.Decimal.Equal(decimal.RequireFromString("1.2")) {
		t.Fatalf("expected updated TRX fee 1.2, got %s", trx.WithdrawFeeUSDT.Decimal)
	}
}

func TestTransferStoreAssetRoundTrip(t *testing.T) {
	if setupErr != nil {
		t.Skipf("postgres unavailable: %v", setupErr)
	}
	ctx := context.Background()
	store := pgstore.NewTransferStore(testPool)

	rows := []transfers.AssetNetwork{
		{
			Exchange:        "binance",
			Asset:           "USDT",
			NetworkCode:     "TRX",
			WithdrawFee:     nullDec(t, "1"),
			MinWithdraw:     nullDec(t, "10"),
			WithdrawEnabled: true,
			DepositEnabled:  true,
		},
		{
			Exchange:        "binance",
			Asset:           "USDT",
			NetworkCode:     "ETH",
			WithdrawFee:     nullDec(t, "3.5"),
			MinWithdraw:     nullDec(t, "20"),
			WithdrawEnabled: true,
			DepositEnabled:  true,
		},
		{
			Exchange:        "binance",
			Asset:           "BTC",
			NetworkCode:     "BTC",
			WithdrawFee:     nullDec(t, "0.0002"),
			MinWithdraw:     nullDec(t, "0.001"),
			WithdrawEnabled: true,
			DepositEnabled:  true,
		},
	}
	if err := store.UpsertAssetNetworks(ctx, rows); err != nil {
		t.Fatalf("upsert assets: %v", err)
	}

	all, err := store.ListAssetNetworks(ctx, "binance", "")
	if err != nil {
		t.Fatalf("list assets: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 asset rows, got %d", len(all))
	}

	usdt, err := store.ListAssetNetworks(ctx, "binance", "USDT")
	if err != nil {
		t.Fatalf("list USDT assets: %v", err)
	}
	if len(usdt) != 2 {
		t.Fatalf("expected 2 USDT rows, got %d", len(usdt))
	}
	// ORDER BY asset, network_code puts ETH before TRX.
	if usdt[0].NetworkCode != "ETH" || usdt[1].NetworkCode != "TRX" {
		t.Fatalf("unexpected ordering: %s, %s", usdt[0].NetworkCode, usdt[1].NetworkCode)
	}
	if !usdt[1].WithdrawFee.Decimal.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected TRX fee 1, got %s", usdt[1].WithdrawFee.Decimal)
	}
}

func TestTransferStoreValidation(t *testing.T) {
	if setupErr != nil {
		t.Skipf("postgres unavailable: %v", setupErr)
	}
	ctx := context.Background()
	store := pgstore.NewTransferStore(testPool)

	err := store.UpsertNetworks(ctx, []transfers.NetworkStatus{{Exchange: "", NetworkCode: "TRX"}})
	if err == nil {
		t.Fatal("expected error for missing exchange")
	}
	err = store.UpsertAssetNetworks(ctx, []transfers.AssetNetwork{{Exchange: "binance", Asset: "", NetworkCode: "TRX"}})
	if err == nil {
		t.Fatal("expected error for missing asset")
	}
}

func TestTransferStoreNilPool(t *testing.T) {
	ctx := context.Background()
	store := pgstore.NewTransferStore(nil)

	if err := store.UpsertNetworks(ctx, []transfers.NetworkStatus{{Exchange: "binance", NetworkCode: "TRX"}}); err == nil {
		t.Fatal("expected nil pool error")
	}
	if _, err := store.ListNetworks(ctx, "binance"); err == nil {
		t.Fatal("expected nil pool error")
	}
	if _, err := store.ListAssetNetworks(ctx, "binance", ""); err == nil {
		t.Fatal("expected nil pool error")
	}
}
