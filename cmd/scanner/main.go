// Command scanner runs the cross-venue spread pipeline end to end.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/coachpo/spreadscan/config"
	"github.com/coachpo/spreadscan/internal/observability"
	"github.com/coachpo/spreadscan/internal/persistence"
	"github.com/coachpo/spreadscan/internal/persistence/migrations"
	pgstore "github.com/coachpo/spreadscan/internal/persistence/postgres"
	"github.com/coachpo/spreadscan/internal/pipeline"
	"github.com/coachpo/spreadscan/internal/signalbus"
	"github.com/coachpo/spreadscan/internal/sink"
	"github.com/coachpo/spreadscan/internal/snapshot"
	"github.com/coachpo/spreadscan/internal/supervisor"
	"github.com/coachpo/spreadscan/internal/telemetry"
	"github.com/coachpo/spreadscan/internal/transfers"
	"github.com/coachpo/spreadscan/internal/venues"
)

const (
	defaultConfigPath        = "config/scanner.yaml"
	serviceName              = "spreadscan"
	shutdownTimeout          = 30 * time.Second
	workerJoinTimeout        = 15 * time.Second
	sinkFlushTimeout         = 5 * time.Second
	storeCloseTimeout        = 5 * time.Second
	telemetryShutdownTimeout = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := parseFlags()

	// .env loads before the config so POSTGRES_* and credential variables
	// are visible to both. A missing file is the normal production case.
	envErr := godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggerConfig{
		Level:       cfg.Logging.Level,
		Pretty:      cfg.Logging.Pretty,
		Service:     serviceName,
		Environment: string(cfg.Environment),
	})
	if envErr != nil {
		logger.Debug().Msg("no .env file found, using process environment")
	}
	logger.Info().
		Str("environment", string(cfg.Environment)).
		Int("venues", len(cfg.Venues.EnabledVenues())).
		Msg("configuration loaded")

	ctx, cancel := newSignalContext()
	defer cancel()

	telemetryProvider, err := initTelemetry(ctx, logger, cfg)
	if err != nil {
		return err
	}
	metrics, err := telemetry.NewPipelineMetrics(telemetryProvider)
	if err != nil {
		return fmt.Errorf("create pipeline metrics: %w", err)
	}

	registry := venues.NewRegistry()
	if err := venues.RegisterAll(registry, cfg.Venues, cfg.Thresholds.OrderbookDepth, logger); err != nil {
		return fmt.Errorf("register venues: %w", err)
	}

	store := snapshot.NewSymbolStore()
	queue := signalbus.New(signalbus.Config{
		Capacity: cfg.Queue.Capacity,
		Policy:   signalbus.Policy(cfg.Queue.Policy),
	}, observability.Component(logger, "signalbus"))
	if err := metrics.RegisterQueueObserver(queue.Depth, queue.Stats); err != nil {
		return fmt.Errorf("register queue metrics: %w", err)
	}

	spreadLog, err := sink.NewSpreadLog(cfg.Sinks.SpreadPath())
	if err != nil {
		return fmt.Errorf("open spread log: %w", err)
	}
	confirmedLog, err := sink.NewConfirmedLog(cfg.Sinks.ConfirmedPath())
	if err != nil {
		return fmt.Errorf("open confirmed log: %w", err)
	}

	pool, transferStore, err := openTransferStore(ctx, logger, cfg.Database)
	if err != nil {
		return err
	}

	collector, err := buildCollector(logger, cfg, transferStore, metrics)
	if err != nil {
		return err
	}

	workers, err := buildPipelineWorkers(cfg, registry, store, queue, spreadLog, confirmedLog, logger, metrics)
	if err != nil {
		return err
	}
	if collector != nil {
		workers = append(workers, supervisor.Worker{Name: "transfer_collector", Run: collector.Run})
	}

	sup := supervisor.New(supervisor.Config{
		Logger:  observability.Component(logger, "supervisor"),
		Metrics: metrics,
	})

	runErr := make(chan error, 1)
	go func() { runErr <- sup.Run(ctx, workers...) }()

	logger.Info().Int("workers", len(workers)).Msg("scanner started; awaiting shutdown signal")
	select {
	case err := <-runErr:
		// Worker registration failed before any signal arrived.
		return err
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownStart := time.Now()
	supErr := performGracefulShutdown(shutdownCtx, logger, shutdownState{
		supervisor:   runErr,
		queue:        queue,
		spreadLog:    spreadLog,
		confirmedLog: confirmedLog,
		pool:         pool,
		telemetry:    telemetryProvider,
	})
	logger.Info().Dur("elapsed", time.Since(shutdownStart)).Msg("shutdown completed")
	return supErr
}

func parseFlags() string {
	cfgPath := flag.String("config", "", fmt.Sprintf("Path to scanner configuration file (default: %s)", defaultConfigPath))
	flag.Parse()
	return resolveConfigPath(*cfgPath)
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// initTelemetry builds the OTLP metrics provider from environment defaults
// overlaid with file configuration.
func initTelemetry(ctx context.Context, logger zerolog.Logger, cfg config.AppConfig) (*telemetry.Provider, error) {
	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.Enabled = cfg.Telemetry.Enabled
	if cfg.Telemetry.OTLPEndpoint != "" {
		telemetryCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	}
	if cfg.Telemetry.ServiceName != "" {
		telemetryCfg.ServiceName = cfg.Telemetry.ServiceName
	}
	telemetryCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	telemetryCfg.Environment = string(cfg.Environment)

	provider, err := telemetry.NewProvider(ctx, telemetryCfg)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry provider: %w", err)
	}
	if telemetryCfg.Enabled {
		logger.Info().
			Str("endpoint", telemetryCfg.OTLPEndpoint).
			Str("service", telemetryCfg.ServiceName).
			Msg("telemetry initialized")
	} else {
		logger.Info().Msg("telemetry disabled")
	}
	return provider, nil
}

// openTransferStore connects the optional Postgres-backed transfer store.
// Without a configured DSN the scanner runs pipeline-only.
func openTransferStore(ctx context.Context, logger zerolog.Logger, cfg config.DatabaseConfig) (*pgxpool.Pool, *pgstore.TransferStore, error) {
	if !cfg.Enabled() {
		logger.Info().Msg("no database configured; transfer store disabled")
		return nil, nil, nil
	}
	if !cfg.SkipMigrations {
		migrationLog := log.New(observability.Component(logger, "migrations"), "", 0)
		if err := migrations.ApplyEmbedded(ctx, cfg.DSN, migrationLog); err != nil {
			return nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
	}
	pool, err := persistence.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	pgstore.ObservePoolMetrics(pool, "transfers")
	logger.Info().Int32("max_conns", cfg.MaxConns).Msg("transfer store connected")
	return pool, pgstore.NewTransferStore(pool), nil
}

// buildCollector assembles the withdrawal-metadata collector when it is
// enabled, a store exists, and API credentials are present. The pipeline does
// not depend on it, so every missing precondition downgrades to an info log.
func buildCollector(logger zerolog.Logger, cfg config.AppConfig, store *pgstore.TransferStore, metrics *telemetry.PipelineMetrics) (*transfers.Collector, error) {
	if !cfg.Collector.Enabled {
		return nil, nil
	}
	if store == nil {
		logger.Info().Msg("transfer collector disabled: no database configured")
		return nil, nil
	}
	creds, ok := transfers.CredentialsFromEnv()
	if !ok {
		logger.Info().Msg("transfer collector disabled: BINANCE_API_KEY or BINANCE_API_SECRET not set")
		return nil, nil
	}
	client, err := transfers.NewClient(creds)
	if err != nil {
		return nil, fmt.Errorf("build transfer client: %w", err)
	}
	collector, err := transfers.NewCollector(transfers.CollectorConfig{
		Source:   client,
		Store:    store,
		Fees:     cfg.Thresholds,
		Interval: cfg.Collector.Interval,
		Logger:   observability.Component(logger, "collector"),
		Metrics:  metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build transfer collector: %w", err)
	}
	return collector, nil
}

func buildPipelineWorkers(cfg config.AppConfig, registry *venues.Registry, store *snapshot.SymbolStore, queue *signalbus.Queue, spreadLog *sink.SpreadLog, confirmedLog *sink.ConfirmedLog, logger zerolog.Logger, metrics *telemetry.PipelineMetrics) ([]supervisor.Worker, error) {
	normalizer, err := pipeline.NewNormalizer(pipeline.NormalizerConfig{
		Registry:  registry,
		Store:     store,
		MinVolume: cfg.Thresholds.Min24hVolume(),
		Interval:  cfg.Pipeline.NormalizeInterval,
		RetryWait: cfg.Pipeline.RetryInterval,
		Logger:    observability.Component(logger, "normalizer"),
		Metrics:   metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build normalizer: %w", err)
	}
	scanner, err := pipeline.NewScanner(pipeline.ScannerConfig{
		Registry:  registry,
		Store:     store,
		Queue:     queue,
		SpreadLog: spreadLog,
		MinProfit: cfg.Thresholds.MinProfit(),
		Interval:  cfg.Pipeline.ScanInterval,
		RetryWait: cfg.Pipeline.RetryInterval,
		Logger:    observability.Component(logger, "scanner"),
		Metrics:   metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build scanner: %w", err)
	}
	checker, err := pipeline.NewDepthChecker(pipeline.DepthCheckerConfig{
		Registry:     registry,
		Queue:        queue,
		ConfirmedLog: confirmedLog,
		Fees:         cfg.Thresholds,
		MinNotional:  cfg.Thresholds.MinExecutionNotional(),
		MaxLevels:    cfg.Thresholds.MaxBookDepthLevels,
		SafetyBuffer: cfg.Thresholds.SafetyFeeBuffer(),
		TargetNet:    cfg.Thresholds.TargetNetProfit(),
		Logger:       observability.Component(logger, "depth_checker"),
		Metrics:      metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build depth checker: %w", err)
	}
	return []supervisor.Worker{
		{Name: "normalizer", Run: normalizer.Run},
		{Name: "scanner", Run: scanner.Run},
		{Name: "depth_checker", Run: checker.Run},
	}, nil
}

// shutdownState carries everything torn down after the run context ends.
type shutdownState struct {
	supervisor   <-chan error
	queue        *signalbus.Queue
	spreadLog    *sink.SpreadLog
	confirmedLog *sink.ConfirmedLog
	pool         *pgxpool.Pool
	telemetry    *telemetry.Provider
}

// performGracefulShutdown tears the runtime down in dependency order: the
// workers first, then the queue and sinks they write, then the store and
// telemetry. It returns the supervisor's exit error.
func performGracefulShutdown(ctx context.Context, logger zerolog.Logger, state shutdownState) error {
	step := func(name string, timeout time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := fn(stepCtx); err != nil {
			logger.Error().Err(err).Str("step", name).Msg("shutdown step failed")
			return
		}
		logger.Info().Str("step", name).Msg("shutdown step completed")
	}

	var supErr error
	step("join workers", workerJoinTimeout, func(stepCtx context.Context) error {
		select {
		case supErr = <-state.supervisor:
			return supErr
		case <-stepCtx.Done():
			return stepCtx.Err()
		}
	})

	logger.Info().Msg("shutdown: closing signal queue")
	state.queue.Close()

	step("flush signal sinks", sinkFlushTimeout, func(stepCtx context.Context) error {
		done := make(chan struct{})
		var closeErr error
		go func() {
			closeErr = errors.Join(state.spreadLog.Close(), state.confirmedLog.Close())
			close(done)
		}()
		select {
		case <-done:
			return closeErr
		case <-stepCtx.Done():
			return stepCtx.Err()
		}
	})

	if state.pool != nil {
		step("close transfer store", storeCloseTimeout, func(stepCtx context.Context) error {
			done := make(chan struct{})
			go func() {
				state.pool.Close()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-stepCtx.Done():
				return stepCtx.Err()
			}
		})
	}

	step("shut down telemetry", telemetryShutdownTimeout, func(stepCtx context.Context) error {
		return state.telemetry.Shutdown(stepCtx)
	})

	return supErr
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return filepath.Clean(defaultConfigPath)
}
