// Package config manages scanner configuration loading and validation.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/coachpo/spreadscan/internal/schema"
)

// Environment identifies the runtime environment where the scanner operates.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// ThresholdsConfig carries the numeric gates of the pipeline. Decimal-valued
// fields are YAML strings parsed once during normalisation.
type ThresholdsConfig struct {
	Min24hVolumeUSDT         string            `yaml:"min24hVolumeUsdt"`
	MinProfitPct             string            `yaml:"minProfitPct"`
	TargetNetProfitPct       string            `yaml:"targetNetProfitPct"`
	MinExecutionNotionalUSDT string            `yaml:"minExecutionNotionalUsdt"`
	SafetyFeeBufferPct       string            `yaml:"safetyFeeBufferPct"`
	MaxBookDepthLevels       int               `yaml:"maxBookDepthLevels"`
	OrderbookDepth           int               `yaml:"orderbookDepth"`
	TakerFees                map[string]string `yaml:"takerFees"`
	DefaultTakerFeePct       string            `yaml:"defaultTakerFeePct"`

	min24hVolume decimal.Decimal
	minProfit    decimal.Decimal
	targetNet    decimal.Decimal
	minNotional  decimal.Decimal
	safetyBuffer decimal.Decimal
	defaultFee   decimal.Decimal
	takerFees    map[schema.VenueID]decimal.Decimal
}

func (c *ThresholdsConfig) applyDefaults() {
	if strings.TrimSpace(c.Min24hVolumeUSDT) == "" {
		c.Min24hVolumeUSDT = "300000"
	}
	if strings.TrimSpace(c.MinProfitPct) == "" {
		c.MinProfitPct = "0.60"
	}
	if strings.TrimSpace(c.TargetNetProfitPct) == "" {
		c.TargetNetProfitPct = "0.20"
	}
	if strings.TrimSpace(c.MinExecutionNotionalUSDT) == "" {
		c.MinExecutionNotionalUSDT = "500"
	}
	if strings.TrimSpace(c.SafetyFeeBufferPct) == "" {
		c.SafetyFeeBufferPct = "0.30"
	}
	if c.MaxBookDepthLevels <= 0 {
		c.MaxBookDepthLevels = 10
	}
	if c.OrderbookDepth <= 0 {
		c.OrderbookDepth = 50
	}
	if strings.TrimSpace(c.DefaultTakerFeePct) == "" {
		c.DefaultTakerFeePct = "0.10"
	}
}

func (c *ThresholdsConfig) parse() error {
	parseField := func(name, raw string) (decimal.Decimal, error) {
		value, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("thresholds: invalid %s %q", name, raw)
		}
		return value, nil
	}

	var err error
	if c.min24hVolume, err = parseField("min24hVolumeUsdt", c.Min24hVolumeUSDT); err != nil {
		return err
	}
	if c.minProfit, err = parseField("minProfitPct", c.MinProfitPct); err != nil {
		return err
	}
	if c.targetNet, err = parseField("targetNetProfitPct", c.TargetNetProfitPct); err != nil {
		return err
	}
	if c.minNotional, err = parseField("minExecutionNotionalUsdt", c.MinExecutionNotionalUSDT); err != nil {
		return err
	}
	if c.safetyBuffer, err = parseField("safetyFeeBufferPct", c.SafetyFeeBufferPct); err != nil {
		return err
	}
	if c.defaultFee, err = parseField("defaultTakerFeePct", c.DefaultTakerFeePct); err != nil {
		return err
	}

	c.takerFees = make(map[schema.VenueID]decimal.Decimal, len(c.TakerFees))
	for name, raw := range c.TakerFees {
		venue := schema.VenueID(strings.ToLower(strings.TrimSpace(name)))
		if !venue.Valid() {
			return fmt.Errorf("thresholds: unknown venue %q in takerFees", name)
		}
		fee, err := parseField("takerFees."+name, raw)
		if err != nil {
			return err
		}
		c.takerFees[venue] = fee
	}
	return nil
}

func (c ThresholdsConfig) validate() error {
	if c.min24hVolume.IsNegative() {
		return fmt.Errorf("min24hVolumeUsdt must be >=0")
	}
	if !c.minNotional.IsPositive() {
		return fmt.Errorf("minExecutionNotionalUsdt must be >0")
	}
	if c.safetyBuffer.IsNegative() {
		return fmt.Errorf("safetyFeeBufferPct must be >=0")
	}
	if c.defaultFee.IsNegative() {
		return fmt.Errorf("defaultTakerFeePct must be >=0")
	}
	if c.MaxBookDepthLevels <= 0 {
		return fmt.Errorf("maxBookDepthLevels must be >0")
	}
	if c.OrderbookDepth < c.MaxBookDepthLevels {
		return fmt.Errorf("orderbookDepth must be >= maxBookDepthLevels")
	}
	for venue, fee := range c.takerFees {
		if fee.IsNegative() {
			return fmt.Errorf("takerFees.%s must be >=0", venue)
		}
	}
	return nil
}

// Min24hVolume returns the liquidity admission floor in USDT.
func (c ThresholdsConfig) Min24hVolume() decimal.Decimal { return c.min24hVolume }

// MinProfit returns the Stage-1 gross-spread admission threshold in percent.
func (c ThresholdsConfig) MinProfit() decimal.Decimal { return c.minProfit }

// TargetNetProfit returns the Stage-2 net-spread confirmation threshold in percent.
func (c ThresholdsConfig) TargetNetProfit() decimal.Decimal { return c.targetNet }

// MinExecutionNotional returns the notional the VWAP walk must fill, in USDT.
func (c ThresholdsConfig) MinExecutionNotional() decimal.Decimal { return c.minNotional }

// SafetyFeeBuffer returns the safety margin subtracted from the net spread, in percent.
func (c ThresholdsConfig) SafetyFeeBuffer() decimal.Decimal { return c.safetyBuffer }

// TakerFeeFor returns the taker fee for the venue in percent, falling back to
// the conservative default for unknown venues.
func (c ThresholdsConfig) TakerFeeFor(venue schema.VenueID) decimal.Decimal {
	if fee, ok := c.takerFees[venue]; ok {
		return fee
	}
	return c.defaultFee
}

// PipelineConfig sets worker cadences and per-cycle error handling.
type PipelineConfig struct {
	NormalizeInterval time.Duration `yaml:"normalizeInterval"`
	ScanInterval      time.Duration `yaml:"scanInterval"`
	RetryInterval     time.Duration `yaml:"retryInterval"`
}

func (c *PipelineConfig) applyDefaults() {
	if c.NormalizeInterval <= 0 {
		c.NormalizeInterval = 60 * time.Second
	}
	if c.ScanInterval <= 0 {
		c.ScanInterval = 3 * time.Second
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 2 * time.Second
	}
}

func (c PipelineConfig) validate() error {
	if c.NormalizeInterval <= 0 {
		return fmt.Errorf("normalizeInterval must be >0")
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("scanInterval must be >0")
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("retryInterval must be >0")
	}
	return nil
}

// QueuePolicy selects the behaviour of a full signal queue.
type QueuePolicy string

const (
	// QueueBlock makes Stage-1 wait for free capacity.
	QueueBlock QueuePolicy = "block"
	// QueueDropOldest evicts the oldest queued candidate, with a logged warning.
	QueueDropOldest QueuePolicy = "drop_oldest"
)

// QueueConfig sizes the Stage-1 to Stage-2 signal queue.
type QueueConfig struct {
	Capacity int         `yaml:"capacity"`
	Policy   QueuePolicy `yaml:"policy"`
}

func (c *QueueConfig) applyDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = 256
	}
	if c.Policy == "" {
		c.Policy = QueueBlock
	}
}

func (c QueueConfig) validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be >0")
	}
	switch c.Policy {
	case QueueBlock, QueueDropOldest:
	default:
		return fmt.Errorf("policy must be block or drop_oldest")
	}
	return nil
}

// VenueEndpointConfig overrides a single venue's REST base URL.
type VenueEndpointConfig struct {
	BaseURL string `yaml:"baseUrl"`
}

// VenuesConfig controls which venues participate and how they are polled.
type VenuesConfig struct {
	Enabled        []string                       `yaml:"enabled"`
	RequestTimeout time.Duration                  `yaml:"requestTimeout"`
	RateLimitRPS   float64                        `yaml:"rateLimitRps"`
	RateBurst      int                            `yaml:"rateBurst"`
	Endpoints      map[string]VenueEndpointConfig `yaml:"endpoints"`

	enabled []schema.VenueID
}

func (c *VenuesConfig) applyDefaults() {
	if len(c.Enabled) == 0 {
		for _, v := range schema.Venues() {
			c.Enabled = append(c.Enabled, string(v))
		}
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.RateLimitRPS <= 0 {
		c.RateLimitRPS = 10
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}
}

func (c *VenuesConfig) normalise() error {
	seen := make(map[schema.VenueID]struct{}, len(c.Enabled))
	c.enabled = c.enabled[:0]
	for _, name := range c.Enabled {
		venue := schema.VenueID(strings.ToLower(strings.TrimSpace(name)))
		if !venue.Valid() {
			return fmt.Errorf("venues: unknown venue %q", name)
		}
		if _, dup := seen[venue]; dup {
			continue
		}
		seen[venue] = struct{}{}
		c.enabled = append(c.enabled, venue)
	}
	for name := range c.Endpoints {
		if !schema.VenueID(strings.ToLower(strings.TrimSpace(name))).Valid() {
			return fmt.Errorf("venues: unknown venue %q in endpoints", name)
		}
	}
	return nil
}

func (c VenuesConfig) validate() error {
	if len(c.enabled) < 2 {
		return fmt.Errorf("at least two venues must be enabled")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("requestTimeout must be >0")
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("rateLimitRps must be >0")
	}
	return nil
}

// EnabledVenues returns the validated venue set in configuration order.
func (c VenuesConfig) EnabledVenues() []schema.VenueID {
	out := make([]schema.VenueID, len(c.enabled))
	copy(out, c.enabled)
	return out
}

// BaseURLFor returns the configured base-URL override for the venue, or empty.
func (c VenuesConfig) BaseURLFor(venue schema.VenueID) string {
	return strings.TrimSpace(c.Endpoints[string(venue)].BaseURL)
}

// SinksConfig locates the append-only CSV logs.
type SinksConfig struct {
	Directory     string `yaml:"directory"`
	SpreadFile    string `yaml:"spreadFile"`
	ConfirmedFile string `yaml:"confirmedFile"`
}

func (c *SinksConfig) applyDefaults() {
	if strings.TrimSpace(c.Directory) == "" {
		c.Directory = "logs"
	}
	if strings.TrimSpace(c.SpreadFile) == "" {
		c.SpreadFile = "spread_signals.csv"
	}
	if strings.TrimSpace(c.ConfirmedFile) == "" {
		c.ConfirmedFile = "confirmed_signals.csv"
	}
}

func (c *SinksConfig) normalise() {
	c.Directory = filepath.Clean(strings.TrimSpace(c.Directory))
}

// SpreadPath returns the full path of the spread-signal log.
func (c SinksConfig) SpreadPath() string {
	return filepath.Join(c.Directory, c.SpreadFile)
}

// ConfirmedPath returns the full path of the confirmed-signal log.
func (c SinksConfig) ConfirmedPath() string {
	return filepath.Join(c.Directory, c.ConfirmedFile)
}

// DatabaseConfig controls optional PostgreSQL connectivity and migrations.
// The store is enabled only when a DSN is present. Embedded migrations run
// at startup unless SkipMigrations is set.
type DatabaseConfig struct {
	DSN               string        `yaml:"dsn"`
	MaxConns          int32         `yaml:"maxConns"`
	MinConns          int32         `yaml:"minConns"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
	SkipMigrations    bool          `yaml:"skipMigrations"`
}

func (c *DatabaseConfig) applyDefaults() {
	c.DSN = strings.TrimSpace(c.DSN)
	if c.DSN == "" {
		c.DSN = dsnFromEnv()
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 8
	}
	if c.MinConns <= 0 {
		c.MinConns = 1
	}
	if c.MinConns > c.MaxConns {
		c.MinConns = c.MaxConns
	}
	if c.MaxConnLifetime <= 0 {
		c.MaxConnLifetime = 30 * time.Minute
	}
	if c.MaxConnIdleTime <= 0 {
		c.MaxConnIdleTime = 5 * time.Minute
	}
	if c.HealthCheckPeriod <= 0 {
		c.HealthCheckPeriod = 30 * time.Second
	}
}

// Enabled reports whether the optional store is configured.
func (c DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != ""
}

func (c DatabaseConfig) validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("maxConns must be >0")
	}
	if c.MinConns < 0 {
		return fmt.Errorf("minConns must be >=0")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("minConns must be <= maxConns")
	}
	return nil
}

// dsnFromEnv assembles a DSN from POSTGRES_* variables when present.
func dsnFromEnv() string {
	host := strings.TrimSpace(os.Getenv("POSTGRES_HOST"))
	if host == "" {
		return ""
	}
	user := envOr("POSTGRES_USER", "postgres")
	pass := envOr("POSTGRES_PASSWORD", "postgres")
	port := envOr("POSTGRES_PORT", "5432")
	name := envOr("POSTGRES_DB", "arb")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// LoggingConfig controls the root logger. Unknown levels fall back to info.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

func (c *LoggingConfig) applyDefaults() {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = "info"
	}
}

// TelemetryConfig configures OTLP metric export.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	ServiceName  string `yaml:"serviceName"`
	OTLPInsecure bool   `yaml:"otlpInsecure"`
}

func (c *TelemetryConfig) applyDefaults() {
	if strings.TrimSpace(c.ServiceName) == "" {
		c.ServiceName = "spreadscan"
	}
	if strings.TrimSpace(c.OTLPEndpoint) == "" {
		c.OTLPEndpoint = envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	}
}

// CollectorConfig controls the authenticated withdrawal/fee collector.
// Credentials come from the environment, never from the file.
type CollectorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

func (c *CollectorConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 6 * time.Hour
	}
}

// AppConfig is the unified scanner configuration sourced from YAML.
type AppConfig struct {
	Environment Environment      `yaml:"environment"`
	Logging     LoggingConfig    `yaml:"logging"`
	Thresholds  ThresholdsConfig `yaml:"thresholds"`
	Pipeline    PipelineConfig   `yaml:"pipeline"`
	Queue       QueueConfig      `yaml:"queue"`
	Venues      VenuesConfig     `yaml:"venues"`
	Sinks       SinksConfig      `yaml:"sinks"`
	Database    DatabaseConfig   `yaml:"database"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Collector   CollectorConfig  `yaml:"collector"`
}

// Default returns the configuration produced by an absent file.
func Default() AppConfig {
	var cfg AppConfig
	cfg.applyDefaults()
	if err := cfg.normalise(); err != nil {
		panic(err)
	}
	return cfg
}

// Load reads and validates an AppConfig from the provided YAML file. An empty
// path or a missing file yields the defaults.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig

	candidate := strings.TrimSpace(path)
	if candidate != "" {
		reader, closer, err := openConfigFile(candidate)
		if err != nil {
			if !os.IsNotExist(err) {
				return AppConfig{}, fmt.Errorf("open config: %w", err)
			}
		} else {
			defer closer()
			raw, err := io.ReadAll(reader)
			if err != nil {
				return AppConfig{}, fmt.Errorf("read config: %w", err)
			}
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return AppConfig{}, fmt.Errorf("unmarshal config: %w", err)
			}
		}
	}

	cfg.applyDefaults()
	if err := cfg.normalise(); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if strings.TrimSpace(string(c.Environment)) == "" {
		c.Environment = EnvDev
	}
	c.Logging.applyDefaults()
	c.Thresholds.applyDefaults()
	c.Pipeline.applyDefaults()
	c.Queue.applyDefaults()
	c.Venues.applyDefaults()
	c.Sinks.applyDefaults()
	c.Database.applyDefaults()
	c.Telemetry.applyDefaults()
	c.Collector.applyDefaults()
}

func (c *AppConfig) normalise() error {
	c.Environment = Environment(strings.ToLower(strings.TrimSpace(string(c.Environment))))
	if err := c.Thresholds.parse(); err != nil {
		return err
	}
	if err := c.Venues.normalise(); err != nil {
		return err
	}
	c.Sinks.normalise()
	return nil
}

// Validate performs semantic validation on the configuration.
func (c AppConfig) Validate() error {
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return fmt.Errorf("environment must be one of dev, staging, prod")
	}
	if err := c.Thresholds.validate(); err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}
	if err := c.Pipeline.validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Queue.validate(); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	if err := c.Venues.validate(); err != nil {
		return fmt.Errorf("venues: %w", err)
	}
	if err := c.Database.validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

func openConfigFile(path string) (io.Reader, func(), error) {
	candidate := filepath.Clean(path)

	file, err := os.Open(candidate) // #nosec G304 -- path is operator controlled.
	if err != nil {
		return nil, nil, err
	}
	return file, func() { _ = file.Close() }, nil
}
