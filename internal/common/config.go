package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/newsquant/internal/backtest"
	"github.com/ternarybob/newsquant/internal/sentiment"
	"github.com/ternarybob/newsquant/internal/signals"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment" yaml:"environment"` // "development" or "production"
	Market      MarketConfig    `toml:"market" yaml:"market"`
	Server      ServerConfig    `toml:"server" yaml:"server"`
	Storage     StorageConfig   `toml:"storage" yaml:"storage"`
	Logging     LoggingConfig   `toml:"logging" yaml:"logging"`
	Prices      PricesConfig    `toml:"prices" yaml:"prices"`
	Scoring     ScoringConfig   `toml:"scoring" yaml:"scoring"`
	Signals     SignalsConfig   `toml:"signals" yaml:"signals"`
	Backtest    backtest.Config `toml:"backtest" yaml:"backtest"`
	Schedule    ScheduleConfig  `toml:"schedule" yaml:"schedule"`
}

// MarketConfig pins the calendar used for day bucketing
type MarketConfig struct {
	Timezone string `toml:"timezone" yaml:"timezone" validate:"required"` // IANA name (default: "Asia/Seoul")
}

// Location resolves the market timezone
func (m MarketConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load market timezone %s: %w", m.Timezone, err)
	}
	return loc, nil
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port int    `toml:"port" yaml:"port" validate:"gte=1,lte=65535"`
	Host string `toml:"host" yaml:"host"`
}

// StorageConfig contains storage configuration
type StorageConfig struct {
	Articles SQLiteConfig `toml:"articles" yaml:"articles"` // news table written by the ingestion pipeline
	Badger   BadgerConfig `toml:"badger" yaml:"badger"`     // price snapshots
}

// SQLiteConfig contains SQLite connection settings
type SQLiteConfig struct {
	Path          string `toml:"path" yaml:"path" validate:"required"`
	CacheSizeMB   int    `toml:"cache_size_mb" yaml:"cache_size_mb" validate:"gte=0"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms" yaml:"busy_timeout_ms" validate:"gte=0"`
	WALMode       bool   `toml:"wal_mode" yaml:"wal_mode"`
}

// BadgerConfig contains BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" yaml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup" yaml:"reset_on_startup"` // Delete database on startup (default: false)
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string   `toml:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Output []string `toml:"output" yaml:"output"` // "stdout", "file"
}

// PricesConfig selects the price provider and tunes the fetch pool.
// Durations are strings so files stay readable ("500ms", "10s").
type PricesConfig struct {
	Provider          string  `toml:"provider" yaml:"provider" validate:"oneof=naver eodhd"`
	Workers           int     `toml:"workers" yaml:"workers" validate:"gte=1,lte=64"`
	RequestsPerSecond float64 `toml:"requests_per_second" yaml:"requests_per_second" validate:"gt=0"`
	Burst             int     `toml:"burst" yaml:"burst" validate:"gte=1"`
	MaxRetries        int     `toml:"max_retries" yaml:"max_retries" validate:"gte=0"`
	BackoffMin        string  `toml:"backoff_min" yaml:"backoff_min"`
	BackoffMax        string  `toml:"backoff_max" yaml:"backoff_max"`
	BackoffFactor     float64 `toml:"backoff_factor" yaml:"backoff_factor" validate:"gte=1"`
	MaxStocks         int     `toml:"max_stocks" yaml:"max_stocks" validate:"gte=0"`
	LookbackDays      int     `toml:"lookback_days" yaml:"lookback_days" validate:"gte=1"` // calendar days of bars loaded for daily signals
	Snapshot          bool    `toml:"snapshot" yaml:"snapshot"`                            // persist fetched bars in badger
	SnapshotRetention int     `toml:"snapshot_retention_days" yaml:"snapshot_retention_days" validate:"gte=0"`

	EODHD EODHDConfig `toml:"eodhd" yaml:"eodhd"`
	Naver NaverConfig `toml:"naver" yaml:"naver"`
}

// Backoff parses the retry backoff bounds
func (p PricesConfig) Backoff() (time.Duration, time.Duration, error) {
	minDelay, err := time.ParseDuration(p.BackoffMin)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid prices.backoff_min %q: %w", p.BackoffMin, err)
	}
	maxDelay, err := time.ParseDuration(p.BackoffMax)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid prices.backoff_max %q: %w", p.BackoffMax, err)
	}
	if maxDelay < minDelay {
		return 0, 0, fmt.Errorf("prices.backoff_max %s is below backoff_min %s", maxDelay, minDelay)
	}
	return minDelay, maxDelay, nil
}

// EODHDConfig contains EODHD API configuration
type EODHDConfig struct {
	APIKey   string `toml:"api_key" yaml:"api_key"`
	BaseURL  string `toml:"base_url" yaml:"base_url"`
	Exchange string `toml:"exchange" yaml:"exchange"` // "KO" (KOSPI) or "KQ" (KOSDAQ)
	Adjusted bool   `toml:"adjusted" yaml:"adjusted"` // scale bars by adjusted_close
}

// NaverConfig contains Naver Finance scraping configuration
type NaverConfig struct {
	BaseURL  string `toml:"base_url" yaml:"base_url"`
	MaxPages int    `toml:"max_pages" yaml:"max_pages" validate:"gte=1"`
}

// ScoringConfig controls article-level rescoring
type ScoringConfig struct {
	LexiconFile    string                    `toml:"lexicon_file" yaml:"lexicon_file"`
	WeightsPreset  string                    `toml:"weights_preset" yaml:"weights_preset" validate:"omitempty,oneof=default alternate"`
	RescoreMissing bool                      `toml:"rescore_missing" yaml:"rescore_missing"` // score articles stored without sentiment or overall
	Composite      sentiment.CompositeConfig `toml:"composite" yaml:"composite"`
}

// CompositeConfig applies the weights preset, if any
func (s ScoringConfig) CompositeConfig() (sentiment.CompositeConfig, error) {
	cfg := s.Composite
	if s.WeightsPreset != "" {
		weights, err := sentiment.WeightsPreset(s.WeightsPreset)
		if err != nil {
			return sentiment.CompositeConfig{}, err
		}
		cfg.Weights = weights
	}
	return cfg, nil
}

// SignalsConfig wraps the engine configuration with named presets
type SignalsConfig struct {
	ThresholdPreset string               `toml:"threshold_preset" yaml:"threshold_preset" validate:"omitempty,oneof=optimized baseline"`
	CompositePreset string               `toml:"composite_preset" yaml:"composite_preset" validate:"omitempty,oneof=default simple"`
	CandidateLimit  int                  `toml:"candidate_limit" yaml:"candidate_limit" validate:"gte=1"`
	Engine          signals.EngineConfig `toml:"engine" yaml:"engine"`
}

// EngineConfig applies the threshold and composite presets, if any
func (s SignalsConfig) EngineConfig() (signals.EngineConfig, error) {
	cfg := s.Engine
	if s.ThresholdPreset != "" {
		thresholds, err := signals.ThresholdPreset(s.ThresholdPreset)
		if err != nil {
			return signals.EngineConfig{}, err
		}
		cfg.Thresholds = thresholds
	}
	if s.CompositePreset != "" {
		weights, err := signals.CompositePreset(s.CompositePreset)
		if err != nil {
			return signals.EngineConfig{}, err
		}
		cfg.Aggregator.Weights = weights
	}
	return cfg, nil
}

// ScheduleConfig drives the watch command
type ScheduleConfig struct {
	Cron   string `toml:"cron" yaml:"cron"`     // standard 5-field expression, e.g. "30 16 * * 1-5"
	Report string `toml:"report" yaml:"report"` // directory for rendered daily reports (empty = log only)
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Market: MarketConfig{
			Timezone: "Asia/Seoul",
		},
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Articles: SQLiteConfig{
				Path:          "./data/news.db",
				CacheSizeMB:   64,
				BusyTimeoutMS: 5000,
				WALMode:       true,
			},
			Badger: BadgerConfig{
				Path: "./data/prices",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Prices: PricesConfig{
			Provider:          "naver",
			Workers:           4,
			RequestsPerSecond: 5,
			Burst:             1,
			MaxRetries:        3,
			BackoffMin:        "500ms",
			BackoffMax:        "10s",
			BackoffFactor:     2,
			MaxStocks:         300,
			LookbackDays:      30,
			Snapshot:          true,
			SnapshotRetention: 30,
			EODHD: EODHDConfig{
				Exchange: "KO",
			},
			Naver: NaverConfig{
				MaxPages: 10,
			},
		},
		Scoring: ScoringConfig{
			Composite: sentiment.DefaultCompositeConfig(),
		},
		Signals: SignalsConfig{
			CandidateLimit: 10,
			Engine:         signals.DefaultEngineConfig(),
		},
		Backtest: backtest.DefaultConfig(),
		Schedule: ScheduleConfig{
			Cron: "30 16 * * 1-5",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env.
// Later files override earlier files. The format is chosen by extension (.toml, .yaml, .yml).
// CLI flags are applied afterwards by the caller via ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := unmarshalConfig(path, data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

func unmarshalConfig(path string, data []byte, config *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	case ".toml", "":
		return toml.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("NEWSQUANT_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if tz := os.Getenv("NEWSQUANT_MARKET_TIMEZONE"); tz != "" {
		config.Market.Timezone = tz
	}

	// Server configuration
	if port := os.Getenv("NEWSQUANT_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("NEWSQUANT_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if path := os.Getenv("NEWSQUANT_ARTICLES_PATH"); path != "" {
		config.Storage.Articles.Path = path
	}
	if badgerPath := os.Getenv("NEWSQUANT_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("NEWSQUANT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("NEWSQUANT_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Prices configuration
	if provider := os.Getenv("NEWSQUANT_PRICE_PROVIDER"); provider != "" {
		config.Prices.Provider = provider
	}
	if workers := os.Getenv("NEWSQUANT_PRICE_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			config.Prices.Workers = w
		}
	}
	if key := ResolveAPIKey("eodhd_api_key", ""); key != "" {
		config.Prices.EODHD.APIKey = key
	}

	if schedule := os.Getenv("NEWSQUANT_SCHEDULE"); schedule != "" {
		config.Schedule.Cron = schedule
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves an API key by name from the environment, falling
// back to the configured value. An empty result means the key is unset.
func ResolveAPIKey(name string, configFallback string) string {
	keyToEnvMapping := map[string][]string{
		"eodhd_api_key": {"NEWSQUANT_EODHD_API_KEY", "EODHD_API_KEY"},
	}

	for _, envVarName := range keyToEnvMapping[name] {
		if envValue := os.Getenv(envVarName); envValue != "" {
			return envValue
		}
	}
	return configFallback
}

// Validate checks struct tags and the cross-field rules tags cannot express
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := c.Market.Location(); err != nil {
		return err
	}
	if _, _, err := c.Prices.Backoff(); err != nil {
		return err
	}
	if c.Prices.Provider == "eodhd" && c.Prices.EODHD.APIKey == "" {
		return fmt.Errorf("prices.eodhd.api_key is required when provider is eodhd")
	}
	if _, err := c.Scoring.CompositeConfig(); err != nil {
		return err
	}
	engine, err := c.Signals.EngineConfig()
	if err != nil {
		return err
	}
	if err := engine.Thresholds.Validate(); err != nil {
		return err
	}
	if err := c.Backtest.Validate(); err != nil {
		return err
	}
	if c.Schedule.Cron != "" {
		if err := ValidateSchedule(c.Schedule.Cron); err != nil {
			return fmt.Errorf("invalid schedule.cron: %w", err)
		}
	}
	return nil
}

// ValidateSchedule validates a cron schedule expression and ensures minimum 5-minute interval
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}

	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
