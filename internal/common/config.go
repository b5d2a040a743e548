package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Storage backends
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Scraper ScraperConfig `toml:"scraper"`
	Loader  LoaderConfig  `toml:"loader"`
	Refresh RefreshConfig `toml:"refresh"`
	Quotes  QuotesConfig  `toml:"quotes"`
	Logging LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// StorageConfig selects the backend. The SQLite deployment keeps the
// shortlist in Badger, the Postgres deployment keeps it in a table.
type StorageConfig struct {
	Backend  string         `toml:"backend"` // "sqlite" or "postgres"
	SQLite   SQLiteConfig   `toml:"sqlite"`
	Postgres PostgresConfig `toml:"postgres"`
	Badger   BadgerConfig   `toml:"badger"`
}

// SQLiteConfig represents SQLite-specific configuration
type SQLiteConfig struct {
	Path          string `toml:"path"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
	CacheSizeMB   int    `toml:"cache_size_mb"`
	WALMode       bool   `toml:"wal_mode"`
}

type PostgresConfig struct {
	URL string `toml:"url"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path string `toml:"path"` // Shortlist database directory
}

// ScraperConfig controls quote page fetching
type ScraperConfig struct {
	BaseURL           string  `toml:"base_url"`
	UserAgent         string  `toml:"user_agent"`
	Delay             string  `toml:"delay"`               // pause between requests, e.g. "2.5s"
	RequestTimeout    string  `toml:"request_timeout"`     // per request, e.g. "10s"
	RequestsPerSecond float64 `toml:"requests_per_second"` // optional hard cap, 0 = off
	Proxy             string  `toml:"proxy"`               // SOCKS5 "host:port[:user:password]"
}

// LoaderConfig controls loading artifacts into storage
type LoaderConfig struct {
	CommitEvery  int    `toml:"commit_every"`
	CSVPath      string `toml:"csv_path"`      // ticker list and industry map
	ArtifactPath string `toml:"artifact_path"` // scrape output and load input
	SkippedPath  string `toml:"skipped_path"`
}

// RefreshConfig controls the scheduled refresh
type RefreshConfig struct {
	Enabled      bool   `toml:"enabled"`
	Schedule     string `toml:"schedule"` // standard 5-field cron
	CommitEvery  int    `toml:"commit_every"`
	ArtifactPath string `toml:"artifact_path"`
	SkippedPath  string `toml:"skipped_path"`
}

type QuotesConfig struct {
	Enabled bool `toml:"enabled"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 5000,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
			SQLite: SQLiteConfig{
				Path:          "stocks.db",
				BusyTimeoutMS: 5000,
				CacheSizeMB:   64,
				WALMode:       true,
			},
			Badger: BadgerConfig{
				Path: "./data/shortlist",
			},
		},
		Scraper: ScraperConfig{
			BaseURL:        "https://finviz.com/quote.ashx",
			UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
			Delay:          "2.5s",
			RequestTimeout: "10s",
		},
		Loader: LoaderConfig{
			CommitEvery:  500,
			CSVPath:      "StockSource.csv",
			ArtifactPath: "stock_data.json",
			SkippedPath:  "affiliates_skipped.txt",
		},
		Refresh: RefreshConfig{
			Enabled:      false,
			Schedule:     "0 6 * * 1", // Monday 06:00
			CommitEvery:  100,
			ArtifactPath: "stock_data_latest.json",
			SkippedPath:  "affiliates_skipped.txt",
		},
		Quotes: QuotesConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> files (in order) -> env.
// CLI flags are applied afterwards with ApplyFlagOverrides.
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

		// Later files override earlier ones
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies SCREENER_* variables and the plain variables
// used by earlier deployments (DB_PATH, DATABASE_URL, SCRAPE_DELAY, CSV_PATH, SHORTLIST_PATH)
func applyEnvOverrides(config *Config) {
	// Server
	if port := os.Getenv("SCREENER_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	} else if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SCREENER_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage
	if path := os.Getenv("DB_PATH"); path != "" {
		config.Storage.SQLite.Path = path
	}
	if path := os.Getenv("SCREENER_SQLITE_PATH"); path != "" {
		config.Storage.SQLite.Path = path
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		config.Storage.Postgres.URL = url
		config.Storage.Backend = BackendPostgres
	}
	if url := os.Getenv("SCREENER_POSTGRES_URL"); url != "" {
		config.Storage.Postgres.URL = url
		config.Storage.Backend = BackendPostgres
	}
	if backend := os.Getenv("SCREENER_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = strings.ToLower(backend)
	}
	if path := os.Getenv("SHORTLIST_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if path := os.Getenv("SCREENER_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	// Scraper
	if delay := os.Getenv("SCRAPE_DELAY"); delay != "" {
		// plain seconds, e.g. "2.5"
		if secs, err := strconv.ParseFloat(delay, 64); err == nil {
			config.Scraper.Delay = time.Duration(secs * float64(time.Second)).String()
		}
	}
	if delay := os.Getenv("SCREENER_SCRAPER_DELAY"); delay != "" {
		config.Scraper.Delay = delay
	}
	if userAgent := os.Getenv("SCREENER_SCRAPER_USER_AGENT"); userAgent != "" {
		config.Scraper.UserAgent = userAgent
	}
	if proxy := os.Getenv("SCREENER_SCRAPER_PROXY"); proxy != "" {
		config.Scraper.Proxy = proxy
	}

	// Loader
	if csvPath := os.Getenv("CSV_PATH"); csvPath != "" {
		config.Loader.CSVPath = csvPath
	}
	if csvPath := os.Getenv("SCREENER_CSV_PATH"); csvPath != "" {
		config.Loader.CSVPath = csvPath
	}

	// Refresh
	if enabled := os.Getenv("SCREENER_REFRESH_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Refresh.Enabled = b
		}
	}
	if schedule := os.Getenv("SCREENER_REFRESH_SCHEDULE"); schedule != "" {
		config.Refresh.Schedule = schedule
	}

	// Quotes
	if enabled := os.Getenv("SCREENER_QUOTES_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Quotes.Enabled = b
		}
	}

	// Logging
	if level := os.Getenv("SCREENER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("SCREENER_LOG_OUTPUT"); output != "" {
		var outputs []string
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flags (highest priority)
func ApplyFlagOverrides(config *Config, port int, host, logLevel string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite:
	case BackendPostgres:
		if c.Storage.Postgres.URL == "" {
			return fmt.Errorf("storage backend postgres requires storage.postgres.url or DATABASE_URL")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}

	if _, err := c.Scraper.DelayDuration(); err != nil {
		return err
	}
	if _, err := c.Scraper.TimeoutDuration(); err != nil {
		return err
	}

	if c.Refresh.Enabled {
		if err := ValidateSchedule(c.Refresh.Schedule); err != nil {
			return fmt.Errorf("invalid refresh schedule: %w", err)
		}
	}

	return nil
}

// DelayDuration parses the pause between requests
func (s ScraperConfig) DelayDuration() (time.Duration, error) {
	if s.Delay == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Delay)
	if err != nil {
		return 0, fmt.Errorf("invalid scraper delay %q: %w", s.Delay, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("scraper delay must not be negative: %s", s.Delay)
	}
	return d, nil
}

// TimeoutDuration parses the per-request timeout
func (s ScraperConfig) TimeoutDuration() (time.Duration, error) {
	if s.RequestTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid scraper request_timeout %q: %w", s.RequestTimeout, err)
	}
	return d, nil
}

// ValidateSchedule validates a standard 5-field cron expression and rejects
// schedules that fire more than once per hour
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) != 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	if parts[0] == "*" || strings.HasPrefix(parts[0], "*/") {
		return fmt.Errorf("schedule must run at most once per hour, got minute field %q", parts[0])
	}
	if parts[1] == "*" {
		return fmt.Errorf("schedule must run at most once per hour, got hour field %q", parts[1])
	}

	return nil
}
