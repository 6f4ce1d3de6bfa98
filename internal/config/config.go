package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for clearancesync.
type Config struct {
	Target   TargetConfig   `mapstructure:"target"   yaml:"target"`
	Browser  BrowserConfig  `mapstructure:"browser"  yaml:"browser"`
	Scroll   ScrollConfig   `mapstructure:"scroll"   yaml:"scroll"`
	Extract  ExtractConfig  `mapstructure:"extract"  yaml:"extract"`
	Retry    RetryConfig    `mapstructure:"retry"    yaml:"retry"`
	Storage  StorageConfig  `mapstructure:"storage"  yaml:"storage"`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
	Events   EventsConfig   `mapstructure:"events"   yaml:"events"`
	Snapshot SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

// TargetConfig names the listing page and how product cells are matched.
type TargetConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
	// Origin is prefixed to root-relative links. Derived from URL when empty.
	Origin          string `mapstructure:"origin"           yaml:"origin"`
	ProductSelector string `mapstructure:"product_selector" yaml:"product_selector"`
}

// BrowserConfig controls the headless browser.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless"           yaml:"headless"`
	BinPath           string        `mapstructure:"bin_path"           yaml:"bin_path"`
	UserAgent         string        `mapstructure:"user_agent"         yaml:"user_agent"`
	ViewportWidth     int           `mapstructure:"viewport_width"     yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height"    yaml:"viewport_height"`
	Stealth           bool          `mapstructure:"stealth"            yaml:"stealth"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	IdleWindow        time.Duration `mapstructure:"idle_window"        yaml:"idle_window"`
	ContentTimeout    time.Duration `mapstructure:"content_timeout"    yaml:"content_timeout"`
}

// ScrollConfig controls the scroll-convergence loop.
type ScrollConfig struct {
	MaxIterations int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	SettleDelay   time.Duration `mapstructure:"settle_delay"   yaml:"settle_delay"`
	StableRounds  int           `mapstructure:"stable_rounds"  yaml:"stable_rounds"`
	ClickMore     bool          `mapstructure:"click_more"     yaml:"click_more"` // click "show more" controls
}

// ExtractConfig optionally overrides the per-field selector fallbacks.
type ExtractConfig struct {
	Fields map[string][]ParseRule `mapstructure:"fields" yaml:"fields"`
}

// Extraction field names accepted under extract.fields.
const (
	FieldLink     = "link"
	FieldName     = "name"
	FieldImage    = "image"
	FieldPrice    = "price"
	FieldContract = "contract"
	FieldFlag     = "flag"
)

// TransformSlugTitle title-cases a URL slug.
const TransformSlugTitle = "slug_title"

// ParseRule defines a single extraction rule.
type ParseRule struct {
	Selector  string `mapstructure:"selector"  yaml:"selector"`
	Type      string `mapstructure:"type"      yaml:"type"` // css, xpath
	Attribute string `mapstructure:"attribute" yaml:"attribute"`
	Transform string `mapstructure:"transform" yaml:"transform,omitempty"` // slug_title
	Format    string `mapstructure:"format"    yaml:"format,omitempty"`    // one %s verb
	Ref       bool   `mapstructure:"ref"       yaml:"ref,omitempty"`       // value is an element id
}

// RetryConfig controls attempt-level retries.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"      yaml:"backoff"`
}

// StorageConfig controls the relational store.
type StorageConfig struct {
	Driver       string `mapstructure:"driver"         yaml:"driver"` // postgres, pgx, sqlite
	DSN          string `mapstructure:"dsn"            yaml:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
}

// ScheduleConfig controls the cron trigger.
type ScheduleConfig struct {
	Spec         string        `mapstructure:"spec"           yaml:"spec"`
	RunOnStart   bool          `mapstructure:"run_on_start"   yaml:"run_on_start"`
	LockRedisURL string        `mapstructure:"lock_redis_url" yaml:"lock_redis_url"`
	LockKey      string        `mapstructure:"lock_key"       yaml:"lock_key"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"       yaml:"lock_ttl"`
}

// EventsConfig controls where run reports are recorded besides the log.
type EventsConfig struct {
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// SnapshotConfig controls DOM snapshot archiving. Empty Dir disables it.
type SnapshotConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			URL:             "https://www.potterybarn.com/shop/sale/open-box-deals/",
			ProductSelector: `[data-component="Shop-ProductCell"], .grid-item`,
		},
		Browser: BrowserConfig{
			Headless:          true,
			UserAgent:         "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			ViewportWidth:     1920,
			ViewportHeight:    1080,
			NavigationTimeout: 60 * time.Second,
			IdleWindow:        500 * time.Millisecond,
			ContentTimeout:    10 * time.Second,
		},
		Scroll: ScrollConfig{
			MaxIterations: 50,
			SettleDelay:   2 * time.Second,
			StableRounds:  3,
			ClickMore:     true,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Backoff:     2 * time.Second,
		},
		Storage: StorageConfig{
			Driver:       "postgres",
			MaxOpenConns: 5,
		},
		Schedule: ScheduleConfig{
			Spec:       "@every 6h",
			RunOnStart: true,
			LockKey:    "clearancesync:lock",
			LockTTL:    30 * time.Minute,
		},
		Events: EventsConfig{
			MongoDatabase:   "clearancesync",
			MongoCollection: "runs",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
