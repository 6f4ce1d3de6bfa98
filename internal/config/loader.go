package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/IshaanNene/clearancesync/internal/types"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
// A .env file in the working directory is loaded into the environment first.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("CLEARANCESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// DATABASE_URL is what most hosting platforms inject.
	_ = v.BindEnv("storage.dsn", "CLEARANCESYNC_STORAGE_DSN", "DATABASE_URL")
	_ = v.BindEnv("schedule.lock_redis_url", "CLEARANCESYNC_SCHEDULE_LOCK_REDIS_URL", "REDIS_URL")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("clearancesync")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".clearancesync"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is okay if not explicitly specified
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Target.Origin == "" && cfg.Target.URL != "" {
		origin, err := types.Origin(cfg.Target.URL)
		if err != nil {
			return nil, fmt.Errorf("target.url: %w", err)
		}
		cfg.Target.Origin = origin
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env vars bind to every key.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("target.url", cfg.Target.URL)
	v.SetDefault("target.origin", cfg.Target.Origin)
	v.SetDefault("target.product_selector", cfg.Target.ProductSelector)

	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.bin_path", cfg.Browser.BinPath)
	v.SetDefault("browser.user_agent", cfg.Browser.UserAgent)
	v.SetDefault("browser.viewport_width", cfg.Browser.ViewportWidth)
	v.SetDefault("browser.viewport_height", cfg.Browser.ViewportHeight)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.navigation_timeout", cfg.Browser.NavigationTimeout)
	v.SetDefault("browser.idle_window", cfg.Browser.IdleWindow)
	v.SetDefault("browser.content_timeout", cfg.Browser.ContentTimeout)

	v.SetDefault("scroll.max_iterations", cfg.Scroll.MaxIterations)
	v.SetDefault("scroll.settle_delay", cfg.Scroll.SettleDelay)
	v.SetDefault("scroll.stable_rounds", cfg.Scroll.StableRounds)
	v.SetDefault("scroll.click_more", cfg.Scroll.ClickMore)

	v.SetDefault("retry.max_attempts", cfg.Retry.MaxAttempts)
	v.SetDefault("retry.backoff", cfg.Retry.Backoff)

	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.dsn", cfg.Storage.DSN)
	v.SetDefault("storage.max_open_conns", cfg.Storage.MaxOpenConns)

	v.SetDefault("schedule.spec", cfg.Schedule.Spec)
	v.SetDefault("schedule.run_on_start", cfg.Schedule.RunOnStart)
	v.SetDefault("schedule.lock_redis_url", cfg.Schedule.LockRedisURL)
	v.SetDefault("schedule.lock_key", cfg.Schedule.LockKey)
	v.SetDefault("schedule.lock_ttl", cfg.Schedule.LockTTL)

	v.SetDefault("events.mongo_uri", cfg.Events.MongoURI)
	v.SetDefault("events.mongo_database", cfg.Events.MongoDatabase)
	v.SetDefault("events.mongo_collection", cfg.Events.MongoCollection)

	v.SetDefault("snapshot.dir", cfg.Snapshot.Dir)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
