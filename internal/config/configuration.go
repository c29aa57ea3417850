package config

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	// WebServer Configuration
	WebServerPort int    `mapstructure:"WEBSERVER_PORT" validate:"min=1,max=65535"`
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL" validate:"required,url"`
	LogLevel      string `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	// Database Configuration
	DatabaseDSN     string `mapstructure:"DATABASE_DSN" validate:"required"`
	DatabaseRetries int    `mapstructure:"DATABASE_RETRIES" validate:"min=1"`

	// Artifact storage
	AssetDir string `mapstructure:"ASSET_DIR" validate:"required"`

	// Upstream (YouTube) endpoints
	UpstreamTimeout         time.Duration `mapstructure:"UPSTREAM_TIMEOUT" validate:"gt=0"`
	YouTubeOEmbedURL        string        `mapstructure:"YOUTUBE_OEMBED_URL" validate:"required,url"`
	YouTubeThumbnailBaseURL string        `mapstructure:"YOUTUBE_THUMBNAIL_BASE_URL" validate:"required,url"`

	// Monitor workers and reconciliation
	MonitorWorkers      int           `mapstructure:"MONITOR_WORKERS" validate:"min=1"`
	MonitorPollInterval time.Duration `mapstructure:"MONITOR_POLL_INTERVAL" validate:"gt=0"`
	TaskStuckAfter      time.Duration `mapstructure:"TASK_STUCK_AFTER" validate:"gt=0"`
	TaskRetention       time.Duration `mapstructure:"TASK_RETENTION" validate:"gt=0"`
	ReconcileSchedule   string        `mapstructure:"RECONCILE_SCHEDULE" validate:"required"`

	// Adaptive recheck interval
	MinIntervalDays      int     `mapstructure:"MIN_INTERVAL_DAYS" validate:"min=1"`
	MaxIntervalDays      int     `mapstructure:"MAX_INTERVAL_DAYS" validate:"gtefield=MinIntervalDays"`
	IntervalGrowthFactor float64 `mapstructure:"INTERVAL_GROWTH_FACTOR" validate:"gt=1"`
}

// LogValue keeps credentials in the DSN out of the logs.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("webserver_port", c.WebServerPort),
		slog.String("public_base_url", c.PublicBaseURL),
		slog.String("log_level", c.LogLevel),
		slog.String("database_dsn", redactDSN(c.DatabaseDSN)),
		slog.Int("database_retries", c.DatabaseRetries),
		slog.String("asset_dir", c.AssetDir),
		slog.Duration("upstream_timeout", c.UpstreamTimeout),
		slog.Int("monitor_workers", c.MonitorWorkers),
		slog.Duration("task_retention", c.TaskRetention),
		slog.String("reconcile_schedule", c.ReconcileSchedule),
		slog.Int("min_interval_days", c.MinIntervalDays),
		slog.Int("max_interval_days", c.MaxIntervalDays),
		slog.Float64("interval_growth_factor", c.IntervalGrowthFactor),
	)
}

// SlogLevel maps LOG_LEVEL onto a slog level. Unknown values fall back to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// use reflect to bind environment variables based on mapstructure tags
func bindEnv(c Config) {
	val := reflect.ValueOf(c)
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		tag := typ.Field(i).Tag.Get("mapstructure")
		if tag != "" {
			_ = viper.BindEnv(tag)
		}
	}
}

func setDefaults() {
	viper.SetDefault("WEBSERVER_PORT", 8080)
	viper.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DATABASE_RETRIES", 10)
	viper.SetDefault("ASSET_DIR", "/assets")
	viper.SetDefault("UPSTREAM_TIMEOUT", "10s")
	viper.SetDefault("YOUTUBE_OEMBED_URL", "https://www.youtube.com/oembed")
	viper.SetDefault("YOUTUBE_THUMBNAIL_BASE_URL", "https://i.ytimg.com/vi")
	viper.SetDefault("MONITOR_WORKERS", 2)
	viper.SetDefault("MONITOR_POLL_INTERVAL", "5s")
	viper.SetDefault("TASK_STUCK_AFTER", "15m")
	viper.SetDefault("TASK_RETENTION", "720h")
	viper.SetDefault("RECONCILE_SCHEDULE", "0 3 * * *")
	viper.SetDefault("MIN_INTERVAL_DAYS", 1)
	viper.SetDefault("MAX_INTERVAL_DAYS", 30)
	viper.SetDefault("INTERVAL_GROWTH_FACTOR", 2.0)
}

func LoadConfig(ctx context.Context) (*Config, error) {
	bindEnv(Config{})
	viper.AutomaticEnv()
	setDefaults()

	cfg := Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	slog.Info("Loaded configuration", "config", cfg)
	return &cfg, nil
}
