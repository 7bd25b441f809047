package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables. Command-line flags override these.
type Config struct {
	Date          string        `envconfig:"DATE" default:"2024-12-07"`
	FrameInterval time.Duration `envconfig:"FRAME_INTERVAL" default:"500ms"`
	CacheDir      string        `envconfig:"CACHE_DIR" default:"cache_nasa"`
	FetchOnly     bool          `envconfig:"FETCH_ONLY" default:"false"`
	Progress      bool          `envconfig:"PROGRESS" default:"false"`

	EPICAPIURL     string        `envconfig:"EPIC_API_URL" default:"https://epic.gsfc.nasa.gov/api"`
	EPICArchiveURL string        `envconfig:"EPIC_ARCHIVE_URL" default:"https://epic.gsfc.nasa.gov/archive"`
	Collection     string        `envconfig:"EPIC_COLLECTION" default:"natural"`
	ImageFormat    string        `envconfig:"IMAGE_FORMAT" default:"jpg"`
	MaxAttempts    int           `envconfig:"MAX_ATTEMPTS" default:"3"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	BackoffInitial time.Duration `envconfig:"BACKOFF_INITIAL" default:"1s"`

	WallpaperCommand string `envconfig:"WALLPAPER_COMMAND"`

	LogLevel          string `envconfig:"LOG_LEVEL" default:"INFO"`
	LogFormat         string `envconfig:"LOG_FORMAT" default:"json"`
	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL"`

	TelemetryEnabled    bool   `envconfig:"TELEMETRY_ENABLED" default:"true"`
	OTLPMetricsEndpoint string `envconfig:"OTLP_METRICS_ENDPOINT"`

	Web struct {
		BindAddress     string        `split_words:"true"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
	}
}

// LoadConfig reads an optional .env file, then environment variables, and
// populates the Config struct.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	return &cfg, nil
}

// Validate checks the values flags and env can get wrong. The date is checked
// separately by ParseDate.
func (c *Config) Validate() error {
	var errs []error

	if c.FrameInterval <= 0 {
		errs = append(errs, fmt.Errorf("frame interval must be positive, got %s", c.FrameInterval))
	}

	if strings.TrimSpace(c.CacheDir) == "" {
		errs = append(errs, errors.New("cache dir must not be empty"))
	}

	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts))
	}

	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout))
	}

	return errors.Join(errs...)
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
