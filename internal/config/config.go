package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the service configuration
type Config struct {
	SPAPI    SPAPIConfig
	DB       DBConfig
	HTTP     HTTPConfig
	Log      LogConfig
	Pipeline PipelineConfig
	Export   ExportConfig
	MinIO    MinIOConfig
	AMQP     AMQPConfig
}

// SPAPIConfig holds the report API credentials and pacing
type SPAPIConfig struct {
	Endpoint      string
	TokenURL      string
	ClientID      string
	ClientSecret  string
	RefreshToken  string
	MarketplaceID string
	Rate          float64
	Burst         int
}

type DBConfig struct {
	Path string
}

type HTTPConfig struct {
	Addr string
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

// PipelineConfig holds polling, enrichment and scan pacing
type PipelineConfig struct {
	PollInterval     time.Duration
	MaxPolls         int
	EnrichBatchSize  int
	EnrichBatchDelay time.Duration
	EnrichItemDelay  time.Duration
	ScanMaxWindows   int
	ScanTargetCount  int
	ScanWindowDelay  time.Duration
	RunTimeout       time.Duration
	PendingFeeLimit  int
}

type ExportConfig struct {
	Dir string
}

// MinIOConfig enables the artifact archive when Endpoint is set
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// AMQPConfig enables run events when URL is set
type AMQPConfig struct {
	URL   string
	Queue string
}

var defaults = map[string]interface{}{
	"SP_API_ENDPOINT":    "https://sellingpartnerapi-eu.amazon.com",
	"LWA_TOKEN_URL":      "https://api.amazon.com/auth/o2/token",
	"MARKETPLACE_ID":     "A1F83G8C2ARO7P",
	"SP_API_RATE":        1.0,
	"SP_API_BURST":       1,
	"DB_PATH":            "pipeline.db",
	"HTTP_ADDR":          ":8080",
	"LOG_LEVEL":          "info",
	"LOG_FORMAT":         "console",
	"LOG_OUTPUT":         "stdout",
	"POLL_INTERVAL":      "30s",
	"MAX_POLLS":          20,
	"ENRICH_BATCH_SIZE":  10,
	"ENRICH_BATCH_DELAY": "5s",
	"ENRICH_ITEM_DELAY":  "500ms",
	"SCAN_MAX_WINDOWS":   30,
	"SCAN_TARGET_COUNT":  500,
	"SCAN_WINDOW_DELAY":  "10s",
	"RUN_TIMEOUT":        "30m",
	"PENDING_FEE_LIMIT":  100,
	"EXPORT_DIR":         "output",
	"MINIO_BUCKET":       "report-artifacts",
	"MINIO_USE_SSL":      false,
	"AMQP_QUEUE":         "report_pipeline_events",
}

// Load reads envFile when present, then the environment. Unset keys take
// their defaults.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	cfg := &Config{
		SPAPI: SPAPIConfig{
			Endpoint:      v.GetString("SP_API_ENDPOINT"),
			TokenURL:      v.GetString("LWA_TOKEN_URL"),
			ClientID:      v.GetString("LWA_CLIENT_ID"),
			ClientSecret:  v.GetString("LWA_CLIENT_SECRET"),
			RefreshToken:  v.GetString("LWA_REFRESH_TOKEN"),
			MarketplaceID: v.GetString("MARKETPLACE_ID"),
			Rate:          v.GetFloat64("SP_API_RATE"),
			Burst:         v.GetInt("SP_API_BURST"),
		},
		DB:   DBConfig{Path: v.GetString("DB_PATH")},
		HTTP: HTTPConfig{Addr: v.GetString("HTTP_ADDR")},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			Output: v.GetString("LOG_OUTPUT"),
		},
		Pipeline: PipelineConfig{
			PollInterval:     v.GetDuration("POLL_INTERVAL"),
			MaxPolls:         v.GetInt("MAX_POLLS"),
			EnrichBatchSize:  v.GetInt("ENRICH_BATCH_SIZE"),
			EnrichBatchDelay: v.GetDuration("ENRICH_BATCH_DELAY"),
			EnrichItemDelay:  v.GetDuration("ENRICH_ITEM_DELAY"),
			ScanMaxWindows:   v.GetInt("SCAN_MAX_WINDOWS"),
			ScanTargetCount:  v.GetInt("SCAN_TARGET_COUNT"),
			ScanWindowDelay:  v.GetDuration("SCAN_WINDOW_DELAY"),
			RunTimeout:       v.GetDuration("RUN_TIMEOUT"),
			PendingFeeLimit:  v.GetInt("PENDING_FEE_LIMIT"),
		},
		Export: ExportConfig{Dir: v.GetString("EXPORT_DIR")},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
		},
		AMQP: AMQPConfig{
			URL:   v.GetString("AMQP_URL"),
			Queue: v.GetString("AMQP_QUEUE"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	p := c.Pipeline
	if p.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if p.MaxPolls <= 0 {
		return fmt.Errorf("MAX_POLLS must be positive")
	}
	if p.EnrichBatchSize <= 0 {
		return fmt.Errorf("ENRICH_BATCH_SIZE must be positive")
	}
	if p.EnrichBatchDelay < 0 || p.EnrichItemDelay < 0 || p.ScanWindowDelay < 0 {
		return fmt.Errorf("pipeline delays cannot be negative")
	}
	if p.ScanMaxWindows <= 0 || p.ScanTargetCount <= 0 {
		return fmt.Errorf("SCAN_MAX_WINDOWS and SCAN_TARGET_COUNT must be positive")
	}
	if p.RunTimeout <= 0 {
		return fmt.Errorf("RUN_TIMEOUT must be positive")
	}
	if c.SPAPI.Rate <= 0 {
		return fmt.Errorf("SP_API_RATE must be positive")
	}
	if c.MinIO.Endpoint != "" && c.MinIO.Bucket == "" {
		return fmt.Errorf("MINIO_BUCKET is required when MINIO_ENDPOINT is set")
	}
	return nil
}

// Credentials reports whether the report API credentials are all set
func (c SPAPIConfig) Credentials() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}
