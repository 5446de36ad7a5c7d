// Package config loads application settings from defaults, an optional YAML
// file and STOCKCAST_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/sartorproj/stockcast/boost"
)

// EnvPrefix prefixes every environment override, e.g. STOCKCAST_DATA_PATH.
const EnvPrefix = "STOCKCAST"

// Config represents the complete application configuration.
type Config struct {
	Data      DataConfig      `yaml:"data" split_words:"true"`
	Model     ModelConfig     `yaml:"model" split_words:"true"`
	Forecast  ForecastConfig  `yaml:"forecast" split_words:"true"`
	Server    ServerConfig    `yaml:"server" split_words:"true"`
	Logging   LoggingConfig   `yaml:"logging" split_words:"true"`
	Telemetry TelemetryConfig `yaml:"telemetry" split_words:"true"`
}

// DataConfig describes the input file and cleaning.
type DataConfig struct {
	Path          string  `yaml:"path" split_words:"true" validate:"required"`
	Symbol        string  `yaml:"symbol" split_words:"true" validate:"required"`
	DayFirst      bool    `yaml:"day_first" split_words:"true"`
	DateFormat    string  `yaml:"date_format" split_words:"true"`
	MinRows       int     `yaml:"min_rows" split_words:"true" validate:"min=30"`
	CapVolume     bool    `yaml:"cap_volume" split_words:"true"`
	CapReturns    bool    `yaml:"cap_returns" split_words:"true"`
	IQRMultiplier float64 `yaml:"iqr_multiplier" split_words:"true" validate:"gt=0"`
	ReferencePath string  `yaml:"reference_path" split_words:"true"`
}

// ModelConfig controls the comparison run.
type ModelConfig struct {
	Candidates     []string     `yaml:"candidates" split_words:"true" validate:"min=1,dive,oneof=arima sarima xgboost"`
	TestFraction   float64      `yaml:"test_fraction" split_words:"true" validate:"gt=0,lt=1"`
	Lags           int          `yaml:"lags" split_words:"true" validate:"min=1,max=60"`
	SeasonalPeriod int          `yaml:"seasonal_period" split_words:"true" validate:"min=2"`
	Boost          boost.Config `yaml:"boost" split_words:"true"`
}

// ForecastConfig bounds the dashboard horizon selector.
type ForecastConfig struct {
	Model          string `yaml:"model" split_words:"true" validate:"omitempty,oneof=arima sarima xgboost"`
	MinHorizon     int    `yaml:"min_horizon" split_words:"true" validate:"min=1"`
	MaxHorizon     int    `yaml:"max_horizon" split_words:"true" validate:"gtefield=MinHorizon"`
	DefaultHorizon int    `yaml:"default_horizon" split_words:"true" validate:"gtefield=MinHorizon,ltefield=MaxHorizon"`
	Step           int    `yaml:"step" split_words:"true" validate:"min=1"`
	HistoryDays    int    `yaml:"history_days" split_words:"true" validate:"min=1"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Addr            string          `yaml:"addr" split_words:"true" validate:"required"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" split_words:"true" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" split_words:"true" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" split_words:"true" validate:"gt=0"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" split_words:"true" validate:"gt=0"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" split_words:"true"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" split_words:"true"`
	RPS     float64 `yaml:"rps" split_words:"true" validate:"gt=0"`
	Burst   int     `yaml:"burst" split_words:"true" validate:"min=1"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" split_words:"true" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" split_words:"true" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" split_words:"true" validate:"required_unless=Output console"`
}

// TelemetryConfig controls metrics and tracing.
type TelemetryConfig struct {
	ServiceName   string `yaml:"service_name" split_words:"true" validate:"required"`
	Metrics       bool   `yaml:"metrics" split_words:"true"`
	Tracing       bool   `yaml:"tracing" split_words:"true"`
	TraceExporter string `yaml:"trace_exporter" split_words:"true" validate:"oneof=stdout none"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Path:          "data/AAPL.csv",
			Symbol:        "AAPL",
			DayFirst:      true,
			MinRows:       100,
			IQRMultiplier: 1.5,
		},
		Model: ModelConfig{
			Candidates:     []string{"arima", "sarima", "xgboost"},
			TestFraction:   0.2,
			Lags:           10,
			SeasonalPeriod: 5,
			Boost:          boost.DefaultConfig(),
		},
		Forecast: ForecastConfig{
			MinHorizon:     5,
			MaxHorizon:     240,
			DefaultHorizon: 30,
			Step:           5,
			HistoryDays:    200,
		},
		Server: ServerConfig{
			Addr:            ":8050",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/stockcast.log",
		},
		Telemetry: TelemetryConfig{
			ServiceName:   "stockcast",
			Metrics:       true,
			Tracing:       false,
			TraceExporter: "stdout",
		},
	}
}

// Load builds the configuration. A .env file in the working directory is read
// into the environment first; path may be empty, and a missing file at path is
// an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// No default tags: only variables that are set override the file.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file at path onto cfg.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints.
func (c *Config) Validate() error {
	return validate.Struct(c)
}
