// Package config provides structures and utilities for managing the
// fitledger application configuration.
package config

// EmbeddedConfig holds the content of the configuration file, typically
// passed from main.go via go:embed.
type EmbeddedConfig []byte

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the timezone used to resolve the ingestion target date
	// ("yesterday"), e.g. "Asia/Tokyo".
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// RetryConfig holds configuration for bounded retry with backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int `yaml:"max_attempts"`
	// InitialInterval is the initial backoff interval in milliseconds.
	InitialInterval int `yaml:"initial_interval"`
	// Factor is the factor by which the interval grows after each attempt.
	Factor float64 `yaml:"factor"`
}

// FitbitConfig holds settings for the wearable provider API.
type FitbitConfig struct {
	// APIBase is the base URL of the provider API.
	APIBase string `yaml:"api_base"`
	// TimeoutSeconds is the per-request HTTP timeout.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// HeartRateThreshold is the bpm at or above which an intraday sample
	// counts as one unit of low-intensity time.
	HeartRateThreshold int `yaml:"heart_rate_threshold"`
	// Retry controls retry behaviour for transient API failures.
	Retry RetryConfig `yaml:"retry"`
}

// SecretsConfig selects and parameterizes the secret store backend.
// Type is one of "file" or "gcs"; Options carries the backend-specific
// fields and is decoded by the matching backend with mapstructure.
type SecretsConfig struct {
	Type    string                 `yaml:"type"`
	Options map[string]interface{} `yaml:",inline"`
}

// StorageConfig selects and parameterizes the object store backend holding
// the columnar dataset. Type is one of "local" or "gcs"; Options carries
// the backend-specific fields.
type StorageConfig struct {
	Type    string                 `yaml:"type"`
	Options map[string]interface{} `yaml:",inline"`
}

// DatasetConfig holds settings for the merge-upload columnar store.
type DatasetConfig struct {
	// BasePrefix is the key prefix under which category objects live,
	// producing keys like "<prefix>/sleep/sleep.parquet".
	BasePrefix string `yaml:"base_prefix"`
	// Compression is the parquet compression codec ("SNAPPY", "GZIP", "NONE").
	Compression string `yaml:"compression"`
}

// RunlogConfig holds settings for the ingestion run history database.
type RunlogConfig struct {
	// Path is the sqlite database file path.
	Path string `yaml:"path"`
}

// DashboardConfig holds settings for the read-side HTTP server.
type DashboardConfig struct {
	// ListenAddr is the address the dashboard listens on.
	ListenAddr string `yaml:"listen_addr"`
	// DefaultLookbackDays is the size of the default date range, ending
	// yesterday, served from the batch-loaded dataset.
	DefaultLookbackDays int `yaml:"default_lookback_days"`
	// MovingAverageWindow is the moving-average window in days for charts.
	MovingAverageWindow int `yaml:"moving_average_window"`
	// CacheDir is where parquet objects are materialized for the query engine.
	CacheDir string `yaml:"cache_dir"`
}

// FitledgerConfig holds all configuration under the "fitledger" top-level key.
type FitledgerConfig struct {
	System    SystemConfig    `yaml:"system"`
	Fitbit    FitbitConfig    `yaml:"fitbit"`
	Secrets   SecretsConfig   `yaml:"secrets"`
	Storage   StorageConfig   `yaml:"storage"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Runlog    RunlogConfig    `yaml:"runlog"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Fitledger FitledgerConfig `yaml:"fitledger"`
}

// NewConfig returns a new Config populated with default values. Values from
// the embedded YAML and the environment are merged on top by the loader.
func NewConfig() *Config {
	return &Config{
		Fitledger: FitledgerConfig{
			System: SystemConfig{
				Timezone: "Asia/Tokyo",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Fitbit: FitbitConfig{
				APIBase:            "https://api.fitbit.com",
				TimeoutSeconds:     10,
				HeartRateThreshold: 90,
				Retry: RetryConfig{
					MaxAttempts:     3,
					InitialInterval: 500,
					Factor:          2.0,
				},
			},
			Secrets: SecretsConfig{
				Type:    "file",
				Options: map[string]interface{}{"path": "./secrets/fitbit.json"},
			},
			Storage: StorageConfig{
				Type:    "local",
				Options: map[string]interface{}{"base_dir": "./data"},
			},
			Dataset: DatasetConfig{
				BasePrefix:  "data",
				Compression: "SNAPPY",
			},
			Runlog: RunlogConfig{
				Path: "./data/runlog.db",
			},
			Dashboard: DashboardConfig{
				ListenAddr:          ":8080",
				DefaultLookbackDays: 60,
				MovingAverageWindow: 30,
				CacheDir:            "./cache",
			},
		},
	}
}
