package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "Asia/Tokyo", cfg.Fitledger.System.Timezone)
	assert.Equal(t, "INFO", cfg.Fitledger.System.Logging.Level)
	assert.Equal(t, "https://api.fitbit.com", cfg.Fitledger.Fitbit.APIBase)
	assert.Equal(t, 90, cfg.Fitledger.Fitbit.HeartRateThreshold)
	assert.Equal(t, 3, cfg.Fitledger.Fitbit.Retry.MaxAttempts)
	assert.Equal(t, "local", cfg.Fitledger.Storage.Type)
	assert.Equal(t, "SNAPPY", cfg.Fitledger.Dataset.Compression)
	assert.Equal(t, 60, cfg.Fitledger.Dashboard.DefaultLookbackDays)
	assert.Equal(t, 30, cfg.Fitledger.Dashboard.MovingAverageWindow)
}

func TestLoadConfigMergesYAMLOverDefaults(t *testing.T) {
	yaml := []byte(`
fitledger:
  system:
    timezone: UTC
    logging:
      level: DEBUG
  fitbit:
    heart_rate_threshold: 100
`)
	cfg, err := LoadConfig("", yaml)
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.Fitledger.System.Timezone)
	assert.Equal(t, "DEBUG", cfg.Fitledger.System.Logging.Level)
	assert.Equal(t, 100, cfg.Fitledger.Fitbit.HeartRateThreshold)
	// Untouched sections keep their defaults.
	assert.Equal(t, "https://api.fitbit.com", cfg.Fitledger.Fitbit.APIBase)
	assert.Equal(t, 3, cfg.Fitledger.Fitbit.Retry.MaxAttempts)
}

func TestLoadConfigExpandsEnvironmentReferences(t *testing.T) {
	t.Setenv("TEST_STORAGE_BUCKET", "fitledger-prod")

	yaml := []byte(`
fitledger:
  storage:
    type: gcs
    bucket: ${TEST_STORAGE_BUCKET}
`)
	cfg, err := LoadConfig("", yaml)
	require.NoError(t, err)

	assert.Equal(t, "gcs", cfg.Fitledger.Storage.Type)
	assert.Equal(t, "fitledger-prod", cfg.Fitledger.Storage.Options["bucket"])
}

func TestLoadConfigLeavesUnknownReferencesVisible(t *testing.T) {
	yaml := []byte(`
fitledger:
  storage:
    type: gcs
    bucket: ${DEFINITELY_NOT_SET_ANYWHERE}
`)
	cfg, err := LoadConfig("", yaml)
	require.NoError(t, err)

	// Unset references stay literal so misconfiguration is visible instead
	// of producing an empty bucket name.
	assert.Equal(t, "${DEFINITELY_NOT_SET_ANYWHERE}", cfg.Fitledger.Storage.Options["bucket"])
}

func TestLoadConfigRejectsInvalidYAML(t *testing.T) {
	_, err := LoadConfig("", []byte("fitledger: [not: a: mapping"))
	assert.Error(t, err)
}

func TestLoadConfigInlineBackendOptions(t *testing.T) {
	yaml := []byte(`
fitledger:
  secrets:
    type: file
    path: /etc/fitledger/fitbit.json
`)
	cfg, err := LoadConfig("", yaml)
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Fitledger.Secrets.Type)
	assert.Equal(t, "/etc/fitledger/fitbit.json", cfg.Fitledger.Secrets.Options["path"])
}
