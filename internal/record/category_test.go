package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	for _, cat := range Categories {
		parsed, err := ParseCategory(cat.String())
		require.NoError(t, err)
		assert.Equal(t, cat, parsed)
	}

	_, err := ParseCategory("calories")
	assert.Error(t, err)
}

func TestObjectKeyLayout(t *testing.T) {
	assert.Equal(t, "data/sleep/sleep.parquet", CategorySleep.ObjectKey("data"))
	assert.Equal(t, "archive/steps/steps.parquet", CategorySteps.ObjectKey("archive"))
	assert.Equal(t, "low_intensity/low_intensity.parquet", CategoryLowIntensity.ObjectKey(""))
}

func TestMetricColumnsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, cat := range Categories {
		col := cat.MetricColumn()
		require.NotEmpty(t, col)
		assert.False(t, seen[col], "duplicate metric column %s", col)
		seen[col] = true
	}
}
