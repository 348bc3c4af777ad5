// Package record defines the category taxonomy, the uniform tabular row
// shapes persisted to the columnar store, and the typed transforms from the
// provider's per-category JSON payloads into those rows.
package record

import (
	"fmt"
	"path"
)

// Category identifies one metric stream.
type Category string

const (
	CategorySleep        Category = "sleep"
	CategorySteps        Category = "steps"
	CategoryActivity     Category = "activity"
	CategoryLowIntensity Category = "low_intensity"
)

// Categories lists all metric streams in ingestion order.
var Categories = []Category{CategorySleep, CategorySteps, CategoryActivity, CategoryLowIntensity}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	switch c {
	case CategorySleep, CategorySteps, CategoryActivity, CategoryLowIntensity:
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// String returns the category name.
func (c Category) String() string {
	return string(c)
}

// MetricColumn returns the category's primary metric column name.
func (c Category) MetricColumn() string {
	switch c {
	case CategorySleep:
		return "total_sleep_hour"
	case CategorySteps:
		return "steps"
	case CategoryActivity:
		return "active_zone_minutes"
	case CategoryLowIntensity:
		return "low_intensity_minutes"
	}
	return ""
}

// Unit returns the category's display unit.
func (c Category) Unit() string {
	switch c {
	case CategorySleep:
		return "hour"
	case CategorySteps:
		return "steps"
	case CategoryActivity, CategoryLowIntensity:
		return "min"
	}
	return ""
}

// Title returns the category's display title for the dashboard.
func (c Category) Title() string {
	switch c {
	case CategorySleep:
		return "Sleep"
	case CategorySteps:
		return "Steps"
	case CategoryActivity:
		return "Active Zone"
	case CategoryLowIntensity:
		return "Low Intensity"
	}
	return string(c)
}

// ObjectKey returns the fixed object key for the category's columnar store
// object under the given prefix, e.g. "data/sleep/sleep.parquet".
func (c Category) ObjectKey(prefix string) string {
	return path.Join(prefix, string(c), string(c)+".parquet")
}
