package record

// Row is the constraint satisfied by all persisted row shapes. Rows must be
// comparable so the merge-upload store can deduplicate by exact row
// equality, and must expose a deterministic sort key so a re-fetched day
// serializes identically regardless of provider ordering.
type Row interface {
	comparable
	// SortKey returns a key that totally orders rows within a store object.
	SortKey() string
}

// SleepRow is one sleep session. A day with multiple sessions produces
// multiple rows sharing the same date.
type SleepRow struct {
	TotalSleepHour float64 `parquet:"name=total_sleep_hour, type=DOUBLE"`
	StartTime      string  `parquet:"name=start_time, type=BYTE_ARRAY, convertedtype=UTF8"`
	EndTime        string  `parquet:"name=end_time, type=BYTE_ARRAY, convertedtype=UTF8"`
	Date           string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// SortKey orders sleep rows by date, then session start time, so session
// order from the provider never changes the persisted byte layout.
func (r SleepRow) SortKey() string {
	return r.Date + "|" + r.StartTime
}

// StepsRow is the daily step count.
type StepsRow struct {
	Steps float64 `parquet:"name=steps, type=DOUBLE"`
	Date  string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func (r StepsRow) SortKey() string {
	return r.Date
}

// ActivityRow is the daily active-zone-minutes total.
type ActivityRow struct {
	ActiveZoneMinutes float64 `parquet:"name=active_zone_minutes, type=DOUBLE"`
	Date              string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func (r ActivityRow) SortKey() string {
	return r.Date
}

// LowIntensityRow is the daily count of intraday heart-rate samples at or
// above the configured bpm threshold.
type LowIntensityRow struct {
	LowIntensityMinutes float64 `parquet:"name=low_intensity_minutes, type=DOUBLE"`
	Date                string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func (r LowIntensityRow) SortKey() string {
	return r.Date
}
