package query

import "time"

// Range is an inclusive date range in YYYY-MM-DD form. The string form
// sorts chronologically, so ranges compare lexicographically.
type Range struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Contains reports whether other lies entirely within r.
func (r Range) Contains(other Range) bool {
	return other.Start >= r.Start && other.End <= r.End
}

// IsValid reports whether the range is non-empty and ordered.
func (r Range) IsValid() bool {
	return r.Start != "" && r.End != "" && r.Start <= r.End
}

// DefaultRange returns the dashboard's default window: lookbackDays days
// ending yesterday in the given timezone.
func DefaultRange(now time.Time, timezone string, lookbackDays int) (Range, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Range{}, err
	}
	end := now.In(loc).AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(lookbackDays - 1))
	return Range{
		Start: start.Format("2006-01-02"),
		End:   end.Format("2006-01-02"),
	}, nil
}

// ResolveRange decides which range a series request should query. A
// selection inside the already-loaded window is served from it without
// requerying; a selection reaching outside forces a requery bounded to the
// selection itself. An absent or malformed selection falls back to the
// loaded window.
func ResolveRange(selected, loaded Range) (Range, bool) {
	if !selected.IsValid() {
		return loaded, false
	}
	if loaded.Contains(selected) {
		return selected, false
	}
	return selected, true
}

// TrailingAverage returns the mean value of the points falling within the
// n calendar days ending at end (inclusive, YYYY-MM-DD). The window is
// anchored to the calendar, not to the data: a store whose newest rows are
// older than the window averages to 0.0 instead of resurfacing stale days,
// and days without data inside the window simply contribute nothing.
func TrailingAverage(points []DailyPoint, n int, end string) float64 {
	if len(points) == 0 || n <= 0 {
		return 0.0
	}
	endDay, err := time.Parse("2006-01-02", end)
	if err != nil {
		return 0.0
	}
	start := endDay.AddDate(0, 0, -(n - 1)).Format("2006-01-02")

	sum := 0.0
	count := 0
	for _, p := range points {
		if p.Date >= start && p.Date <= end {
			sum += p.Value
			count++
		}
	}
	if count == 0 {
		return 0.0
	}
	return sum / float64(count)
}

// MovingAverage returns, for each point, the mean of the trailing window
// ending at that point. Early points with a short history average over what
// exists so far.
func MovingAverage(points []DailyPoint, window int) []float64 {
	if len(points) == 0 {
		return nil
	}
	if window <= 0 {
		window = 1
	}
	out := make([]float64, len(points))
	sum := 0.0
	for i, p := range points {
		sum += p.Value
		if i >= window {
			sum -= points[i-window].Value
		}
		span := i + 1
		if span > window {
			span = window
		}
		out[i] = sum / float64(span)
	}
	return out
}
