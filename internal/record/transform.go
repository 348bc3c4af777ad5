package record

import (
	"strconv"

	"github.com/fitledger/fitledger/internal/fitbit"
	"github.com/fitledger/fitledger/internal/support/exception"
)

// TransformSleep converts a sleep payload into one row per recorded
// session, with minutes asleep converted to hours. A day with several
// sessions yields several rows sharing the same date.
func TransformSleep(resp *fitbit.SleepResponse) []SleepRow {
	rows := make([]SleepRow, 0, len(resp.Sleep))
	for _, entry := range resp.Sleep {
		rows = append(rows, SleepRow{
			TotalSleepHour: float64(entry.MinutesAsleep) / 60.0,
			StartTime:      entry.StartTime,
			EndTime:        entry.EndTime,
			Date:           entry.DateOfSleep,
		})
	}
	return rows
}

// TransformSteps converts a steps payload into one row per day. The
// provider sends step counts as strings; unparsable values fail the
// transform rather than silently dropping the day.
func TransformSteps(resp *fitbit.StepsResponse) ([]StepsRow, error) {
	rows := make([]StepsRow, 0, len(resp.ActivitiesSteps))
	for _, entry := range resp.ActivitiesSteps {
		v, err := strconv.ParseFloat(entry.Value, 64)
		if err != nil {
			return nil, exception.Newf(exception.ModuleAPI, "steps value %q for %s is not numeric", entry.Value, entry.DateTime)
		}
		rows = append(rows, StepsRow{Steps: v, Date: entry.DateTime})
	}
	return rows, nil
}

// TransformActivity converts an active-zone-minutes payload into one row
// per day.
func TransformActivity(resp *fitbit.ActivityResponse) []ActivityRow {
	rows := make([]ActivityRow, 0, len(resp.ActivitiesActiveZoneMinutes))
	for _, entry := range resp.ActivitiesActiveZoneMinutes {
		rows = append(rows, ActivityRow{
			ActiveZoneMinutes: float64(entry.Value.ActiveZoneMinutes),
			Date:              entry.DateTime,
		})
	}
	return rows
}

// TransformLowIntensity aggregates an intraday heart-rate series into a
// single daily row counting the samples at or above the bpm threshold.
// With a fixed 5-minute sample interval each qualifying sample counts as
// one unit of low-intensity time. An empty intraday dataset yields an
// empty result, not an error.
func TransformLowIntensity(resp *fitbit.HeartIntradayResponse, threshold int) []LowIntensityRow {
	date := resp.Date()
	if date == "" || len(resp.ActivitiesHeartIntraday.Dataset) == 0 {
		return nil
	}
	count := 0
	for _, sample := range resp.ActivitiesHeartIntraday.Dataset {
		if sample.Value >= threshold {
			count++
		}
	}
	return []LowIntensityRow{{
		LowIntensityMinutes: float64(count),
		Date:                date,
	}}
}
