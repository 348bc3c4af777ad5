package fitbit

// Response shapes for the provider endpoints the pipeline consumes. Only
// the fields the transforms read are modelled; the provider sends more.

// SleepEntry is one recorded sleep session.
type SleepEntry struct {
	DateOfSleep   string `json:"dateOfSleep"`
	MinutesAsleep int    `json:"minutesAsleep"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
}

// SleepResponse is the payload of /1.2/user/-/sleep/date/{start}/{end}.json.
type SleepResponse struct {
	Sleep []SleepEntry `json:"sleep"`
}

// StepsEntry is one day's step count. The provider sends the value as a
// string.
type StepsEntry struct {
	DateTime string `json:"dateTime"`
	Value    string `json:"value"`
}

// StepsResponse is the payload of
// /1/user/-/activities/steps/date/{start}/{end}.json.
type StepsResponse struct {
	ActivitiesSteps []StepsEntry `json:"activities-steps"`
}

// ActivityEntry is one day's active-zone-minutes summary.
type ActivityEntry struct {
	DateTime string `json:"dateTime"`
	Value    struct {
		ActiveZoneMinutes int `json:"activeZoneMinutes"`
	} `json:"value"`
}

// ActivityResponse is the payload of
// /1/user/-/activities/active-zone-minutes/date/{start}/{end}.json.
type ActivityResponse struct {
	ActivitiesActiveZoneMinutes []ActivityEntry `json:"activities-active-zone-minutes"`
}

// HeartSample is one intraday heart-rate sample at the requested detail
// level (5 minutes).
type HeartSample struct {
	Time  string `json:"time"`
	Value int    `json:"value"`
}

// HeartDay carries the calendar date of an intraday series.
type HeartDay struct {
	DateTime string `json:"dateTime"`
}

// HeartIntradayResponse is the payload of
// /1/user/-/activities/heart/date/{start}/{end}/5min.json.
type HeartIntradayResponse struct {
	ActivitiesHeart         []HeartDay `json:"activities-heart"`
	ActivitiesHeartIntraday struct {
		Dataset []HeartSample `json:"dataset"`
	} `json:"activities-heart-intraday"`
}

// Date returns the calendar date the intraday series belongs to, or the
// empty string when the provider returned no summary entry.
func (r *HeartIntradayResponse) Date() string {
	if len(r.ActivitiesHeart) == 0 {
		return ""
	}
	return r.ActivitiesHeart[0].DateTime
}

// TokenPair is the result of a successful OAuth2 refresh. The access token
// is consumed in-memory within the current run; the refresh token half is
// persisted back to the secret store.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
