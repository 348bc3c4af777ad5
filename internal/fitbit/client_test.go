package fitbit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitledger/fitledger/internal/config"
	"github.com/fitledger/fitledger/internal/support/exception"
)

func testConfig(baseURL string) *config.Config {
	cfg := config.NewConfig()
	cfg.Fitledger.Fitbit.APIBase = baseURL
	cfg.Fitledger.Fitbit.Retry.MaxAttempts = 3
	cfg.Fitledger.Fitbit.Retry.InitialInterval = 1
	return cfg
}

func TestFetchStepsSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/1/user/-/activities/steps/date/2026-08-22/2026-08-22.json", r.URL.Path)
		w.Write([]byte(`{"activities-steps":[{"dateTime":"2026-08-22","value":"8000"}]}`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	resp, err := client.FetchSteps(context.Background(), "2026-08-22", "token-abc")
	require.NoError(t, err)

	assert.Equal(t, "Bearer token-abc", gotAuth)
	require.Len(t, resp.ActivitiesSteps, 1)
	assert.Equal(t, "8000", resp.ActivitiesSteps[0].Value)
}

func TestFetchSleepDecodesSessions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1.2/user/-/sleep/date/2026-08-22/2026-08-22.json", r.URL.Path)
		w.Write([]byte(`{"sleep":[
			{"dateOfSleep":"2026-08-22","minutesAsleep":420,"startTime":"2026-08-21T23:30:00.000","endTime":"2026-08-22T07:00:00.000"},
			{"dateOfSleep":"2026-08-22","minutesAsleep":90,"startTime":"2026-08-22T14:00:00.000","endTime":"2026-08-22T15:30:00.000"}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	resp, err := client.FetchSleep(context.Background(), "2026-08-22", "t")
	require.NoError(t, err)

	require.Len(t, resp.Sleep, 2)
	assert.Equal(t, 420, resp.Sleep[0].MinutesAsleep)
	assert.Equal(t, 90, resp.Sleep[1].MinutesAsleep)
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"activities-active-zone-minutes":[{"dateTime":"2026-08-22","value":{"activeZoneMinutes":35}}]}`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	resp, err := client.FetchActivity(context.Background(), "2026-08-22", "t")
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, resp.ActivitiesActiveZoneMinutes, 1)
	assert.Equal(t, 35, resp.ActivitiesActiveZoneMinutes[0].Value.ActiveZoneMinutes)
}

func TestGetJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"errors":[{"errorType":"invalid_token"}]}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	_, err := client.FetchHeartIntraday(context.Background(), "2026-08-22", "expired")

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, exception.FromModule(err, exception.ModuleAPI))
	assert.False(t, exception.IsRetryable(err))
	assert.Contains(t, err.Error(), "status 401")
}

func TestGetJSONCarriesResponseBodyInError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	_, err := client.FetchSteps(context.Background(), "2026-08-22", "t")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}
