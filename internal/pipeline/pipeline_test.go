package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitledger/fitledger/internal/config"
	"github.com/fitledger/fitledger/internal/dataset"
	"github.com/fitledger/fitledger/internal/fitbit"
	"github.com/fitledger/fitledger/internal/metrics"
	"github.com/fitledger/fitledger/internal/record"
	"github.com/fitledger/fitledger/internal/runlog"
	"github.com/fitledger/fitledger/internal/secrets"
	"github.com/fitledger/fitledger/internal/storage"
)

// One recorder for the whole test binary: the collectors register on the
// default Prometheus registry and must not be registered twice.
var testRecorder = metrics.NewRecorder()

func TestTargetDateIsYesterdayInTimezone(t *testing.T) {
	now := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)

	date, err := TargetDate(now, "UTC")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-22", date)

	// 23:30 UTC on the 22nd is already the 23rd in Tokyo.
	date, err = TargetDate(time.Date(2026, 8, 22, 23, 30, 0, 0, time.UTC), "Asia/Tokyo")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-22", date)
}

func TestTargetDateRejectsBadTimezone(t *testing.T) {
	_, err := TargetDate(time.Now(), "Nowhere/Nowhen")
	assert.Error(t, err)
}

// providerStub serves the token endpoint and the four data endpoints for
// whatever date the orchestrator asks about.
func providerStub(t *testing.T, failSteps bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/oauth2/token":
			w.Write([]byte(`{"access_token":"acc","refresh_token":"ref-next"}`))
		case strings.HasPrefix(r.URL.Path, "/1.2/user/-/sleep/"):
			w.Write([]byte(`{"sleep":[{"dateOfSleep":"2026-08-22","minutesAsleep":420,"startTime":"2026-08-21T23:30:00.000","endTime":"2026-08-22T07:00:00.000"}]}`))
		case strings.HasPrefix(r.URL.Path, "/1/user/-/activities/steps/"):
			if failSteps {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			w.Write([]byte(`{"activities-steps":[{"dateTime":"2026-08-22","value":"8000"}]}`))
		case strings.HasPrefix(r.URL.Path, "/1/user/-/activities/active-zone-minutes/"):
			w.Write([]byte(`{"activities-active-zone-minutes":[{"dateTime":"2026-08-22","value":{"activeZoneMinutes":35}}]}`))
		case strings.HasPrefix(r.URL.Path, "/1/user/-/activities/heart/"):
			w.Write([]byte(`{"activities-heart":[{"dateTime":"2026-08-22"}],"activities-heart-intraday":{"dataset":[{"time":"00:00:00","value":95},{"time":"00:05:00","value":60}]}}`))
		default:
			http.Error(w, "unexpected path "+r.URL.Path, http.StatusTeapot)
		}
	}))
}

func newTestOrchestrator(t *testing.T, baseURL string) (*Orchestrator, storage.ObjectStore, *runlog.Repository) {
	t.Helper()

	cfg := config.NewConfig()
	cfg.Fitledger.System.Timezone = "UTC"
	cfg.Fitledger.Fitbit.APIBase = baseURL
	cfg.Fitledger.Fitbit.Retry.MaxAttempts = 1
	cfg.Fitledger.Runlog.Path = filepath.Join(t.TempDir(), "runlog.db")

	objects, err := storage.NewLocalStore(storage.LocalOptions{BaseDir: t.TempDir()})
	require.NoError(t, err)

	secretBacking, err := storage.NewLocalStore(storage.LocalOptions{BaseDir: t.TempDir()})
	require.NoError(t, err)
	secretStore := secrets.NewStoreWithBacking(secretBacking, "fitbit.json")
	raw, err := json.Marshal(secrets.Credentials{ClientID: "id", ClientSecret: "secret", RefreshToken: "ref-0"})
	require.NoError(t, err)
	require.NoError(t, secretBacking.Upload(context.Background(), "fitbit.json", strings.NewReader(string(raw))))

	client := fitbit.NewClient(cfg)
	refresher := fitbit.NewRefresher(secretStore, client)

	runs, err := runlog.NewRepository(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { runs.Close() })

	orch, err := NewOrchestrator(cfg, objects, client, refresher, runs, testRecorder)
	require.NoError(t, err)
	return orch, objects, runs
}

func TestRunIngestsAllCategories(t *testing.T) {
	srv := providerStub(t, false)
	defer srv.Close()

	orch, objects, runs := newTestOrchestrator(t, srv.URL)
	ctx := context.Background()

	report, err := orch.Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.True(t, report.Succeeded())
	require.Len(t, report.Results, len(record.Categories))
	for _, res := range report.Results {
		assert.NoError(t, res.Err, "category %s", res.Category)
		assert.Equal(t, 1, res.RowsMerged, "category %s", res.Category)
	}

	// All four parquet objects exist at their fixed keys.
	for _, cat := range record.Categories {
		rc, err := objects.Download(ctx, cat.ObjectKey("data"))
		require.NoError(t, err, "category %s", cat)
		rc.Close()
	}

	// The run is on record.
	latest, err := runs.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, report.RunID, latest.ID)
	assert.True(t, latest.Succeeded)
	assert.Len(t, latest.Categories, len(record.Categories))
}

func TestRunIsolatesCategoryFailures(t *testing.T) {
	srv := providerStub(t, true)
	defer srv.Close()

	orch, objects, runs := newTestOrchestrator(t, srv.URL)
	ctx := context.Background()

	report, err := orch.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "category steps")
	assert.False(t, report.Succeeded())

	// The other categories still landed.
	for _, cat := range []record.Category{record.CategorySleep, record.CategoryActivity, record.CategoryLowIntensity} {
		rc, err := objects.Download(ctx, cat.ObjectKey("data"))
		require.NoError(t, err, "category %s", cat)
		rc.Close()
	}
	_, err = objects.Download(ctx, record.CategorySteps.ObjectKey("data"))
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	latest, err := runs.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.False(t, latest.Succeeded)

	failed := 0
	for _, outcome := range latest.Categories {
		if outcome.Status == runlog.StatusFailed {
			failed++
			assert.Equal(t, record.CategorySteps.String(), outcome.Category)
			assert.NotEmpty(t, outcome.Error)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestRunAbortsWhenTokenRefreshFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/token" {
			http.Error(w, `{"errors":[{"errorType":"invalid_grant"}]}`, http.StatusBadRequest)
			return
		}
		t.Errorf("no data endpoint should be called after a token failure, got %s", r.URL.Path)
	}))
	defer srv.Close()

	orch, objects, runs := newTestOrchestrator(t, srv.URL)
	ctx := context.Background()

	report, err := orch.Run(ctx)
	require.Error(t, err)
	assert.Empty(t, report.Results)
	assert.False(t, report.Succeeded())

	for _, cat := range record.Categories {
		_, err := objects.Download(ctx, cat.ObjectKey("data"))
		assert.ErrorIs(t, err, storage.ErrObjectNotFound, "category %s", cat)
	}

	// The aborted run is still on record, marked failed.
	latest, err := runs.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.False(t, latest.Succeeded)
}

func TestLowIntensityUsesConfiguredThreshold(t *testing.T) {
	srv := providerStub(t, false)
	defer srv.Close()

	orch, objects, _ := newTestOrchestrator(t, srv.URL)
	ctx := context.Background()

	_, err := orch.Run(ctx)
	require.NoError(t, err)

	// The stub serves samples at 95 and 60 bpm; with the default threshold
	// of 90 exactly one counts.
	store, err := dataset.NewStore[record.LowIntensityRow](objects, record.CategoryLowIntensity, config.NewConfig().Fitledger.Dataset)
	require.NoError(t, err)
	rows, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 1.0, rows[0].LowIntensityMinutes, 1e-9)
	assert.Equal(t, "2026-08-22", rows[0].Date)
}
