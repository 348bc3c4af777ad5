package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitledger/fitledger/internal/config"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Fitledger.Runlog.Path = filepath.Join(t.TempDir(), "runlog.db")

	repo, err := NewRepository(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestLatestOnEmptyHistory(t *testing.T) {
	repo := newTestRepository(t)

	run, err := repo.Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestRecordAndLatestRoundtrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	id := uuid.NewString()
	started := time.Now().Add(-time.Minute)
	err := repo.Record(ctx, &RunRecord{
		ID:         id,
		TargetDate: "2026-08-22",
		StartedAt:  started,
		FinishedAt: started.Add(30 * time.Second),
		Succeeded:  true,
		Categories: []CategoryOutcome{
			{RunID: id, Category: "sleep", Status: StatusSucceeded, RowsMerged: 12},
			{RunID: id, Category: "steps", Status: StatusFailed, Error: "status 502"},
		},
	})
	require.NoError(t, err)

	run, err := repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, id, run.ID)
	assert.Equal(t, "2026-08-22", run.TargetDate)
	assert.True(t, run.Succeeded)
	require.Len(t, run.Categories, 2)
	assert.Equal(t, StatusSucceeded, run.Categories[0].Status)
	assert.Equal(t, 12, run.Categories[0].RowsMerged)
	assert.Equal(t, "status 502", run.Categories[1].Error)
}

func TestLatestReturnsMostRecentRun(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	older := uuid.NewString()
	newer := uuid.NewString()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, repo.Record(ctx, &RunRecord{ID: older, TargetDate: "2026-08-21", StartedAt: base, FinishedAt: base}))
	require.NoError(t, repo.Record(ctx, &RunRecord{ID: newer, TargetDate: "2026-08-22", StartedAt: base.Add(time.Minute), FinishedAt: base.Add(time.Minute)}))

	run, err := repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, newer, run.ID)
}
