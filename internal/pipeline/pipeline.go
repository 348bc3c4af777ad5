// Package pipeline orchestrates one ingestion run: refresh the provider
// token, then for each category fetch yesterday's data, transform it into
// rows and merge it into the category's columnar store object.
//
// Token refresh failure aborts the whole run. A failure in one category is
// isolated: the remaining categories still run, and the errors are
// aggregated into the run result.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/fitledger/fitledger/internal/config"
	"github.com/fitledger/fitledger/internal/dataset"
	"github.com/fitledger/fitledger/internal/fitbit"
	"github.com/fitledger/fitledger/internal/metrics"
	"github.com/fitledger/fitledger/internal/record"
	"github.com/fitledger/fitledger/internal/runlog"
	"github.com/fitledger/fitledger/internal/storage"
	"github.com/fitledger/fitledger/internal/support/exception"
	"github.com/fitledger/fitledger/internal/support/logger"

	"go.uber.org/fx"
)

// CategoryResult is the outcome of one category's extract-and-merge step.
type CategoryResult struct {
	Category   record.Category
	RowsMerged int
	Err        error
}

// RunReport summarizes one orchestrator invocation.
type RunReport struct {
	RunID      string
	TargetDate string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []CategoryResult
}

// Succeeded reports whether every category merged without error. A run
// that aborted before reaching the categories (no results) did not succeed.
func (r *RunReport) Succeeded() bool {
	if len(r.Results) == 0 {
		return false
	}
	for _, res := range r.Results {
		if res.Err != nil {
			return false
		}
	}
	return true
}

// TargetDate resolves the ingestion target date: the calendar day before
// now in the given timezone, formatted as YYYY-MM-DD.
func TargetDate(now time.Time, timezone string) (string, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return "", exception.New(exception.ModuleConfig, fmt.Sprintf("invalid timezone %q", timezone), err, false)
	}
	return now.In(loc).AddDate(0, 0, -1).Format("2006-01-02"), nil
}

// Orchestrator wires the refresher, API client and the four category stores
// into a single daily run.
type Orchestrator struct {
	cfg       *config.Config
	client    *fitbit.Client
	refresher *fitbit.Refresher
	runs      *runlog.Repository
	recorder  *metrics.Recorder

	sleep        *dataset.Store[record.SleepRow]
	steps        *dataset.Store[record.StepsRow]
	activity     *dataset.Store[record.ActivityRow]
	lowIntensity *dataset.Store[record.LowIntensityRow]
}

// NewOrchestrator builds the orchestrator and its per-category stores.
func NewOrchestrator(
	cfg *config.Config,
	objects storage.ObjectStore,
	client *fitbit.Client,
	refresher *fitbit.Refresher,
	runs *runlog.Repository,
	recorder *metrics.Recorder,
) (*Orchestrator, error) {
	dc := cfg.Fitledger.Dataset
	sleep, err := dataset.NewStore[record.SleepRow](objects, record.CategorySleep, dc)
	if err != nil {
		return nil, err
	}
	steps, err := dataset.NewStore[record.StepsRow](objects, record.CategorySteps, dc)
	if err != nil {
		return nil, err
	}
	activity, err := dataset.NewStore[record.ActivityRow](objects, record.CategoryActivity, dc)
	if err != nil {
		return nil, err
	}
	lowIntensity, err := dataset.NewStore[record.LowIntensityRow](objects, record.CategoryLowIntensity, dc)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:          cfg,
		client:       client,
		refresher:    refresher,
		runs:         runs,
		recorder:     recorder,
		sleep:        sleep,
		steps:        steps,
		activity:     activity,
		lowIntensity: lowIntensity,
	}, nil
}

// Run executes one full ingestion run for yesterday's data. The returned
// report is always non-nil; the error aggregates whatever failed.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	date, err := TargetDate(time.Now(), o.cfg.Fitledger.System.Timezone)
	if err != nil {
		report.FinishedAt = time.Now()
		o.finish(ctx, report)
		return report, err
	}
	report.TargetDate = date
	logger.Infof("Starting ingestion run %s for %s.", report.RunID, date)

	pair, err := o.refresher.Refresh(ctx)
	if err != nil {
		logger.Errorf("Token refresh failed; aborting run %s: %v", report.RunID, err)
		report.FinishedAt = time.Now()
		o.finish(ctx, report)
		return report, err
	}

	var errs *multierror.Error
	for _, cat := range record.Categories {
		rows, err := o.ingest(ctx, cat, date, pair.AccessToken)
		if err != nil {
			logger.Errorf("Category %s failed for %s: %v", cat, date, err)
			errs = multierror.Append(errs, fmt.Errorf("category %s: %w", cat, err))
		}
		report.Results = append(report.Results, CategoryResult{Category: cat, RowsMerged: rows, Err: err})
		o.recorder.RecordCategory(cat.String(), err, rows)
	}

	report.FinishedAt = time.Now()
	o.finish(ctx, report)
	logger.Infof("Ingestion run %s finished in %s (succeeded=%t).",
		report.RunID, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond), report.Succeeded())
	return report, errs.ErrorOrNil()
}

// ingest runs the extract-transform-merge step for one category.
func (o *Orchestrator) ingest(ctx context.Context, cat record.Category, date, token string) (int, error) {
	switch cat {
	case record.CategorySleep:
		resp, err := o.client.FetchSleep(ctx, date, token)
		if err != nil {
			return 0, err
		}
		return o.sleep.MergeAndPersist(ctx, record.TransformSleep(resp))
	case record.CategorySteps:
		resp, err := o.client.FetchSteps(ctx, date, token)
		if err != nil {
			return 0, err
		}
		rows, err := record.TransformSteps(resp)
		if err != nil {
			return 0, err
		}
		return o.steps.MergeAndPersist(ctx, rows)
	case record.CategoryActivity:
		resp, err := o.client.FetchActivity(ctx, date, token)
		if err != nil {
			return 0, err
		}
		return o.activity.MergeAndPersist(ctx, record.TransformActivity(resp))
	case record.CategoryLowIntensity:
		resp, err := o.client.FetchHeartIntraday(ctx, date, token)
		if err != nil {
			return 0, err
		}
		rows := record.TransformLowIntensity(resp, o.cfg.Fitledger.Fitbit.HeartRateThreshold)
		return o.lowIntensity.MergeAndPersist(ctx, rows)
	}
	return 0, exception.Newf(exception.ModuleDataset, "unknown category %q", cat)
}

// finish records the run in the history database and the metrics registry.
// Bookkeeping failures are logged, not surfaced: they must not turn a
// successful ingestion into a failed one.
func (o *Orchestrator) finish(ctx context.Context, report *RunReport) {
	o.recorder.RecordRun(report.Succeeded(), report.FinishedAt.Sub(report.StartedAt))

	rec := &runlog.RunRecord{
		ID:         report.RunID,
		TargetDate: report.TargetDate,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Succeeded:  report.Succeeded(),
	}
	for _, res := range report.Results {
		outcome := runlog.CategoryOutcome{
			RunID:      report.RunID,
			Category:   res.Category.String(),
			Status:     runlog.StatusSucceeded,
			RowsMerged: res.RowsMerged,
		}
		if res.Err != nil {
			outcome.Status = runlog.StatusFailed
			outcome.Error = res.Err.Error()
		}
		rec.Categories = append(rec.Categories, outcome)
	}
	if err := o.runs.Record(ctx, rec); err != nil {
		logger.Warnf("Failed to record run %s in the run history: %v", report.RunID, err)
	}
}

// Module provides the ingestion orchestrator.
var Module = fx.Options(
	fx.Provide(NewOrchestrator),
)
