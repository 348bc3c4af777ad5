// Package runlog persists a history of ingestion runs in a small sqlite
// database: one record per orchestrator invocation with per-category
// outcomes. The dashboard surfaces the most recent run.
package runlog

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fitledger/fitledger/internal/config"
	"github.com/fitledger/fitledger/internal/support/logger"

	"go.uber.org/fx"
)

// RunRecord is one orchestrator invocation.
type RunRecord struct {
	ID         string `gorm:"primaryKey"`
	TargetDate string `gorm:"index"`
	StartedAt  time.Time
	FinishedAt time.Time
	Succeeded  bool
	Categories []CategoryOutcome `gorm:"foreignKey:RunID"`
}

// CategoryOutcome is the per-category result line of a run.
type CategoryOutcome struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	RunID      string `gorm:"index"`
	Category   string
	Status     string // "succeeded" or "failed"
	RowsMerged int
	Error      string
}

// Outcome status values.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Repository stores and retrieves run records.
type Repository struct {
	db *gorm.DB
}

// NewRepository opens (and migrates) the run history database at the
// configured path.
func NewRepository(cfg *config.Config) (*Repository, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Fitledger.Runlog.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&RunRecord{}, &CategoryOutcome{}); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

// Record persists a run record with its category outcomes.
func (r *Repository) Record(ctx context.Context, run *RunRecord) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Latest returns the most recently started run, or nil when no run has
// been recorded yet.
func (r *Repository) Latest(ctx context.Context) (*RunRecord, error) {
	var run RunRecord
	err := r.db.WithContext(ctx).
		Preload("Categories").
		Order("started_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Close closes the underlying database handle.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Module provides the run history repository and closes it on shutdown.
var Module = fx.Options(
	fx.Provide(NewRepository),
	fx.Invoke(func(lc fx.Lifecycle, repo *Repository) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				logger.Debugf("Closing run history database.")
				return repo.Close()
			},
		})
	}),
)
