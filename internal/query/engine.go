// Package query is the read side of the dataset: it materializes the
// per-category parquet objects from the object store into a local cache and
// aggregates them with DuckDB into daily series for the dashboard.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/fitledger/fitledger/internal/config"
	"github.com/fitledger/fitledger/internal/record"
	"github.com/fitledger/fitledger/internal/storage"
	"github.com/fitledger/fitledger/internal/support/exception"
	"github.com/fitledger/fitledger/internal/support/logger"

	"go.uber.org/fx"
)

// DailyPoint is one date's aggregated metric value.
type DailyPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Engine answers daily-series queries over the columnar dataset using an
// in-process DuckDB instance reading cached parquet files.
type Engine struct {
	db         *sql.DB
	objects    storage.ObjectStore
	basePrefix string
	cacheDir   string

	mu     sync.Mutex // guards synced and cache refreshes
	synced map[record.Category]bool
}

// NewEngine opens an in-memory DuckDB instance and prepares the parquet
// cache directory.
func NewEngine(cfg *config.Config, objects storage.ObjectStore) (*Engine, error) {
	cacheDir := cfg.Fitledger.Dashboard.CacheDir
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, exception.New(exception.ModuleQuery, fmt.Sprintf("failed to create cache directory %q", cacheDir), err, false)
	}
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, exception.New(exception.ModuleQuery, "failed to open duckdb", err, false)
	}
	return &Engine{
		db:         db,
		objects:    objects,
		basePrefix: cfg.Fitledger.Dataset.BasePrefix,
		cacheDir:   cacheDir,
		synced:     make(map[record.Category]bool),
	}, nil
}

// DailySeries returns the per-day aggregate of the category's metric within
// [start, end] (inclusive, YYYY-MM-DD), ordered by date ascending. Dates
// with several rows (sleep sessions) are summed. A category with no
// persisted object yields an empty series.
//
// With refresh false the query is served from the already-materialized
// cache file when one exists; refresh true re-downloads the object first.
// Callers pass the requery decision from ResolveRange as refresh.
func (e *Engine) DailySeries(ctx context.Context, cat record.Category, start, end string, refresh bool) ([]DailyPoint, error) {
	path, ok, err := e.syncCategory(ctx, cat, refresh)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	q := fmt.Sprintf(
		`SELECT date, SUM(%s) FROM read_parquet('%s') WHERE date >= ? AND date <= ? GROUP BY date ORDER BY date`,
		cat.MetricColumn(), escapeSQLString(path),
	)
	rows, err := e.db.QueryContext(ctx, q, start, end)
	if err != nil {
		return nil, exception.New(exception.ModuleQuery, fmt.Sprintf("daily series query failed for %s", cat), err, false)
	}
	defer rows.Close()

	var points []DailyPoint
	for rows.Next() {
		var p DailyPoint
		if err := rows.Scan(&p.Date, &p.Value); err != nil {
			return nil, exception.New(exception.ModuleQuery, fmt.Sprintf("failed to scan daily series row for %s", cat), err, false)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, exception.New(exception.ModuleQuery, fmt.Sprintf("daily series iteration failed for %s", cat), err, false)
	}
	return points, nil
}

// syncCategory materializes the category's parquet object into the cache
// directory and returns the local path. ok is false when the object does
// not exist yet. Unless refresh is set, a previously synced cache file is
// reused without touching the object store.
func (e *Engine) syncCategory(ctx context.Context, cat record.Category, refresh bool) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	local := filepath.Join(e.cacheDir, string(cat)+".parquet")
	if !refresh && e.synced[cat] {
		if _, err := os.Stat(local); err == nil {
			return local, true, nil
		}
		e.synced[cat] = false
	}

	rc, err := e.objects.Download(ctx, cat.ObjectKey(e.basePrefix))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			logger.Debugf("No store object for category %s yet.", cat)
			e.synced[cat] = false
			return "", false, nil
		}
		return "", false, exception.New(exception.ModuleStorageRead, fmt.Sprintf("failed to download store object for %s", cat), err, true)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(e.cacheDir, string(cat)+"-*.parquet")
	if err != nil {
		return "", false, exception.New(exception.ModuleQuery, "failed to create cache temp file", err, false)
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", false, exception.New(exception.ModuleQuery, fmt.Sprintf("failed to cache store object for %s", cat), err, true)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", false, exception.New(exception.ModuleQuery, "failed to close cache temp file", err, false)
	}
	if err := os.Rename(tmp.Name(), local); err != nil {
		os.Remove(tmp.Name())
		return "", false, exception.New(exception.ModuleQuery, "failed to move cached object into place", err, false)
	}
	e.synced[cat] = true
	return local, true, nil
}

// Close closes the DuckDB handle.
func (e *Engine) Close() error {
	return e.db.Close()
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Module provides the query engine and closes it on shutdown.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return engine.Close()
			},
		})
	}),
)
