// Package dashboard serves the analytical read side over HTTP: a small
// single-page dashboard plus a JSON API aggregating the columnar dataset.
package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fitledger/fitledger/internal/config"
	"github.com/fitledger/fitledger/internal/query"
	"github.com/fitledger/fitledger/internal/record"
	"github.com/fitledger/fitledger/internal/runlog"
	"github.com/fitledger/fitledger/internal/support/logger"
)

// Server holds the dashboard's dependencies and its HTTP router.
type Server struct {
	cfg    *config.Config
	engine *query.Engine
	runs   *runlog.Repository
	router chi.Router
}

// NewServer builds the dashboard server and its routes.
func NewServer(cfg *config.Config, engine *query.Engine, runs *runlog.Repository) *Server {
	s := &Server{cfg: cfg, engine: engine, runs: runs}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/summary", s.handleSummary)
		r.Get("/series/{category}", s.handleSeries)
		r.Get("/runs/latest", s.handleLatestRun)
	})

	s.router = r
	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// summaryCard is one category's headline number: the mean over the trailing
// seven days of the default window.
type summaryCard struct {
	Category string  `json:"category"`
	Title    string  `json:"title"`
	Unit     string  `json:"unit"`
	Average  float64 `json:"average"`
}

type summaryResponse struct {
	Range query.Range   `json:"range"`
	Cards []summaryCard `json:"cards"`
}

const trailingDays = 7

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	dc := s.cfg.Fitledger.Dashboard
	rng, err := query.DefaultRange(time.Now(), s.cfg.Fitledger.System.Timezone, dc.DefaultLookbackDays)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	// The summary is the batch load of the default window: it refreshes the
	// materialized dataset that in-window series requests are served from.
	resp := summaryResponse{Range: rng}
	for _, cat := range record.Categories {
		points, err := s.engine.DailySeries(r.Context(), cat, rng.Start, rng.End, true)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		resp.Cards = append(resp.Cards, summaryCard{
			Category: cat.String(),
			Title:    cat.Title(),
			Unit:     cat.Unit(),
			Average:  query.TrailingAverage(points, trailingDays, rng.End),
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type seriesResponse struct {
	Category      string             `json:"category"`
	Title         string             `json:"title"`
	Unit          string             `json:"unit"`
	Range         query.Range        `json:"range"`
	Requeried     bool               `json:"requeried"`
	Points        []query.DailyPoint `json:"points"`
	MovingAverage []float64          `json:"moving_average"`
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	cat, err := record.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}

	dc := s.cfg.Fitledger.Dashboard
	loaded, err := query.DefaultRange(time.Now(), s.cfg.Fitledger.System.Timezone, dc.DefaultLookbackDays)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	selected := query.Range{
		Start: r.URL.Query().Get("start"),
		End:   r.URL.Query().Get("end"),
	}
	rng, requeried := query.ResolveRange(selected, loaded)

	// In-window selections are served from the loaded dataset; selections
	// outside it force a bounded requery against the object store.
	points, err := s.engine.DailySeries(r.Context(), cat, rng.Start, rng.End, requeried)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, seriesResponse{
		Category:      cat.String(),
		Title:         cat.Title(),
		Unit:          cat.Unit(),
		Range:         rng,
		Requeried:     requeried,
		Points:        points,
		MovingAverage: query.MovingAverage(points, dc.MovingAverageWindow),
	})
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Latest(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, errNoRuns)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("Failed to write JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	logger.Warnf("Dashboard request failed (%d): %v", status, err)
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

var errNoRuns = &noRunsError{}

type noRunsError struct{}

func (*noRunsError) Error() string { return "no ingestion run recorded yet" }
