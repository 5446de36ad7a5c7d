// Package dashboard serves the forecast dashboard and its JSON API over a
// pipeline.State that never changes after startup.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/sartorproj/stockcast/config"
	"github.com/sartorproj/stockcast/forecast"
	"github.com/sartorproj/stockcast/logging"
	"github.com/sartorproj/stockcast/pipeline"
	"github.com/sartorproj/stockcast/telemetry"
	"github.com/sartorproj/stockcast/timeseries"
)


// Server renders the dashboard.
type Server struct {
	state     *pipeline.State
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	errors    *errorHandler
	page      *template.Template
	reference *forecast.ReferenceSummary
	router    chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics enables /metrics and request counting.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New builds the server and its routes.
func New(state *pipeline.State, cfg *config.Config, opts ...Option) (*Server, error) {
	if state == nil || state.Forecaster == nil || state.Comparison == nil || state.Dataset == nil || state.Clean == nil {
		return nil, errors.New("dashboard: incomplete pipeline state")
	}
	s := &Server{state: state, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	s.logger = logging.Component(s.logger, "dashboard")
	s.errors = newErrorHandler(s.logger)

	page, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	s.page = page

	if len(state.Reference) > 0 {
		s.reference = s.compareReference()
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(StructuredLogger(s.logger))
	r.Use(Recoverer(s.logger))
	if s.metrics != nil {
		r.Use(countRequests(s.metrics))
	}

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if rl := s.cfg.Server.RateLimit; rl.Enabled {
			r.Use(NewRateLimiter(rl.RPS, rl.Burst, s.logger).Handler)
		}

		r.Get("/", s.handleIndex)
		r.Get("/forecast.csv", s.handleForecastCSV)
		r.Get("/forecast.xlsx", s.handleForecastXLSX)
		r.Route("/chart", func(r chi.Router) {
			r.Get("/history.svg", s.handleHistoryChart)
			r.Get("/forecast.svg", s.handleForecastChart)
		})
		r.Route("/api", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))
			r.Get("/forecast", s.handleAPIForecast)
			r.Get("/summary", s.handleAPISummary)
			r.Get("/comparison", s.handleAPIComparison)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.errors.handle(w, r, NewAPIError(http.StatusNotFound, CodeNotFound, "resource not found"))
	})
	return r
}

// compareReference forecasts far enough to cover the reference run, within
// the horizon limits, and matches the two by date.
func (s *Server) compareReference() *forecast.ReferenceSummary {
	f := s.state.Forecaster
	lastRef := s.state.Reference[0].Date
	for _, row := range s.state.Reference {
		if row.Date.After(lastRef) {
			lastRef = row.Date
		}
	}

	limits := f.Limits()
	h := len(timeseries.BusinessDays(timeseries.NextBusinessDay(f.LastDate()), lastRef))
	h = min(max(h, limits.MinHorizon), limits.MaxHorizon)

	res, err := f.Forecast(h)
	if err != nil {
		s.logger.Warn("reference comparison failed", "error", err)
		return nil
	}
	sum := forecast.CompareReference(res.Rows, s.state.Reference)
	s.logger.Info("reference compared", "matched", sum.Matched, "mean_abs_delta", sum.MeanAbs, "in_band", sum.InBand)
	return sum
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	sc := s.cfg.Server
	srv := &http.Server{
		Addr:         sc.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", sc.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("dashboard shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":   "ok",
		"model":    s.state.Forecaster.Model().Name(),
		"built_at": s.state.BuiltAt.Format(time.RFC3339),
	})
}
