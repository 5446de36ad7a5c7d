// Package pipeline runs the offline phases that produce the dashboard state:
// load, clean, feature computation, model comparison and the final refit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/sartorproj/stockcast/config"
	"github.com/sartorproj/stockcast/eda"
	"github.com/sartorproj/stockcast/evaluate"
	"github.com/sartorproj/stockcast/features"
	"github.com/sartorproj/stockcast/forecast"
	"github.com/sartorproj/stockcast/logging"
	"github.com/sartorproj/stockcast/market"
	"github.com/sartorproj/stockcast/sarima"
	"github.com/sartorproj/stockcast/telemetry"
)

// Dataset is the cleaned series and its derived features.
type Dataset struct {
	Symbol        string
	Series        *market.PriceSeries
	Features      []features.Row
	Load          *market.LoadReport
	Clean         *market.CleanReport
	ReturnsCapped int
}

// State is everything the dashboard serves. It is built once and never
// modified afterwards, so it may be shared across requests.
type State struct {
	*Dataset
	Comparison   *evaluate.Comparison
	Forecaster   *forecast.Forecaster
	Reference    []forecast.Row
	ReferenceErr string
	BuiltAt      time.Time
}

// Runner executes pipeline stages with logging, tracing and metrics.
type Runner struct {
	cfg     *config.Config
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *telemetry.Metrics
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithTracer sets the tracer used for stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// WithMetrics records stage durations and model gauges.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// New creates a Runner for cfg.
func New(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.Discard()
	}
	r.logger = logging.Component(r.logger, "pipeline")
	if r.tracer == nil {
		r.tracer = noop.NewTracerProvider().Tracer(telemetry.InstrumentationName)
	}
	return r
}

// Candidates builds the configured model candidates in configuration order.
func Candidates(cfg config.ModelConfig) ([]evaluate.Candidate, error) {
	seen := make(map[evaluate.Kind]bool, len(cfg.Candidates))
	out := make([]evaluate.Candidate, 0, len(cfg.Candidates))
	for _, name := range cfg.Candidates {
		kind, err := evaluate.ParseKind(name)
		if err != nil {
			return nil, err
		}
		if seen[kind] {
			continue
		}
		seen[kind] = true
		out = append(out, candidate(kind, cfg))
	}
	if len(out) == 0 {
		return nil, errors.New("no model candidates configured")
	}
	return out, nil
}

func candidate(kind evaluate.Kind, cfg config.ModelConfig) evaluate.Candidate {
	switch kind {
	case evaluate.KindARIMA:
		return evaluate.ARIMA(1, 1, 1)
	case evaluate.KindSARIMA:
		return evaluate.SARIMA(sarima.Order{P: 1, D: 1, Q: 1, SP: 1, SD: 1, SQ: 1, M: cfg.SeasonalPeriod})
	default:
		return evaluate.XGBoost(cfg.Lags, cfg.Boost)
	}
}

// Limits converts the forecast section into horizon bounds.
func Limits(cfg config.ForecastConfig) forecast.Limits {
	return forecast.Limits{MinHorizon: cfg.MinHorizon, MaxHorizon: cfg.MaxHorizon}
}

// Prepare loads, cleans and featurizes the configured price file.
func (r *Runner) Prepare(ctx context.Context) (*Dataset, error) {
	dc := r.cfg.Data
	ds := &Dataset{Symbol: dc.Symbol}

	var records []market.PriceRecord
	err := r.stage(ctx, "load", func(ctx context.Context) error {
		var err error
		records, ds.Load, err = market.LoadFile(dc.Path, market.LoadOptions{
			DayFirst:   dc.DayFirst,
			DateFormat: dc.DateFormat,
		})
		if err != nil {
			return err
		}
		for _, s := range ds.Load.Skipped {
			r.logger.WarnContext(ctx, "row skipped", "line", s.Line, "value", s.Value, "reason", s.Reason)
		}
		r.logger.InfoContext(ctx, "prices loaded", "path", dc.Path, "rows", ds.Load.Rows, "valid", ds.Load.Valid)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, "clean", func(ctx context.Context) error {
		var err error
		ds.Series, ds.Clean, err = market.Clean(records, market.CleanOptions{
			Symbol:        dc.Symbol,
			Source:        dc.Path,
			MinRows:       dc.MinRows,
			CapVolume:     dc.CapVolume,
			IQRMultiplier: dc.IQRMultiplier,
		})
		if err != nil {
			return err
		}
		r.logger.InfoContext(ctx, "series cleaned",
			"business_days", ds.Clean.BusinessDays,
			"forward_filled", ds.Clean.ForwardFilled,
			"weekend_drops", ds.Clean.WeekendDrops,
			"capped", ds.Clean.Capped)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, "features", func(ctx context.Context) error {
		ds.Features = features.Compute(ds.Series)
		if dc.CapReturns {
			ds.ReturnsCapped = features.CapReturns(ds.Features, dc.IQRMultiplier)
		}
		r.logger.InfoContext(ctx, "features computed",
			"rows", len(ds.Features),
			"complete", len(features.Complete(ds.Features)),
			"returns_capped", ds.ReturnsCapped)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// Compare evaluates the configured candidates on ds.
func (r *Runner) Compare(ctx context.Context, ds *Dataset) (*evaluate.Comparison, error) {
	candidates, err := Candidates(r.cfg.Model)
	if err != nil {
		return nil, err
	}

	var cmp *evaluate.Comparison
	err = r.stage(ctx, "compare", func(ctx context.Context) error {
		var err error
		cmp, err = evaluate.Compare(ctx, ds.Series, candidates, evaluate.Options{TestFraction: r.cfg.Model.TestFraction})
		if cmp != nil {
			for _, f := range cmp.Failed {
				r.logger.WarnContext(ctx, "candidate excluded", "model", f.Model, "error", f.Error)
			}
		}
		if err != nil {
			return err
		}
		for _, res := range cmp.Results {
			if r.metrics != nil {
				r.metrics.ModelRMSE.WithLabelValues(res.Model).Set(res.RMSE)
			}
			r.logger.InfoContext(ctx, "candidate scored", "model", res.Model, "rmse", res.RMSE, "mae", res.MAE, "mape", res.MAPE)
		}
		r.logger.InfoContext(ctx, "best model selected", "model", cmp.Best.Model, "run_id", cmp.RunID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cmp, nil
}

// Refit fits the serving model on the full series. The forecast.model setting
// overrides the comparison winner.
func (r *Runner) Refit(ctx context.Context, ds *Dataset, cmp *evaluate.Comparison) (*forecast.Forecaster, error) {
	chosen := cmp.Candidate
	if name := r.cfg.Forecast.Model; name != "" {
		kind, err := evaluate.ParseKind(name)
		if err != nil {
			return nil, err
		}
		if kind != chosen.Kind {
			chosen = candidate(kind, r.cfg.Model)
			r.logger.InfoContext(ctx, "model overridden", "selected", cmp.Best.Model, "override", chosen.Name())
		}
	}

	var f *forecast.Forecaster
	err := r.stage(ctx, "refit", func(ctx context.Context) error {
		var err error
		f, err = forecast.Refit(chosen, ds.Series, Limits(r.cfg.Forecast))
		if err != nil {
			return err
		}
		r.metrics.SetServingModel(f.Model().Name())
		r.logger.InfoContext(ctx, "model refitted", "model", f.Model().Name(), "observations", f.NObs())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Run executes every stage and returns the serving state.
func (r *Runner) Run(ctx context.Context) (*State, error) {
	ctx, span := r.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(attribute.String("symbol", r.cfg.Data.Symbol)))
	defer span.End()

	ds, err := r.Prepare(ctx)
	if err != nil {
		return nil, fail(span, err)
	}
	cmp, err := r.Compare(ctx, ds)
	if err != nil {
		return nil, fail(span, err)
	}
	f, err := r.Refit(ctx, ds, cmp)
	if err != nil {
		return nil, fail(span, err)
	}

	state := &State{Dataset: ds, Comparison: cmp, Forecaster: f, BuiltAt: time.Now().UTC()}
	if path := r.cfg.Data.ReferencePath; path != "" {
		ref, err := forecast.LoadReference(path)
		if err != nil {
			state.ReferenceErr = err.Error()
			r.logger.WarnContext(ctx, "reference forecast unavailable", "path", path, "error", err)
		} else {
			state.Reference = ref
			r.logger.InfoContext(ctx, "reference forecast loaded", "path", path, "rows", len(ref))
		}
	}
	return state, nil
}

// EDA builds the exploratory report for ds.
func (r *Runner) EDA(ctx context.Context, ds *Dataset, suggest bool) (*eda.Report, error) {
	var rep *eda.Report
	err := r.stage(ctx, "eda", func(ctx context.Context) error {
		var err error
		rep, err = eda.Build(ctx, ds.Series, ds.Features, eda.Options{
			Period:  r.cfg.Model.SeasonalPeriod,
			Suggest: suggest,
		})
		return err
	})
	return rep, err
}

func (r *Runner) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := r.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	r.logger.DebugContext(ctx, "stage started", "stage", name)
	err := fn(ctx)
	r.metrics.ObserveStage(name, start)
	if err != nil {
		r.logger.ErrorContext(ctx, "stage failed", "stage", name, "error", err)
		return fail(span, fmt.Errorf("%s: %w", name, err))
	}
	r.logger.DebugContext(ctx, "stage completed", "stage", name, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
