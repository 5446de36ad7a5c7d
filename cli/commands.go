// Package cli defines the stockcast command tree.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/sartorproj/stockcast/config"
	"github.com/sartorproj/stockcast/dashboard"
	"github.com/sartorproj/stockcast/eda"
	"github.com/sartorproj/stockcast/forecast"
	"github.com/sartorproj/stockcast/logging"
	"github.com/sartorproj/stockcast/pipeline"
	"github.com/sartorproj/stockcast/telemetry"
)

// Version is set at build time with -ldflags "-X github.com/sartorproj/stockcast/cli.Version=...".
var Version = "dev"

// app holds what every command shares once the configuration is loaded.
type app struct {
	configPath string
	dataPath   string

	cfg      *config.Config
	logger   *slog.Logger
	closer   io.Closer
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	shutdown telemetry.ShutdownFunc
}

// Execute runs the command tree with ctx. The logger and tracer set up for the
// command are released afterwards, also when the command failed.
func Execute(ctx context.Context) error {
	a := &app{}
	return a.execute(ctx, newRootCmd(a))
}

// newRootCmd creates the root command. Without a subcommand it serves the
// dashboard.
func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stockcast",
		Short: "Daily closing price forecasting and dashboard",
		Long: `stockcast cleans a daily OHLCV price file, compares ARIMA, SARIMA and
gradient-boosted tree forecasts on a hold-out window, refits the best model on
the full history and serves its forecasts on a web dashboard.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Configuration file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&a.dataPath, "data", "", "Price CSV path, overrides data.path")

	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newEDACmd(a))
	rootCmd.AddCommand(newCompareCmd(a))
	rootCmd.AddCommand(newForecastCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func (a *app) execute(ctx context.Context, cmd *cobra.Command) error {
	err := cmd.ExecuteContext(ctx)
	return errors.Join(err, a.teardown(ctx))
}

// setup loads the configuration and builds the logger, metrics and tracer.
// Logs and spans go to diag so standard output carries only command results.
func (a *app) setup(diag io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dataPath != "" {
		cfg.Data.Path = a.dataPath
	}
	a.cfg = cfg

	a.logger, a.closer, err = logging.NewWithConsole(cfg.Logging, diag)
	if err != nil {
		return err
	}
	if cfg.Telemetry.Metrics {
		a.metrics = telemetry.NewMetrics()
	}
	a.tracer, a.shutdown, err = telemetry.SetupTracing(cfg.Telemetry, diag, a.logger)
	return err
}

// teardown flushes the tracer and closes the log file. It runs after ctx may
// have been canceled by a signal, so the flush gets its own deadline.
func (a *app) teardown(ctx context.Context) error {
	timeout := config.Default().Server.ShutdownTimeout
	if a.cfg != nil {
		timeout = a.cfg.Server.ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	var errs []error
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
		a.shutdown = nil
	}
	if a.closer != nil {
		errs = append(errs, a.closer.Close())
		a.closer = nil
	}
	return errors.Join(errs...)
}

func (a *app) runner() *pipeline.Runner {
	return pipeline.New(a.cfg,
		pipeline.WithLogger(a.logger),
		pipeline.WithTracer(a.tracer),
		pipeline.WithMetrics(a.metrics))
}

func (a *app) serve(ctx context.Context) error {
	state, err := a.runner().Run(ctx)
	if err != nil {
		return err
	}
	opts := []dashboard.Option{dashboard.WithLogger(a.logger)}
	if a.metrics != nil {
		opts = append(opts, dashboard.WithMetrics(a.metrics))
	}
	srv, err := dashboard.New(state, a.cfg, opts...)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline and serve the dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "Listen address, overrides server.addr")
	return cmd
}

func newEDACmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eda",
		Short: "Print the exploratory analysis of the price file",
		RunE: func(cmd *cobra.Command, args []string) error {
			suggest, _ := cmd.Flags().GetBool("suggest")
			r := a.runner()
			ds, err := r.Prepare(cmd.Context())
			if err != nil {
				return err
			}
			rep, err := r.EDA(cmd.Context(), ds, suggest)
			if err != nil {
				return err
			}
			return eda.Render(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().Bool("suggest", true, "Search for an ARIMA order")
	return cmd
}

func newCompareCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare the candidate models on the hold-out window",
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			r := a.runner()
			ds, err := r.Prepare(cmd.Context())
			if err != nil {
				return err
			}
			cmp, err := r.Compare(cmd.Context(), ds)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cmp)
			}
			return cmp.Render(cmd.OutOrStdout())
		},
	}
	cmd.Flags().Bool("json", false, "Print the comparison as JSON")
	return cmd
}

func newForecastCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast future closes and write them as CSV or XLSX",
		Long: `Runs the full pipeline and writes the forecast of the serving model.
The output format follows the file extension (.csv or .xlsx); without --out the
CSV is written to standard output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			horizon, _ := cmd.Flags().GetInt("horizon")
			out, _ := cmd.Flags().GetString("out")
			model, _ := cmd.Flags().GetString("model")
			if model != "" {
				a.cfg.Forecast.Model = model
			}
			if horizon == 0 {
				horizon = a.cfg.Forecast.DefaultHorizon
			}
			// Reject the horizon before running the pipeline.
			if err := pipeline.Limits(a.cfg.Forecast).Validate(horizon); err != nil {
				return err
			}

			state, err := a.runner().Run(cmd.Context())
			if err != nil {
				return err
			}
			res, err := state.Forecaster.Forecast(horizon)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				return forecast.WriteCSV(cmd.OutOrStdout(), res.Rows)
			}
			if err := writeForecast(out, res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d business days from %s written to %s\n",
				res.Model, res.Horizon, res.Rows[0].Date.Format("2006-01-02"), out)
			return nil
		},
	}
	cmd.Flags().IntP("horizon", "n", 0, "Business days to forecast (default: forecast.default_horizon)")
	cmd.Flags().StringP("out", "o", "", "Output file (.csv or .xlsx)")
	cmd.Flags().String("model", "", "Force a model kind: arima, sarima or xgboost")
	return cmd
}

func writeForecast(path string, res *forecast.Result) (err error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" && ext != ".xlsx" {
		return fmt.Errorf("unsupported output extension %q: use .csv or .xlsx", ext)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if ext == ".xlsx" {
		return forecast.WriteXLSX(f, res)
	}
	return forecast.WriteCSV(f, res.Rows)
}

func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	return configCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// Skips configuration loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "stockcast %s\n", Version)
		},
	}
}
