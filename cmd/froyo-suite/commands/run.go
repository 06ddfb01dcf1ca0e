package commands

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/suite/pkg/config"
	"github.com/openfroyo/suite/pkg/console"
	"github.com/openfroyo/suite/pkg/dsl"
	"github.com/openfroyo/suite/pkg/engine"
	"github.com/openfroyo/suite/pkg/preflight"
	"github.com/openfroyo/suite/pkg/stores"
	"github.com/openfroyo/suite/pkg/telemetry"
	"github.com/openfroyo/suite/pkg/transports/ssh"
)

// Tests replace these to run without local tools or a remote host.
var (
	lookPath    = exec.LookPath
	newExecutor = func(conn engine.Connection, cfg *ssh.Config, con *console.Console, opts ...ssh.ExecutorOption) (engine.Executor, error) {
		return ssh.NewExecutor(conn, cfg, con, opts...)
	}
)

// runFlags are the run-only flags layered over the config file.
type runFlags struct {
	history       string
	metricsFile   string
	trace         string
	traceEndpoint string
	probe         string
	failFast      bool
}

func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("history") {
		cfg.History.Path = f.history
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.Textfile = f.metricsFile
	}
	if flags.Changed("trace") {
		cfg.Tracing.Exporter = f.trace
	}
	if flags.Changed("trace-endpoint") {
		cfg.Tracing.Endpoint = f.traceEndpoint
	}
	if flags.Changed("probe") {
		cfg.Executor.Probe = f.probe
	}
	if f.failFast {
		cfg.FailFast = true
	}
}

func newRunCommand(opts *globalOptions) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <suite.star>...",
		Short: "Run suite files against the remote host",
		Long: `Load every suite file in order, then build and execute each unit against
the host. Units whose tags do not match the run tags are skipped.

The command exits non-zero when any unit failed or the host was unreachable.`,
		Example: `  # Run a suite as the local user
  froyo-suite run -H 10.0.0.5 site.star

  # Only units tagged web, previewing each transcript first
  froyo-suite run -H web1 -u deploy -t web --debug site.star

  # Record history and export metrics
  froyo-suite run -H web1 --history ~/.froyo/history.db --metrics-file /var/lib/node_exporter/froyo.prom site.star`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd, func(cfg *config.Config) { flags.apply(cmd, cfg) })
			if err != nil {
				return err
			}
			return runSuite(cmd.Context(), opts, cfg, args)
		},
	}

	cmd.Flags().StringVar(&flags.history, "history", "", "record runs in this SQLite database")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after the run")
	cmd.Flags().StringVar(&flags.trace, "trace", "", "trace exporter (none, stdout, otlp)")
	cmd.Flags().StringVar(&flags.traceEndpoint, "trace-endpoint", "", "OTLP collector endpoint")
	cmd.Flags().StringVar(&flags.probe, "probe", "", "reachability probe (nc, dial)")
	cmd.Flags().BoolVar(&flags.failFast, "fail-fast", false, "stop after the first failed unit")

	return cmd
}

func runSuite(ctx context.Context, opts *globalOptions, cfg *config.Config, files []string) error {
	transport := cfg.TransportConfig()
	if err := preflight.New(preflight.WithLookPath(lookPath)).Require(transport.RequiredTools()...); err != nil {
		return err
	}

	conn := opts.connection(cfg)
	if err := conn.Validate(); err != nil {
		return err
	}

	tel, err := telemetry.NewTelemetry(cfg.TelemetryConfig(opts.version), os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}()
	logger := tel.Logger.NewComponentLogger("suite").Zerolog()

	con := console.Stdio()
	executor, err := newExecutor(conn, transport, con,
		ssh.WithLogger(tel.Logger.NewComponentLogger("ssh").Zerolog()),
		ssh.WithMetrics(tel.Metrics),
	)
	if err != nil {
		return err
	}

	orchOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMetrics(tel.Metrics),
		engine.WithTracer(tel.Tracer.Tracer()),
		engine.WithNotifier(con),
		engine.WithStopOnFailure(cfg.FailFast),
	}

	if path := cfg.HistoryPath(); path != "" {
		store, err := openHistory(ctx, path)
		if err != nil {
			return err
		}
		defer store.Close()
		orchOpts = append(orchOpts, engine.WithRecorder(stores.NewHistoryRecorder(store)))
	}

	orch := engine.New(conn, executor, orchOpts...)

	loader := dsl.NewLoader(dsl.WithLogger(tel.Logger.NewComponentLogger("dsl").Zerolog()))
	for _, file := range files {
		if err := loader.LoadFile(ctx, file, orch); err != nil {
			return err
		}
	}

	report, err := orch.RunSuite(ctx)
	printSummary(con, report)
	if err != nil {
		return err
	}
	if !report.Succeeded() {
		return &ExitError{Code: 1}
	}
	return nil
}

func openHistory(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func printSummary(con *console.Console, report *engine.Report) {
	if report == nil {
		return
	}
	counts := report.Counts()
	failed := counts[engine.UnitStatusFailed] + counts[engine.UnitStatusUnreachable] +
		counts[engine.UnitStatusMalformed] + counts[engine.UnitStatusCancelled]

	color := console.Green
	if failed > 0 {
		color = console.Red
	}
	con.Println(color, "%d units: %d succeeded, %d failed, %d skipped, %d declined (%s)",
		len(report.Units),
		counts[engine.UnitStatusSucceeded],
		failed,
		counts[engine.UnitStatusSkipped],
		counts[engine.UnitStatusDeclined],
		report.Duration().Round(time.Millisecond),
	)
}
