package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/openfroyo/suite/pkg/script"
	"github.com/openfroyo/suite/pkg/telemetry"
)

// Orchestrator queues units and runs them in order against one connection.
type Orchestrator struct {
	conn     Connection
	executor Executor
	queue    *Queue

	logger        zerolog.Logger
	metrics       *telemetry.Metrics
	tracer        trace.Tracer
	recorder      Recorder
	notifier      Notifier
	stopOnFailure bool
	scriptOpts    []script.Option
	now           func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTracer sets the tracer used for run and unit spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithRecorder persists run history.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithNotifier receives reboot and shutdown notices.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithStopOnFailure stops the run after the first failed unit.
func WithStopOnFailure(stop bool) Option {
	return func(o *Orchestrator) { o.stopOnFailure = stop }
}

// WithScriptOptions configures every script built for deferred units.
func WithScriptOptions(opts ...script.Option) Option {
	return func(o *Orchestrator) { o.scriptOpts = append(o.scriptOpts, opts...) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator for conn.
func New(conn Connection, executor Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		conn:     conn,
		executor: executor,
		queue:    NewQueue(),
		logger:   zerolog.Nop(),
		tracer:   noop.NewTracerProvider().Tracer("engine"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Connection returns the run's connection.
func (o *Orchestrator) Connection() Connection {
	return o.conn
}

// Queue returns the unit queue.
func (o *Orchestrator) Queue() *Queue {
	return o.queue
}

// Register queues a deferred unit.
func (o *Orchestrator) Register(opts UnitOptions, build BuildFunc) *Orchestrator {
	o.queue.Push(DeferredUnit{Options: opts, Build: build})
	return o
}

// Enqueue queues a finished transcript that runs unconditionally.
func (o *Orchestrator) Enqueue(name, transcript string) *Orchestrator {
	o.queue.Push(TranscriptUnit{Name: name, Transcript: transcript})
	return o
}

// Shutdown queues a privileged halt.
func (o *Orchestrator) Shutdown() *Orchestrator {
	return o.Enqueue("shutdown", o.newScript().Exec(ShutdownCommand, script.Sudo()).String())
}

// Restart queues a privileged reboot.
func (o *Orchestrator) Restart() *Orchestrator {
	return o.Enqueue("restart", o.newScript().Exec(RebootCommand, script.Sudo()).String())
}

func (o *Orchestrator) newScript() *script.Script {
	return script.New(o.scriptOpts...)
}

// resolve turns a unit into a transcript. ok is false when the unit is
// filtered out or renders nothing.
func (o *Orchestrator) resolve(u Unit) (transcript string, ok bool, err error) {
	switch u := u.(type) {
	case TranscriptUnit:
		return u.Transcript, strings.TrimSpace(u.Transcript) != "", nil
	case DeferredUnit:
		transcript, ok, err := u.Evaluate(o.conn, o.newScript())
		if err != nil || !ok {
			return "", false, err
		}
		return transcript, strings.TrimSpace(transcript) != "", nil
	default:
		return "", false, nil
	}
}

// Export renders every queued unit without draining the queue or
// contacting the host. Filtered units are omitted.
func (o *Orchestrator) Export(ctx context.Context) ([]string, error) {
	var transcripts []string
	for _, u := range o.queue.Units() {
		if err := ctx.Err(); err != nil {
			return transcripts, NewCancelledError(err)
		}
		transcript, ok, err := o.resolve(u)
		if err != nil {
			return transcripts, err
		}
		if ok {
			transcripts = append(transcripts, transcript)
		}
	}
	return transcripts, nil
}

// RunSuite drains the queue and executes each unit in order.
//
// Environmental failures are recorded in the report and the run continues
// unless stop-on-failure is set. A unit that fails to build aborts the run
// and its error is returned alongside the partial report.
func (o *Orchestrator) RunSuite(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Status:    RunStatusRunning,
		StartedAt: o.now(),
	}
	units := o.queue.Drain()

	logger := o.logger.With().Str("run_id", report.RunID).Logger()
	ctx, span := o.tracer.Start(ctx, "suite.run", trace.WithAttributes(
		telemetry.AttrRunID.String(report.RunID),
		telemetry.AttrTargetHost.String(o.conn.Host),
		telemetry.AttrTargetPort.String(o.conn.Port),
	))
	defer span.End()

	o.metrics.RecordRunStarted()
	if o.recorder != nil {
		if err := o.recorder.RunStarted(ctx, report.RunID, o.conn, report.StartedAt); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run start")
		}
	}

	logger.Info().
		Str("target", o.conn.Target()).
		Int("units", len(units)).
		Strs("tags", o.conn.Tags).
		Msg("Starting suite")

	var runErr error
	for i, u := range units {
		if err := ctx.Err(); err != nil {
			runErr = NewCancelledError(err)
			for j := i; j < len(units); j++ {
				o.record(ctx, logger, report, UnitResult{
					Index: j, Name: units[j].Label(), Status: UnitStatusCancelled, ExitCode: -1,
				})
			}
			break
		}

		result, err := o.runUnit(ctx, logger, i, u)
		o.record(ctx, logger, report, result)

		if err != nil {
			runErr = err
			break
		}
		if o.stopOnFailure && result.Status.IsFailure() {
			logger.Warn().Str("unit", result.Name).Msg("Stopping after failed unit")
			break
		}
	}

	status := report.resolveStatus()
	switch {
	case IsCancelled(runErr):
		status = RunStatusCancelled
	case runErr != nil:
		status = RunStatusAborted
	}
	report.finish(status, o.now())

	span.SetAttributes(telemetry.AttrRunStatus.String(string(status)))
	if runErr != nil {
		telemetry.RecordError(span, runErr)
	} else {
		telemetry.RecordSuccess(span)
	}

	o.metrics.RecordRunCompleted(string(status), report.Duration())
	if o.recorder != nil {
		// The run context may already be cancelled; history still gets the final state.
		if err := o.recorder.RunFinished(context.WithoutCancel(ctx), report); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run completion")
		}
	}

	counts := report.Counts()
	logger.Info().
		Str("status", string(status)).
		Int("succeeded", counts[UnitStatusSucceeded]).
		Int("failed", counts[UnitStatusFailed]+counts[UnitStatusUnreachable]).
		Int("skipped", counts[UnitStatusSkipped]).
		Dur("duration", report.Duration()).
		Msg("Suite finished")

	return report, runErr
}

func (o *Orchestrator) runUnit(ctx context.Context, logger zerolog.Logger, index int, u Unit) (UnitResult, error) {
	result := UnitResult{Index: index, Name: u.Label(), ExitCode: -1}
	logger = logger.With().Int("unit", index).Str("name", result.Name).Logger()

	ctx, span := o.tracer.Start(ctx, "suite.unit", trace.WithAttributes(
		telemetry.AttrUnitIndex.Int(index),
		telemetry.AttrUnitName.String(result.Name),
	))
	defer span.End()

	transcript, ok, err := o.resolve(u)
	if err != nil {
		result.Status = UnitStatusMalformed
		result.Err = err
		result.Error = err.Error()
		telemetry.RecordError(span, err)
		logger.Error().Err(err).Msg("Unit failed to build")
		return result, err
	}
	if !ok {
		result.Status = UnitStatusSkipped
		span.SetAttributes(telemetry.AttrUnitStatus.String(string(result.Status)))
		logger.Debug().Msg("Unit skipped")
		return result, nil
	}

	result.Lines = strings.Count(transcript, "\n") + 1
	logger.Debug().Int("lines", result.Lines).Msg("Executing unit")

	outcome := o.executor.Execute(ctx, transcript)
	result.Status = outcome.Status
	result.ExitCode = outcome.ExitCode
	result.Duration = outcome.Duration
	result.Err = outcome.Err
	if outcome.Err != nil {
		result.Error = outcome.Err.Error()
	}

	span.SetAttributes(
		telemetry.AttrUnitStatus.String(string(result.Status)),
		telemetry.AttrUnitLines.Int(result.Lines),
		telemetry.AttrExitCode.Int(result.ExitCode),
	)
	if outcome.Err != nil {
		if class, ok := ClassOf(outcome.Err); ok {
			span.SetAttributes(telemetry.AttrErrorClass.String(string(class)))
		}
		telemetry.RecordError(span, outcome.Err)
	} else {
		telemetry.RecordSuccess(span)
	}

	if result.Status == UnitStatusSucceeded {
		o.announcePower(u)
	}

	return result, nil
}

func (o *Orchestrator) announcePower(u Unit) {
	if o.notifier == nil {
		return
	}

	var reboot, shutdown bool
	switch u := u.(type) {
	case DeferredUnit:
		reboot = u.Options.Reboot
		shutdown = u.Options.Shutdown && !reboot
	case TranscriptUnit:
		reboot = strings.Contains(u.Transcript, RebootCommand)
		shutdown = strings.Contains(u.Transcript, ShutdownCommand)
	}

	switch {
	case reboot:
		o.notifier.Notice("Waiting for server reboot!")
	case shutdown:
		o.notifier.Notice("Server shutdown requested!")
	}
}

func (o *Orchestrator) record(ctx context.Context, logger zerolog.Logger, report *Report, result UnitResult) {
	report.Units = append(report.Units, result)

	o.metrics.RecordUnit(string(result.Status), result.Duration)
	if class, ok := ClassOf(result.Err); ok {
		o.metrics.RecordError(string(class))
	}

	event := logger.Info()
	if result.Status.IsFailure() {
		event = logger.Warn()
	}
	event.Int("unit", result.Index).
		Str("name", result.Name).
		Str("status", string(result.Status)).
		Int("exit_code", result.ExitCode).
		Dur("duration", result.Duration).
		Msg("Unit finished")

	if o.recorder != nil {
		if err := o.recorder.UnitFinished(context.WithoutCancel(ctx), report.RunID, result); err != nil {
			logger.Warn().Err(err).Msg("Failed to record unit result")
		}
	}
}
