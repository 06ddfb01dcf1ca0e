package ssh

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/suite/pkg/console"
	"github.com/openfroyo/suite/pkg/engine"
	"github.com/openfroyo/suite/pkg/telemetry"
)

// Executor ships transcripts to one host through the external client.
type Executor struct {
	conn    engine.Connection
	config  *Config
	runner  Runner
	waiter  *Waiter
	console *console.Console
	stderr  io.Writer
	sleep   SleepFunc
	logger  zerolog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRunner replaces the child-process runner.
func WithRunner(r Runner) ExecutorOption {
	return func(e *Executor) { e.runner = r }
}

// WithProbe replaces the reachability probe.
func WithProbe(p Probe) ExecutorOption {
	return func(e *Executor) { e.waiter.Probe = p }
}

// WithSleep replaces the sleep used for pauses and probe intervals.
func WithSleep(s SleepFunc) ExecutorOption {
	return func(e *Executor) {
		e.sleep = s
		e.waiter.Sleep = s
	}
}

// WithStderr sets where the client's filtered stderr goes.
func WithStderr(w io.Writer) ExecutorOption {
	return func(e *Executor) { e.stderr = w }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithMetrics records reachability probes.
func WithMetrics(m *telemetry.Metrics) ExecutorOption {
	return func(e *Executor) { e.waiter.Metrics = m }
}

// NewExecutor creates an executor for conn. Output and prompts go through con.
func NewExecutor(conn engine.Connection, cfg *Config, con *console.Console, opts ...ExecutorOption) (*Executor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, engine.NewValidationError("invalid remote shell configuration", err)
	}

	e := &Executor{
		conn:    conn,
		config:  cfg,
		runner:  ExecRunner{},
		console: con,
		stderr:  os.Stderr,
		sleep:   Sleep,
		logger:  zerolog.Nop(),
	}

	e.waiter = &Waiter{
		Probe:    cfg.NewProbe(nil),
		Attempts: cfg.Attempts,
		Interval: cfg.Interval,
		Sleep:    Sleep,
		Out:      con.Writer(),
	}

	for _, opt := range opts {
		opt(e)
	}

	// The netcat probe shares the executor's runner.
	if np, ok := e.waiter.Probe.(NetcatProbe); ok && np.Runner == nil {
		np.Runner = e.runner
		e.waiter.Probe = np
	}

	return e, nil
}

// Execute implements engine.Executor.
func (e *Executor) Execute(ctx context.Context, transcript string) engine.Outcome {
	start := time.Now()
	inv := BuildInvocation(e.config.Binary, e.conn, transcript)
	logger := e.logger.With().Str("target", e.conn.Target()).Logger()

	outcome := func(status engine.UnitStatus, code int, err error) engine.Outcome {
		return engine.Outcome{Status: status, ExitCode: code, Duration: time.Since(start), Err: err}
	}

	if e.conn.Debug {
		e.preview(inv)
		ok, err := e.console.Confirm(ctx, "Should we continue?", false)
		if err != nil {
			logger.Warn().Err(err).Msg("Confirmation unavailable, skipping unit")
			return outcome(engine.UnitStatusDeclined, -1, engine.NewDeclinedError("confirmation unavailable").WithCode(engine.ErrCodeStartFailed))
		}
		if !ok {
			e.console.Notice("Skipping unit")
			return outcome(engine.UnitStatusDeclined, -1, engine.NewDeclinedError("operator declined the transcript"))
		}
	} else if err := e.sleep(ctx, e.config.Pause); err != nil {
		return outcome(engine.UnitStatusCancelled, -1, engine.NewCancelledError(err))
	}

	if !e.waiter.Wait(ctx, e.conn.Host, e.conn.Port) {
		if err := ctx.Err(); err != nil {
			return outcome(engine.UnitStatusCancelled, -1, engine.NewCancelledError(err))
		}
		err := engine.NewUnreachableError(
			fmt.Sprintf("%s did not accept connections after %d attempts", e.conn.Address(), e.waiter.Attempts), nil).
			WithCode(engine.ErrCodeTimeout)
		e.console.Failure("Could not reach %s", e.conn.Address())
		logger.Warn().Err(err).Msg("Host unreachable")
		return outcome(engine.UnitStatusUnreachable, -1, err)
	}

	filter := newLineFilter(e.stderr, PseudoTerminalWarning)
	logger.Debug().Str("command", inv.Binary+" "+strings.Join(inv.Args, " ")).Msg("Starting remote shell")

	code, err := e.runner.Run(ctx, Command{
		Name:   inv.Binary,
		Args:   inv.Args,
		Stdin:  strings.NewReader(inv.Stdin()),
		Stdout: e.console.Writer(),
		Stderr: filter,
	})
	if flushErr := filter.Flush(); flushErr != nil {
		logger.Debug().Err(flushErr).Msg("Failed to flush stderr")
	}

	switch {
	case err != nil && ctx.Err() != nil:
		return outcome(engine.UnitStatusCancelled, code, engine.NewCancelledError(err))
	case err != nil:
		e.console.Failure("Remote execution on %s could not start: %v", e.conn.Target(), err)
		return outcome(engine.UnitStatusFailed, -1,
			engine.NewRemoteFailureError(-1, err).WithCode(engine.ErrCodeStartFailed))
	case code != 0:
		e.console.Failure("Remote execution on %s failed with status %d", e.conn.Target(), code)
		return outcome(engine.UnitStatusFailed, code,
			engine.NewRemoteFailureError(code, nil).WithCode(engine.ErrCodeExitStatus))
	}

	e.console.Success("Remote execution on %s succeeded", e.conn.Target())
	return outcome(engine.UnitStatusSucceeded, 0, nil)
}

// PreviewHeader is the banner shown above a transcript in debug mode.
func PreviewHeader(conn engine.Connection) string {
	return fmt.Sprintf("About to run remote process over ssh on %s:%s", conn.Target(), conn.Port)
}

func (e *Executor) preview(inv Invocation) {
	header := PreviewHeader(e.conn)
	rule := strings.Repeat("#", len(header))
	e.console.Println(console.Blue, "%s", header)
	e.console.Println(console.Blue, "%s", rule)
	e.console.Println(console.Green, "%s", inv.String())
	e.console.Println(console.Blue, "%s", rule)
}
