package dsl

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/openfroyo/suite/pkg/engine"
	"github.com/openfroyo/suite/pkg/script"
)

// DefaultTimeout bounds loading a file and building a single unit.
const DefaultTimeout = 30 * time.Second

// Loader executes suite files and registers their units.
type Loader struct {
	timeout time.Duration
	logger  zerolog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithTimeout sets the evaluation timeout.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) { l.timeout = d }
}

// WithLogger receives print() output and load diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.timeout <= 0 {
		l.timeout = DefaultTimeout
	}
	return l
}

// pending is a registration collected during evaluation. Nothing reaches
// the orchestrator unless the whole file evaluates cleanly.
type pending func(o *engine.Orchestrator)

// LoadFile reads and loads the suite file at path.
func (l *Loader) LoadFile(ctx context.Context, path string, o *engine.Orchestrator) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return engine.NewMalformedUnitError(path, err).WithOperation("load")
	}
	return l.Load(ctx, path, src, o)
}

// Load evaluates src and registers its units on o in file order.
func (l *Loader) Load(ctx context.Context, filename string, src []byte, o *engine.Orchestrator) error {
	evalCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	thread := l.newThread(filename)

	type result struct {
		regs []pending
		err  error
	}
	resultCh := make(chan result, 1)

	go func() {
		regs, err := l.evaluate(thread, filename, src)
		resultCh <- result{regs: regs, err: err}
	}()

	var res result
	select {
	case <-evalCtx.Done():
		thread.Cancel("load cancelled")
		if ctx.Err() != nil {
			return engine.NewCancelledError(ctx.Err())
		}
		return engine.NewMalformedUnitError(filename, fmt.Errorf("execution timeout after %v", l.timeout)).
			WithCode(engine.ErrCodeTimeout).
			WithOperation("load")
	case res = <-resultCh:
	}

	if res.err != nil {
		return engine.NewMalformedUnitError(filename, res.err).WithOperation("load")
	}

	for _, reg := range res.regs {
		reg(o)
	}
	l.logger.Debug().Str("file", filename).Int("units", len(res.regs)).Msg("Loaded suite file")
	return nil
}

func (l *Loader) evaluate(thread *starlark.Thread, filename string, src []byte) ([]pending, error) {
	var regs []pending

	predeclared := starlark.StringDict{
		"struct": starlarkstruct.Default,
		"script": starlark.NewBuiltin("script", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			opts, fn, err := unpackScript(b, args, kwargs)
			if err != nil {
				return nil, err
			}
			regs = append(regs, func(o *engine.Orchestrator) {
				o.Register(opts, l.buildFunc(filename, fn))
			})
			return starlark.None, nil
		}),
		"transcript": starlark.NewBuiltin("transcript", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var text, name string
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "text", &text, "name?", &name); err != nil {
				return nil, err
			}
			regs = append(regs, func(o *engine.Orchestrator) { o.Enqueue(name, text) })
			return starlark.None, nil
		}),
		"shutdown": starlark.NewBuiltin("shutdown", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
				return nil, err
			}
			regs = append(regs, func(o *engine.Orchestrator) { o.Shutdown() })
			return starlark.None, nil
		}),
		"restart": starlark.NewBuiltin("restart", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
				return nil, err
			}
			regs = append(regs, func(o *engine.Orchestrator) { o.Restart() })
			return starlark.None, nil
		}),
	}

	if _, err := starlark.ExecFile(thread, filename, src, predeclared); err != nil {
		return nil, err
	}
	return regs, nil
}

func unpackScript(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (engine.UnitOptions, starlark.Callable, error) {
	var (
		fn       starlark.Callable
		name     string
		tags     *starlark.List
		tag      string
		tagOnly  bool
		reboot   bool
		shutdown bool
	)
	err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"fn", &fn,
		"name?", &name,
		"tags?", &tags,
		"tag?", &tag,
		"tag_only?", &tagOnly,
		"reboot?", &reboot,
		"shutdown?", &shutdown,
	)
	if err != nil {
		return engine.UnitOptions{}, nil, err
	}

	list, err := stringList(b.Name()+": tags", tags)
	if err != nil {
		return engine.UnitOptions{}, nil, err
	}
	if name == "" {
		name = fn.Name()
	}

	return engine.UnitOptions{
		Name:     name,
		Tags:     list,
		Tag:      tag,
		TagOnly:  tagOnly,
		Reboot:   reboot,
		Shutdown: shutdown,
	}, fn, nil
}

// buildFunc calls a Starlark unit function on its own thread when the
// orchestrator evaluates the unit.
func (l *Loader) buildFunc(filename string, fn starlark.Callable) engine.BuildFunc {
	return func(conn engine.Connection, s *script.Script) error {
		thread := l.newThread(filename + ":" + fn.Name())
		timer := time.AfterFunc(l.timeout, func() {
			thread.Cancel(fmt.Sprintf("unit %s exceeded %v", fn.Name(), l.timeout))
		})
		defer timer.Stop()

		args := starlark.Tuple{newBuilder(s)}
		if f, ok := fn.(*starlark.Function); !ok || f.NumParams() != 1 {
			args = append(args, connectionStruct(conn))
		}

		if _, err := starlark.Call(thread, fn, args, nil); err != nil {
			if evalErr, ok := err.(*starlark.EvalError); ok {
				return fmt.Errorf("%s", evalErr.Backtrace())
			}
			return err
		}
		return nil
	}
}

func (l *Loader) newThread(name string) *starlark.Thread {
	logger := l.logger
	return &starlark.Thread{
		Name: name,
		Print: func(t *starlark.Thread, msg string) {
			logger.Info().Str("thread", t.Name).Msg(msg)
		},
	}
}

func connectionStruct(conn engine.Connection) *starlarkstruct.Struct {
	tags := make([]starlark.Value, 0, len(conn.Tags))
	for _, tag := range conn.Tags {
		tags = append(tags, starlark.String(tag))
	}
	return starlarkstruct.FromStringDict(starlark.String("ctx"), starlark.StringDict{
		"host":     starlark.String(conn.Host),
		"port":     starlark.String(conn.Port),
		"user":     starlark.String(conn.User),
		"identity": starlark.String(conn.Identity),
		"tags":     starlark.NewList(tags),
		"debug":    starlark.Bool(conn.Debug),
	})
}

// stringList converts an optional list of strings.
func stringList(what string, list *starlark.List) ([]string, error) {
	if list == nil {
		return nil, nil
	}
	out := make([]string, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		s, ok := starlark.AsString(list.Index(i))
		if !ok {
			return nil, fmt.Errorf("%s: element %d is %s, want string", what, i, list.Index(i).Type())
		}
		out = append(out, s)
	}
	return out, nil
}
