package ssh

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/openfroyo/suite/pkg/telemetry"
)

// Default polling budget.
const (
	DefaultAttempts = 6
	DefaultInterval = 4 * time.Second
)

// Probe reports whether host:port currently accepts TCP connections.
type Probe interface {
	Probe(ctx context.Context, host, port string) bool
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context, host, port string) bool

// Probe calls f.
func (f ProbeFunc) Probe(ctx context.Context, host, port string) bool {
	return f(ctx, host, port)
}

// NetcatProbe runs nc -z host port.
type NetcatProbe struct {
	Binary string
	Runner Runner
}

// Probe implements Probe.
func (p NetcatProbe) Probe(ctx context.Context, host, port string) bool {
	binary := p.Binary
	if binary == "" {
		binary = "nc"
	}
	runner := p.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	code, err := runner.Run(ctx, Command{
		Name:   binary,
		Args:   []string{"-z", host, port},
		Stdout: io.Discard,
		Stderr: io.Discard,
	})
	return err == nil && code == 0
}

// DialProbe opens and closes a TCP connection.
type DialProbe struct {
	Timeout time.Duration
}

// Probe implements Probe.
func (p DialProbe) Probe(ctx context.Context, host, port string) bool {
	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// SleepFunc blocks for d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Waiter polls a probe until the host is reachable or the budget runs out.
type Waiter struct {
	Probe    Probe
	Attempts int
	Interval time.Duration
	Sleep    SleepFunc
	Out      io.Writer
	Metrics  *telemetry.Metrics
}

// NewWaiter returns a waiter with the default budget writing progress to out.
func NewWaiter(probe Probe, out io.Writer) *Waiter {
	return &Waiter{
		Probe:    probe,
		Attempts: DefaultAttempts,
		Interval: DefaultInterval,
		Sleep:    Sleep,
		Out:      out,
	}
}

// Wait probes until the host answers or the attempt budget runs out. The
// first failed probe prints a waiting indicator and every failed probe adds a
// dot. A host that answers at once prints nothing. There is no delay after the
// final failed attempt.
func (w *Waiter) Wait(ctx context.Context, host, port string) bool {
	attempts := w.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	sleep := w.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	out := w.Out
	if out == nil {
		out = io.Discard
	}

	for i := 0; i < attempts; i++ {
		ok := w.Probe.Probe(ctx, host, port)
		w.Metrics.RecordProbe(ok)
		if ok {
			if i > 0 {
				fmt.Fprintln(out)
			}
			return true
		}

		if i == 0 {
			fmt.Fprint(out, "Waiting for ssh...")
		}
		fmt.Fprint(out, ".")

		if i < attempts-1 {
			if err := sleep(ctx, w.Interval); err != nil {
				fmt.Fprintln(out)
				return false
			}
		}
	}
	fmt.Fprintln(out)
	return false
}
