package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/openfroyo/suite/pkg/script"
)

// fakeExecutor records transcripts and replays scripted outcomes.
type fakeExecutor struct {
	mu          sync.Mutex
	transcripts []string
	outcomes    []Outcome
}

func (f *fakeExecutor) Execute(ctx context.Context, transcript string) Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, transcript)
	if len(f.outcomes) == 0 {
		return Outcome{Status: UnitStatusSucceeded, ExitCode: 0, Duration: time.Millisecond}
	}
	out := f.outcomes[0]
	f.outcomes = f.outcomes[1:]
	return out
}

type fakeNotifier struct {
	notices []string
}

func (n *fakeNotifier) Notice(format string, args ...interface{}) {
	n.notices = append(n.notices, format)
}

type fakeRecorder struct {
	started  []string
	units    []UnitResult
	finished []*Report
}

func (r *fakeRecorder) RunStarted(ctx context.Context, runID string, conn Connection, at time.Time) error {
	r.started = append(r.started, runID)
	return nil
}

func (r *fakeRecorder) UnitFinished(ctx context.Context, runID string, result UnitResult) error {
	r.units = append(r.units, result)
	return nil
}

func (r *fakeRecorder) RunFinished(ctx context.Context, report *Report) error {
	r.finished = append(r.finished, report)
	return errors.New("disk full")
}

func testConnection(tags ...string) Connection {
	return Connection{Host: "10.0.0.5", Port: "22", User: "deploy", Tags: tags}
}

func newTestOrchestrator(conn Connection, exec Executor, opts ...Option) *Orchestrator {
	opts = append([]Option{WithScriptOptions(script.WithTempPrefix("/tmp/test"), script.WithFileReader(nil))}, opts...)
	return New(conn, exec, opts...)
}

func TestEligible(t *testing.T) {
	tests := []struct {
		name    string
		runTags []string
		opts    UnitOptions
		want    bool
	}{
		{"untagged unit, untagged run", nil, UnitOptions{}, true},
		{"untagged unit, tagged run", []string{"web"}, UnitOptions{}, true},
		{"tagged unit, untagged run", nil, UnitOptions{Tags: []string{"web"}}, true},
		{"tagged unit, matching run", []string{"web"}, UnitOptions{Tags: []string{"db", "web"}}, true},
		{"tagged unit, other run", []string{"db"}, UnitOptions{Tags: []string{"web"}}, false},
		{"single tag shorthand matches", []string{"web"}, UnitOptions{Tag: "web"}, true},
		{"single tag shorthand misses", []string{"db"}, UnitOptions{Tag: "web"}, false},
		{"tag only, untagged run", nil, UnitOptions{TagOnly: true}, false},
		{"tag only, tagged run, untagged unit", []string{"db"}, UnitOptions{TagOnly: true}, true},
		{"tag only, matching run", []string{"web"}, UnitOptions{TagOnly: true, Tag: "web"}, true},
		{"tag only, other run", []string{"db"}, UnitOptions{TagOnly: true, Tag: "web"}, false},
		{"blank run tags count as none", []string{" ", ""}, UnitOptions{TagOnly: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.Eligible(testConnection(tt.runTags...)); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestParseTags(t *testing.T) {
	got := ParseTags(" web, db ,,web")
	if diff := cmp.Diff([]string{"web", "db"}, got); diff != "" {
		t.Errorf("ParseTags mismatch (-want +got):\n%s", diff)
	}
}

func TestConnectionValidate(t *testing.T) {
	tests := []struct {
		name    string
		conn    Connection
		wantErr bool
	}{
		{"ip", Connection{Host: "10.0.0.5", Port: "22", User: "root"}, false},
		{"hostname", Connection{Host: "web01.example.com", Port: "2222", User: "root"}, false},
		{"missing host", Connection{Port: "22", User: "root"}, true},
		{"missing user", Connection{Host: "10.0.0.5", Port: "22"}, true},
		{"non-numeric port", Connection{Host: "10.0.0.5", Port: "ssh", User: "root"}, true},
		{"port out of range", Connection{Host: "10.0.0.5", Port: "70000", User: "root"}, true},
		{"missing identity file", Connection{Host: "10.0.0.5", Port: "22", User: "root", Identity: "/nonexistent/key"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conn.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
			if err == nil {
				return
			}
			if !IsValidation(err) || IsMissingDependency(err) {
				t.Errorf("expected validation error, got %v", err)
			}
			if !errors.Is(err, &EngineError{Class: ErrorClassValidation, Code: ErrCodeValidation}) {
				t.Errorf("expected %s code, got %v", ErrCodeValidation, err)
			}
		})
	}
}

func TestQueueOrderAndDrain(t *testing.T) {
	q := NewQueue()
	q.Push(TranscriptUnit{Name: "a"})
	q.Push(TranscriptUnit{Name: "b"})
	q.Push(TranscriptUnit{Name: "c"})

	if q.Len() != 3 {
		t.Fatalf("expected 3 units, got %d", q.Len())
	}

	var names []string
	for _, u := range q.Drain() {
		names = append(names, u.Label())
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, names); diff != "" {
		t.Errorf("drain order mismatch (-want +got):\n%s", diff)
	}
	if q.Len() != 0 {
		t.Errorf("expected empty queue after drain, got %d", q.Len())
	}
}

func TestRunSuiteEndToEnd(t *testing.T) {
	exec := &fakeExecutor{}
	o := newTestOrchestrator(testConnection(), exec)

	o.Register(UnitOptions{Name: "web"}, func(conn Connection, s *script.Script) error {
		if conn.Host != "10.0.0.5" {
			t.Errorf("expected connection host, got %q", conn.Host)
		}
		s.Install("nginx")
		return nil
	})

	report, err := o.RunSuite(context.Background())
	if err != nil {
		t.Fatalf("RunSuite failed: %v", err)
	}

	want := strings.Join([]string{
		"export DEBIAN_FRONTEND=noninteractive",
		`sudo su -c "/bin/bash" root <<-EOF`,
		"export DEBIAN_FRONTEND=noninteractive",
		"apt-get install -q -y nginx",
		"EOF",
	}, "\n")
	if diff := cmp.Diff([]string{want}, exec.transcripts); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}

	if report.Status != RunStatusSucceeded || !report.Succeeded() {
		t.Errorf("expected succeeded report, got %s", report.Status)
	}
	if len(report.Units) != 1 || report.Units[0].Lines != 5 {
		t.Errorf("expected one 5-line unit, got %+v", report.Units)
	}
	if o.Queue().Len() != 0 {
		t.Errorf("expected queue drained, got %d", o.Queue().Len())
	}
}

func TestRunSuiteOrderAndFiltering(t *testing.T) {
	exec := &fakeExecutor{}
	o := newTestOrchestrator(testConnection("db"), exec)

	o.Enqueue("first", "echo first")
	o.Register(UnitOptions{Name: "web", Tag: "web"}, func(conn Connection, s *script.Script) error {
		s.Exec("echo web")
		return nil
	})
	o.Register(UnitOptions{Name: "db", Tag: "db"}, func(conn Connection, s *script.Script) error {
		s.Exec("echo db")
		return nil
	})
	o.Register(UnitOptions{Name: "empty"}, func(conn Connection, s *script.Script) error {
		return nil
	})
	o.Enqueue("last", "echo last")

	report, err := o.RunSuite(context.Background())
	if err != nil {
		t.Fatalf("RunSuite failed: %v", err)
	}

	if diff := cmp.Diff([]string{"echo first", "echo db", "echo last"}, exec.transcripts); diff != "" {
		t.Errorf("executed transcripts mismatch (-want +got):\n%s", diff)
	}

	var statuses []UnitStatus
	for _, u := range report.Units {
		statuses = append(statuses, u.Status)
	}
	wantStatuses := []UnitStatus{
		UnitStatusSucceeded, UnitStatusSkipped, UnitStatusSucceeded, UnitStatusSkipped, UnitStatusSucceeded,
	}
	if diff := cmp.Diff(wantStatuses, statuses); diff != "" {
		t.Errorf("statuses mismatch (-want +got):\n%s", diff)
	}
}

func TestRunSuiteMalformedUnitStopsRun(t *testing.T) {
	exec := &fakeExecutor{}
	o := newTestOrchestrator(testConnection(), exec)

	o.Enqueue("before", "echo before")
	o.Register(UnitOptions{Name: "broken"}, func(conn Connection, s *script.Script) error {
		return errors.New("undefined variable")
	})
	o.Enqueue("after", "echo after")

	report, err := o.RunSuite(context.Background())
	if !IsMalformedUnit(err) {
		t.Fatalf("expected malformed unit error, got %v", err)
	}

	var engErr *EngineError
	if !errors.As(err, &engErr) || engErr.Unit != "broken" {
		t.Errorf("expected error to name the unit, got %v", err)
	}
	if diff := cmp.Diff([]string{"echo before"}, exec.transcripts); diff != "" {
		t.Errorf("executed transcripts mismatch (-want +got):\n%s", diff)
	}
	if report.Status != RunStatusAborted {
		t.Errorf("expected aborted status, got %s", report.Status)
	}
	if got := report.Units[len(report.Units)-1].Status; got != UnitStatusMalformed {
		t.Errorf("expected last result malformed, got %s", got)
	}
}

func TestRunSuiteContinuesAfterEnvironmentalFailure(t *testing.T) {
	exec := &fakeExecutor{outcomes: []Outcome{
		{Status: UnitStatusUnreachable, ExitCode: -1, Err: NewUnreachableError("no route", nil)},
		{Status: UnitStatusFailed, ExitCode: 100, Err: NewRemoteFailureError(100, nil)},
		{Status: UnitStatusSucceeded},
	}}
	o := newTestOrchestrator(testConnection(), exec)
	o.Enqueue("a", "echo a").Enqueue("b", "echo b").Enqueue("c", "echo c")

	report, err := o.RunSuite(context.Background())
	if err != nil {
		t.Fatalf("expected no run error, got %v", err)
	}
	if len(exec.transcripts) != 3 {
		t.Errorf("expected 3 executions, got %d", len(exec.transcripts))
	}
	if report.Succeeded() || report.Status != RunStatusFailed {
		t.Errorf("expected failed report, got %s", report.Status)
	}

	counts := report.Counts()
	if counts[UnitStatusUnreachable] != 1 || counts[UnitStatusFailed] != 1 || counts[UnitStatusSucceeded] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
	if report.Units[1].ExitCode != 100 {
		t.Errorf("expected exit code 100, got %d", report.Units[1].ExitCode)
	}
}

func TestRunSuiteStopOnFailure(t *testing.T) {
	exec := &fakeExecutor{outcomes: []Outcome{
		{Status: UnitStatusFailed, ExitCode: 1},
	}}
	o := newTestOrchestrator(testConnection(), exec, WithStopOnFailure(true))
	o.Enqueue("a", "echo a").Enqueue("b", "echo b")

	report, err := o.RunSuite(context.Background())
	if err != nil {
		t.Fatalf("expected no run error, got %v", err)
	}
	if len(exec.transcripts) != 1 || len(report.Units) != 1 {
		t.Errorf("expected run to stop after first unit, got %d executions", len(exec.transcripts))
	}
}

func TestRunSuiteDeclinedIsNotAFailure(t *testing.T) {
	exec := &fakeExecutor{outcomes: []Outcome{
		{Status: UnitStatusDeclined, ExitCode: -1, Err: NewDeclinedError("declined")},
	}}
	o := newTestOrchestrator(testConnection(), exec)
	o.Enqueue("a", "echo a").Enqueue("b", "echo b")

	report, err := o.RunSuite(context.Background())
	if err != nil {
		t.Fatalf("RunSuite failed: %v", err)
	}
	if len(exec.transcripts) != 2 {
		t.Errorf("expected the second unit to still run, got %d executions", len(exec.transcripts))
	}
	if !report.Succeeded() {
		t.Error("expected a declined unit not to fail the run")
	}
}

func TestRunSuiteCancelled(t *testing.T) {
	exec := &fakeExecutor{}
	o := newTestOrchestrator(testConnection(), exec)
	o.Enqueue("a", "echo a").Enqueue("b", "echo b")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := o.RunSuite(ctx)
	if !IsCancelled(err) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if len(exec.transcripts) != 0 {
		t.Errorf("expected nothing executed, got %d", len(exec.transcripts))
	}
	if report.Status != RunStatusCancelled || len(report.Units) != 2 {
		t.Errorf("expected 2 cancelled units, got %s with %d", report.Status, len(report.Units))
	}
}

func TestShutdownAndRestart(t *testing.T) {
	exec := &fakeExecutor{}
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(testConnection(), exec, WithNotifier(notifier))
	o.Restart().Shutdown()

	if _, err := o.RunSuite(context.Background()); err != nil {
		t.Fatalf("RunSuite failed: %v", err)
	}

	if len(exec.transcripts) != 2 {
		t.Fatalf("expected 2 transcripts, got %d", len(exec.transcripts))
	}
	if !strings.Contains(exec.transcripts[0], "shutdown -r now") {
		t.Errorf("expected reboot transcript, got %q", exec.transcripts[0])
	}
	if !strings.Contains(exec.transcripts[1], "shutdown -h now") {
		t.Errorf("expected halt transcript, got %q", exec.transcripts[1])
	}
	if !strings.HasPrefix(exec.transcripts[0], `sudo su -c "/bin/bash" root <<-EOF`) {
		t.Errorf("expected privileged wrapper, got %q", exec.transcripts[0])
	}

	want := []string{"Waiting for server reboot!", "Server shutdown requested!"}
	if diff := cmp.Diff(want, notifier.notices); diff != "" {
		t.Errorf("notices mismatch (-want +got):\n%s", diff)
	}
}

func TestRebootWinsOverShutdown(t *testing.T) {
	exec := &fakeExecutor{}
	o := newTestOrchestrator(testConnection(), exec)
	o.Register(UnitOptions{Reboot: true, Shutdown: true}, func(conn Connection, s *script.Script) error {
		s.Update()
		return nil
	})

	out, err := o.Export(context.Background())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 transcript, got %d", len(out))
	}
	if !strings.Contains(out[0], RebootCommand) || strings.Contains(out[0], ShutdownCommand) {
		t.Errorf("expected only a reboot, got %q", out[0])
	}
}

func TestExportDoesNotDrain(t *testing.T) {
	exec := &fakeExecutor{}
	o := newTestOrchestrator(testConnection(), exec)
	o.Enqueue("a", "echo a")
	o.Register(UnitOptions{TagOnly: true}, func(conn Connection, s *script.Script) error {
		s.Exec("echo tagged")
		return nil
	})

	out, err := o.Export(context.Background())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if diff := cmp.Diff([]string{"echo a"}, out); diff != "" {
		t.Errorf("export mismatch (-want +got):\n%s", diff)
	}
	if o.Queue().Len() != 2 {
		t.Errorf("expected queue untouched, got %d", o.Queue().Len())
	}
	if len(exec.transcripts) != 0 {
		t.Errorf("expected no execution during export, got %d", len(exec.transcripts))
	}
}

func TestRecorderErrorsDoNotFailRun(t *testing.T) {
	rec := &fakeRecorder{}
	o := newTestOrchestrator(testConnection(), &fakeExecutor{}, WithRecorder(rec))
	o.Enqueue("a", "echo a")

	report, err := o.RunSuite(context.Background())
	if err != nil {
		t.Fatalf("RunSuite failed: %v", err)
	}
	if len(rec.started) != 1 || rec.started[0] != report.RunID {
		t.Errorf("expected run start recorded, got %v", rec.started)
	}
	if len(rec.units) != 1 || len(rec.finished) != 1 {
		t.Errorf("expected unit and finish recorded, got %d and %d", len(rec.units), len(rec.finished))
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		class     ErrorClass
		retryable bool
	}{
		{"unreachable", NewUnreachableError("x", nil), ErrorClassUnreachable, true},
		{"remote", NewRemoteFailureError(2, nil), ErrorClassRemoteFailure, false},
		{"malformed", NewMalformedUnitError("u", nil), ErrorClassMalformedUnit, false},
		{"missing", NewMissingDependencyError("x", nil), ErrorClassMissingDependency, false},
		{"validation", NewValidationError("x", nil), ErrorClassValidation, false},
		{"wrapped", errors.Join(errors.New("ctx"), NewUnreachableError("x", nil)), ErrorClassUnreachable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, ok := ClassOf(tt.err)
			if !ok || class != tt.class {
				t.Errorf("expected class %s, got %s (ok=%v)", tt.class, class, ok)
			}
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("expected retryable=%v, got %v", tt.retryable, got)
			}
		})
	}

	if _, ok := ClassOf(errors.New("plain")); ok {
		t.Error("expected plain error to have no class")
	}
}
