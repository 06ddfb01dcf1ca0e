package dsl

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/openfroyo/suite/pkg/engine"
	"github.com/openfroyo/suite/pkg/script"
)

func newTestOrchestrator(tags ...string) *engine.Orchestrator {
	conn := engine.Connection{Host: "10.0.0.5", Port: "22", User: "deploy", Tags: tags}
	exec := engine.ExecutorFunc(func(context.Context, string) engine.Outcome {
		return engine.Outcome{Status: engine.UnitStatusSucceeded}
	})
	return engine.New(conn, exec,
		engine.WithScriptOptions(script.WithTempPrefix("/tmp/test"), script.WithFileReader(nil)),
	)
}

func load(t *testing.T, src string, o *engine.Orchestrator) error {
	t.Helper()
	return NewLoader(WithTimeout(5*time.Second)).Load(context.Background(), "suite.star", []byte(src), o)
}

func export(t *testing.T, o *engine.Orchestrator) []string {
	t.Helper()
	transcripts, err := o.Export(context.Background())
	if err != nil {
		t.Fatalf("unexpected export error: %v", err)
	}
	return transcripts
}

func TestLoadRegistersUnitsInOrder(t *testing.T) {
	o := newTestOrchestrator()
	err := load(t, `
def web(s, ctx):
    s.install("nginx")

transcript("uptime", name="uptime")
script(web)
`, o)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	units := o.Queue().Units()
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	if units[0].Label() != "uptime" || units[1].Label() != "web" {
		t.Errorf("expected [uptime web], got [%s %s]", units[0].Label(), units[1].Label())
	}

	want := []string{
		"uptime",
		strings.Join([]string{
			"export DEBIAN_FRONTEND=noninteractive",
			`sudo su -c "/bin/bash" root <<-EOF`,
			"export DEBIAN_FRONTEND=noninteractive",
			"apt-get install -q -y nginx",
			"EOF",
		}, "\n"),
	}
	if diff := cmp.Diff(want, export(t, o)); diff != "" {
		t.Errorf("transcripts mismatch (-want +got):\n%s", diff)
	}
}

func TestScriptOptions(t *testing.T) {
	o := newTestOrchestrator("db")
	err := load(t, `
def noop(s):
    s.exec("true")

script(noop, name="web", tags=["web"])
script(noop, name="db", tag="db", reboot=True)
script(noop, name="halt", shutdown=True, tag_only=True)
`, o)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	units := o.Queue().Units()
	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(units))
	}

	tests := []struct {
		index int
		want  engine.UnitOptions
	}{
		{0, engine.UnitOptions{Name: "web", Tags: []string{"web"}}},
		{1, engine.UnitOptions{Name: "db", Tag: "db", Reboot: true}},
		{2, engine.UnitOptions{Name: "halt", Shutdown: true, TagOnly: true}},
	}
	for _, tt := range tests {
		t.Run(tt.want.Name, func(t *testing.T) {
			d, ok := units[tt.index].(engine.DeferredUnit)
			if !ok {
				t.Fatalf("expected deferred unit, got %T", units[tt.index])
			}
			if diff := cmp.Diff(tt.want, d.Options); diff != "" {
				t.Errorf("options mismatch (-want +got):\n%s", diff)
			}
		})
	}

	// web is filtered out by the run tags.
	transcripts := export(t, o)
	if len(transcripts) != 2 {
		t.Fatalf("expected 2 transcripts, got %d: %v", len(transcripts), transcripts)
	}
	if !strings.Contains(transcripts[0], engine.RebootCommand) {
		t.Errorf("expected reboot in db transcript:\n%s", transcripts[0])
	}
	if !strings.Contains(transcripts[1], engine.ShutdownCommand) {
		t.Errorf("expected shutdown in halt transcript:\n%s", transcripts[1])
	}
}

func TestConnectionContext(t *testing.T) {
	o := newTestOrchestrator("web", "db")
	err := load(t, `
def show(s, ctx):
    s.exec("echo %s@%s:%s %s %s" % (ctx.user, ctx.host, ctx.port, ",".join(ctx.tags), ctx.debug))

script(show)
`, o)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	want := []string{"echo deploy@10.0.0.5:22 web,db False"}
	if diff := cmp.Diff(want, export(t, o)); diff != "" {
		t.Errorf("transcripts mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilderMethods(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "exec as user",
			body: `s.exec("whoami", user="deploy")`,
			want: []string{`sudo su -c "/bin/bash" deploy <<-EOF`, "whoami", "EOF"},
		},
		{
			name: "chained calls",
			body: `s.setenv("APP_ENV", "prod").exec("make")`,
			want: []string{"export APP_ENV=prod", "make"},
		},
		{
			name: "service",
			body: `s.service("nginx", "restart")`,
			want: []string{`sudo su -c "/bin/bash" root <<-EOF`, "service nginx restart", "EOF"},
		},
		{
			name: "apt key from keyserver",
			body: `s.apt_key("ABCD", keyserver="keys.example.com")`,
			want: []string{`sudo su -c "/bin/bash" root <<-EOF`, "apt-key adv --keyserver keys.example.com --recv-keys ABCD", "EOF"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator()
			if err := load(t, "def unit(s):\n    "+tt.body+"\n\nscript(unit)\n", o); err != nil {
				t.Fatalf("unexpected load error: %v", err)
			}
			transcripts := export(t, o)
			if len(transcripts) != 1 {
				t.Fatalf("expected 1 transcript, got %d", len(transcripts))
			}
			if diff := cmp.Diff(strings.Join(tt.want, "\n"), transcripts[0]); diff != "" {
				t.Errorf("transcript mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIfInstalledBody(t *testing.T) {
	o := newTestOrchestrator()
	err := load(t, `
def unit(s):
    def body(b):
        b.exec("nginx -t")
    s.if_installed(["nginx"], body)

script(unit)
`, o)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	transcripts := export(t, o)
	if len(transcripts) != 1 {
		t.Fatalf("expected 1 transcript, got %d", len(transcripts))
	}
	if !strings.Contains(transcripts[0], "nginx -t") {
		t.Errorf("expected nested body in transcript:\n%s", transcripts[0])
	}
	if !strings.HasPrefix(transcripts[0], "if ") {
		t.Errorf("expected conditional block, got:\n%s", transcripts[0])
	}
}

func TestPowerBuiltins(t *testing.T) {
	o := newTestOrchestrator()
	if err := load(t, "restart()\nshutdown()\n", o); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	transcripts := export(t, o)
	if len(transcripts) != 2 {
		t.Fatalf("expected 2 transcripts, got %d", len(transcripts))
	}
	if !strings.Contains(transcripts[0], engine.RebootCommand) || !strings.Contains(transcripts[1], engine.ShutdownCommand) {
		t.Errorf("unexpected power transcripts: %v", transcripts)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax error", "def broken(:\n"},
		{"unknown builtin", "deploy()\n"},
		{"bad tags", "def u(s):\n    pass\nscript(u, tags=[1])\n"},
		{"missing function", "script()\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator()
			err := load(t, tt.src, o)
			if !engine.IsMalformedUnit(err) {
				t.Fatalf("expected malformed unit error, got %v", err)
			}
			if o.Queue().Len() != 0 {
				t.Errorf("expected nothing registered, got %d units", o.Queue().Len())
			}
		})
	}
}

func TestLoadIsAllOrNothing(t *testing.T) {
	o := newTestOrchestrator()
	err := load(t, "transcript(\"uptime\")\nfail(\"boom\")\n", o)
	if !engine.IsMalformedUnit(err) {
		t.Fatalf("expected malformed unit error, got %v", err)
	}
	if o.Queue().Len() != 0 {
		t.Errorf("expected no units after failed load, got %d", o.Queue().Len())
	}
}

func TestUnitErrorIsMalformed(t *testing.T) {
	o := newTestOrchestrator()
	err := load(t, `
def unit(s):
    s.install(42)

script(unit, name="broken")
`, o)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	_, err = o.RunSuite(context.Background())
	if !engine.IsMalformedUnit(err) {
		t.Fatalf("expected malformed unit error, got %v", err)
	}
}

func TestLoadTimeout(t *testing.T) {
	o := newTestOrchestrator()
	l := NewLoader(WithTimeout(50 * time.Millisecond))
	err := l.Load(context.Background(), "spin.star", []byte("def spin():\n    for i in range(1000000000):\n        pass\nspin()\n"), o)
	if !engine.IsMalformedUnit(err) {
		t.Fatalf("expected malformed unit error, got %v", err)
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("expected timeout message, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.star")
	if err := os.WriteFile(path, []byte("transcript(\"uptime\")\n"), 0o600); err != nil {
		t.Fatalf("failed to write suite: %v", err)
	}

	o := newTestOrchestrator()
	if err := NewLoader().LoadFile(context.Background(), path, o); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if o.Queue().Len() != 1 {
		t.Errorf("expected 1 unit, got %d", o.Queue().Len())
	}

	if err := NewLoader().LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.star"), o); !engine.IsMalformedUnit(err) {
		t.Errorf("expected malformed unit error, got %v", err)
	}
}
