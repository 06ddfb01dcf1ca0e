package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/openfroyo/suite/pkg/engine"
	"github.com/openfroyo/suite/pkg/transports/ssh"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Connection.Port != "22" {
		t.Errorf("expected port 22, got %s", cfg.Connection.Port)
	}
	if cfg.Connection.User == "" {
		t.Error("expected the local user as default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}

	tc := cfg.TransportConfig()
	if diff := cmp.Diff(ssh.DefaultConfig(), tc); diff != "" {
		t.Errorf("transport config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
connection:
  host: 10.0.0.5
  port: "2222"
  user: deploy
  tags: [web, " db ", web]
logging:
  level: WARNING
  format: json
tracing:
  exporter: otlp
  endpoint: collector:4317
  sampling_rate: 0.5
metrics:
  textfile: /var/lib/node_exporter/froyo.prom
history:
  path: /var/lib/froyo/history.db
executor:
  probe: dial
  attempts: 3
  interval: 2s
fail_fast: true
`))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	conn := cfg.EngineConnection()
	want := engine.Connection{Host: "10.0.0.5", Port: "2222", User: "deploy", Tags: []string{"web", "db"}}
	if diff := cmp.Diff(want, conn); diff != "" {
		t.Errorf("connection mismatch (-want +got):\n%s", diff)
	}

	tel := cfg.TelemetryConfig("1.2.3")
	if tel.Logging.Level != "warn" || tel.Logging.Format != "json" {
		t.Errorf("unexpected logging config: %+v", tel.Logging)
	}
	if tel.Tracing.Exporter != "otlp" || tel.Tracing.Endpoint != "collector:4317" || tel.Tracing.SamplingRate != 0.5 {
		t.Errorf("unexpected tracing config: %+v", tel.Tracing)
	}
	if !tel.Metrics.Enabled || tel.Metrics.TextfilePath != "/var/lib/node_exporter/froyo.prom" {
		t.Errorf("unexpected metrics config: %+v", tel.Metrics)
	}
	if tel.ServiceVersion != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %s", tel.ServiceVersion)
	}
	if err := tel.Validate(); err != nil {
		t.Errorf("expected telemetry config to validate, got %v", err)
	}

	tc := cfg.TransportConfig()
	if tc.Probe != ssh.ProbeDial || tc.Attempts != 3 || tc.Interval != 2*time.Second {
		t.Errorf("unexpected transport config: %+v", tc)
	}
	if tc.Binary != "ssh" || tc.Pause != time.Second {
		t.Errorf("expected unset executor fields to keep defaults, got %+v", tc)
	}

	if cfg.HistoryPath() != "/var/lib/froyo/history.db" {
		t.Errorf("unexpected history path: %s", cfg.HistoryPath())
	}
	if !cfg.FailFast {
		t.Error("expected fail_fast to be set")
	}
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if cfg.Connection.Port != "22" {
		t.Errorf("expected default port, got %s", cfg.Connection.Port)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown key", "connection:\n  hots: x\n", "failed to parse config"},
		{"bad port", "connection:\n  port: ssh\n", "invalid config"},
		{"bad level", "logging:\n  level: loud\n", "invalid config"},
		{"otlp without endpoint", "tracing:\n  exporter: otlp\n", "invalid config"},
		{"bad probe", "executor:\n  probe: ping\n", "invalid config"},
		{"bad sampling", "tracing:\n  sampling_rate: 2\n", "invalid config"},
		{"bad duration", "executor:\n  interval: soon\n", "failed to parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvHost:     "web1.example.com",
		EnvPort:     "2200",
		EnvUser:     "ops",
		EnvIdentity: "/keys/id",
		EnvTags:     "web, db,,",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := Default()
	cfg.Connection.Host = "from-file"
	cfg.ApplyEnv(lookup)

	want := ConnectionConfig{
		Host:     "web1.example.com",
		Port:     "2200",
		User:     "ops",
		Identity: "/keys/id",
		Tags:     []string{"web", "db"},
	}
	if diff := cmp.Diff(want, cfg.Connection); diff != "" {
		t.Errorf("connection mismatch (-want +got):\n%s", diff)
	}

	cfg = Default()
	cfg.Connection.Host = "from-file"
	cfg.ApplyEnv(func(string) (string, bool) { return "", false })
	if cfg.Connection.Host != "from-file" {
		t.Errorf("expected file value to survive, got %s", cfg.Connection.Host)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "froyo.yaml")
	if err := os.WriteFile(path, []byte("connection:\n  host: 10.0.0.5\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.Connection.Host != "10.0.0.5" {
		t.Errorf("expected host 10.0.0.5, got %s", cfg.Connection.Host)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~/.froyo/history.db", filepath.Join(home, ".froyo/history.db")},
		{"/abs/path", "/abs/path"},
		{"", ""},
		{"~user/file", "~user/file"},
	}
	for _, tt := range tests {
		if got := expandHome(tt.in); got != tt.want {
			t.Errorf("expandHome(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
