package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/suite/pkg/engine"
	"github.com/openfroyo/suite/pkg/telemetry"
	"github.com/openfroyo/suite/pkg/transports/ssh"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvHost     = "FROYO_HOST"
	EnvPort     = "FROYO_PORT"
	EnvUser     = "FROYO_USER"
	EnvIdentity = "FROYO_IDENTITY"
	EnvTags     = "FROYO_TAGS"
)

var validate = validator.New()

// Config is the on-disk configuration.
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	History    HistoryConfig    `yaml:"history"`
	Executor   ExecutorConfig   `yaml:"executor"`

	// FailFast stops the run after the first failed unit.
	FailFast bool `yaml:"fail_fast"`
}

// ConnectionConfig holds connection defaults.
type ConnectionConfig struct {
	Host     string   `yaml:"host"`
	Port     string   `yaml:"port" validate:"omitempty,numeric"`
	User     string   `yaml:"user"`
	Identity string   `yaml:"identity"`
	Tags     []string `yaml:"tags"`
	Debug    bool     `yaml:"debug"`
}

// LoggingConfig configures the run logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal"`
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`
	Output string `yaml:"output"`
	Caller bool   `yaml:"caller"`
}

// TracingConfig selects a span exporter.
type TracingConfig struct {
	Exporter     string  `yaml:"exporter" validate:"omitempty,oneof=none stdout otlp"`
	Endpoint     string  `yaml:"endpoint" validate:"required_if=Exporter otlp"`
	SamplingRate float64 `yaml:"sampling_rate" validate:"gte=0,lte=1"`
	Insecure     bool    `yaml:"insecure"`
}

// MetricsConfig configures the Prometheus textfile.
type MetricsConfig struct {
	Textfile  string `yaml:"textfile"`
	Namespace string `yaml:"namespace"`
}

// HistoryConfig locates the run history database. An empty path disables it.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// ExecutorConfig tunes the remote executor.
type ExecutorConfig struct {
	Binary       string        `yaml:"binary"`
	NetcatBinary string        `yaml:"netcat_binary"`
	Probe        string        `yaml:"probe" validate:"omitempty,oneof=nc dial"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" validate:"gte=0"`
	Attempts     int           `yaml:"attempts" validate:"gte=0"`
	Interval     time.Duration `yaml:"interval" validate:"gte=0"`
	Pause        time.Duration `yaml:"pause" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	ex := ssh.DefaultConfig()
	return &Config{
		Connection: ConnectionConfig{
			Port: engine.DefaultPort,
			User: currentUser(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Tracing: TracingConfig{
			Exporter:     "none",
			SamplingRate: 1.0,
			Insecure:     true,
		},
		Metrics: MetricsConfig{
			Namespace: telemetry.DefaultConfig().Metrics.Namespace,
		},
		Executor: ExecutorConfig{
			Binary:       ex.Binary,
			NetcatBinary: ex.NetcatBinary,
			Probe:        string(ex.Probe),
			ProbeTimeout: ex.ProbeTimeout,
			Attempts:     ex.Attempts,
			Interval:     ex.Interval,
			Pause:        ex.Pause,
		},
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ApplyEnv overrides connection fields from FROYO_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvHost); ok && v != "" {
		c.Connection.Host = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		c.Connection.Port = v
	}
	if v, ok := lookup(EnvUser); ok && v != "" {
		c.Connection.User = v
	}
	if v, ok := lookup(EnvIdentity); ok && v != "" {
		c.Connection.Identity = v
	}
	if v, ok := lookup(EnvTags); ok && v != "" {
		c.Connection.Tags = engine.ParseTags(v)
	}
}

// EngineConnection converts the connection section.
func (c *Config) EngineConnection() engine.Connection {
	return engine.Connection{
		Host:     c.Connection.Host,
		Port:     c.Connection.Port,
		User:     c.Connection.User,
		Identity: expandHome(c.Connection.Identity),
		Tags:     engine.NormalizeTags(c.Connection.Tags),
		Debug:    c.Connection.Debug,
	}
}

// TelemetryConfig converts the logging, tracing and metrics sections.
func (c *Config) TelemetryConfig(version string) *telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = version

	if c.Logging.Level != "" {
		tc.Logging.Level = normalizeLevel(c.Logging.Level)
	}
	if c.Logging.Format != "" {
		tc.Logging.Format = c.Logging.Format
	}
	if c.Logging.Output != "" {
		tc.Logging.Output = expandHome(c.Logging.Output)
	}
	tc.Logging.EnableCaller = c.Logging.Caller

	if c.Tracing.Exporter != "" {
		tc.Tracing.Exporter = c.Tracing.Exporter
	}
	tc.Tracing.Endpoint = c.Tracing.Endpoint
	tc.Tracing.SamplingRate = c.Tracing.SamplingRate
	tc.Tracing.Insecure = c.Tracing.Insecure

	if c.Metrics.Textfile != "" {
		tc.Metrics.Enabled = true
		tc.Metrics.TextfilePath = expandHome(c.Metrics.Textfile)
	}
	if c.Metrics.Namespace != "" {
		tc.Metrics.Namespace = c.Metrics.Namespace
	}

	return tc
}

// TransportConfig converts the executor section, keeping defaults for unset fields.
func (c *Config) TransportConfig() *ssh.Config {
	tc := ssh.DefaultConfig()
	if c.Executor.Binary != "" {
		tc.Binary = c.Executor.Binary
	}
	if c.Executor.NetcatBinary != "" {
		tc.NetcatBinary = c.Executor.NetcatBinary
	}
	if c.Executor.Probe != "" {
		tc.Probe = ssh.ProbeKind(c.Executor.Probe)
	}
	if c.Executor.ProbeTimeout > 0 {
		tc.ProbeTimeout = c.Executor.ProbeTimeout
	}
	if c.Executor.Attempts > 0 {
		tc.Attempts = c.Executor.Attempts
	}
	if c.Executor.Interval > 0 {
		tc.Interval = c.Executor.Interval
	}
	if c.Executor.Pause > 0 {
		tc.Pause = c.Executor.Pause
	}
	return tc
}

// HistoryPath returns the expanded history database path.
func (c *Config) HistoryPath() string {
	return expandHome(c.History.Path)
}

func normalizeLevel(level string) string {
	level = strings.ToLower(level)
	if level == "warning" {
		return "warn"
	}
	return level
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
