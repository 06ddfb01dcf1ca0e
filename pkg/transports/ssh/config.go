package ssh

import (
	"fmt"
	"time"
)

// ProbeKind selects how reachability is checked.
type ProbeKind string

const (
	// ProbeNetcat shells out to nc -z.
	ProbeNetcat ProbeKind = "nc"

	// ProbeDial opens a TCP connection in-process.
	ProbeDial ProbeKind = "dial"
)

// Config holds remote-shell client settings.
type Config struct {
	// Binary is the remote-shell client (default: ssh)
	Binary string

	// NetcatBinary is the reachability probe tool (default: nc)
	NetcatBinary string

	// Probe selects the reachability probe
	Probe ProbeKind

	// ProbeTimeout bounds a single dial probe
	ProbeTimeout time.Duration

	// Attempts is the maximum number of reachability probes per unit
	Attempts int

	// Interval is the delay between failed probes
	Interval time.Duration

	// Pause is the delay before each unit when not in debug mode
	Pause time.Duration
}

// DefaultConfig returns a Config with the standard polling budget.
func DefaultConfig() *Config {
	return &Config{
		Binary:       "ssh",
		NetcatBinary: "nc",
		Probe:        ProbeNetcat,
		ProbeTimeout: 3 * time.Second,
		Attempts:     DefaultAttempts,
		Interval:     DefaultInterval,
		Pause:        time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Binary == "" {
		return fmt.Errorf("remote shell binary is required")
	}

	switch c.Probe {
	case ProbeNetcat:
		if c.NetcatBinary == "" {
			return fmt.Errorf("netcat binary is required for the nc probe")
		}
	case ProbeDial:
		if c.ProbeTimeout <= 0 {
			return fmt.Errorf("probe timeout must be positive")
		}
	default:
		return fmt.Errorf("unsupported probe: %s", c.Probe)
	}

	if c.Attempts <= 0 {
		return fmt.Errorf("attempts must be positive")
	}

	if c.Interval < 0 || c.Pause < 0 {
		return fmt.Errorf("interval and pause must not be negative")
	}

	return nil
}

// RequiredTools lists the local binaries this configuration shells out to.
func (c *Config) RequiredTools() []string {
	tools := []string{c.Binary}
	if c.Probe == ProbeNetcat {
		tools = append(tools, c.NetcatBinary)
	}
	return tools
}

// NewProbe builds the configured reachability probe. A nil runner means the
// netcat probe uses ExecRunner.
func (c *Config) NewProbe(runner Runner) Probe {
	if c.Probe == ProbeDial {
		return DialProbe{Timeout: c.ProbeTimeout}
	}
	return NetcatProbe{Binary: c.NetcatBinary, Runner: runner}
}
