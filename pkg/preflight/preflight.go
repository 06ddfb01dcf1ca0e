// Package preflight verifies that the local tools a run shells out to exist
// before any remote work starts.
package preflight

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/openfroyo/suite/pkg/engine"
)

// Checker looks tools up on PATH and caches the answers.
type Checker struct {
	mu       sync.Mutex
	cache    map[string]bool
	lookPath func(string) (string, error)
}

// Option configures a Checker.
type Option func(*Checker)

// WithLookPath replaces exec.LookPath.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(c *Checker) { c.lookPath = fn }
}

// New creates a Checker.
func New(opts ...Option) *Checker {
	c := &Checker{
		cache:    make(map[string]bool),
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether tool is on PATH.
func (c *Checker) Available(tool string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if found, ok := c.cache[tool]; ok {
		return found
	}

	path, err := c.lookPath(tool)
	found := err == nil
	c.cache[tool] = found
	log.Debug().Str("tool", tool).Str("path", path).Bool("found", found).Msg("Checked local tool")
	return found
}

// Require fails with one MissingDependency error naming every absent tool.
func (c *Checker) Require(tools ...string) error {
	var missing []string
	for _, tool := range tools {
		if !c.Available(tool) {
			missing = append(missing, tool)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	return engine.NewMissingDependencyError(
		fmt.Sprintf(`The required software packages "%s" could not be found in your $PATH.`, strings.Join(missing, ", ")),
		nil,
	).WithDetail("missing", missing)
}
