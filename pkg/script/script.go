// Package script builds shell transcripts for remote provisioning.
//
// A Script accumulates primitive operations (package management, downloads,
// service control, conditionals and raw commands) and renders them into a
// single POSIX shell transcript: environment exports first, then commands in
// insertion order.
package script

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// Script is an ordered command list plus an environment export table.
// Builder methods mutate the script and return it for chaining; rendering
// never mutates it.
type Script struct {
	commands []command

	// envKeys keeps environment insertion order; env holds the values.
	envKeys []string
	env     map[string]string

	// packages de-duplicates install/purge/remove targets per verb.
	packages map[PackageOp]map[string]bool

	tempPrefix string
	readFile   func(string) ([]byte, error)
}

// Option configures a Script.
type Option func(*Script)

// WithTempPrefix sets the path prefix used for temporary package downloads.
func WithTempPrefix(prefix string) Option {
	return func(s *Script) {
		s.tempPrefix = prefix
	}
}

// WithFileReader overrides how Exec resolves script-from-file arguments.
// A nil reader disables the lookup.
func WithFileReader(read func(string) ([]byte, error)) Option {
	return func(s *Script) {
		s.readFile = read
	}
}

// New creates an empty Script.
func New(opts ...Option) *Script {
	s := &Script{
		env:        make(map[string]string),
		packages:   make(map[PackageOp]map[string]bool),
		tempPrefix: "/tmp/froyo-" + uuid.NewString()[:8],
		readFile:   readRegularFile,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// nested creates a child script for a conditional block. It inherits the
// parent's options but none of its state.
func (s *Script) nested() *Script {
	return New(WithTempPrefix(s.tempPrefix), WithFileReader(s.readFile))
}

// Setenv records an environment export. Re-setting a key keeps its original
// position.
func (s *Script) Setenv(key, value string) *Script {
	key = strings.ToUpper(key)
	if _, ok := s.env[key]; !ok {
		s.envKeys = append(s.envKeys, key)
	}
	s.env[key] = value
	return s
}

// Environment returns the export table as ordered key/value pairs.
func (s *Script) Environment() [][2]string {
	out := make([][2]string, 0, len(s.envKeys))
	for _, k := range s.envKeys {
		out = append(out, [2]string{k, s.env[k]})
	}
	return out
}

// Commands returns each queued command rendered against the current export
// table.
func (s *Script) Commands() []string {
	env := s.Environment()
	out := make([]string, 0, len(s.commands))
	for _, cmd := range s.commands {
		out = append(out, strings.Join(cmd.lines(env), "\n"))
	}
	return out
}

// Empty reports whether the script holds neither commands nor exports.
func (s *Script) Empty() bool {
	return len(s.commands) == 0 && len(s.envKeys) == 0
}

// Render produces the transcript with every line prefixed by indent spaces.
// Privileged blocks carry the export table as it stands at render time.
func (s *Script) Render(indent int) string {
	return strings.Join(s.renderLines(strings.Repeat(" ", indent), nil), "\n")
}

// renderLines renders exports and commands. inherited holds the exports of
// enclosing scripts; privileged blocks see them merged under this script's own.
func (s *Script) renderLines(pad string, inherited [][2]string) []string {
	env := mergeEnv(inherited, s.Environment())
	lines := make([]string, 0, len(s.envKeys)+len(s.commands))

	for _, line := range s.exportLines() {
		lines = append(lines, pad+line)
	}
	for _, cmd := range s.commands {
		for _, line := range cmd.lines(env) {
			// <<- only strips tabs, so a space-indented terminator would
			// never close the here-document.
			if line == heredocTerminator {
				lines = append(lines, line)
				continue
			}
			lines = append(lines, pad+line)
		}
	}

	return lines
}

func mergeEnv(outer, inner [][2]string) [][2]string {
	if len(outer) == 0 {
		return inner
	}
	merged := append([][2]string(nil), outer...)
	for _, kv := range inner {
		replaced := false
		for i := range merged {
			if merged[i][0] == kv[0] {
				merged[i][1] = kv[1]
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, kv)
		}
	}
	return merged
}

// String renders the transcript without indentation.
func (s *Script) String() string {
	return s.Render(0)
}

func (s *Script) exportLines() []string {
	lines := make([]string, 0, len(s.envKeys))
	for _, k := range s.envKeys {
		lines = append(lines, "export "+k+"="+s.env[k])
	}
	return lines
}

func readRegularFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, os.ErrNotExist
	}
	return os.ReadFile(path)
}
