package ssh

import (
	"bytes"
	"io"
	"sync"
)

// PseudoTerminalWarning is printed by ssh when -t -t is used with piped stdin.
const PseudoTerminalWarning = "Pseudo-terminal will not be allocated because stdin is not a terminal."

// lineFilter forwards complete lines to w, dropping lines that equal one of
// the filtered strings once trailing whitespace is removed.
type lineFilter struct {
	mu      sync.Mutex
	w       io.Writer
	drop    map[string]bool
	pending []byte
}

func newLineFilter(w io.Writer, drop ...string) *lineFilter {
	f := &lineFilter{w: w, drop: make(map[string]bool, len(drop))}
	for _, d := range drop {
		f.drop[d] = true
	}
	return f
}

func (f *lineFilter) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pending = append(f.pending, p...)
	for {
		i := bytes.IndexByte(f.pending, '\n')
		if i < 0 {
			break
		}
		line := f.pending[:i+1]
		if err := f.emit(line); err != nil {
			return len(p), err
		}
		f.pending = f.pending[i+1:]
	}
	return len(p), nil
}

// Flush writes any unterminated trailing line.
func (f *lineFilter) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.pending) == 0 {
		return nil
	}
	err := f.emit(f.pending)
	f.pending = nil
	return err
}

func (f *lineFilter) emit(line []byte) error {
	if f.drop[string(bytes.TrimRight(line, " \t\r\n"))] {
		return nil
	}
	_, err := f.w.Write(line)
	return err
}
