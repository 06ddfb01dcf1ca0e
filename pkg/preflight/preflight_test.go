package preflight

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/openfroyo/suite/pkg/engine"
)

type fakePath struct {
	mu    sync.Mutex
	have  map[string]bool
	calls map[string]int
}

func (f *fakePath) lookPath(tool string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[tool]++
	if f.have[tool] {
		return "/usr/bin/" + tool, nil
	}
	return "", errors.New("not found")
}

func newFakePath(tools ...string) *fakePath {
	f := &fakePath{have: map[string]bool{}, calls: map[string]int{}}
	for _, t := range tools {
		f.have[t] = true
	}
	return f
}

func TestRequire(t *testing.T) {
	tests := []struct {
		name    string
		have    []string
		require []string
		wantMsg string
	}{
		{"all present", []string{"ssh", "nc"}, []string{"ssh", "nc"}, ""},
		{"one missing", []string{"ssh"}, []string{"ssh", "nc"}, `The required software packages "nc" could not be found in your $PATH.`},
		{"all missing", nil, []string{"ssh", "nc"}, `The required software packages "ssh, nc" could not be found in your $PATH.`},
		{"nothing required", nil, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(WithLookPath(newFakePath(tt.have...).lookPath))
			err := c.Require(tt.require...)

			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !engine.IsMissingDependency(err) {
				t.Fatalf("expected missing dependency error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected message %q, got %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestAvailableIsCached(t *testing.T) {
	fp := newFakePath("ssh")
	c := New(WithLookPath(fp.lookPath))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Available("ssh")
			c.Available("nc")
		}()
	}
	wg.Wait()

	if fp.calls["ssh"] != 1 || fp.calls["nc"] != 1 {
		t.Errorf("expected one lookup per tool, got %v", fp.calls)
	}
}
