package engine

import (
	"strings"

	"github.com/openfroyo/suite/pkg/script"
)

// UnitOptions controls when and how a deferred unit runs.
type UnitOptions struct {
	// Name labels the unit in logs and reports.
	Name string `json:"name,omitempty"`

	// Tags restricts the unit to runs requesting one of these tags.
	Tags []string `json:"tags,omitempty"`

	// Tag is a single-tag shorthand merged into Tags.
	Tag string `json:"tag,omitempty"`

	// TagOnly skips the unit when the run requested no tags.
	TagOnly bool `json:"tag_only,omitempty"`

	// Reboot appends a reboot to the transcript.
	Reboot bool `json:"reboot,omitempty"`

	// Shutdown appends a halt to the transcript. Reboot wins when both are set.
	Shutdown bool `json:"shutdown,omitempty"`
}

// RequestedTags returns Tags plus Tag, normalized.
func (o UnitOptions) RequestedTags() []string {
	tags := append([]string{}, o.Tags...)
	if o.Tag != "" {
		tags = append(tags, o.Tag)
	}
	return NormalizeTags(tags)
}

// Eligible applies the tag filter against the run's tags.
//
// A TagOnly unit needs run tags. When both the run and the unit name tags,
// they must share at least one. Everything else runs.
func (o UnitOptions) Eligible(conn Connection) bool {
	runTags := NormalizeTags(conn.Tags)
	if o.TagOnly && len(runTags) == 0 {
		return false
	}

	unitTags := o.RequestedTags()
	if len(runTags) == 0 || len(unitTags) == 0 {
		return true
	}

	for _, want := range unitTags {
		for _, have := range runTags {
			if want == have {
				return true
			}
		}
	}
	return false
}

// BuildFunc fills a fresh script for the given connection.
type BuildFunc func(conn Connection, s *script.Script) error

// Unit is an entry in the suite queue: either a TranscriptUnit or a DeferredUnit.
type Unit interface {
	// Label names the unit for logs and reports.
	Label() string

	unit()
}

// TranscriptUnit is a finished transcript that runs unconditionally.
type TranscriptUnit struct {
	Name       string
	Transcript string
}

// Label implements Unit.
func (u TranscriptUnit) Label() string {
	if u.Name != "" {
		return u.Name
	}
	return firstLine(u.Transcript)
}

func (TranscriptUnit) unit() {}

// DeferredUnit builds its transcript when the suite runs.
type DeferredUnit struct {
	Options UnitOptions
	Build   BuildFunc
}

// Label implements Unit.
func (u DeferredUnit) Label() string {
	if u.Options.Name != "" {
		return u.Options.Name
	}
	return "unit"
}

func (DeferredUnit) unit() {}

// Evaluate applies the tag filter and, if eligible, builds the transcript.
// ok is false when the unit is filtered out.
func (u DeferredUnit) Evaluate(conn Connection, s *script.Script) (transcript string, ok bool, err error) {
	if !u.Options.Eligible(conn) {
		return "", false, nil
	}

	if u.Build != nil {
		if err := u.Build(conn, s); err != nil {
			return "", false, NewMalformedUnitError(u.Label(), err).WithCode(ErrCodeBuildFailed)
		}
	}

	switch {
	case u.Options.Reboot:
		s.Exec(RebootCommand, script.Sudo())
	case u.Options.Shutdown:
		s.Exec(ShutdownCommand, script.Sudo())
	}

	return s.String(), true, nil
}

// Remote power commands.
const (
	RebootCommand   = "shutdown -r now"
	ShutdownCommand = "shutdown -h now"
)

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
