package engine

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultPort is the remote-shell port used when none is configured.
const DefaultPort = "22"

var validate = validator.New()

// Connection holds the resolved parameters for one orchestration run.
// Exactly one Connection exists per run.
type Connection struct {
	// Host is the remote hostname or IP address.
	Host string `json:"host" validate:"required,hostname_rfc1123|ip"`

	// Port is the remote-shell port.
	Port string `json:"port" validate:"required,numeric"`

	// User is the remote login name.
	User string `json:"user" validate:"required"`

	// Identity is an optional private key path.
	Identity string `json:"identity,omitempty" validate:"omitempty,file"`

	// Password is accepted for compatibility but never used.
	Password string `json:"-"`

	// Tags are the run tags requested at invocation time.
	Tags []string `json:"tags,omitempty"`

	// Debug previews every transcript and asks for confirmation.
	Debug bool `json:"debug"`
}

// Validate checks the connection parameters.
func (c Connection) Validate() error {
	if err := validate.Struct(c); err != nil {
		return NewValidationError("invalid connection", err)
	}

	port, _ := strconv.Atoi(c.Port)
	if port <= 0 || port > 65535 {
		return NewValidationError("invalid connection", fmt.Errorf("invalid port: %s", c.Port))
	}

	return nil
}

// Address returns host:port.
func (c Connection) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Target returns user@host.
func (c Connection) Target() string {
	if c.User == "" {
		return c.Host
	}
	return c.User + "@" + c.Host
}

// HasTags reports whether run tags were requested.
func (c Connection) HasTags() bool {
	return len(NormalizeTags(c.Tags)) > 0
}

// ParseTags splits a comma-separated tag list.
func ParseTags(raw string) []string {
	return NormalizeTags(strings.Split(raw, ","))
}

// NormalizeTags trims tags and drops empties and duplicates, keeping order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
