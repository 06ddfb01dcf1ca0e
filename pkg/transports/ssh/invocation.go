package ssh

import (
	"strings"

	"github.com/openfroyo/suite/pkg/engine"
)

const (
	// heredocMarker delimits the transcript in the rendered invocation.
	heredocMarker = "SCRIPT"

	// exitLine closes the remote interactive shell after the transcript.
	exitLine = "exit;"
)

// Invocation is one call of the external remote-shell client.
type Invocation struct {
	Binary     string
	Args       []string
	Transcript string
}

// BuildInvocation forces a pseudo-terminal and targets user@host with the
// optional identity and port flags.
func BuildInvocation(binary string, conn engine.Connection, transcript string) Invocation {
	if binary == "" {
		binary = "ssh"
	}

	args := []string{"-t", "-t"}
	if conn.Identity != "" {
		args = append(args, "-i", conn.Identity)
	}
	if conn.Port != "" {
		args = append(args, "-p", conn.Port)
	}
	args = append(args, conn.Target())

	return Invocation{Binary: binary, Args: args, Transcript: transcript}
}

// Stdin returns what the client reads: the transcript then the exit line.
func (i Invocation) Stdin() string {
	var b strings.Builder
	b.WriteString(i.Transcript)
	if i.Transcript != "" && !strings.HasSuffix(i.Transcript, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(exitLine)
	b.WriteByte('\n')
	return b.String()
}

// String renders the invocation as an equivalent shell here-document.
func (i Invocation) String() string {
	var b strings.Builder
	b.WriteString(i.Binary)
	for _, arg := range i.Args {
		b.WriteByte(' ')
		b.WriteString(arg)
	}
	b.WriteString(" <<-" + heredocMarker + "\n")
	b.WriteString(i.Stdin())
	b.WriteString(heredocMarker)
	return b.String()
}
