package script

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultSudoUser is the account privileged blocks switch to.
const DefaultSudoUser = "root"

const heredocTerminator = "EOF"

// command is one queued entry. Privileged and conditional entries are
// expanded at render time.
type command struct {
	text string
	sudo bool
	user string

	// cond and body describe an if-block; body is nil for plain commands.
	cond string
	body *Script
}

func (c command) lines(env [][2]string) []string {
	switch {
	case c.body != nil:
		lines := []string{"if " + c.cond + "; then"}
		lines = append(lines, c.body.renderLines("  ", env)...)
		return append(lines, "fi")
	case c.sudo:
		return strings.Split(wrapSudo(c.text, c.user, env), "\n")
	default:
		return strings.Split(c.text, "\n")
	}
}

type execConfig struct {
	sudo bool
	user string
}

// ExecOption adjusts how a command is appended.
type ExecOption func(*execConfig)

// Sudo runs the command as root through a privileged shell.
func Sudo() ExecOption {
	return func(c *execConfig) {
		c.sudo = true
	}
}

// SudoUser runs the command through a privileged shell as user.
// An empty user means root.
func SudoUser(user string) ExecOption {
	return func(c *execConfig) {
		c.sudo = true
		c.user = user
	}
}

// Exec appends a raw command. When textOrPath names an existing local file
// its contents are used instead. Multi-line input loses the indentation of
// its first non-blank line.
func (s *Script) Exec(textOrPath string, opts ...ExecOption) *Script {
	text := textOrPath
	if s.readFile != nil && textOrPath != "" && !strings.Contains(textOrPath, "\n") {
		if data, err := s.readFile(textOrPath); err == nil {
			log.Debug().Str("path", textOrPath).Msg("reading script from file")
			text = string(data)
		}
	}
	return s.exec(text, opts...)
}

func (s *Script) exec(text string, opts ...ExecOption) *Script {
	var cfg execConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	text = Dedent(text)
	if text == "" {
		return s
	}

	s.commands = append(s.commands, command{text: text, sudo: cfg.sudo, user: cfg.user})
	return s
}

// wrapSudo pipes the exports plus the command text into a privileged shell
// via a here-document. Dollar signs are escaped so the unprivileged shell
// does not expand them first.
func wrapSudo(text, user string, env [][2]string) string {
	if user == "" {
		user = DefaultSudoUser
	}

	var b strings.Builder
	b.WriteString(`sudo su -c "/bin/bash" ` + user + " <<-EOF\n")
	for _, kv := range env {
		b.WriteString(escapeDollar("export " + kv[0] + "=" + kv[1]))
		b.WriteByte('\n')
	}
	b.WriteString(escapeDollar(text))
	b.WriteString("\n" + heredocTerminator)
	return b.String()
}

func escapeDollar(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		if text[i] == '$' && (i == 0 || text[i-1] != '\\') {
			b.WriteByte('\\')
		}
		b.WriteByte(text[i])
	}
	return b.String()
}

// Dedent strips surrounding blank lines and trailing whitespace, then removes
// the leading indentation of the first non-blank line from every line.
// Lines that do not carry that prefix lose only their leading whitespace.
func Dedent(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	lines = lines[start:end]
	if len(lines) == 0 {
		return ""
	}

	first := lines[0]
	prefix := first[:len(first)-len(strings.TrimLeft(first, " \t"))]

	out := make([]string, len(lines))
	for i, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.HasPrefix(line, prefix) {
			out[i] = line[len(prefix):]
		} else {
			out[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.Join(out, "\n")
}
