// Package console prints colored operator messages and reads answers from
// the terminal.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Color names an ANSI foreground color.
type Color string

const (
	Black   Color = "black"
	Red     Color = "red"
	Green   Color = "green"
	Yellow  Color = "yellow"
	Blue    Color = "blue"
	Purple  Color = "purple"
	Cyan    Color = "cyan"
	White   Color = "white"
	NoColor Color = ""
)

var ansiColors = map[Color]termenv.ANSIColor{
	Black:  termenv.ANSIBlack,
	Red:    termenv.ANSIRed,
	Green:  termenv.ANSIGreen,
	Yellow: termenv.ANSIYellow,
	Blue:   termenv.ANSIBlue,
	Purple: termenv.ANSIMagenta,
	Cyan:   termenv.ANSICyan,
	White:  termenv.ANSIWhite,
}

// RejectedInput is printed when a confirmation answer is not understood.
const RejectedInput = "Sorry that input was not accepted"

// ErrNoInput is returned when the input stream is closed.
var ErrNoInput = errors.New("no input available")

type line struct {
	text string
	err  error
}

// Console writes to an output stream and reads lines from an input stream.
type Console struct {
	out *termenv.Output
	w   io.Writer
	in  io.Reader

	mu    sync.Mutex
	once  sync.Once
	lines chan line
}

// Option configures a Console.
type Option func(*consoleOptions)

type consoleOptions struct {
	profile  termenv.Profile
	explicit bool
}

// WithProfile forces a color profile. termenv.Ascii disables colors.
func WithProfile(p termenv.Profile) Option {
	return func(o *consoleOptions) {
		o.profile = p
		o.explicit = true
	}
}

// New creates a console reading from in and writing to out.
func New(in io.Reader, out io.Writer, opts ...Option) *Console {
	var o consoleOptions
	for _, opt := range opts {
		opt(&o)
	}

	var tout *termenv.Output
	if o.explicit {
		tout = termenv.NewOutput(out, termenv.WithProfile(o.profile))
	} else {
		tout = termenv.NewOutput(out)
	}

	return &Console{out: tout, w: out, in: in}
}

// Stdio returns a console on the process standard streams.
func Stdio() *Console {
	return New(os.Stdin, os.Stdout)
}

// Writer returns the raw output stream.
func (c *Console) Writer() io.Writer {
	return c.w
}

// Colorize wraps text in the given color for this console's profile.
func (c *Console) Colorize(text string, color Color) string {
	ansi, ok := ansiColors[color]
	if !ok {
		return text
	}
	return c.out.String(text).Foreground(c.out.Color(ansi.String())).String()
}

// Print writes colored text without a newline.
func (c *Console) Print(color Color, format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.w, c.Colorize(fmt.Sprintf(format, args...), color))
}

// Println writes a colored line.
func (c *Console) Println(color Color, format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, c.Colorize(fmt.Sprintf(format, args...), color))
}

// Notice prints an operator notice in yellow.
func (c *Console) Notice(format string, args ...interface{}) {
	c.Println(Yellow, format, args...)
}

// Success prints a green line.
func (c *Console) Success(format string, args ...interface{}) {
	c.Println(Green, format, args...)
}

// Failure prints a red line.
func (c *Console) Failure(format string, args ...interface{}) {
	c.Println(Red, format, args...)
}

func (c *Console) readLines() <-chan line {
	c.once.Do(func() {
		c.lines = make(chan line)
		go func() {
			scanner := bufio.NewScanner(c.in)
			for scanner.Scan() {
				c.lines <- line{text: scanner.Text()}
			}
			err := scanner.Err()
			if err == nil {
				err = ErrNoInput
			}
			for {
				c.lines <- line{err: err}
			}
		}()
	})
	return c.lines
}

// ReadLine waits for one line of input. A zero timeout waits indefinitely.
// It returns ok=false when the timeout elapsed first.
func (c *Console) ReadLine(ctx context.Context, timeout time.Duration) (text string, ok bool, err error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case l := <-c.readLines():
		if l.err != nil {
			return "", false, l.err
		}
		return strings.TrimSpace(l.text), true, nil
	case <-expired:
		return "", false, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// Input asks a question and returns the answer, or def when the answer is
// empty or the timeout elapses.
func (c *Console) Input(ctx context.Context, question, def string, timeout time.Duration) (string, error) {
	prompt := question
	if def != "" {
		prompt += " [" + def + "]"
	}
	c.Print(Cyan, "%s: ", prompt)

	text, ok, err := c.ReadLine(ctx, timeout)
	if err != nil {
		return def, err
	}
	if !ok {
		c.Print(NoColor, "\n")
		return def, nil
	}
	if text == "" {
		return def, nil
	}
	return text, nil
}

// Confirm asks a yes/no question until it gets an answer it understands.
// An empty answer selects def.
func (c *Console) Confirm(ctx context.Context, question string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}

	for {
		c.Print(Cyan, "%s %s ", question, hint)

		text, _, err := c.ReadLine(ctx, 0)
		if err != nil {
			return false, err
		}

		switch strings.ToLower(text) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			c.Println(Red, RejectedInput)
		}
	}
}

// Password reads a secret without echo when the input is a terminal.
func (c *Console) Password(ctx context.Context, question string) (string, error) {
	c.Print(Cyan, "%s: ", question)

	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		c.Print(NoColor, "\n")
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(secret), nil
	}

	text, _, err := c.ReadLine(ctx, 0)
	return text, err
}
