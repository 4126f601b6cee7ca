// Package repl implements the interactive read-evaluate-print loop.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/fatih/color"

	"github.com/szaher/hitung/internal/eval"
)

// Session evaluates lines and exposes the variables they bind.
type Session interface {
	Evaluate(ctx context.Context, line string) (float64, error)
	Env() *eval.Environment
}

// Options configures a REPL. Zero values fall back to stdin, stdout,
// stderr and the "> " prompt.
type Options struct {
	In          io.Reader
	Out         io.Writer
	Err         io.Writer
	Prompt      string
	ExitOnError bool
	NoColor     bool
}

// REPL reads lines, evaluates them and prints results until input ends.
type REPL struct {
	session Session
	in      io.Reader
	out     io.Writer
	errOut  io.Writer
	prompt  string

	exitOnError atomic.Bool

	result *color.Color
	fail   *color.Color
	dim    *color.Color
}

// New creates a REPL for session.
func New(session Session, opts Options) *REPL {
	r := &REPL{
		session: session,
		in:      opts.In,
		out:     opts.Out,
		errOut:  opts.Err,
		prompt:  opts.Prompt,
		result:  color.New(color.FgGreen),
		fail:    color.New(color.FgRed, color.Bold),
		dim:     color.New(color.Faint),
	}
	if r.in == nil {
		r.in = os.Stdin
	}
	if r.out == nil {
		r.out = os.Stdout
	}
	if r.errOut == nil {
		r.errOut = os.Stderr
	}
	if r.prompt == "" {
		r.prompt = "> "
	}
	if opts.NoColor {
		r.result.DisableColor()
		r.fail.DisableColor()
		r.dim.DisableColor()
	}
	r.exitOnError.Store(opts.ExitOnError)
	return r
}

// SetExitOnError changes whether the first failure ends the loop. It may be
// called while Run is in progress.
func (r *REPL) SetExitOnError(on bool) { r.exitOnError.Store(on) }

// Run loops until input ends, ":quit" is entered or ctx is done. With
// exit-on-error set, the first failed evaluation ends the loop and is
// returned.
func (r *REPL) Run(ctx context.Context) error {
	sc := bufio.NewScanner(r.in)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(r.out, r.prompt)
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			fmt.Fprintln(r.out)
			return nil
		}

		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case line == ":quit" || line == ":q":
			return nil
		case line == ":vars":
			r.printVars()
			continue
		case strings.HasPrefix(line, ":"):
			r.fail.Fprintf(r.errOut, "error: unknown command %s\n", line)
			continue
		}

		v, err := r.session.Evaluate(ctx, line)
		if err != nil {
			r.fail.Fprintf(r.errOut, "error: %v\n", err)
			if r.exitOnError.Load() {
				return fmt.Errorf("evaluating %q: %w", line, err)
			}
			continue
		}
		r.result.Fprintf(r.out, "=> %s\n", FormatValue(v))
	}
}

func (r *REPL) printVars() {
	env := r.session.Env()
	names := env.Names()
	if len(names) == 0 {
		r.dim.Fprintln(r.out, "(no variables)")
		return
	}
	for _, name := range names {
		v, _ := env.Value(name)
		fmt.Fprintf(r.out, "%s = %s\n", name, FormatValue(v))
	}
}

// FormatValue renders a result in the shortest form that reads back
// exactly.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
