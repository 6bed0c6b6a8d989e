// Package shell runs the read-eval-print loop: one command line in, one
// rendered outcome out.
package shell

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/matsen/primdb/internal/command"
	"github.com/matsen/primdb/internal/engine"
	"github.com/matsen/primdb/internal/render"
)

// DefaultPrompt is shown before each command on a terminal.
const DefaultPrompt = "primdb> "

// Options configures a Session.
type Options struct {
	Prompt string
	// Interactive shows the prompt. Set it when input is a terminal.
	Interactive bool
	// AssumeYes skips confirmation of destructive commands.
	AssumeYes bool
	// Timing prints how long each command took.
	Timing bool
	Logger *slog.Logger
}

// Session reads commands from one input and writes outcomes to one output.
// Confirmation answers are read from the same input as commands.
type Session struct {
	engine   *engine.Engine
	in       *bufio.Reader
	out      io.Writer
	render   *render.Renderer
	policies engine.Policies
	opts     Options
	logger   *slog.Logger
}

// New creates a session. Output from r should go to out.
func New(e *engine.Engine, in io.Reader, out io.Writer, r *render.Renderer, opts Options) *Session {
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Session{
		engine: e,
		in:     bufio.NewReader(in),
		out:    out,
		render: r,
		opts:   opts,
		logger: logger,
	}
	s.policies = engine.Policies{Confirm: engine.AlwaysConfirm, Logger: logger}
	if !opts.AssumeYes {
		s.policies.Confirm = &PromptConfirmer{In: s.in, Out: out}
	}
	return s
}

// Run processes lines until exit, end of input, or ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.opts.Interactive {
			fmt.Fprint(s.out, s.opts.Prompt)
		}

		line, err := s.in.ReadString('\n')
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			return fmt.Errorf("reading command: %w", err)
		}

		if strings.TrimSpace(line) != "" {
			if exit, _ := s.Exec(line); exit {
				s.render.Goodbye()
				return nil
			}
		}
		if eof {
			if s.opts.Interactive {
				fmt.Fprintln(s.out)
			}
			s.render.Goodbye()
			return nil
		}
	}
}

// Exec runs a single command line and renders its outcome. It reports
// whether the line was exit, and returns the command's error after
// rendering it.
func (s *Session) Exec(line string) (exit bool, err error) {
	cmd, err := command.Parse(line)
	if err != nil {
		s.render.Error(err)
		return false, err
	}

	switch cmd.(type) {
	case command.Help:
		s.render.Help()
		return false, nil
	case command.Exit:
		return true, nil
	}

	policies := s.policies
	var timing bytes.Buffer
	if s.opts.Timing {
		policies.Timing = &timing
	}

	res, err := s.engine.Run(cmd, policies)
	if err != nil {
		s.logger.Debug("command failed", "command", cmd.Name(), "error", err)
		s.render.Error(err)
		s.printTiming(&timing)
		return false, err
	}
	if err := s.render.Result(res); err != nil {
		return false, err
	}
	s.printTiming(&timing)
	return false, nil
}

func (s *Session) printTiming(timing *bytes.Buffer) {
	if timing.Len() > 0 {
		s.render.Text(strings.TrimSuffix(timing.String(), "\n"))
	}
}

// PromptConfirmer asks the operator on Out and reads the answer from In.
// Only "y" (any case) proceeds; end of input declines.
type PromptConfirmer struct {
	In  *bufio.Reader
	Out io.Writer
}

func (p *PromptConfirmer) Confirm(action string) (bool, error) {
	fmt.Fprintf(p.Out, "Are you sure you want to %s? [y/n]: ", action)
	answer, err := p.In.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("reading confirmation: %w", err)
		}
		fmt.Fprintln(p.Out)
	}
	return strings.ToLower(strings.TrimSpace(answer)) == "y", nil
}
