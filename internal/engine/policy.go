package engine

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/matsen/primdb/internal/command"
)

// Confirmer decides whether a destructive command may proceed.
type Confirmer interface {
	Confirm(action string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(action string) (bool, error)

func (f ConfirmFunc) Confirm(action string) (bool, error) {
	return f(action)
}

var (
	// AlwaysConfirm approves every action, as with --yes.
	AlwaysConfirm Confirmer = ConfirmFunc(func(string) (bool, error) { return true, nil })
	// AlwaysDecline refuses every action.
	AlwaysDecline Confirmer = ConfirmFunc(func(string) (bool, error) { return false, nil })
)

// Policies are the steps a session runs around Execute.
type Policies struct {
	// Confirm is asked before drop_table and before a delete that would
	// remove records. Nil proceeds without asking.
	Confirm Confirmer
	// Timing receives "<command> took 0.003s" after each executed command.
	Timing io.Writer
	Logger *slog.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Pending reports whether cmd is destructive and would change stored state,
// and if so describes the action for a confirmation prompt. Commands that
// are certain to fail report the error here so the operator is not asked
// about them.
func (e *Engine) Pending(cmd command.Command) (action string, pending bool, err error) {
	switch c := cmd.(type) {
	case command.DropTable:
		reg, err := e.backend.LoadSchema()
		if err != nil {
			return "", false, fmt.Errorf("loading schema: %w", err)
		}
		if _, err := lookup(reg, c.Table); err != nil {
			return "", false, err
		}
		return fmt.Sprintf("drop table %q", c.Table), true, nil

	case command.Delete:
		reg, err := e.backend.LoadSchema()
		if err != nil {
			return "", false, fmt.Errorf("loading schema: %w", err)
		}
		schema, err := lookup(reg, c.Table)
		if err != nil {
			return "", false, err
		}
		if err := requireColumn(schema, c.Where.Column); err != nil {
			return "", false, err
		}
		records, err := e.backend.LoadRecords(c.Table)
		if err != nil {
			return "", false, err
		}
		n := len(matching(records, c.Where))
		if n == 0 {
			return "", false, nil
		}
		return fmt.Sprintf("delete %d record(s) from %q where %s", n, c.Table, c.Where), true, nil
	}
	return "", false, nil
}

// Run executes cmd with confirmation and timing applied. A declined
// confirmation returns a StatusCancelled result and leaves state untouched.
func (e *Engine) Run(cmd command.Command, p Policies) (*Result, error) {
	action, pending, err := e.Pending(cmd)
	if err != nil {
		return nil, err
	}
	if pending && p.Confirm != nil {
		ok, err := p.Confirm.Confirm(action)
		if err != nil {
			return nil, fmt.Errorf("confirming %s: %w", action, err)
		}
		if !ok {
			p.logger().Debug("command cancelled", "command", cmd.Name(), "action", action)
			return &Result{Command: cmd, Status: StatusCancelled, Table: tableOf(cmd)}, nil
		}
	}

	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	start := clock()
	res, err := e.Execute(cmd)
	elapsed := clock().Sub(start)

	p.logger().Debug("command finished", "command", cmd.Name(), "duration", elapsed, "ok", err == nil)
	if p.Timing != nil {
		fmt.Fprintf(p.Timing, "%s took %.3fs\n", cmd.Name(), elapsed.Seconds())
	}
	return res, err
}

func (p Policies) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Logger
}

func tableOf(cmd command.Command) string {
	switch c := cmd.(type) {
	case command.DropTable:
		return c.Table
	case command.Delete:
		return c.Table
	}
	return ""
}
