// Package command parses single command lines into structured commands.
// Parsing is purely textual; table and column names are not checked here.
package command

import (
	"errors"
	"fmt"
)

// Command is one parsed command line.
type Command interface {
	// Name returns the command keyword, e.g. "insert".
	Name() string
}

// Clause is a single `column = value` pair used by where and set.
type Clause struct {
	Column string
	Value  string
}

// String returns the clause in column = value form.
func (c Clause) String() string {
	return fmt.Sprintf("%s = %s", c.Column, c.Value)
}

type CreateTable struct {
	Table   string
	Columns []string // raw name:type specs
}

type DropTable struct {
	Table string
}

type ListTables struct{}

type Insert struct {
	Table  string
	Values []string
}

type Select struct {
	Table string
	Where *Clause // nil selects everything
}

type Update struct {
	Table string
	Set   Clause
	Where Clause
}

type Delete struct {
	Table string
	Where Clause
}

type Describe struct {
	Table string
}

type Help struct{}

type Exit struct{}

func (CreateTable) Name() string { return "create_table" }
func (DropTable) Name() string   { return "drop_table" }
func (ListTables) Name() string  { return "list_tables" }
func (Insert) Name() string      { return "insert" }
func (Select) Name() string      { return "select" }
func (Update) Name() string      { return "update" }
func (Delete) Name() string      { return "delete" }
func (Describe) Name() string    { return "info" }
func (Help) Name() string        { return "help" }
func (Exit) Name() string        { return "exit" }

// ErrUnknownCommand marks input whose keyword is not recognized.
var ErrUnknownCommand = errors.New("command not found")

// ParseError describes malformed command text.
type ParseError struct {
	Command string // keyword or offending text
	Msg     string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return e.Msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func syntaxError(keyword, format string, args ...any) *ParseError {
	return &ParseError{Command: keyword, Msg: fmt.Sprintf(format, args...)}
}

// Usage lists the syntax of each data command, keyed by keyword.
var Usage = map[string]string{
	"create_table": "create_table <table> <column:type> [<column:type> ...]",
	"drop_table":   "drop_table <table>",
	"list_tables":  "list_tables",
	"insert":       "insert into <table> values (<value1>, <value2>, ...)",
	"select":       "select from <table> [where <column> = <value>]",
	"update":       "update <table> set <column> = <value> where <column> = <value>",
	"delete":       "delete from <table> where <column> = <value>",
	"info":         "info <table>",
	"help":         "help",
	"exit":         "exit",
}

func usageError(keyword string) *ParseError {
	return syntaxError(keyword, "invalid %s syntax, use: %s", keyword, Usage[keyword])
}

// IsUnknown reports whether err came from an unrecognized keyword.
func IsUnknown(err error) bool {
	return errors.Is(err, ErrUnknownCommand)
}
