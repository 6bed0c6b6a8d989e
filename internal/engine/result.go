package engine

import (
	"github.com/matsen/primdb/internal/command"
	"github.com/matsen/primdb/internal/store"
)

// Status distinguishes successful outcomes that changed nothing.
type Status int

const (
	StatusOK Status = iota
	// StatusNoMatch means an update or delete matched zero records.
	StatusNoMatch
	// StatusCancelled means a destructive command was declined at confirmation.
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusNoMatch:
		return "no_match"
	case StatusCancelled:
		return "cancelled"
	default:
		return "ok"
	}
}

// Result is the structured outcome of one command, handed to the presentation layer.
type Result struct {
	Command command.Command
	Status  Status
	Table   string
	// Columns is the table's schema in order, including ID.
	Columns []store.Column
	// Records is the selected rows for select, and the table's collection
	// after the operation for insert, update, and delete.
	Records []store.Record
	// Count is the number of affected records (update, delete, insert) or
	// the table size (info).
	Count int
	// ID is the identifier assigned by insert.
	ID int
	// Tables lists table names for list_tables.
	Tables []string
	// Where is the filter that matched nothing when Status is StatusNoMatch.
	Where *command.Clause
}
