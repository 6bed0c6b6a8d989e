package engine

import (
	"errors"
	"fmt"

	"github.com/matsen/primdb/internal/store"
)

var (
	// ErrArityMismatch is returned when an insert supplies the wrong number of values.
	ErrArityMismatch = errors.New("wrong number of values")
	// ErrReadOnlyColumn is returned when an update tries to set ID.
	ErrReadOnlyColumn = errors.New("column is assigned automatically")
)

// TypeMismatchError reports a value rejected by its column's declared type.
type TypeMismatchError struct {
	Column   string
	Value    string
	Expected store.ColumnType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("invalid value %q for column %q: expected %s", e.Value, e.Column, e.Expected)
}
