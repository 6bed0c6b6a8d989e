// Package store provides table schemas and file-backed record collections.
package store

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ColumnType is the declared type of a column.
type ColumnType string

const (
	TypeInt  ColumnType = "int"
	TypeStr  ColumnType = "str"
	TypeBool ColumnType = "bool"
)

// validColumnTypes is the set of recognized column types.
var validColumnTypes = map[ColumnType]bool{
	TypeInt:  true,
	TypeStr:  true,
	TypeBool: true,
}

// IDColumn is the implicit first column of every table.
const IDColumn = "ID"

// validIdentifier matches valid table and column names (alphanumeric + underscore, must start with letter or underscore).
var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// intLiteral matches a signed base-10 integer of any width.
var intLiteral = regexp.MustCompile(`^[+-]?[0-9]+$`)

var (
	// ErrTableExists is returned when creating a table whose name is taken.
	ErrTableExists = errors.New("already exists")
	// ErrNoSuchTable is returned when a command names an unknown table.
	ErrNoSuchTable = errors.New("does not exist")
	// ErrInvalidType is returned for a malformed column spec.
	ErrInvalidType = errors.New("invalid column spec")
	// ErrInvalidName is returned for a table name that is not an identifier.
	ErrInvalidName = errors.New("invalid table name")
	// ErrNoSuchColumn is returned when a clause names a column the table lacks.
	ErrNoSuchColumn = errors.New("no such column")
)

// Accepts reports whether raw is a valid literal for the type.
// No coercion happens; the raw text is what gets stored.
func (t ColumnType) Accepts(raw string) bool {
	switch t {
	case TypeInt:
		return intLiteral.MatchString(raw)
	case TypeBool:
		v := strings.ToLower(raw)
		return v == "true" || v == "false"
	case TypeStr:
		return true
	}
	return false
}

// Column is a single named, typed column.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// String returns the column in name:type form.
func (c Column) String() string {
	return c.Name + ":" + string(c.Type)
}

// ParseColumnSpec parses a name:type column spec.
func ParseColumnSpec(spec string) (Column, error) {
	name, typ, ok := strings.Cut(spec, ":")
	if !ok || !validIdentifier.MatchString(name) || !validColumnTypes[ColumnType(typ)] {
		return Column{}, fmt.Errorf("%w %q: supported types are int, str, bool", ErrInvalidType, spec)
	}
	return Column{Name: name, Type: ColumnType(typ)}, nil
}

// Schema is the ordered column list of a table. Columns[0] is always ID:int.
type Schema struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	// LastID is the highest ID ever assigned in the table.
	LastID int `json:"last_id,omitempty"`
}

// NewSchema builds a schema from user column specs, prepending ID:int.
func NewSchema(name string, specs []string) (*Schema, error) {
	if !validIdentifier.MatchString(name) {
		return nil, fmt.Errorf("%w %q: must be alphanumeric with underscores, starting with letter or underscore", ErrInvalidName, name)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: table %q needs at least one column", ErrInvalidType, name)
	}

	s := &Schema{Name: name, Columns: []Column{{Name: IDColumn, Type: TypeInt}}}
	seen := map[string]bool{IDColumn: true}
	for _, spec := range specs {
		col, err := ParseColumnSpec(spec)
		if err != nil {
			return nil, err
		}
		if col.Name == IDColumn {
			return nil, fmt.Errorf("%w %q: ID is added automatically", ErrInvalidType, spec)
		}
		if seen[col.Name] {
			return nil, fmt.Errorf("%w %q: duplicate column %q", ErrInvalidType, spec, col.Name)
		}
		seen[col.Name] = true
		s.Columns = append(s.Columns, col)
	}
	return s, nil
}

// Column looks up a column by name.
func (s *Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// DataColumns returns the user-declared columns, i.e. everything but ID.
func (s *Schema) DataColumns() []Column {
	if len(s.Columns) == 0 {
		return nil
	}
	return s.Columns[1:]
}

// Specs returns the columns in name:type form.
func (s *Schema) Specs() []string {
	specs := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		specs[i] = c.String()
	}
	return specs
}

// Clone returns a deep copy of the schema.
func (s *Schema) Clone() *Schema {
	return &Schema{Name: s.Name, Columns: append([]Column(nil), s.Columns...), LastID: s.LastID}
}
