package store

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
)

// Record represents a single row of a table.
// ID holds an int; every other column holds the raw text it was given.
type Record map[string]any

// NewRecord builds a record from positional values for cols.
func NewRecord(id int, cols []Column, values []string) Record {
	r := Record{IDColumn: id}
	for i, col := range cols {
		r[col.Name] = values[i]
	}
	return r
}

// ID returns the record's ID, or 0 if it has none.
func (r Record) ID() int {
	switch v := r[IDColumn].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// Text returns the value of col as a string, the form used for matching.
func (r Record) Text(col string) (string, bool) {
	v, ok := r[col]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprintf("%v", v), true
}

// Clone returns a shallow copy of the record; values are immutable scalars.
func (r Record) Clone() Record {
	return maps.Clone(r)
}

// NextID returns max(existing IDs)+1, or 1 for an empty collection.
// lastID is the table's high-water mark; the result is always above it, so an
// ID freed by a delete is never handed out again.
func NextID(records []Record, lastID int) int {
	highest := lastID
	for _, r := range records {
		if id := r.ID(); id > highest {
			highest = id
		}
	}
	return highest + 1
}

// normalizeRecord turns decoded JSON numbers back into the in-memory form:
// ID becomes an int and any other number keeps its literal text.
func normalizeRecord(r Record) {
	for k, v := range r {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if k == IDColumn {
			if id, err := n.Int64(); err == nil {
				r[k] = int(id)
				continue
			}
		}
		r[k] = n.String()
	}
}
