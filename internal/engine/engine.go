// Package engine executes parsed commands against a schema registry and
// per-table record collections.
//
// Every command loads a fresh snapshot from the backend, computes the full
// result in memory, and only then persists, so a failed command leaves the
// stored state as it was.
package engine

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/matsen/primdb/internal/command"
	"github.com/matsen/primdb/internal/store"
)

// Engine applies commands to a store.Backend.
type Engine struct {
	backend store.Backend
	cache   *ResultCache
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache sets the result cache. A nil cache disables caching.
func WithCache(c *ResultCache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine over backend with a fresh result cache.
func New(backend store.Backend, opts ...Option) *Engine {
	e := &Engine{
		backend: backend,
		cache:   NewResultCache(),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache returns the engine's result cache, possibly nil.
func (e *Engine) Cache() *ResultCache {
	return e.cache
}

// Execute runs one data command. Control commands (help, exit) are the
// caller's business and are rejected here.
func (e *Engine) Execute(cmd command.Command) (*Result, error) {
	reg, err := e.backend.LoadSchema()
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	switch c := cmd.(type) {
	case command.CreateTable:
		return e.createTable(reg, c)
	case command.DropTable:
		return e.dropTable(reg, c)
	case command.ListTables:
		return &Result{Command: c, Tables: reg.Names()}, nil
	case command.Insert:
		return e.insert(reg, c)
	case command.Select:
		return e.selectRecords(reg, c)
	case command.Update:
		return e.update(reg, c)
	case command.Delete:
		return e.delete(reg, c)
	case command.Describe:
		return e.describe(reg, c)
	}
	return nil, fmt.Errorf("command %q cannot be executed", cmd.Name())
}

func (e *Engine) createTable(reg *store.Registry, c command.CreateTable) (*Result, error) {
	schema, err := reg.Create(c.Table, c.Columns)
	if err != nil {
		return nil, err
	}
	if err := e.backend.SaveSchema(reg); err != nil {
		return nil, fmt.Errorf("saving schema: %w", err)
	}
	if err := e.backend.SaveRecords(c.Table, []store.Record{}); err != nil {
		return nil, fmt.Errorf("creating table data: %w", err)
	}
	e.invalidate(c.Table)

	e.logger.Debug("table created", "table", c.Table, "columns", schema.Specs())
	return &Result{Command: c, Table: c.Table, Columns: schema.Columns}, nil
}

func (e *Engine) dropTable(reg *store.Registry, c command.DropTable) (*Result, error) {
	if err := reg.Drop(c.Table); err != nil {
		return nil, err
	}
	if err := e.backend.SaveSchema(reg); err != nil {
		return nil, fmt.Errorf("saving schema: %w", err)
	}
	if err := e.backend.DropRecords(c.Table); err != nil {
		return nil, fmt.Errorf("removing table data: %w", err)
	}
	e.invalidate(c.Table)

	e.logger.Debug("table dropped", "table", c.Table)
	return &Result{Command: c, Table: c.Table}, nil
}

func (e *Engine) insert(reg *store.Registry, c command.Insert) (*Result, error) {
	schema, err := lookup(reg, c.Table)
	if err != nil {
		return nil, err
	}

	cols := schema.DataColumns()
	if len(c.Values) != len(cols) {
		return nil, fmt.Errorf("%w: table %q expects %d values, got %d", ErrArityMismatch, c.Table, len(cols), len(c.Values))
	}
	for i, col := range cols {
		if !col.Type.Accepts(c.Values[i]) {
			return nil, &TypeMismatchError{Column: col.Name, Value: c.Values[i], Expected: col.Type}
		}
	}

	records, err := e.backend.LoadRecords(c.Table)
	if err != nil {
		return nil, err
	}

	id := store.NextID(records, schema.LastID)
	next := append(slices.Clip(records), store.NewRecord(id, cols, c.Values))
	if err := e.backend.SaveRecords(c.Table, next); err != nil {
		return nil, err
	}
	schema.LastID = id
	if err := e.backend.SaveSchema(reg); err != nil {
		return nil, fmt.Errorf("saving schema: %w", err)
	}
	e.invalidate(c.Table)

	return &Result{
		Command: c,
		Table:   c.Table,
		Columns: schema.Columns,
		Records: next,
		Count:   1,
		ID:      id,
	}, nil
}

func (e *Engine) selectRecords(reg *store.Registry, c command.Select) (*Result, error) {
	schema, err := lookup(reg, c.Table)
	if err != nil {
		return nil, err
	}
	if c.Where != nil {
		if err := requireColumn(schema, c.Where.Column); err != nil {
			return nil, err
		}
	}

	records, err := e.backend.LoadRecords(c.Table)
	if err != nil {
		return nil, err
	}

	res := &Result{Command: c, Table: c.Table, Columns: schema.Columns}
	if c.Where == nil {
		res.Records = records
		res.Count = len(records)
		return res, nil
	}

	res.Records = e.filter(c.Table, records, *c.Where)
	res.Count = len(res.Records)
	return res, nil
}

// filter returns the records matching where, consulting the cache first.
func (e *Engine) filter(table string, records []store.Record, where command.Clause) []store.Record {
	if e.cache == nil {
		return matching(records, where)
	}

	key := e.cache.Key(table, records, where)
	if cached, ok := e.cache.Get(key); ok {
		e.logger.Debug("select cache hit", "table", table, "where", where.String())
		return cached
	}
	result := matching(records, where)
	e.cache.Put(key, result)
	return result
}

func (e *Engine) update(reg *store.Registry, c command.Update) (*Result, error) {
	schema, err := lookup(reg, c.Table)
	if err != nil {
		return nil, err
	}
	if err := requireColumn(schema, c.Where.Column); err != nil {
		return nil, err
	}
	if err := requireColumn(schema, c.Set.Column); err != nil {
		return nil, err
	}
	if c.Set.Column == store.IDColumn {
		return nil, fmt.Errorf("column %q: %w", store.IDColumn, ErrReadOnlyColumn)
	}
	col, _ := schema.Column(c.Set.Column)
	if !col.Type.Accepts(c.Set.Value) {
		return nil, &TypeMismatchError{Column: col.Name, Value: c.Set.Value, Expected: col.Type}
	}

	records, err := e.backend.LoadRecords(c.Table)
	if err != nil {
		return nil, err
	}

	next := make([]store.Record, len(records))
	count := 0
	for i, r := range records {
		if !matches(r, c.Where) {
			next[i] = r
			continue
		}
		updated := r.Clone()
		updated[c.Set.Column] = c.Set.Value
		next[i] = updated
		count++
	}

	res := &Result{Command: c, Table: c.Table, Columns: schema.Columns, Count: count}
	if count == 0 {
		res.Status = StatusNoMatch
		res.Records = records
		res.Where = &c.Where
		return res, nil
	}

	if err := e.backend.SaveRecords(c.Table, next); err != nil {
		return nil, err
	}
	e.invalidate(c.Table)

	res.Records = next
	return res, nil
}

func (e *Engine) delete(reg *store.Registry, c command.Delete) (*Result, error) {
	schema, err := lookup(reg, c.Table)
	if err != nil {
		return nil, err
	}
	if err := requireColumn(schema, c.Where.Column); err != nil {
		return nil, err
	}

	records, err := e.backend.LoadRecords(c.Table)
	if err != nil {
		return nil, err
	}

	remaining := make([]store.Record, 0, len(records))
	for _, r := range records {
		if !matches(r, c.Where) {
			remaining = append(remaining, r)
		}
	}
	count := len(records) - len(remaining)

	res := &Result{Command: c, Table: c.Table, Columns: schema.Columns, Count: count}
	if count == 0 {
		res.Status = StatusNoMatch
		res.Records = records
		res.Where = &c.Where
		return res, nil
	}

	if err := e.backend.SaveRecords(c.Table, remaining); err != nil {
		return nil, err
	}
	e.invalidate(c.Table)

	res.Records = remaining
	return res, nil
}

func (e *Engine) describe(reg *store.Registry, c command.Describe) (*Result, error) {
	schema, err := lookup(reg, c.Table)
	if err != nil {
		return nil, err
	}
	records, err := e.backend.LoadRecords(c.Table)
	if err != nil {
		return nil, err
	}
	return &Result{Command: c, Table: c.Table, Columns: schema.Columns, Count: len(records)}, nil
}

func (e *Engine) invalidate(table string) {
	if e.cache != nil {
		e.cache.Invalidate(table)
	}
}

func lookup(reg *store.Registry, table string) (*store.Schema, error) {
	schema, ok := reg.Get(table)
	if !ok {
		return nil, fmt.Errorf("table %q %w", table, store.ErrNoSuchTable)
	}
	return schema, nil
}

func requireColumn(schema *store.Schema, name string) error {
	if _, ok := schema.Column(name); !ok {
		return fmt.Errorf("%w %q in table %q", store.ErrNoSuchColumn, name, schema.Name)
	}
	return nil
}

// matches compares the record's value for the clause column as text, so
// "1" matches an integer ID of 1.
func matches(r store.Record, where command.Clause) bool {
	v, ok := r.Text(where.Column)
	return ok && v == where.Value
}

func matching(records []store.Record, where command.Clause) []store.Record {
	out := []store.Record{}
	for _, r := range records {
		if matches(r, where) {
			out = append(out, r)
		}
	}
	return out
}
