package store

// MemBackend is an in-memory Backend for tests and throwaway sessions.
// It copies on every load and save so callers never share state with it.
type MemBackend struct {
	registry *Registry
	tables   map[string][]Record
	saves    map[string]int
}

// NewMemBackend returns an empty in-memory backend.
func NewMemBackend() *MemBackend {
	return &MemBackend{
		registry: NewRegistry(),
		tables:   make(map[string][]Record),
		saves:    make(map[string]int),
	}
}

func (m *MemBackend) LoadSchema() (*Registry, error) {
	return m.registry.Clone(), nil
}

func (m *MemBackend) SaveSchema(reg *Registry) error {
	m.registry = reg.Clone()
	return nil
}

func (m *MemBackend) LoadRecords(table string) ([]Record, error) {
	return cloneRecords(m.tables[table]), nil
}

func (m *MemBackend) SaveRecords(table string, records []Record) error {
	m.tables[table] = cloneRecords(records)
	m.saves[table]++
	return nil
}

func (m *MemBackend) DropRecords(table string) error {
	delete(m.tables, table)
	return nil
}

// Saves returns how many times SaveRecords ran for a table.
func (m *MemBackend) Saves(table string) int {
	return m.saves[table]
}

// HasRecords reports whether a collection is stored for the table.
func (m *MemBackend) HasRecords(table string) bool {
	_, ok := m.tables[table]
	return ok
}

func cloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
