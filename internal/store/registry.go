package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// RegistryFilename is the name of the schema registry file within the data directory.
const RegistryFilename = "tables.json"

// Registry maps table names to schemas, in creation order.
type Registry struct {
	Tables []*Schema `json:"tables"`
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{Tables: []*Schema{}}
}

// Get returns the schema for a table.
func (r *Registry) Get(name string) (*Schema, bool) {
	for _, s := range r.Tables {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Create adds a table with the given user column specs.
// The registry is left untouched on error.
func (r *Registry) Create(name string, specs []string) (*Schema, error) {
	if _, exists := r.Get(name); exists {
		return nil, fmt.Errorf("table %q %w", name, ErrTableExists)
	}
	schema, err := NewSchema(name, specs)
	if err != nil {
		return nil, err
	}
	r.Tables = append(r.Tables, schema)
	return schema, nil
}

// Drop removes a table.
func (r *Registry) Drop(name string) error {
	for i, s := range r.Tables {
		if s.Name == name {
			r.Tables = append(r.Tables[:i:i], r.Tables[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("table %q %w", name, ErrNoSuchTable)
}

// Names returns table names in creation order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.Tables))
	for i, s := range r.Tables {
		names[i] = s.Name
	}
	return names
}

// Clone returns a deep copy of the registry.
func (r *Registry) Clone() *Registry {
	c := &Registry{Tables: make([]*Schema, len(r.Tables))}
	for i, s := range r.Tables {
		c.Tables[i] = s.Clone()
	}
	return c
}

// LoadRegistry loads the registry file at path.
// If the file doesn't exist, returns an empty registry.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewRegistry(), nil
		}
		return nil, fmt.Errorf("reading registry: %w", err)
	}

	var registry Registry
	if err := json.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("%w: parsing registry: %v", ErrMalformed, err)
	}

	if registry.Tables == nil {
		registry.Tables = []*Schema{}
	}
	for _, s := range registry.Tables {
		if s == nil || s.Name == "" {
			return nil, fmt.Errorf("%w: registry entry without a name", ErrMalformed)
		}
	}

	return &registry, nil
}

// SaveRegistry writes the registry to path.
func SaveRegistry(path string, registry *Registry) error {
	data, err := json.MarshalIndent(registry, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}

	err = writeFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	})
	if err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}

	return nil
}
