package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Backend persists the schema registry and per-table record collections.
type Backend interface {
	LoadSchema() (*Registry, error)
	SaveSchema(*Registry) error
	// LoadRecords returns an empty collection for a table with no data.
	LoadRecords(table string) ([]Record, error)
	SaveRecords(table string, records []Record) error
	DropRecords(table string) error
}

// MirrorDirname is the subdirectory holding per-table SQLite mirrors.
const MirrorDirname = "mirror"

// FileBackend stores tables.json and one <table>.jsonl per table under Dir.
type FileBackend struct {
	Dir    string
	logger *slog.Logger
}

// TableInfo contains detailed information about a table's files.
type TableInfo struct {
	Name       string    `json:"name"`
	JSONLPath  string    `json:"jsonl_path"`
	MirrorPath string    `json:"mirror_path"`
	Records    int       `json:"records"`
	JSONLSize  int64     `json:"jsonl_size"`
	MirrorSize int64     `json:"mirror_size"`
	LastSync   time.Time `json:"last_sync,omitempty"`
	InSync     bool      `json:"in_sync"`
	Columns    []string  `json:"columns"`
	Error      string    `json:"error,omitempty"`
}

// NewFileBackend creates a backend rooted at dir. A nil logger discards output.
func NewFileBackend(dir string, logger *slog.Logger) *FileBackend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileBackend{Dir: dir, logger: logger}
}

// RegistryPath returns the path to tables.json.
func (b *FileBackend) RegistryPath() string {
	return filepath.Join(b.Dir, RegistryFilename)
}

// JSONLPath returns the path to a table's JSONL file.
func (b *FileBackend) JSONLPath(table string) string {
	return filepath.Join(b.Dir, table+".jsonl")
}

// MirrorPath returns the path to a table's SQLite mirror.
func (b *FileBackend) MirrorPath(table string) string {
	return filepath.Join(b.Dir, MirrorDirname, table+".db")
}

// LoadSchema reads the registry. A malformed file is treated as empty.
func (b *FileBackend) LoadSchema() (*Registry, error) {
	reg, err := LoadRegistry(b.RegistryPath())
	if errors.Is(err, ErrMalformed) {
		b.logger.Warn("ignoring unreadable registry", "path", b.RegistryPath(), "error", err)
		return NewRegistry(), nil
	}
	return reg, err
}

// SaveSchema writes the registry.
func (b *FileBackend) SaveSchema(reg *Registry) error {
	return SaveRegistry(b.RegistryPath(), reg)
}

// LoadRecords reads a table's records. A malformed file is treated as empty.
func (b *FileBackend) LoadRecords(table string) ([]Record, error) {
	records, err := ReadAllRecords(b.JSONLPath(table))
	if errors.Is(err, ErrMalformed) {
		b.logger.Warn("ignoring unreadable table data", "table", table, "error", err)
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// SaveRecords replaces a table's JSONL file.
func (b *FileBackend) SaveRecords(table string, records []Record) error {
	if err := WriteAllRecords(b.JSONLPath(table), records); err != nil {
		return fmt.Errorf("writing %s: %w", table, err)
	}
	return nil
}

// DropRecords removes a table's JSONL file and mirror, if present.
func (b *FileBackend) DropRecords(table string) error {
	for _, path := range []string{b.JSONLPath(table), b.MirrorPath(table)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	return nil
}

// Info returns detailed information about a table's files.
func (b *FileBackend) Info(schema *Schema) (*TableInfo, error) {
	info := &TableInfo{
		Name:       schema.Name,
		JSONLPath:  b.JSONLPath(schema.Name),
		MirrorPath: b.MirrorPath(schema.Name),
		Columns:    schema.Specs(),
	}

	records, err := ReadAllRecords(info.JSONLPath)
	if err != nil {
		return nil, fmt.Errorf("counting records: %w", err)
	}
	info.Records = len(records)

	if stat, err := os.Stat(info.JSONLPath); err == nil {
		info.JSONLSize = stat.Size()
	}
	if stat, err := os.Stat(info.MirrorPath); err == nil {
		info.MirrorSize = stat.Size()
	}

	needsSync, err := b.NeedsSync(schema.Name)
	if err == nil {
		info.InSync = !needsSync
	}

	lastSync, err := b.lastSyncTime(schema.Name)
	if err == nil && !lastSync.IsZero() {
		info.LastSync = lastSync
	}

	return info, nil
}

// ListTables returns information about every registered table.
// Tables whose files cannot be read are reported with Error set.
func (b *FileBackend) ListTables() ([]TableInfo, error) {
	reg, err := b.LoadSchema()
	if err != nil {
		return nil, err
	}

	tables := make([]TableInfo, 0, len(reg.Tables))
	for _, schema := range reg.Tables {
		info, err := b.Info(schema)
		if err != nil {
			tables = append(tables, TableInfo{
				Name:    schema.Name,
				Columns: schema.Specs(),
				Error:   err.Error(),
			})
			continue
		}
		tables = append(tables, *info)
	}

	return tables, nil
}
