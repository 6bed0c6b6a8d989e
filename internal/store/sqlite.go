package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// openMirrorDB opens a SQLite database for a table mirror.
func openMirrorDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	return db, nil
}

// GenerateDDL generates a CREATE TABLE statement from a schema, in column order.
func GenerateDDL(schema *Schema) string {
	cols := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		col := fmt.Sprintf("%q %s", c.Name, sqliteType(c.Type))
		if c.Name == IDColumn {
			col += " PRIMARY KEY"
		}
		cols[i] = col
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (\n  %s\n)",
		schema.Name,
		strings.Join(cols, ",\n  "))
}

// GenerateMetaTableDDL generates the _meta table DDL.
func GenerateMetaTableDDL() string {
	return `CREATE TABLE IF NOT EXISTS _meta (
  key TEXT PRIMARY KEY,
  value TEXT
)`
}

// sqliteType maps ColumnType to SQLite type.
func sqliteType(t ColumnType) string {
	switch t {
	case TypeInt, TypeBool:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// convertValueForSQLite converts a stored value to its SQLite form.
// Text that does not parse for its column type is stored as-is.
func convertValueForSQLite(value any, t ColumnType) any {
	if value == nil {
		return nil
	}
	if t == TypeInt {
		if _, ok := value.(int); ok {
			return value
		}
	}

	text := fmt.Sprintf("%v", value)
	switch t {
	case TypeInt:
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return n
		}
	case TypeBool:
		if strings.EqualFold(text, "true") {
			return 1
		}
		if strings.EqualFold(text, "false") {
			return 0
		}
	}
	return text
}

// NeedsSync returns true if a table's SQLite mirror is missing or stale.
func (b *FileBackend) NeedsSync(table string) (bool, error) {
	if _, err := os.Stat(b.MirrorPath(table)); os.IsNotExist(err) {
		return true, nil
	}

	currentHash, err := ComputeJSONLHash(b.JSONLPath(table))
	if err != nil {
		return true, err
	}

	db, err := openMirrorDB(b.MirrorPath(table))
	if err != nil {
		return true, err
	}
	defer db.Close()

	storedHash, err := GetStoredHash(db)
	if err != nil {
		return true, err
	}

	return currentHash != storedHash, nil
}

// Sync rebuilds a table's SQLite mirror from its JSONL file.
// It returns the number of rows written.
func (b *FileBackend) Sync(schema *Schema) (int, error) {
	jsonlPath := b.JSONLPath(schema.Name)

	records, err := ReadAllRecords(jsonlPath)
	if err != nil {
		return 0, fmt.Errorf("reading records: %w", err)
	}

	hash, err := ComputeJSONLHash(jsonlPath)
	if err != nil {
		return 0, fmt.Errorf("computing hash: %w", err)
	}

	dbPath := b.MirrorPath(schema.Name)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return 0, fmt.Errorf("creating mirror directory: %w", err)
	}

	db, err := openMirrorDB(dbPath)
	if err != nil {
		return 0, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := rebuildMirror(db, schema, records); err != nil {
		return 0, fmt.Errorf("rebuilding mirror: %w", err)
	}

	if err := SetStoredHash(db, hash); err != nil {
		return 0, fmt.Errorf("updating hash: %w", err)
	}
	if err := SetLastSyncTime(db, time.Now()); err != nil {
		return 0, fmt.Errorf("updating sync time: %w", err)
	}

	return len(records), nil
}

// rebuildMirror drops and recreates the table, then inserts every record.
func rebuildMirror(db *sql.DB, schema *Schema, records []Record) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %q", schema.Name)); err != nil {
		return fmt.Errorf("dropping table: %w", err)
	}
	if _, err := tx.Exec(GenerateDDL(schema)); err != nil {
		return fmt.Errorf("creating table: %w", err)
	}
	if _, err := tx.Exec(GenerateMetaTableDDL()); err != nil {
		return fmt.Errorf("creating meta table: %w", err)
	}

	cols := make([]string, len(schema.Columns))
	placeholders := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[i] = fmt.Sprintf("%q", c.Name)
		placeholders[i] = "?"
	}
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		schema.Name,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", ")))
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, record := range records {
		values := make([]any, len(schema.Columns))
		for j, c := range schema.Columns {
			values[j] = convertValueForSQLite(record[c.Name], c.Type)
		}
		if _, err := stmt.Exec(values...); err != nil {
			return fmt.Errorf("inserting record %d: %w", i+1, err)
		}
	}

	return tx.Commit()
}

// GetStoredHash retrieves the JSONL hash from the _meta table.
func GetStoredHash(db *sql.DB) (string, error) {
	var hash sql.NullString
	err := db.QueryRow("SELECT value FROM _meta WHERE key = 'jsonl_hash'").Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return hash.String, nil
}

// SetStoredHash stores the JSONL hash in the _meta table.
func SetStoredHash(db *sql.DB, hash string) error {
	_, err := db.Exec(`INSERT OR REPLACE INTO _meta (key, value) VALUES ('jsonl_hash', ?)`, hash)
	return err
}

// GetLastSyncTime retrieves the last sync time from the _meta table.
func GetLastSyncTime(db *sql.DB) (time.Time, error) {
	var timeStr sql.NullString
	err := db.QueryRow("SELECT value FROM _meta WHERE key = 'last_sync'").Scan(&timeStr)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if !timeStr.Valid {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, timeStr.String)
}

// SetLastSyncTime stores the last sync time in the _meta table.
func SetLastSyncTime(db *sql.DB, t time.Time) error {
	_, err := db.Exec(`INSERT OR REPLACE INTO _meta (key, value) VALUES ('last_sync', ?)`,
		t.Format(time.RFC3339))
	return err
}

// lastSyncTime returns a table's last mirror sync time, zero if never synced.
func (b *FileBackend) lastSyncTime(table string) (time.Time, error) {
	if _, err := os.Stat(b.MirrorPath(table)); err != nil {
		return time.Time{}, nil
	}
	db, err := openMirrorDB(b.MirrorPath(table))
	if err != nil {
		return time.Time{}, err
	}
	defer db.Close()

	return GetLastSyncTime(db)
}
