package store

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// ErrMalformed marks a data file that exists but cannot be decoded.
var ErrMalformed = errors.New("malformed data file")

// ComputeJSONLHash computes a SHA256 hash of a JSONL file's contents.
func ComputeJSONLHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Empty file hash
			h := sha256.Sum256([]byte{})
			return hex.EncodeToString(h[:]), nil
		}
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// ReadAllRecords reads all records from a JSONL file.
// A missing file yields no records; an undecodable line yields ErrMalformed.
func ReadAllRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)

	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var record Record
		if err := dec.Decode(&record); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrMalformed, filepath.Base(path), lineNum, err)
		}
		if record == nil {
			return nil, fmt.Errorf("%w: %s line %d: not an object", ErrMalformed, filepath.Base(path), lineNum)
		}
		normalizeRecord(record)
		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	return records, nil
}

// WriteAllRecords writes all records to a JSONL file atomically.
// Uses temp file + rename for atomic operation.
func WriteAllRecords(path string, records []Record) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		for i, record := range records {
			data, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("encoding record %d: %w", i, err)
			}
			if _, err := w.Write(append(data, '\n')); err != nil {
				return fmt.Errorf("writing record %d: %w", i, err)
			}
		}
		return nil
	})
}

// writeFileAtomic writes a file through a temp file in the same directory
// and renames it into place, so readers see either the old or new content.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on error
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := write(tmpFile); err != nil {
		tmpFile.Close()
		return err
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}
