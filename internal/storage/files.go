// Package storage persists stage artifacts as flat JSON and CSV files.
// Every write goes to a temporary file in the destination directory and is
// renamed into place, so readers never observe a partial artifact.
package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Veraticus/spice-deduct/internal/common"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// WriteJSON writes v as indented JSON with a trailing newline. HTML
// characters are not escaped so vendor names stay readable.
func WriteJSON(path string, v any) error {
	data, err := encodeJSON(path, v)
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}

// ReadJSON decodes the artifact at path into v. A missing file is
// ErrMissingArtifact.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", common.ErrMissingArtifact, path)
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// WriteCSV writes records as CSV.
func WriteCSV(path string, records [][]string) error {
	data, err := encodeCSV(path, records)
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}

func encodeJSON(path string, v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	return buf.Bytes(), nil
}

func encodeCSV(path string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return buf.Bytes(), nil
}

// WriteFile atomically replaces path with data, creating parent
// directories as needed.
func WriteFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpPath, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err = os.Chmod(tmpPath, filePerm); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", tmpPath, err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Batch stages several artifacts and commits them together. Nothing is
// written until Commit, so an error while building outputs leaves previous
// artifacts untouched.
type Batch struct {
	files []pending
}

type pending struct {
	path string
	data []byte
}

// JSON stages v for path.
func (b *Batch) JSON(path string, v any) error {
	data, err := encodeJSON(path, v)
	if err != nil {
		return err
	}
	b.files = append(b.files, pending{path: path, data: data})
	return nil
}

// CSV stages records for path.
func (b *Batch) CSV(path string, records [][]string) error {
	data, err := encodeCSV(path, records)
	if err != nil {
		return err
	}
	b.files = append(b.files, pending{path: path, data: data})
	return nil
}

// Len returns the number of staged files.
func (b *Batch) Len() int {
	return len(b.files)
}

// Commit writes every staged file atomically, in staging order.
func (b *Batch) Commit() error {
	for _, f := range b.files {
		if err := WriteFile(f.path, f.data); err != nil {
			return err
		}
	}
	b.files = nil
	return nil
}
