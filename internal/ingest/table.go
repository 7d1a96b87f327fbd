// Package ingest reads expense exports into a uniform table of string cells.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/spice-deduct/internal/common"
)

// Options control how a tabular export is read.
type Options struct {
	// Sheet selects the workbook sheet; empty means the first sheet.
	Sheet string
	// Columns, when set, replace the header row's names positionally.
	Columns []string
	// SkipRows leading rows are discarded before the header row.
	SkipRows int
}

// Row is one data row and its 1-based line in the source file.
type Row struct {
	Cells []string
	Line  int
}

// Table is a header plus data rows. Blank rows are dropped on read.
type Table struct {
	index      map[string]int
	Header     []string
	Rows       []Row
	HeaderLine int
}

// NewTable builds a table and its header lookup.
func NewTable(header []string, rows []Row) *Table {
	t := &Table{Header: header, Rows: rows, index: make(map[string]int, len(header))}
	for i, name := range header {
		key := headerKey(name)
		if _, dup := t.index[key]; !dup {
			t.index[key] = i
		}
	}
	return t
}

// HasColumn reports whether column is present, ignoring case and padding.
func (t *Table) HasColumn(column string) bool {
	_, ok := t.index[headerKey(column)]
	return ok
}

// Value returns the trimmed cell of row under column, or "".
func (t *Table) Value(row Row, column string) string {
	i, ok := t.index[headerKey(column)]
	if !ok || i >= len(row.Cells) {
		return ""
	}
	return strings.TrimSpace(row.Cells[i])
}

func headerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Read loads path with the reader matching its extension.
func Read(ctx context.Context, path string, opts Options) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", common.ErrMissingInput, path)
		}
		return nil, fmt.Errorf("%w: %s: %w", common.ErrUnreadableInput, path, err)
	}

	var (
		table *Table
		err   error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		table, err = ReadXLSX(ctx, path, opts)
	case ".csv":
		table, err = ReadCSV(ctx, path, opts)
	case ".ofx", ".qfx":
		table, err = ReadOFX(ctx, path)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", common.ErrUnreadableInput, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", common.ErrUnreadableInput, path, err)
	}
	return table, nil
}

// fromRecords applies the skip/header rules shared by every tabular format.
func fromRecords(records [][]string, opts Options) (*Table, error) {
	if opts.SkipRows < 0 {
		return nil, fmt.Errorf("skip rows cannot be negative: %d", opts.SkipRows)
	}

	headerAt := -1
	for i := opts.SkipRows; i < len(records); i++ {
		if !blank(records[i]) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, fmt.Errorf("no header row after skipping %d rows", opts.SkipRows)
	}

	header := records[headerAt]
	if len(opts.Columns) > 0 {
		header = opts.Columns
	}

	var rows []Row
	for i := headerAt + 1; i < len(records); i++ {
		if blank(records[i]) {
			continue
		}
		rows = append(rows, Row{Cells: records[i], Line: i + 1})
	}

	table := NewTable(header, rows)
	table.HeaderLine = headerAt + 1
	return table, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
