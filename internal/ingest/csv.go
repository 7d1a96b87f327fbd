package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// ReadCSV reads a comma-separated export. Ragged rows are accepted.
func ReadCSV(ctx context.Context, path string, opts Options) (*Table, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}

	return fromRecords(records, opts)
}
