// Package evalset builds the hand-curated evaluation set that classification
// accuracy is measured against.
package evalset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Veraticus/spice-deduct/internal/common"
	"github.com/Veraticus/spice-deduct/internal/ingest"
	"github.com/Veraticus/spice-deduct/internal/model"
	"github.com/Veraticus/spice-deduct/internal/normalize"
)

// Options locate and interpret the evaluation source.
type Options struct {
	Source      string
	Sheet       string
	DefaultTier model.Tier
}

// sourceEntry is one vendor as read from the source, before normalization.
type sourceEntry struct {
	Tier   *model.Tier
	Vendor string
	Line   int
}

// Builder turns a curated source file into an EvaluationSet.
type Builder struct {
	logger *slog.Logger
	opts   Options
}

// NewBuilder creates a builder for opts.
func NewBuilder(opts Options, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{opts: opts, logger: logger}
}

// Build reads the source and returns entries unique by key, sorted by key.
func (b *Builder) Build(ctx context.Context) (model.EvaluationSet, error) {
	if !b.opts.DefaultTier.Valid() {
		return model.EvaluationSet{}, fmt.Errorf("%w: default tier %d", common.ErrInvalidConfig, int(b.opts.DefaultTier))
	}
	if _, err := os.Stat(b.opts.Source); err != nil {
		return model.EvaluationSet{}, fmt.Errorf("%w: evaluation source %s", common.ErrMissingInput, b.opts.Source)
	}

	var (
		raw []sourceEntry
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(b.opts.Source)); ext {
	case ".yaml", ".yml":
		raw, err = readYAML(b.opts.Source)
	case ".xlsx", ".xlsm", ".csv":
		raw, err = b.readTable(ctx)
	default:
		return model.EvaluationSet{}, fmt.Errorf("%w: unsupported evaluation source %q", common.ErrUnreadableInput, ext)
	}
	if err != nil {
		return model.EvaluationSet{}, err
	}

	return b.collect(raw)
}

func (b *Builder) collect(raw []sourceEntry) (model.EvaluationSet, error) {
	byKey := make(map[string]model.EvaluationEntry, len(raw))
	var ignored int

	for _, e := range raw {
		key := normalize.Vendor(e.Vendor)
		if key == "" {
			ignored++
			continue
		}

		tier := b.opts.DefaultTier
		if e.Tier != nil {
			tier = *e.Tier
		}

		if existing, ok := byKey[key]; ok {
			if existing.Tier != tier {
				return model.EvaluationSet{}, fmt.Errorf("%w: %q (line %d) is listed as both %s and %s",
					common.ErrMalformedEvalSet, e.Vendor, e.Line, existing.Tier, tier)
			}
			continue
		}
		byKey[key] = model.EvaluationEntry{Vendor: strings.TrimSpace(e.Vendor), Key: key, Tier: tier}
	}

	if len(byKey) == 0 {
		return model.EvaluationSet{}, fmt.Errorf("%w: no valid entries in %s", common.ErrMalformedEvalSet, b.opts.Source)
	}

	entries := make([]model.EvaluationEntry, 0, len(byKey))
	for _, e := range byKey {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	b.logger.Info("Built evaluation set",
		"source", b.opts.Source,
		"entries", len(entries),
		"read", len(raw),
		"ignored", ignored)

	return model.EvaluationSet{Entries: entries}, nil
}

// readTable reads column A (vendor) and optional column B (tier). The first
// row is treated as a header only when it looks like one.
func (b *Builder) readTable(ctx context.Context) ([]sourceEntry, error) {
	table, err := ingest.Read(ctx, b.opts.Source, ingest.Options{Sheet: b.opts.Sheet})
	if err != nil {
		return nil, err
	}

	rows := table.Rows
	if len(table.Header) > 0 && !isHeader(table.Header[0]) {
		rows = append([]ingest.Row{{Cells: table.Header, Line: table.HeaderLine}}, rows...)
	}

	entries := make([]sourceEntry, 0, len(rows))
	for _, row := range rows {
		vendor := cell(row, 0)
		if vendor == "" {
			continue
		}
		e := sourceEntry{Vendor: vendor, Line: row.Line}
		if raw := cell(row, 1); raw != "" {
			tier, err := model.ParseTier(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", common.ErrMalformedEvalSet, row.Line, err)
			}
			e.Tier = &tier
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func cell(row ingest.Row, i int) string {
	if i >= len(row.Cells) {
		return ""
	}
	return strings.TrimSpace(row.Cells[i])
}

func isHeader(cell string) bool {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "vendor", "vendor name", "name":
		return true
	}
	return false
}
