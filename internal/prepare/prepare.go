// Package prepare folds raw expense rows into one record per normalized
// vendor, the unit the classifier is paid to look at.
package prepare

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Veraticus/spice-deduct/internal/common"
	"github.com/Veraticus/spice-deduct/internal/config"
	"github.com/Veraticus/spice-deduct/internal/ingest"
	"github.com/Veraticus/spice-deduct/internal/model"
	"github.com/Veraticus/spice-deduct/internal/normalize"
)

// UnknownVendorName labels rows without a usable vendor.
const UnknownVendorName = "Unknown Vendor"

var unknownLabels = map[string]bool{
	"":               true,
	"unknown vendor": true,
	"nan":            true,
	"none":           true,
}

// Options configure one company's preparation.
type Options struct {
	TeamKeywords        []string
	Company             config.CompanyConfig
	MaxDescriptionsKept int
}

// Result is everything preparation hands to classification.
type Result struct {
	Transactions []model.RawTransaction
	Vendors      model.PreparedVendors
}

// Preparer turns an ingested table into vendor records.
type Preparer struct {
	logger *slog.Logger
	opts   Options
}

// New creates a Preparer.
func New(opts Options, logger *slog.Logger) *Preparer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxDescriptionsKept <= 0 {
		opts.MaxDescriptionsKept = config.DefaultDescriptionsKept
	}
	return &Preparer{opts: opts, logger: logger}
}

// PrepareFile reads path and prepares its rows.
func (p *Preparer) PrepareFile(ctx context.Context, path string) (*Result, error) {
	table, err := ingest.Read(ctx, path, ingest.Options{
		SkipRows: p.opts.Company.SkipRows,
		Columns:  p.opts.Company.Columns,
	})
	if err != nil {
		return nil, err
	}
	return p.Prepare(ctx, table)
}

// Prepare filters, validates, and aggregates the rows of table. Rows that
// cannot be used are counted, never fatal.
func (p *Preparer) Prepare(ctx context.Context, table *ingest.Table) (*Result, error) {
	fields := p.opts.Company.Fields
	for _, column := range []string{fields.Vendor, fields.Amount} {
		if !table.HasColumn(column) {
			return nil, fmt.Errorf("%w: column %q not found in header %v", common.ErrUnreadableInput, column, table.Header)
		}
	}

	typeFilter := p.opts.Company.TypeFilter
	if typeFilter != "" && !table.HasColumn(fields.Type) {
		p.logger.Warn("Type column missing, type filter disabled",
			"column", fields.Type,
			"company", p.opts.Company.ID)
		typeFilter = ""
	}

	result := &Result{
		Vendors: model.PreparedVendors{
			Company:   p.opts.Company.Name,
			Location:  p.opts.Company.Location,
			TotalRows: len(table.Rows),
		},
	}

	agg := newAggregator(p.opts)
	for i, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		expenseID := i + 1

		if !p.keep(table, row, typeFilter) {
			result.Vendors.FilteredRows++
			continue
		}

		tx, err := p.transaction(table, row, expenseID)
		if err != nil {
			result.Vendors.SkippedRows++
			p.logger.Debug("Skipping malformed row",
				"line", row.Line,
				"error", err)
			continue
		}

		result.Transactions = append(result.Transactions, tx)
		agg.add(tx)
	}

	if len(result.Transactions) == 0 {
		return nil, fmt.Errorf("%w: no usable expense rows for %s (skipped %d, filtered %d)",
			common.ErrNoVendors, p.opts.Company.Name, result.Vendors.SkippedRows, result.Vendors.FilteredRows)
	}

	result.Vendors.Vendors = agg.records()

	p.logger.Info("Prepared vendors",
		"company", p.opts.Company.Name,
		"rows", result.Vendors.TotalRows,
		"expenses", len(result.Transactions),
		"vendors", len(result.Vendors.Vendors),
		"skipped", result.Vendors.SkippedRows,
		"filtered", result.Vendors.FilteredRows)

	return result, nil
}

func (p *Preparer) keep(table *ingest.Table, row ingest.Row, typeFilter string) bool {
	filter := p.opts.Company.Filter
	if filter.Column != "" && len(filter.Values) > 0 {
		cell := strings.ToLower(table.Value(row, filter.Column))
		matched := false
		for _, v := range filter.Values {
			if v != "" && strings.Contains(cell, strings.ToLower(v)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if typeFilter != "" && !strings.EqualFold(table.Value(row, p.opts.Company.Fields.Type), typeFilter) {
		return false
	}
	return true
}

func (p *Preparer) transaction(table *ingest.Table, row ingest.Row, expenseID int) (model.RawTransaction, error) {
	fields := p.opts.Company.Fields

	vendor := table.Value(row, fields.Vendor)
	description := table.Value(row, fields.Description)
	if isUnknown(vendor) && description == "" {
		return model.RawTransaction{}, fmt.Errorf("row has neither vendor nor description")
	}

	amount, err := ParseAmount(table.Value(row, fields.Amount))
	if err != nil {
		return model.RawTransaction{}, err
	}

	return model.RawTransaction{
		ExpenseID:   expenseID,
		Company:     p.opts.Company.Name,
		Date:        table.Value(row, fields.Date),
		Type:        table.Value(row, fields.Type),
		Num:         table.Value(row, fields.Num),
		Vendor:      vendor,
		Description: description,
		Account:     table.Value(row, fields.Account),
		Amount:      amount.Abs(),
	}, nil
}

func isUnknown(vendor string) bool {
	return unknownLabels[strings.ToLower(strings.TrimSpace(vendor))] || normalize.Vendor(vendor) == ""
}

// VendorKey is the aggregation key of tx. Anonymous charges never merge.
func VendorKey(tx model.RawTransaction) string {
	if isUnknown(tx.Vendor) {
		return fmt.Sprintf("%s %d", normalize.Vendor(UnknownVendorName), tx.ExpenseID)
	}
	return normalize.Vendor(tx.Vendor)
}

type aggregator struct {
	byKey map[string]*model.VendorRecord
	seen  map[string]map[string]bool
	opts  Options
}

func newAggregator(opts Options) *aggregator {
	return &aggregator{
		byKey: make(map[string]*model.VendorRecord),
		seen:  make(map[string]map[string]bool),
		opts:  opts,
	}
}

func (a *aggregator) add(tx model.RawTransaction) {
	key := VendorKey(tx)

	rec, ok := a.byKey[key]
	if !ok {
		name := tx.Vendor
		if isUnknown(name) {
			name = UnknownVendorName
		}
		rec = &model.VendorRecord{
			Key:          key,
			Name:         name,
			Location:     a.opts.Company.Location,
			Descriptions: []string{},
			ExpenseIDs:   []int{},
		}
		a.byKey[key] = rec
		a.seen[key] = make(map[string]bool)
	}

	rec.TransactionCount++
	rec.TotalAmount = rec.TotalAmount.Add(tx.Amount)
	rec.ExpenseIDs = append(rec.ExpenseIDs, tx.ExpenseID)

	if tx.Description == "" {
		return
	}
	if _, hit := normalize.ContainsAnyPhrase(tx.Description, a.opts.TeamKeywords); hit {
		rec.TeamMeal = true
	}

	descKey := normalize.Vendor(tx.Description)
	if a.seen[key][descKey] {
		return
	}
	a.seen[key][descKey] = true
	if len(rec.Descriptions) < a.opts.MaxDescriptionsKept {
		rec.Descriptions = append(rec.Descriptions, tx.Description)
	}
}

func (a *aggregator) records() []model.VendorRecord {
	out := make([]model.VendorRecord, 0, len(a.byKey))
	for _, rec := range a.byKey {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
