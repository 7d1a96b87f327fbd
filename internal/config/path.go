package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/spice-deduct/internal/model"
)

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

// Artifact file names inside the per-company directories.
const (
	ExpensesToClassifyFile = "expenses_to_classify.json"
	UniqueVendorsFile      = "unique_vendors.json"
	ClassifiedVendorsFile  = "classified_vendors.json"
	ClassifiedExpensesFile = "classified_expenses.json"
	EvaluationReportFile   = "evaluation_report.json"
	FinalSummaryFile       = "final_summary.csv"
	MismatchesFile         = "mismatches.csv"
	EvaluationSetFile      = "evaluation_set.json"
)

// CompanyPaths is the on-disk layout of one company's pipeline artifacts.
type CompanyPaths struct {
	Input              string
	IntermediateDir    string
	OutputDir          string
	ExpensesToClassify string
	UniqueVendors      string
	ClassifiedVendors  string
	ClassifiedExpenses string
	EvaluationReport   string
	FinalSummary       string
	Mismatches         string
}

// Paths returns the artifact layout for company under the data directory.
func (c *Config) Paths(company CompanyConfig) CompanyPaths {
	dir := "company" + company.ID
	intermediate := filepath.Join(c.DataDir, "intermediates", dir)
	output := filepath.Join(c.DataDir, "outputs", dir)

	input := company.Input
	if input == "" {
		input = filepath.Join(c.DataDir, "inputs", dir, fmt.Sprintf("Company %s.xlsx", company.ID))
	}

	return CompanyPaths{
		Input:              input,
		IntermediateDir:    intermediate,
		OutputDir:          output,
		ExpensesToClassify: filepath.Join(intermediate, ExpensesToClassifyFile),
		UniqueVendors:      filepath.Join(intermediate, UniqueVendorsFile),
		ClassifiedVendors:  filepath.Join(output, ClassifiedVendorsFile),
		ClassifiedExpenses: filepath.Join(output, ClassifiedExpensesFile),
		EvaluationReport:   filepath.Join(output, EvaluationReportFile),
		FinalSummary:       filepath.Join(output, FinalSummaryFile),
		Mismatches:         filepath.Join(output, MismatchesFile),
	}
}

// Partition returns the path of the per-tier vendor list.
func (p CompanyPaths) Partition(tier model.Tier) string {
	return filepath.Join(p.OutputDir, fmt.Sprintf("vendors_deductible_%d.json", int(tier)))
}

// EvaluationSetPath is where the built evaluation set is persisted.
func (c *Config) EvaluationSetPath() string {
	if c.Evaluation.Output != "" {
		return c.Evaluation.Output
	}
	return filepath.Join(c.DataDir, "intermediates", EvaluationSetFile)
}
