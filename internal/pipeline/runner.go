// Package pipeline runs the four stages in order: build the evaluation set,
// prepare vendors, classify them, and evaluate the result. Stages hand off
// through artifacts on disk; a stage whose predecessor's artifact is missing
// never starts.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Veraticus/spice-deduct/internal/classification"
	"github.com/Veraticus/spice-deduct/internal/classify"
	"github.com/Veraticus/spice-deduct/internal/common"
	"github.com/Veraticus/spice-deduct/internal/config"
	"github.com/Veraticus/spice-deduct/internal/evalset"
	"github.com/Veraticus/spice-deduct/internal/evaluate"
	"github.com/Veraticus/spice-deduct/internal/llm"
	"github.com/Veraticus/spice-deduct/internal/model"
	"github.com/Veraticus/spice-deduct/internal/prepare"
	"github.com/Veraticus/spice-deduct/internal/sheets"
	"github.com/Veraticus/spice-deduct/internal/storage"
)

// Stage names.
const (
	StageBuildEvalSet = "build_eval_set"
	StagePrepare      = "prepare"
	StageClassify     = classify.Stage
	StageEvaluate     = evaluate.Stage
	StageExport       = "export"
)

// Option customizes a Runner.
type Option func(*Runner)

// WithProgress reports classification progress.
func WithProgress(fn func(done, total int)) Option {
	return func(r *Runner) {
		r.progress = fn
	}
}

// WithStageHook is called as each stage starts.
func WithStageHook(fn func(stage string)) Option {
	return func(r *Runner) {
		r.onStage = fn
	}
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(r *Runner) {
		r.runID = id
	}
}

// RunOptions selects optional stages of Run.
type RunOptions struct {
	BuildEvalSet bool
}

// Runner executes pipeline stages for one configuration.
type Runner struct {
	cfg      *config.Config
	client   llm.Client
	logger   *slog.Logger
	progress func(done, total int)
	onStage  func(stage string)
	runID    string
}

// New creates a Runner. client may be nil when only non-classifying
// stages are run.
func New(cfg *config.Config, client llm.Client, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{cfg: cfg, client: client}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	r.logger = logger.With("run_id", r.runID)
	return r
}

// RunID identifies this runner's execution in logs. It is never written
// to artifacts.
func (r *Runner) RunID() string {
	return r.runID
}

// Run executes every stage for company in order and returns the summary.
func (r *Runner) Run(ctx context.Context, companyID string, opts RunOptions) (model.SummaryReport, error) {
	if opts.BuildEvalSet {
		if _, err := r.BuildEvalSet(ctx); err != nil {
			return model.SummaryReport{}, err
		}
	}
	if _, err := r.Prepare(ctx, companyID); err != nil {
		return model.SummaryReport{}, err
	}
	if _, err := r.Classify(ctx, companyID); err != nil {
		return model.SummaryReport{}, err
	}
	return r.Evaluate(ctx, companyID)
}

// BuildEvalSet reads the curated source and writes the evaluation set.
func (r *Runner) BuildEvalSet(ctx context.Context) (model.EvaluationSet, error) {
	logger := r.logger.With("stage", StageBuildEvalSet)
	r.enter(StageBuildEvalSet)
	if err := ctx.Err(); err != nil {
		return model.EvaluationSet{}, common.NewStageError(StageBuildEvalSet, err)
	}

	builder := evalset.NewBuilder(evalset.Options{
		Source:      r.cfg.Evaluation.Source,
		Sheet:       r.cfg.Evaluation.Sheet,
		DefaultTier: model.Tier(r.cfg.Evaluation.DefaultTier),
	}, logger)

	set, err := builder.Build(ctx)
	if err != nil {
		return model.EvaluationSet{}, common.NewStageError(StageBuildEvalSet, err)
	}

	path := r.cfg.EvaluationSetPath()
	if err := storage.WriteJSON(path, set); err != nil {
		return model.EvaluationSet{}, common.NewStageError(StageBuildEvalSet, err)
	}

	logger.Info("Evaluation set written", "entries", len(set.Entries), "path", path)
	return set, nil
}

// Prepare ingests the company's expense file and writes its vendors.
func (r *Runner) Prepare(ctx context.Context, companyID string) (*prepare.Result, error) {
	company, paths, err := r.company(StagePrepare, companyID)
	if err != nil {
		return nil, err
	}
	logger := r.logger.With("stage", StagePrepare, "company", company.ID)
	if err := ctx.Err(); err != nil {
		return nil, common.NewStageError(StagePrepare, err)
	}

	preparer := prepare.New(prepare.Options{
		TeamKeywords:        r.cfg.Classification.Overrides.TeamKeywords,
		Company:             company,
		MaxDescriptionsKept: r.cfg.Classification.MaxDescriptionsKept,
	}, logger)

	result, err := preparer.PrepareFile(ctx, paths.Input)
	if err != nil {
		return nil, common.NewStageError(StagePrepare, err)
	}

	var batch storage.Batch
	if err := batch.JSON(paths.ExpensesToClassify, result.Transactions); err != nil {
		return nil, common.NewStageError(StagePrepare, err)
	}
	if err := batch.JSON(paths.UniqueVendors, result.Vendors); err != nil {
		return nil, common.NewStageError(StagePrepare, err)
	}
	if err := batch.Commit(); err != nil {
		return nil, common.NewStageError(StagePrepare, err)
	}

	logger.Info("Vendors prepared",
		"transactions", len(result.Transactions),
		"vendors", len(result.Vendors.Vendors),
		"skipped_rows", result.Vendors.SkippedRows,
		"filtered_rows", result.Vendors.FilteredRows)
	return result, nil
}

// ClassifyOutput is what the classify stage persisted.
type ClassifyOutput struct {
	Partitions map[model.Tier][]string
	Vendors    model.ClassifiedVendors
	Expenses   []model.ClassifiedExpense
}

// Classify tiers every prepared vendor and propagates tiers to expenses.
func (r *Runner) Classify(ctx context.Context, companyID string) (*ClassifyOutput, error) {
	company, paths, err := r.company(StageClassify, companyID)
	if err != nil {
		return nil, err
	}
	logger := r.logger.With("stage", StageClassify, "company", company.ID)
	if r.client == nil {
		return nil, common.NewStageError(StageClassify, fmt.Errorf("%w: no llm client", common.ErrInvalidConfig))
	}

	var prepared model.PreparedVendors
	if err := storage.ReadJSON(paths.UniqueVendors, &prepared); err != nil {
		return nil, common.NewStageError(StageClassify, err)
	}
	var transactions []model.RawTransaction
	if err := storage.ReadJSON(paths.ExpensesToClassify, &transactions); err != nil {
		return nil, common.NewStageError(StageClassify, err)
	}

	rules, err := classification.NewRules(r.overrides())
	if err != nil {
		return nil, common.NewStageError(StageClassify, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err))
	}

	classifier, err := classify.New(r.client, rules, classify.Options{
		Progress:        r.progress,
		Workers:         r.cfg.Classification.Workers,
		MaxDescriptions: r.cfg.Classification.MaxDescriptions,
		MaxAttempts:     r.cfg.LLM.MaxRetries,
		RetryDelay:      r.cfg.LLM.RetryDelay,
		CallTimeout:     r.cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		return nil, common.NewStageError(StageClassify, err)
	}

	logger.Info("Classifying vendors",
		"vendors", len(prepared.Vendors),
		"workers", r.cfg.Classification.Workers,
		"override_rules", rules.Count())

	results, err := classifier.Classify(ctx, prepared.Vendors)
	if err != nil {
		return nil, err
	}

	expenses, err := classify.Propagate(results, transactions)
	if err != nil {
		return nil, common.NewStageError(StageClassify, err)
	}

	out := &ClassifyOutput{
		Vendors: model.ClassifiedVendors{
			Company:     company.Name,
			Vendors:     results,
			SkippedRows: prepared.SkippedRows,
		},
		Expenses:   expenses,
		Partitions: classify.Partitions(results),
	}

	var batch storage.Batch
	if err := batch.JSON(paths.ClassifiedVendors, out.Vendors); err != nil {
		return nil, common.NewStageError(StageClassify, err)
	}
	if err := batch.JSON(paths.ClassifiedExpenses, out.Expenses); err != nil {
		return nil, common.NewStageError(StageClassify, err)
	}
	for _, tier := range model.Tiers {
		if err := batch.JSON(paths.Partition(tier), out.Partitions[tier]); err != nil {
			return nil, common.NewStageError(StageClassify, err)
		}
	}
	if err := batch.Commit(); err != nil {
		return nil, common.NewStageError(StageClassify, err)
	}

	return out, nil
}

// Evaluate summarizes the classification and, when enabled for the
// company, measures accuracy against the evaluation set.
func (r *Runner) Evaluate(ctx context.Context, companyID string) (model.SummaryReport, error) {
	company, paths, err := r.company(StageEvaluate, companyID)
	if err != nil {
		return model.SummaryReport{}, err
	}
	logger := r.logger.With("stage", StageEvaluate, "company", company.ID)
	if err := ctx.Err(); err != nil {
		return model.SummaryReport{}, common.NewStageError(StageEvaluate, err)
	}

	var in evaluate.Input
	if err := storage.ReadJSON(paths.ClassifiedVendors, &in.Vendors); err != nil {
		return model.SummaryReport{}, common.NewStageError(StageEvaluate, err)
	}
	if err := storage.ReadJSON(paths.ClassifiedExpenses, &in.Expenses); err != nil {
		return model.SummaryReport{}, common.NewStageError(StageEvaluate, err)
	}
	if company.EvalSet {
		var set model.EvaluationSet
		if err := storage.ReadJSON(r.cfg.EvaluationSetPath(), &set); err != nil {
			return model.SummaryReport{}, common.NewStageError(StageEvaluate, err)
		}
		in.EvalSet = &set
	}

	report := evaluate.New(logger).Evaluate(in)

	var batch storage.Batch
	if err := batch.JSON(paths.EvaluationReport, report); err != nil {
		return model.SummaryReport{}, common.NewStageError(StageEvaluate, err)
	}
	if err := batch.CSV(paths.FinalSummary, evaluate.SummaryRecords(report)); err != nil {
		return model.SummaryReport{}, common.NewStageError(StageEvaluate, err)
	}
	if err := batch.CSV(paths.Mismatches, evaluate.MismatchRecords(report)); err != nil {
		return model.SummaryReport{}, common.NewStageError(StageEvaluate, err)
	}
	if err := batch.Commit(); err != nil {
		return model.SummaryReport{}, common.NewStageError(StageEvaluate, err)
	}

	return report, nil
}

// Export publishes a company's evaluated results through w. It reads only
// artifacts and never changes them.
func (r *Runner) Export(ctx context.Context, companyID string, w sheets.ReportWriter) error {
	_, paths, err := r.company(StageExport, companyID)
	if err != nil {
		return err
	}

	var export sheets.Export
	if err := storage.ReadJSON(paths.EvaluationReport, &export.Report); err != nil {
		return common.NewStageError(StageExport, err)
	}
	var vendors model.ClassifiedVendors
	if err := storage.ReadJSON(paths.ClassifiedVendors, &vendors); err != nil {
		return common.NewStageError(StageExport, err)
	}
	export.Vendors = vendors.Vendors
	if err := storage.ReadJSON(paths.ClassifiedExpenses, &export.Expenses); err != nil {
		return common.NewStageError(StageExport, err)
	}

	if err := w.Write(ctx, export); err != nil {
		return common.NewStageError(StageExport, err)
	}
	return nil
}

func (r *Runner) enter(stage string) {
	if r.onStage != nil {
		r.onStage(stage)
	}
}

func (r *Runner) company(stage, id string) (config.CompanyConfig, config.CompanyPaths, error) {
	r.enter(stage)
	company, err := r.cfg.Company(id)
	if err != nil {
		return config.CompanyConfig{}, config.CompanyPaths{}, common.NewStageError(stage, err)
	}
	return company, r.cfg.Paths(company), nil
}

func (r *Runner) overrides() classification.Config {
	o := r.cfg.Classification.Overrides
	retailers := make([]classification.Retailer, 0, len(o.Retailers))
	for _, rc := range o.Retailers {
		retailers = append(retailers, classification.Retailer{Pattern: rc.Pattern, Tier: model.Tier(rc.Tier)})
	}
	return classification.Config{KnownBars: o.KnownBars, Retailers: retailers}
}
