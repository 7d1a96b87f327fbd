// Package classify assigns a deduction tier to every prepared vendor by
// asking an llm.Client and applying deterministic override rules.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/spice-deduct/internal/classification"
	"github.com/Veraticus/spice-deduct/internal/common"
	"github.com/Veraticus/spice-deduct/internal/llm"
	"github.com/Veraticus/spice-deduct/internal/model"
)

// Stage is the pipeline stage name used in errors.
const Stage = "classify"

// Options configures a Classifier.
type Options struct {
	// Progress, when set, is called after each vendor completes. It may be
	// called from several goroutines at once.
	Progress        func(done, total int)
	Workers         int
	MaxDescriptions int
	MaxAttempts     int
	RetryDelay      time.Duration
	MaxRetryDelay   time.Duration
	CallTimeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.MaxDescriptions < 1 {
		o.MaxDescriptions = 3
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
	if o.MaxRetryDelay <= 0 {
		o.MaxRetryDelay = 30 * o.RetryDelay
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 30 * time.Second
	}
	return o
}

// Classifier classifies vendors concurrently.
type Classifier struct {
	client  llm.Client
	rules   *classification.Rules
	prompts *PromptBuilder
	logger  *slog.Logger
	opts    Options
}

// New creates a Classifier. A nil rules value disables overrides.
func New(client llm.Client, rules *classification.Rules, opts Options, logger *slog.Logger) (*Classifier, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: no llm client", common.ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if rules == nil {
		var err error
		if rules, err = classification.NewRules(classification.Config{}); err != nil {
			return nil, err
		}
	}

	opts = opts.withDefaults()
	prompts, err := NewPromptBuilder(opts.MaxDescriptions)
	if err != nil {
		return nil, err
	}

	return &Classifier{
		client:  client,
		rules:   rules,
		prompts: prompts,
		logger:  logger,
		opts:    opts,
	}, nil
}

// Classify returns exactly one result per vendor, sorted by vendor key.
// Vendors whose calls keep failing fall back to Tier0. A non-retryable
// collaborator error or cancellation of ctx fails the whole stage.
func (c *Classifier) Classify(ctx context.Context, vendors []model.VendorRecord) ([]model.ClassificationResult, error) {
	if len(vendors) == 0 {
		return nil, common.NewStageError(Stage, common.ErrNoVendors)
	}

	seen := make(map[string]struct{}, len(vendors))
	for _, v := range vendors {
		if _, dup := seen[v.Key]; dup {
			return nil, &common.StageError{
				Stage:  Stage,
				Vendor: v.Name,
				Err:    fmt.Errorf("%w: duplicate vendor key %q", common.ErrClassificationFailed, v.Key),
			}
		}
		seen[v.Key] = struct{}{}
	}

	start := time.Now()
	results := make([]model.ClassificationResult, len(vendors))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)

	for i := range vendors {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			result, err := c.classifyVendor(gctx, vendors[i])
			if err != nil {
				return err
			}
			results[i] = result

			n := done.Add(1)
			if c.opts.Progress != nil {
				c.opts.Progress(int(n), len(vendors))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, common.NewStageError(Stage, ctxErr)
		}
		return nil, common.NewStageError(Stage, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, common.NewStageError(Stage, err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].VendorKey < results[j].VendorKey
	})

	c.logSummary(results, time.Since(start))
	return results, nil
}

func (c *Classifier) classifyVendor(ctx context.Context, vendor model.VendorRecord) (model.ClassificationResult, error) {
	result := model.ClassificationResult{
		VendorKey:        vendor.Key,
		VendorName:       vendor.Name,
		TotalAmount:      vendor.TotalAmount,
		TransactionCount: vendor.TransactionCount,
	}

	answer, attempts, err := c.ask(ctx, vendor)
	result.Attempts = attempts

	switch {
	case err == nil:
		result.Tier = answer.Tier
		result.Label = answer.Tier.Label()
		result.BusinessType = answer.BusinessType
		result.Rationale = answer.Rationale
		result.Provenance = model.ProvenanceModel
		if answer.Uncertain {
			result.Provenance = model.ProvenanceModelUncertain
		}

	case ctx.Err() != nil:
		return result, ctx.Err()

	case errors.Is(err, common.ErrMaxRetries):
		c.logger.Warn("Classification failed, using conservative fallback",
			"vendor", vendor.Name,
			"attempts", attempts,
			"error", err)
		result.Tier = model.Tier0
		result.Label = model.Tier0.Label()
		result.BusinessType = "unknown"
		result.Rationale = fmt.Sprintf("conservative fallback: %v", err)
		result.Provenance = model.ProvenanceFallback

	default:
		return result, &common.StageError{Stage: Stage, Vendor: vendor.Name, Err: err}
	}

	if decision, ok := c.rules.Apply(vendor); ok {
		if result.Provenance != model.ProvenanceFallback {
			modelTier := result.Tier
			result.ModelTier = &modelTier
		}
		if result.Tier != decision.Tier || result.Provenance == model.ProvenanceFallback {
			c.logger.Debug("Override applied",
				"vendor", vendor.Name,
				"rule", decision.Rule,
				"from", result.Tier.String(),
				"to", decision.Tier.String())
		}
		result.Tier = decision.Tier
		result.Label = decision.Tier.Label()
		result.Provenance = decision.Provenance
		result.Rule = decision.Rule
	}

	result.NeedsReview = result.Provenance.NeedsReview()
	return result, nil
}

// ask queries the collaborator with retries. Each attempt gets its own
// timeout; a timed-out or unparseable attempt is retried.
func (c *Classifier) ask(ctx context.Context, vendor model.VendorRecord) (llm.Classification, int, error) {
	prompt, err := c.prompts.Build(vendor)
	if err != nil {
		return llm.Classification{}, 0, common.Permanent(err)
	}

	req := llm.Request{
		System: SystemPrompt,
		Prompt: prompt,
		Vendor: vendor.Key,
	}

	var (
		answer   llm.Classification
		attempts int
	)
	err = common.WithRetry(ctx, func(attempt int) error {
		attempts = attempt

		callCtx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
		defer cancel()

		resp, callErr := c.client.Classify(callCtx, req)
		if callErr != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return common.Transient(fmt.Errorf("call timed out after %s: %w", c.opts.CallTimeout, callErr))
			}
			return callErr
		}

		parsed, parseErr := llm.ParseResponse(resp.Text)
		if parseErr != nil {
			c.logger.Debug("Unparseable response",
				"vendor", vendor.Name,
				"attempt", attempt,
				"error", parseErr)
			return parseErr
		}
		answer = parsed
		return nil
	}, common.RetryOptions{
		MaxAttempts:  c.opts.MaxAttempts,
		InitialDelay: c.opts.RetryDelay,
		MaxDelay:     c.opts.MaxRetryDelay,
	})

	return answer, attempts, err
}

func (c *Classifier) logSummary(results []model.ClassificationResult, elapsed time.Duration) {
	byProvenance := make(map[model.Provenance]int)
	review := 0
	for _, r := range results {
		byProvenance[r.Provenance]++
		if r.NeedsReview {
			review++
		}
	}

	c.logger.Info("Classification complete",
		"vendors", len(results),
		"model", byProvenance[model.ProvenanceModel],
		"uncertain", byProvenance[model.ProvenanceModelUncertain],
		"overrides", byProvenance[model.ProvenanceOverrideTeamMeal]+
			byProvenance[model.ProvenanceOverrideRetailer]+
			byProvenance[model.ProvenanceOverrideKnownBar],
		"fallbacks", byProvenance[model.ProvenanceFallback],
		"needs_review", review,
		"duration", elapsed)
}
