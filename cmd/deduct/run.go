package main

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-deduct/internal/config"
	"github.com/Veraticus/spice-deduct/internal/pipeline"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <company>",
		Short: "Run every stage for a company",
		Long: `Run prepare, classify, and evaluate for one company.

The evaluation set is rebuilt first when --build-eval-set is given or when the
company is the one named by evaluation.build_company.

Examples:
  deduct run 1
  deduct run 2 --build-eval-set`,
		Args: cobra.ExactArgs(1),
		RunE: runRun,
	}

	cmd.Flags().Bool("build-eval-set", false, "Rebuild the evaluation set before classifying")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	forced, _ := cmd.Flags().GetBool("build-eval-set")
	opts := pipeline.RunOptions{BuildEvalSet: shouldBuildEvalSet(cfg, args[0], forced)}

	runner, err := newRunner(ctx, cmd, cfg, true)
	if err != nil {
		return err
	}

	slog.Info("Starting pipeline", "company", args[0], "build_eval_set", opts.BuildEvalSet)
	report, err := runner.Run(ctx, args[0], opts)
	if err != nil {
		return err
	}
	return printReport(cmd, report)
}

// shouldBuildEvalSet applies the evaluation-set rebuild policy.
func shouldBuildEvalSet(cfg *config.Config, companyID string, forced bool) bool {
	if forced {
		return true
	}
	build := cfg.Evaluation.BuildCompany
	return build != "" && strings.EqualFold(build, companyID)
}
