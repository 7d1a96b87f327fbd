package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-deduct/internal/cli"
)

func buildEvalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build-eval",
		Short: "Build the evaluation set from the curated source",
		Long: `Read the curated evaluation source (YAML or an Excel sheet) and write the
evaluation set shared by every company.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			runner, err := newRunner(ctx, cmd, cfg, false)
			if err != nil {
				return err
			}

			set, err := runner.BuildEvalSet(ctx)
			if err != nil {
				return err
			}
			if !quiet {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Evaluation set has %d vendors", len(set.Entries))))
			}
			return err
		},
	}
}

func prepareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prepare <company>",
		Short: "Extract the unique vendors from a company's expenses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			runner, err := newRunner(ctx, cmd, cfg, false)
			if err != nil {
				return err
			}

			result, err := runner.Prepare(ctx, args[0])
			if err != nil {
				return err
			}
			if !quiet {
				msg := fmt.Sprintf("Prepared %d vendors from %d transactions", len(result.Vendors.Vendors), len(result.Transactions))
				if skipped := result.Vendors.SkippedRows; skipped > 0 {
					msg += fmt.Sprintf(" (%d rows skipped)", skipped)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(msg))
			}
			return err
		},
	}
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <company>",
		Short: "Classify a company's prepared vendors",
		Long: `Ask the configured language model for each prepared vendor's deduction tier,
apply the override rules, and write the classified vendors and expenses.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			runner, err := newRunner(ctx, cmd, cfg, true)
			if err != nil {
				return err
			}

			out, err := runner.Classify(ctx, args[0])
			if err != nil {
				return err
			}
			if quiet {
				return nil
			}

			review := 0
			for _, v := range out.Vendors.Vendors {
				if v.NeedsReview {
					review++
				}
			}
			msg := fmt.Sprintf("Classified %d vendors across %d expenses", len(out.Vendors.Vendors), len(out.Expenses))
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(msg)); err != nil {
				return err
			}
			if review > 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning(fmt.Sprintf("%d vendors need review", review)))
			}
			return err
		},
	}
}

func evaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <company>",
		Short: "Summarize a company's classification and measure accuracy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			runner, err := newRunner(ctx, cmd, cfg, false)
			if err != nil {
				return err
			}

			report, err := runner.Evaluate(ctx, args[0])
			if err != nil {
				return err
			}
			return printReport(cmd, report)
		},
	}
}
