package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-deduct/internal/cli"
	"github.com/Veraticus/spice-deduct/internal/config"
	"github.com/Veraticus/spice-deduct/internal/llm"
	"github.com/Veraticus/spice-deduct/internal/model"
	"github.com/Veraticus/spice-deduct/internal/pipeline"
)

func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// newRunner builds a pipeline runner. The LLM client is only created for
// commands that classify.
func newRunner(ctx context.Context, cmd *cobra.Command, cfg *config.Config, classifies bool) (*pipeline.Runner, error) {
	var client llm.Client
	if classifies {
		var err error
		client, err = createLLMClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	progress := cli.NewProgress(cmd.ErrOrStderr(), quiet)
	runner := pipeline.New(cfg, client, slog.Default(),
		pipeline.WithProgress(progress.Update),
		pipeline.WithStageHook(interrupts.SetStage))
	slog.Debug("Pipeline runner ready", "run_id", runner.RunID())
	return runner, nil
}

func printReport(cmd *cobra.Command, report model.SummaryReport) error {
	if quiet {
		return nil
	}
	return cli.PrintSummary(cmd.OutOrStdout(), report)
}
