package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-deduct/internal/cli"
	"github.com/Veraticus/spice-deduct/internal/sheets"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <company>",
		Short: "Export a company's results to Google Sheets",
		Long: `Write the summary, classified vendors, and classified expenses of an
evaluated company to a Google Sheets spreadsheet, one tab per view.

Authenticate first with 'deduct auth sheets' or configure a service account.`,
		Args: cobra.ExactArgs(1),
		RunE: runExport,
	}

	cmd.Flags().String("spreadsheet-id", "", "Spreadsheet to update (default: create one)")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sheetsCfg := cfg.SheetsConfig()
	if id, _ := cmd.Flags().GetString("spreadsheet-id"); id != "" {
		sheetsCfg.SpreadsheetID = id
	}

	writer, err := sheets.NewWriter(ctx, sheetsCfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create sheets writer: %w", err)
	}

	runner, err := newRunner(ctx, cmd, cfg, false)
	if err != nil {
		return err
	}
	if err := runner.Export(ctx, args[0], writer); err != nil {
		return err
	}

	if !quiet {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Exported to Google Sheets"))
	}
	return err
}
