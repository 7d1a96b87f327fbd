package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-deduct/internal/cli"
	"github.com/Veraticus/spice-deduct/internal/common"
	"github.com/Veraticus/spice-deduct/internal/sheets"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with external services",
	}

	cmd.AddCommand(authSheetsCmd())

	return cmd
}

func authSheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Authenticate with Google Sheets",
		Long: `Authenticate with Google Sheets using OAuth2.

This command will:
1. Print a Google consent URL to open in your browser
2. Wait for Google to redirect back to a local callback server
3. Save the token and print the refresh token to add to your config

You'll need to run this once to set up Google Sheets export.`,
		RunE: runAuthSheets,
	}

	cmd.Flags().String("client-id", "", "OAuth2 Client ID (overrides config)")
	cmd.Flags().String("client-secret", "", "OAuth2 Client Secret (overrides config)")
	cmd.Flags().String("callback", sheets.DefaultCallbackAddr, "Address for the OAuth2 callback server")

	return cmd
}

func runAuthSheets(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sheetsCfg := cfg.SheetsConfig()
	if flagID, _ := cmd.Flags().GetString("client-id"); flagID != "" {
		sheetsCfg.ClientID = flagID
	}
	if flagSecret, _ := cmd.Flags().GetString("client-secret"); flagSecret != "" {
		sheetsCfg.ClientSecret = flagSecret
	}
	if sheetsCfg.ClientID == "" || sheetsCfg.ClientSecret == "" {
		return common.NewUserError(
			"OAuth2 credentials not found. Set sheets.client_id and sheets.client_secret in config or use --client-id and --client-secret",
			common.ErrMissingConfig)
	}

	tokenFile, err := tokenPath()
	if err != nil {
		return err
	}
	callback, _ := cmd.Flags().GetString("callback")

	slog.Info("Starting Google Sheets authentication", "token_file", tokenFile)

	out := cmd.OutOrStdout()
	token, err := sheets.AuthenticateOAuth2Interactive(ctx, sheets.OAuth2Config{
		ClientID:     sheetsCfg.ClientID,
		ClientSecret: sheetsCfg.ClientSecret,
		TokenFile:    tokenFile,
		CallbackAddr: callback,
		OpenURL: func(url string) {
			_, _ = fmt.Fprintln(out, cli.FormatInfo("Open this URL to authorize deduct:"))
			_, _ = fmt.Fprintln(out, url)
		},
	})
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	_, err = fmt.Fprintf(out, "%s\nAdd this to your config.yaml:\n\nsheets:\n  refresh_token: %q\n",
		cli.FormatSuccess("Authentication successful!"), token.RefreshToken)
	return err
}

func tokenPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "deduct", "sheets-token.json"), nil
}
