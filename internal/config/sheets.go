package config

import (
	"os"

	"github.com/Veraticus/spice-deduct/internal/sheets"
)

// SheetsConfig builds the Google Sheets export settings. Values from the
// config file (or DEDUCT_SHEETS_* variables) win over GOOGLE_SHEETS_*
// environment variables, which win over the defaults.
func (c *Config) SheetsConfig() sheets.Config {
	cfg := sheets.DefaultConfig()

	pick := func(configured, env string) string {
		if configured != "" {
			return configured
		}
		return os.Getenv(env)
	}

	cfg.ServiceAccountPath = ExpandPath(pick(c.Sheets.ServiceAccountPath, "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"))
	cfg.ClientID = pick(c.Sheets.ClientID, "GOOGLE_SHEETS_CLIENT_ID")
	cfg.ClientSecret = pick(c.Sheets.ClientSecret, "GOOGLE_SHEETS_CLIENT_SECRET")
	cfg.RefreshToken = pick(c.Sheets.RefreshToken, "GOOGLE_SHEETS_REFRESH_TOKEN")
	cfg.SpreadsheetID = pick(c.Sheets.SpreadsheetID, "GOOGLE_SHEETS_SPREADSHEET_ID")
	if name := pick(c.Sheets.SpreadsheetName, "GOOGLE_SHEETS_SPREADSHEET_NAME"); name != "" {
		cfg.SpreadsheetName = name
	}

	return cfg
}
