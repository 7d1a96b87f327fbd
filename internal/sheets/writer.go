package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/spice-deduct/internal/common"
)

// ReportWriter publishes one company's export.
type ReportWriter interface {
	Write(ctx context.Context, export Export) error
}

// Writer implements ReportWriter for Google Sheets.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets report writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return newWriter(config, service, logger), nil
}

func newWriter(config Config, service *sheets.Service, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{config: config, service: service, logger: logger}
}

// Write replaces the company's tabs with the export. Tabs belonging to
// other companies are left alone.
func (w *Writer) Write(ctx context.Context, export Export) error {
	tabs := BuildTabs(export)

	w.logger.Info("Starting sheets export",
		"company", export.Report.Company,
		"vendors", len(export.Vendors),
		"expenses", len(export.Expenses))

	spreadsheetID, existing, err := w.getOrCreateSpreadsheet(ctx, tabs)
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	sheetIDs, err := w.ensureTabs(ctx, spreadsheetID, existing, tabs)
	if err != nil {
		return fmt.Errorf("failed to create tabs: %w", err)
	}

	retryOpts := common.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	for _, tab := range tabs {
		err := common.WithRetry(ctx, func(int) error {
			return retryable(w.clearTab(ctx, spreadsheetID, tab.Title))
		}, retryOpts)
		if err != nil {
			return fmt.Errorf("failed to clear tab %q: %w", tab.Title, err)
		}

		err = common.WithRetry(ctx, func(int) error {
			return retryable(w.writeData(ctx, spreadsheetID, tab))
		}, retryOpts)
		if err != nil {
			return fmt.Errorf("failed to write tab %q: %w", tab.Title, err)
		}
	}

	if w.config.EnableFormatting {
		err := common.WithRetry(ctx, func(int) error {
			return retryable(w.applyFormatting(ctx, spreadsheetID, tabs, sheetIDs))
		}, retryOpts)
		if err != nil {
			// Data is already written; formatting is cosmetic.
			w.logger.Warn("Failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("Sheets export completed",
		"spreadsheet_id", spreadsheetID,
		"tabs", len(tabs))
	return nil
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		oauthConfig := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}
		tokenSource = oauthConfig.TokenSource(ctx, &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		})
	}

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource))}
	if config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(config.Endpoint))
	}

	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}
	return srv, nil
}

// getOrCreateSpreadsheet returns the spreadsheet id and the title-to-id map
// of its existing tabs.
func (w *Writer) getOrCreateSpreadsheet(ctx context.Context, tabs []Tab) (string, map[string]int64, error) {
	if w.config.SpreadsheetID != "" {
		spreadsheet, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
		if err != nil {
			return "", nil, fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
		}
		return w.config.SpreadsheetID, sheetIndex(spreadsheet.Sheets), nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    w.config.SpreadsheetName,
			TimeZone: w.config.TimeZone,
		},
	}
	for _, tab := range tabs {
		spreadsheet.Sheets = append(spreadsheet.Sheets, &sheets.Sheet{
			Properties: &sheets.SheetProperties{Title: tab.Title},
		})
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	w.logger.Info("Created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	return created.SpreadsheetId, sheetIndex(created.Sheets), nil
}

// ensureTabs adds any tab that does not exist yet.
func (w *Writer) ensureTabs(ctx context.Context, spreadsheetID string, existing map[string]int64, tabs []Tab) (map[string]int64, error) {
	ids := make(map[string]int64, len(tabs))
	var requests []*sheets.Request
	for _, tab := range tabs {
		if id, ok := existing[tab.Title]; ok {
			ids[tab.Title] = id
			continue
		}
		requests = append(requests, &sheets.Request{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: tab.Title},
			},
		})
	}
	if len(requests) == 0 {
		return ids, nil
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	for _, reply := range resp.Replies {
		if reply == nil || reply.AddSheet == nil || reply.AddSheet.Properties == nil {
			continue
		}
		props := reply.AddSheet.Properties
		ids[props.Title] = props.SheetId
	}
	for _, tab := range tabs {
		if _, ok := ids[tab.Title]; !ok {
			return nil, fmt.Errorf("tab %q was not created", tab.Title)
		}
	}
	return ids, nil
}

func (w *Writer) clearTab(ctx context.Context, spreadsheetID, title string) error {
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, a1(title, "A:Z"), &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// writeData writes a tab's rows in batches to stay under API limits.
func (w *Writer) writeData(ctx context.Context, spreadsheetID string, tab Tab) error {
	for i := 0; i < len(tab.Rows); i += w.config.BatchSize {
		end := min(i+w.config.BatchSize, len(tab.Rows))

		batch := tab.Rows[i:end]
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, a1(tab.Title, fmt.Sprintf("A%d", i+1)), &sheets.ValueRange{
			Values: batch,
		}).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("Wrote batch", "tab", tab.Title, "start_row", i+1, "rows", len(batch))
	}
	return nil
}

func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, tabs []Tab, sheetIDs map[string]int64) error {
	var requests []*sheets.Request
	for _, tab := range tabs {
		sheetID := sheetIDs[tab.Title]
		headerRow := int64(headerRowIndex(tab))

		requests = append(requests,
			&sheets.Request{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{
						SheetId:       sheetID,
						StartRowIndex: headerRow,
						EndRowIndex:   headerRow + 1,
					},
					Cell: &sheets.CellData{
						UserEnteredFormat: &sheets.CellFormat{
							TextFormat: &sheets.TextFormat{Bold: true},
						},
					},
					Fields: "userEnteredFormat.textFormat",
				},
			},
			&sheets.Request{
				UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
					Properties: &sheets.SheetProperties{
						SheetId: sheetID,
						GridProperties: &sheets.GridProperties{
							FrozenRowCount: headerRow + 1,
						},
					},
					Fields: "gridProperties.frozenRowCount",
				},
			},
		)

		for _, col := range tab.MoneyColumns {
			requests = append(requests, &sheets.Request{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{
						SheetId:          sheetID,
						StartRowIndex:    headerRow + 1,
						EndRowIndex:      int64(len(tab.Rows)),
						StartColumnIndex: int64(col),
						EndColumnIndex:   int64(col + 1),
					},
					Cell: &sheets.CellData{
						UserEnteredFormat: &sheets.CellFormat{
							NumberFormat: &sheets.NumberFormat{
								Type:    "CURRENCY",
								Pattern: "$#,##0.00",
							},
						},
					},
					Fields: "userEnteredFormat.numberFormat",
				},
			})
		}

		requests = append(requests, &sheets.Request{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   int64(width(tab)),
				},
			},
		})
	}

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	return err
}

// retryable marks rate limits and server errors as transient. Anything
// else, including bad credentials, fails immediately.
func retryable(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return common.Transient(fmt.Errorf("%w: %w", common.ErrRateLimit, err))
		case apiErr.Code >= http.StatusInternalServerError:
			return common.Transient(err)
		}
	}
	return common.Permanent(err)
}

func sheetIndex(list []*sheets.Sheet) map[string]int64 {
	index := make(map[string]int64, len(list))
	for _, s := range list {
		if s != nil && s.Properties != nil {
			index[s.Properties.Title] = s.Properties.SheetId
		}
	}
	return index
}

// a1 builds an A1 range on a tab, quoting the title.
func a1(title, cells string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'!" + cells
}

// headerRowIndex finds the column header row: the first row with more
// than one cell.
func headerRowIndex(tab Tab) int {
	for i, row := range tab.Rows {
		if len(row) > 1 {
			return i
		}
	}
	return 0
}

func width(tab Tab) int {
	n := 0
	for _, row := range tab.Rows {
		n = max(n, len(row))
	}
	return n
}
