package sheets

import (
	"context"
	"fmt"
	"sync"

	"player-watch/internal/types"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// GoogleReporter implements Reporter on the Google Sheets API with
// service-account authentication.
type GoogleReporter struct {
	service       *sheets.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64 // tab title -> sheetId
}

// NewReporter builds the reporting sink. When no spreadsheet is configured
// the checks get a logged no-op sink so local history keeps recording.
func NewReporter(configManager types.ConfigManager) (Reporter, error) {
	cfg := configManager.GetSheetsConfig()
	if cfg.SpreadsheetID == "" {
		logrus.Warn("SHEETS_SPREADSHEET_ID not set, spreadsheet reporting disabled")
		return disabledReporter{}, nil
	}

	service, err := sheets.NewService(context.Background(),
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &GoogleReporter{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		sheetIDs:      make(map[string]int64),
	}, nil
}

// EnsureSheet creates the tab if it does not exist and rewrites the header row.
func (r *GoogleReporter) EnsureSheet(ctx context.Context, title string, headers []string) error {
	if _, err := r.sheetID(ctx, title, true); err != nil {
		return err
	}

	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	_, err := r.service.Spreadsheets.Values.
		Update(r.spreadsheetID, title+"!A1", &sheets.ValueRange{Values: [][]any{row}}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to write headers for %q: %w", title, err)
	}
	return nil
}

// AppendRow appends one row to the tab.
func (r *GoogleReporter) AppendRow(ctx context.Context, title string, values []any) error {
	return r.AppendRows(ctx, title, [][]any{values})
}

// AppendRows appends multiple rows to the tab.
func (r *GoogleReporter) AppendRows(ctx context.Context, title string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := r.service.Spreadsheets.Values.
		Append(r.spreadsheetID, title+"!A1", &sheets.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to append to %q: %w", title, err)
	}
	return nil
}

// UpsertRow updates the row keyed by column A, appending when absent.
func (r *GoogleReporter) UpsertRow(ctx context.Context, title string, key string, values []any) error {
	keys, err := r.readKeyColumn(ctx, title)
	if err != nil {
		return err
	}

	for i, k := range keys {
		if k == key {
			// Row 1 is headers; keys start at row 2.
			rowIndex := i + 2
			_, err := r.service.Spreadsheets.Values.
				Update(r.spreadsheetID, fmt.Sprintf("%s!A%d", title, rowIndex), &sheets.ValueRange{Values: [][]any{values}}).
				ValueInputOption("USER_ENTERED").
				Context(ctx).Do()
			if err != nil {
				return fmt.Errorf("failed to update row %d in %q: %w", rowIndex, title, err)
			}
			return nil
		}
	}
	return r.AppendRows(ctx, title, [][]any{values})
}

// PruneRows deletes every data row whose key is absent from keep.
// Deletions run bottom-up so indexes do not shift mid-operation.
func (r *GoogleReporter) PruneRows(ctx context.Context, title string, keep map[string]bool) error {
	sheetID, err := r.sheetID(ctx, title, false)
	if err != nil {
		return err
	}
	keys, err := r.readKeyColumn(ctx, title)
	if err != nil {
		return err
	}

	var requests []*sheets.Request
	for i := len(keys) - 1; i >= 0; i-- {
		if keys[i] == "" || keep[keys[i]] {
			continue
		}
		rowIndex := int64(i + 1) // zero-based; +1 skips the header row
		requests = append(requests, &sheets.Request{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: rowIndex,
					EndIndex:   rowIndex + 1,
				},
			},
		})
	}
	if len(requests) == 0 {
		return nil
	}

	_, err = r.service.Spreadsheets.
		BatchUpdate(r.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to prune rows in %q: %w", title, err)
	}
	logrus.WithFields(logrus.Fields{"sheet": title, "removed": len(requests)}).Info("Pruned resolved rows")
	return nil
}

// ClearDataRows removes everything below the header row.
func (r *GoogleReporter) ClearDataRows(ctx context.Context, title string) error {
	_, err := r.service.Spreadsheets.Values.
		Clear(r.spreadsheetID, title+"!A2:Z", &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear %q: %w", title, err)
	}
	return nil
}

// readKeyColumn returns column A values below the header row.
func (r *GoogleReporter) readKeyColumn(ctx context.Context, title string) ([]string, error) {
	resp, err := r.service.Spreadsheets.Values.
		Get(r.spreadsheetID, title+"!A2:A").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read key column of %q: %w", title, err)
	}

	keys := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) > 0 {
			keys[i] = fmt.Sprint(row[0])
		}
	}
	return keys, nil
}

// sheetID resolves a tab title to its sheetId, optionally creating the tab.
func (r *GoogleReporter) sheetID(ctx context.Context, title string, create bool) (int64, error) {
	r.mu.Lock()
	if id, ok := r.sheetIDs[title]; ok {
		r.mu.Unlock()
		return id, nil
	}
	r.mu.Unlock()

	spreadsheet, err := r.service.Spreadsheets.Get(r.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to load spreadsheet: %w", err)
	}
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == title {
			r.cacheSheetID(title, sheet.Properties.SheetId)
			return sheet.Properties.SheetId, nil
		}
	}

	if !create {
		return 0, fmt.Errorf("sheet %q not found", title)
	}

	logrus.WithField("sheet", title).Info("Creating worksheet")
	resp, err := r.service.Spreadsheets.
		BatchUpdate(r.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: title},
				},
			}},
		}).
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to create sheet %q: %w", title, err)
	}

	id := resp.Replies[0].AddSheet.Properties.SheetId
	r.cacheSheetID(title, id)
	return id, nil
}

func (r *GoogleReporter) cacheSheetID(title string, id int64) {
	r.mu.Lock()
	r.sheetIDs[title] = id
	r.mu.Unlock()
}
