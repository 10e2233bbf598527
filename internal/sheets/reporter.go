// Package sheets persists check results into a Google Sheets spreadsheet.
package sheets

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Reporter is the narrow contract the checks write through. The screenshot
// health report uses append semantics; the version/zone report uses
// upsert-by-key plus prune-stale; the offline report rewrites its tab as a
// snapshot. The three policies are deliberately distinct.
type Reporter interface {
	// EnsureSheet creates the tab if missing and overwrites its header row.
	EnsureSheet(ctx context.Context, title string, headers []string) error
	// AppendRow appends one row to the bottom of the tab.
	AppendRow(ctx context.Context, title string, values []any) error
	// AppendRows appends multiple rows in one call.
	AppendRows(ctx context.Context, title string, rows [][]any) error
	// UpsertRow updates the row whose column-A value equals key, or appends.
	UpsertRow(ctx context.Context, title string, key string, values []any) error
	// PruneRows deletes data rows whose column-A key is not in keep.
	PruneRows(ctx context.Context, title string, keep map[string]bool) error
	// ClearDataRows removes every row below the header.
	ClearDataRows(ctx context.Context, title string) error
}

// disabledReporter is used when no spreadsheet is configured; every write is
// a logged no-op so the checks still run and record local history.
type disabledReporter struct{}

func (disabledReporter) EnsureSheet(ctx context.Context, title string, headers []string) error {
	logrus.WithField("sheet", title).Debug("Sheets reporting disabled, skipping ensure")
	return nil
}

func (disabledReporter) AppendRow(ctx context.Context, title string, values []any) error {
	logrus.WithField("sheet", title).Debug("Sheets reporting disabled, skipping append")
	return nil
}

func (disabledReporter) AppendRows(ctx context.Context, title string, rows [][]any) error {
	return nil
}

func (disabledReporter) UpsertRow(ctx context.Context, title string, key string, values []any) error {
	return nil
}

func (disabledReporter) PruneRows(ctx context.Context, title string, keep map[string]bool) error {
	return nil
}

func (disabledReporter) ClearDataRows(ctx context.Context, title string) error {
	return nil
}
