package checks

import (
	"context"
	"time"

	"player-watch/internal/ncapi"
	"player-watch/internal/notify"
	"player-watch/internal/sheets"
	"player-watch/internal/store"
	"player-watch/internal/types"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	offlineReportTitle = "Offline 6-30 Days"
	offlineDaysFrom    = 6
	offlineDaysTo      = 30
)

var offlineReportHeaders = []string{
	"License ID",
	"License Key",
	"Timezone",
	"Days Offline",
	"PiStatus",
	"Dealer",
	"Host",
}

// OfflineWindowCheck rewrites the offline-devices tab with a snapshot of
// every device that has been offline between 6 and 30 days.
type OfflineWindowCheck struct {
	*service
	api      deviceAPI
	reporter sheets.Reporter
}

// NewOfflineWindowCheck creates the offline-window report service.
func NewOfflineWindowCheck(
	configManager types.ConfigManager,
	db *gorm.DB,
	s store.Store,
	api *ncapi.Client,
	reporter sheets.Reporter,
	alerter notify.Alerter,
) *OfflineWindowCheck {
	cfg := configManager.GetMonitorConfig()
	c := &OfflineWindowCheck{
		api:      api,
		reporter: reporter,
	}
	c.service = newService(
		"offline_window",
		time.Duration(cfg.OfflineIntervalMinutes)*time.Minute,
		db,
		s,
		alerter,
		c.run,
	)
	return c
}

func (c *OfflineWindowCheck) run(ctx context.Context, stats *RunStats) error {
	var offline []ncapi.License
	page := 1
	for {
		pageData, err := c.api.GetLicenses(ctx, ncapi.OfflineWindowFilters(offlineDaysFrom, offlineDaysTo), page)
		if err != nil {
			return err
		}
		if len(pageData.Licenses) == 0 {
			break
		}
		offline = append(offline, pageData.Licenses...)
		page++
	}
	stats.DevicesSeen = len(offline)

	if len(offline) == 0 {
		logrus.Info("Offline window: no devices offline 6-30 days.")
		return nil
	}

	if err := c.reporter.EnsureSheet(ctx, offlineReportTitle, offlineReportHeaders); err != nil {
		return err
	}
	// The tab is a snapshot, rewritten whole on every run.
	if err := c.reporter.ClearDataRows(ctx, offlineReportTitle); err != nil {
		return err
	}

	rows := make([][]any, 0, len(offline))
	for _, lic := range offline {
		rows = append(rows, []any{
			lic.LicenseID,
			lic.LicenseKey,
			lic.TimezoneName,
			lic.DaysOffline,
			lic.PiStatus,
			lic.DealerName,
			lic.HostName,
		})
	}
	if err := c.reporter.AppendRows(ctx, offlineReportTitle, rows); err != nil {
		return err
	}
	stats.RowsWritten = len(rows)

	logrus.Infof("Offline window: wrote %d rows.", len(rows))
	return nil
}
