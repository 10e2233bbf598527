package checks

import (
	"context"
	"time"

	"player-watch/internal/models"
	"player-watch/internal/ncapi"
	"player-watch/internal/notify"
	"player-watch/internal/screenshot"
	"player-watch/internal/sheets"
	"player-watch/internal/store"
	"player-watch/internal/storehours"
	"player-watch/internal/types"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// deviceAPI is the slice of the backend client the checks consume.
type deviceAPI interface {
	GetLicenses(ctx context.Context, filters ncapi.ListFilters, page int) (*ncapi.LicensePage, error)
	GetDeviceFiles(ctx context.Context, licenseID string) ([]string, error)
	DownloadImage(ctx context.Context, imageURL string) ([]byte, error)
}

var screenshotReportHeaders = []string{
	"License Key",
	"License ID",
	"Host",
	"Dealer",
	"Timezone",
	"Screenshot URL",
	"Screenshot Time",
	"Status",
	"Detected Text",
	"Checked At",
}

// ScreenshotHealthCheck walks every online device, evaluates its screenshots
// against store hours and appends one row per open device to a dated report
// tab.
type ScreenshotHealthCheck struct {
	*service
	api        deviceAPI
	reporter   sheets.Reporter
	classifier *screenshot.Classifier
	monitorCfg types.MonitorConfig
	now        func() time.Time
}

// NewScreenshotHealthCheck creates the screenshot health check service.
func NewScreenshotHealthCheck(
	configManager types.ConfigManager,
	db *gorm.DB,
	s store.Store,
	api *ncapi.Client,
	reporter sheets.Reporter,
	classifier *screenshot.Classifier,
	alerter notify.Alerter,
) *ScreenshotHealthCheck {
	cfg := configManager.GetMonitorConfig()
	c := &ScreenshotHealthCheck{
		api:        api,
		reporter:   reporter,
		classifier: classifier,
		monitorCfg: cfg,
		now:        time.Now,
	}
	c.service = newService(
		"screenshot_health",
		time.Duration(cfg.ScreenshotIntervalMinutes)*time.Minute,
		db,
		s,
		alerter,
		c.run,
	)
	return c
}

func (c *ScreenshotHealthCheck) run(ctx context.Context, stats *RunStats) error {
	title := c.reportTitle()
	if err := c.reporter.EnsureSheet(ctx, title, screenshotReportHeaders); err != nil {
		return err
	}

	page := 1
	for {
		pageData, err := c.api.GetLicenses(ctx, ncapi.OnlineFilters(), page)
		if err != nil {
			return err
		}
		if len(pageData.Licenses) == 0 {
			logrus.Debugf("Screenshot health: no more licenses (page %d).", page)
			break
		}
		logrus.Infof("Screenshot health: processing %d licenses on page %d.", len(pageData.Licenses), page)

		for i := range pageData.Licenses {
			stats.DevicesSeen++
			c.processDevice(ctx, title, &pageData.Licenses[i], stats)
		}
		page++
	}
	return nil
}

// processDevice evaluates one license. Failures are contained here so one
// bad device never aborts the rest of the page.
func (c *ScreenshotHealthCheck) processDevice(ctx context.Context, title string, lic *ncapi.License, stats *RunStats) {
	log := logrus.WithField("license_key", lic.LicenseKey)
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Panic while processing device: %v", r)
		}
	}()

	if !storehours.IsOpen(lic.StoreHours, lic.TimezoneName, c.now()) {
		return
	}

	reduction, err := c.evaluate(ctx, lic)
	if err != nil {
		log.Errorf("Failed to evaluate device: %v", err)
		return
	}

	status := screenshot.ReportStatus(reduction.Status)
	checkedAt := c.now()
	c.recordStatus(lic, status, reduction, checkedAt)

	if status != screenshot.StatusOK {
		log.WithField("status", status).Warn("Device reported unhealthy")
	}

	// Every open device gets a row, healthy or not.
	row := []any{
		lic.LicenseKey,
		lic.LicenseID,
		lic.HostName,
		lic.DealerName,
		lic.TimezoneName,
		reduction.ScreenshotURL,
		reduction.ScreenshotTimestamp,
		status,
		reduction.DetectedText,
		checkedAt.UTC().Format(time.RFC3339),
	}
	if err := c.reporter.AppendRow(ctx, title, row); err != nil {
		log.Errorf("Failed to append report row: %v", err)
		return
	}
	stats.RowsWritten++
}

// evaluate fetches the device's screenshot listing and collapses today's
// sample into one status.
func (c *ScreenshotHealthCheck) evaluate(ctx context.Context, lic *ncapi.License) (screenshot.Reduction, error) {
	files, err := c.api.GetDeviceFiles(ctx, lic.LicenseID)
	if err != nil {
		return screenshot.Reduction{}, err
	}
	if len(files) == 0 {
		return screenshot.Reduction{Status: screenshot.StatusNoScreenshots}, nil
	}

	todays := screenshot.FilterToday(files, lic.TimezoneName, c.now())
	if len(todays) == 0 {
		return screenshot.Reduction{Status: screenshot.StatusNameDateError}, nil
	}
	if len(todays) > screenshot.SampleSize {
		todays = todays[:screenshot.SampleSize]
	}

	sample := make([]screenshot.Sampled, 0, len(todays))
	for _, imageURL := range todays {
		data, err := c.api.DownloadImage(ctx, imageURL)
		if err != nil {
			logrus.WithField("license_key", lic.LicenseKey).Errorf("Failed to download %s: %v", imageURL, err)
			continue
		}
		sample = append(sample, screenshot.Sampled{
			URL:     imageURL,
			Outcome: c.classifier.Classify(ctx, data),
		})
	}
	return screenshot.Reduce(sample), nil
}

// recordStatus upserts the device's latest evaluation for the admin API.
func (c *ScreenshotHealthCheck) recordStatus(lic *ncapi.License, status string, reduction screenshot.Reduction, checkedAt time.Time) {
	record := models.DeviceStatusRecord{
		LicenseKey:          lic.LicenseKey,
		LicenseID:           lic.LicenseID,
		HostName:            lic.HostName,
		DealerName:          lic.DealerName,
		Timezone:            lic.TimezoneName,
		Status:              status,
		ScreenshotURL:       reduction.ScreenshotURL,
		ScreenshotTimestamp: reduction.ScreenshotTimestamp,
		DetectedText:        reduction.DetectedText,
		CheckedAt:           checkedAt,
	}
	err := c.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "license_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"license_id", "host_name", "dealer_name", "timezone",
			"status", "screenshot_url", "screenshot_timestamp", "detected_text", "checked_at",
		}),
	}).Create(&record).Error
	if err != nil {
		logrus.WithField("license_key", lic.LicenseKey).Errorf("Failed to record device status: %v", err)
	}
}

// reportTitle is today's date in the report timezone, used as the tab name.
func (c *ScreenshotHealthCheck) reportTitle() string {
	loc, err := time.LoadLocation(c.monitorCfg.ReportTimezone)
	if err != nil {
		logrus.Errorf("Invalid report timezone %q, falling back to UTC: %v", c.monitorCfg.ReportTimezone, err)
		loc = time.UTC
	}
	return c.now().In(loc).Format("2006-01-02")
}
