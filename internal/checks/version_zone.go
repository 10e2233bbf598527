package checks

import (
	"context"
	"fmt"
	"time"

	"player-watch/internal/models"
	"player-watch/internal/ncapi"
	"player-watch/internal/notify"
	"player-watch/internal/sheets"
	"player-watch/internal/store"
	"player-watch/internal/types"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var zoneReportHeaders = []string{"License IDs", "Versions", "URL", "Status"}

// zoneResult is one device's version evaluation within a zone pass.
type zoneResult struct {
	licenseID   string
	versions    string
	portalURL   string
	status      string
	isMismatch  bool
	restartSent bool
	server      string
	ui          string
}

// VersionZoneCheck compares device server/UI versions to the expected release
// per timezone zone, signals mismatching players to restart and keeps one
// sheet tab per zone holding only the currently mismatching devices.
type VersionZoneCheck struct {
	*service
	api        deviceAPI
	reporter   sheets.Reporter
	signaler   notify.RestartSignaler
	monitorCfg types.MonitorConfig
	now        func() time.Time
}

// NewVersionZoneCheck creates the version-by-zone check service.
func NewVersionZoneCheck(
	configManager types.ConfigManager,
	db *gorm.DB,
	s store.Store,
	api *ncapi.Client,
	reporter sheets.Reporter,
	signaler notify.RestartSignaler,
	alerter notify.Alerter,
) *VersionZoneCheck {
	cfg := configManager.GetMonitorConfig()
	c := &VersionZoneCheck{
		api:        api,
		reporter:   reporter,
		signaler:   signaler,
		monitorCfg: cfg,
		now:        time.Now,
	}
	c.service = newService(
		"version_zone",
		time.Duration(cfg.VersionIntervalMinutes)*time.Minute,
		db,
		s,
		alerter,
		c.run,
	)
	return c
}

func (c *VersionZoneCheck) run(ctx context.Context, stats *RunStats) error {
	for _, zone := range c.monitorCfg.Zones {
		if err := c.runZone(ctx, zone, stats); err != nil {
			// Zone failures are isolated so one bad zone does not mask the rest.
			logrus.Errorf("Version check failed for zone %s: %v", zone, err)
		}
	}
	return nil
}

func (c *VersionZoneCheck) runZone(ctx context.Context, zone string, stats *RunStats) error {
	logrus.Infof("Version check: zone %s", zone)

	licenses, err := c.fetchZoneLicenses(ctx, zone)
	if err != nil {
		return err
	}
	stats.DevicesSeen += len(licenses)

	results := make([]zoneResult, 0, len(licenses))
	for i := range licenses {
		results = append(results, c.evaluate(&licenses[i]))
	}

	if err := c.syncZoneSheet(ctx, zone, results, stats); err != nil {
		return err
	}
	return c.syncRecords(zone, results)
}

// fetchZoneLicenses paginates the backend listing filtered to one zone.
func (c *VersionZoneCheck) fetchZoneLicenses(ctx context.Context, zone string) ([]ncapi.License, error) {
	var all []ncapi.License
	page := 1
	for {
		pageData, err := c.api.GetLicenses(ctx, ncapi.ZoneFilters(zone), page)
		if err != nil {
			return nil, err
		}
		if len(pageData.Licenses) == 0 {
			break
		}
		all = append(all, pageData.Licenses...)
		page++
	}
	return all, nil
}

// evaluate compares one device's versions and signals a restart on mismatch.
func (c *VersionZoneCheck) evaluate(lic *ncapi.License) zoneResult {
	result := zoneResult{
		licenseID: lic.LicenseID,
		versions:  fmt.Sprintf("Server: %s, UI: %s", lic.ServerVersion, lic.UIVersion),
		portalURL: fmt.Sprintf(c.monitorCfg.PortalURLPattern, lic.LicenseID, lic.LicenseKey),
		server:    lic.ServerVersion,
		ui:        lic.UIVersion,
	}

	if lic.ServerVersion == c.monitorCfg.ExpectedServerVersion && lic.UIVersion == c.monitorCfg.ExpectedUIVersion {
		result.status = "OK"
		return result
	}

	result.isMismatch = true
	result.restartSent = c.signaler.RestartPlayer(lic.LicenseID)
	if result.restartSent {
		result.status = "Version mismatch - player restart signal sent"
	} else {
		result.status = "Version mismatch - FAILED to send restart signal"
	}
	logrus.WithFields(logrus.Fields{
		"license_id": lic.LicenseID,
		"server":     lic.ServerVersion,
		"ui":         lic.UIVersion,
	}).Warnf("Version mismatch, expected server=%s ui=%s", c.monitorCfg.ExpectedServerVersion, c.monitorCfg.ExpectedUIVersion)
	return result
}

// syncZoneSheet upserts current mismatches into the zone tab and deletes
// rows for devices that no longer mismatch. The tab always reflects only
// the present state, unlike the append-only screenshot report.
func (c *VersionZoneCheck) syncZoneSheet(ctx context.Context, zone string, results []zoneResult, stats *RunStats) error {
	if err := c.reporter.EnsureSheet(ctx, zone, zoneReportHeaders); err != nil {
		return err
	}

	keep := make(map[string]bool)
	for _, r := range results {
		if !r.isMismatch {
			continue
		}
		keep[r.licenseID] = true
		values := []any{r.licenseID, r.versions, r.portalURL, r.status}
		if err := c.reporter.UpsertRow(ctx, zone, r.licenseID, values); err != nil {
			logrus.Errorf("Failed to upsert zone row for %s: %v", r.licenseID, err)
			continue
		}
		stats.RowsWritten++
	}

	return c.reporter.PruneRows(ctx, zone, keep)
}

// syncRecords mirrors the zone tab policy into the local history table.
func (c *VersionZoneCheck) syncRecords(zone string, results []zoneResult) error {
	seenAt := c.now()
	mismatched := make([]string, 0, len(results))
	for _, r := range results {
		if !r.isMismatch {
			continue
		}
		mismatched = append(mismatched, r.licenseID)
		record := models.VersionMismatchRecord{
			LicenseID:     r.licenseID,
			Zone:          zone,
			ServerVersion: r.server,
			UIVersion:     r.ui,
			RestartSent:   r.restartSent,
			SeenAt:        seenAt,
		}
		err := c.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "license_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"zone", "server_version", "ui_version", "restart_sent", "seen_at"}),
		}).Create(&record).Error
		if err != nil {
			logrus.Errorf("Failed to record version mismatch for %s: %v", r.licenseID, err)
		}
	}

	query := c.db.Where("zone = ?", zone)
	if len(mismatched) > 0 {
		query = query.Where("license_id NOT IN ?", mismatched)
	}
	return query.Delete(&models.VersionMismatchRecord{}).Error
}
