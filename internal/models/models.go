// Package models defines the persisted history rows.
package models

import "time"

// Check run outcome constants
const (
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
	RunStatusFailed   = "failed"
)

// CheckRun corresponds to the check_runs table. One row per execution of a
// scheduled check.
type CheckRun struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID       string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"run_id"`
	CheckName   string     `gorm:"type:varchar(64);not null;index" json:"check_name"`
	Status      string     `gorm:"type:varchar(16);not null" json:"status"`
	DevicesSeen int        `json:"devices_seen"`
	RowsWritten int        `json:"rows_written"`
	Error       string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt   time.Time  `gorm:"index" json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// DeviceStatusRecord corresponds to the device_status_records table. It holds
// the latest screenshot-health evaluation per device, overwritten each run.
type DeviceStatusRecord struct {
	ID                  uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	LicenseKey          string    `gorm:"type:varchar(128);not null;uniqueIndex" json:"license_key"`
	LicenseID           string    `gorm:"type:varchar(64);not null;index" json:"license_id"`
	HostName            string    `gorm:"type:varchar(255)" json:"host_name"`
	DealerName          string    `gorm:"type:varchar(255)" json:"dealer_name"`
	Timezone            string    `gorm:"type:varchar(64)" json:"timezone"`
	Status              string    `gorm:"type:varchar(40);not null;index" json:"status"`
	ScreenshotURL       string    `gorm:"type:text" json:"screenshot_url"`
	ScreenshotTimestamp string    `gorm:"type:varchar(32)" json:"screenshot_timestamp"`
	DetectedText        string    `gorm:"type:text" json:"detected_text"`
	CheckedAt           time.Time `gorm:"index" json:"checked_at"`
}

// VersionMismatchRecord corresponds to the version_mismatch_records table.
// It mirrors the zone report: rows exist only while a device mismatches.
type VersionMismatchRecord struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	LicenseID     string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"license_id"`
	Zone          string    `gorm:"type:varchar(32);not null;index" json:"zone"`
	ServerVersion string    `gorm:"type:varchar(32)" json:"server_version"`
	UIVersion     string    `gorm:"type:varchar(32)" json:"ui_version"`
	RestartSent   bool      `json:"restart_sent"`
	SeenAt        time.Time `gorm:"index" json:"seen_at"`
}
