// Package config provides environment-backed configuration management.
package config

import (
	"fmt"
	"sync"

	"player-watch/internal/types"
	"player-watch/internal/utils"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Constants for configuration validation
const (
	MinPort = 1
	MaxPort = 65535
)

// Config represents the complete application configuration loaded from the environment.
type Config struct {
	Server   types.ServerConfig
	Auth     types.AuthConfig
	Log      types.LogConfig
	Database types.DatabaseConfig
	RedisDSN string
	Backend  types.BackendConfig
	Sheets   types.SheetsConfig
	Socket   types.SocketConfig
	Slack    types.SlackConfig
	Monitor  types.MonitorConfig
}

// Manager implements types.ConfigManager on top of process environment variables.
type Manager struct {
	mu     sync.RWMutex
	config *Config
}

// NewManager creates a new configuration manager and loads the configuration once.
func NewManager() (types.ConfigManager, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using system environment variables")
	}

	manager := &Manager{}
	if err := manager.ReloadConfig(); err != nil {
		return nil, err
	}
	if err := manager.Validate(); err != nil {
		return nil, err
	}
	return manager, nil
}

// ReloadConfig re-reads the configuration from the environment.
func (m *Manager) ReloadConfig() error {
	config := &Config{
		Server: types.ServerConfig{
			Port:                    utils.ParseInteger(utils.GetEnvOrDefault("PORT", "3001"), 3001),
			Host:                    utils.GetEnvOrDefault("HOST", "0.0.0.0"),
			ReadTimeout:             utils.ParseInteger(utils.GetEnvOrDefault("SERVER_READ_TIMEOUT", "60"), 60),
			WriteTimeout:            utils.ParseInteger(utils.GetEnvOrDefault("SERVER_WRITE_TIMEOUT", "60"), 60),
			IdleTimeout:             utils.ParseInteger(utils.GetEnvOrDefault("SERVER_IDLE_TIMEOUT", "120"), 120),
			GracefulShutdownTimeout: utils.ParseInteger(utils.GetEnvOrDefault("SERVER_GRACEFUL_SHUTDOWN_TIMEOUT", "30"), 30),
		},
		Auth: types.AuthConfig{
			Key: utils.GetEnvOrDefault("AUTH_KEY", ""),
		},
		Log: types.LogConfig{
			Level:      utils.GetEnvOrDefault("LOG_LEVEL", "info"),
			Format:     utils.GetEnvOrDefault("LOG_FORMAT", "text"),
			EnableFile: utils.ParseBoolean(utils.GetEnvOrDefault("LOG_ENABLE_FILE", "false"), false),
			FilePath:   utils.GetEnvOrDefault("LOG_FILE_PATH", "./data/logs/app.log"),
		},
		Database: types.DatabaseConfig{
			DSN: utils.GetEnvOrDefault("DATABASE_DSN", "./data/player-watch.db"),
		},
		RedisDSN: utils.GetEnvOrDefault("REDIS_DSN", ""),
		Backend: types.BackendConfig{
			BaseURL:        utils.GetEnvOrDefault("NC_API_BASE_URL", ""),
			Username:       utils.GetEnvOrDefault("NC_API_USERNAME", ""),
			Password:       utils.GetEnvOrDefault("NC_API_PASSWORD", ""),
			RequestTimeout: utils.ParseInteger(utils.GetEnvOrDefault("NC_API_REQUEST_TIMEOUT", "30"), 30),
			PageSize:       utils.ParseInteger(utils.GetEnvOrDefault("NC_API_PAGE_SIZE", "100"), 100),
		},
		Sheets: types.SheetsConfig{
			CredentialsFile: utils.GetEnvOrDefault("SHEETS_CREDENTIALS_FILE", "client_secret.json"),
			SpreadsheetID:   utils.GetEnvOrDefault("SHEETS_SPREADSHEET_ID", ""),
		},
		Socket: types.SocketConfig{
			URL: utils.GetEnvOrDefault("SOCKET_URL", ""),
		},
		Slack: types.SlackConfig{
			WebhookURL: utils.GetEnvOrDefault("SLACK_WEBHOOK_URL", ""),
		},
		Monitor: types.MonitorConfig{
			ScreenshotIntervalMinutes: utils.ParseInteger(utils.GetEnvOrDefault("SCREENSHOT_CHECK_INTERVAL_MINUTES", "5"), 5),
			VersionIntervalMinutes:    utils.ParseInteger(utils.GetEnvOrDefault("VERSION_CHECK_INTERVAL_MINUTES", "10"), 10),
			OfflineIntervalMinutes:    utils.ParseInteger(utils.GetEnvOrDefault("OFFLINE_CHECK_INTERVAL_MINUTES", "60"), 60),
			ExpectedServerVersion:     utils.GetEnvOrDefault("EXPECTED_SERVER_VERSION", "2.9.4"),
			ExpectedUIVersion:         utils.GetEnvOrDefault("EXPECTED_UI_VERSION", "3.0.47"),
			Zones:                     utils.SplitAndTrim(utils.GetEnvOrDefault("VERSION_CHECK_ZONES", "Eastern,Central,Mountain,Pacific")),
			ReportTimezone:            utils.GetEnvOrDefault("REPORT_TIMEZONE", "US/Central"),
			ImageDownloadTimeout:      utils.ParseInteger(utils.GetEnvOrDefault("IMAGE_DOWNLOAD_TIMEOUT", "30"), 30),
			PortalURLPattern:          utils.GetEnvOrDefault("PORTAL_LICENSE_URL_PATTERN", "https://portal.n-compass.online/administrator/licenses/%s/%s"),
		},
	}

	m.mu.Lock()
	m.config = config
	m.mu.Unlock()
	return nil
}

// Validate checks the loaded configuration for invalid values.
func (m *Manager) Validate() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := m.config

	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("port must be between %d and %d, got: %d", MinPort, MaxPort, c.Server.Port)
	}
	if c.Auth.Key == "" {
		return fmt.Errorf("AUTH_KEY is required")
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("NC_API_BASE_URL is required")
	}
	if c.Backend.PageSize < 1 {
		return fmt.Errorf("NC_API_PAGE_SIZE must be at least 1, got: %d", c.Backend.PageSize)
	}
	if c.Monitor.ScreenshotIntervalMinutes < 1 ||
		c.Monitor.VersionIntervalMinutes < 1 ||
		c.Monitor.OfflineIntervalMinutes < 1 {
		return fmt.Errorf("check intervals must be at least 1 minute")
	}
	if len(c.Monitor.Zones) == 0 {
		return fmt.Errorf("VERSION_CHECK_ZONES must name at least one zone")
	}
	return nil
}

// GetAuthConfig returns the admin API auth configuration.
func (m *Manager) GetAuthConfig() types.AuthConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Auth
}

// GetLogConfig returns the logging configuration.
func (m *Manager) GetLogConfig() types.LogConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Log
}

// GetDatabaseConfig returns the database configuration.
func (m *Manager) GetDatabaseConfig() types.DatabaseConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Database
}

// GetEffectiveServerConfig returns the admin server configuration.
func (m *Manager) GetEffectiveServerConfig() types.ServerConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Server
}

// GetBackendConfig returns the signage management API configuration.
func (m *Manager) GetBackendConfig() types.BackendConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Backend
}

// GetSheetsConfig returns the spreadsheet reporting configuration.
func (m *Manager) GetSheetsConfig() types.SheetsConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Sheets
}

// GetSocketConfig returns the realtime signaling configuration.
func (m *Manager) GetSocketConfig() types.SocketConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Socket
}

// GetSlackConfig returns the alert webhook configuration.
func (m *Manager) GetSlackConfig() types.SlackConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Slack
}

// GetMonitorConfig returns the check scheduling configuration.
func (m *Manager) GetMonitorConfig() types.MonitorConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Monitor
}

// GetRedisDSN returns the Redis connection string, empty when unset.
func (m *Manager) GetRedisDSN() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.RedisDSN
}

// DisplayServerConfig logs a startup banner with the effective configuration.
func (m *Manager) DisplayServerConfig() {
	m.mu.RLock()
	c := m.config
	m.mu.RUnlock()

	logrus.Info("")
	logrus.Info("======= Player Watch Configuration =======")
	logrus.Infof("  Admin API:          %s:%d", c.Server.Host, c.Server.Port)
	logrus.Infof("  Backend API:        %s", c.Backend.BaseURL)
	logrus.Infof("  Spreadsheet:        %s", maskID(c.Sheets.SpreadsheetID))
	logrus.Infof("  Socket server:      %s", c.Socket.URL)
	logrus.Infof("  Screenshot check:   every %dm", c.Monitor.ScreenshotIntervalMinutes)
	logrus.Infof("  Version check:      every %dm (zones: %v)", c.Monitor.VersionIntervalMinutes, c.Monitor.Zones)
	logrus.Infof("  Offline check:      every %dm", c.Monitor.OfflineIntervalMinutes)
	logrus.Infof("  Expected versions:  server=%s ui=%s", c.Monitor.ExpectedServerVersion, c.Monitor.ExpectedUIVersion)
	logrus.Info("==========================================")
	logrus.Info("")
}

// maskID hides the middle of an identifier for log output.
func maskID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:4] + "..." + id[len(id)-4:]
}
