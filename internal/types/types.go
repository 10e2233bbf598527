package types

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetAuthConfig() AuthConfig
	GetLogConfig() LogConfig
	GetDatabaseConfig() DatabaseConfig
	GetEffectiveServerConfig() ServerConfig
	GetBackendConfig() BackendConfig
	GetSheetsConfig() SheetsConfig
	GetSocketConfig() SocketConfig
	GetSlackConfig() SlackConfig
	GetMonitorConfig() MonitorConfig
	GetRedisDSN() string
	Validate() error
	DisplayServerConfig()
	ReloadConfig() error
}

// ServerConfig represents the admin API server configuration
type ServerConfig struct {
	Port                    int    `json:"port"`
	Host                    string `json:"host"`
	ReadTimeout             int    `json:"read_timeout"`
	WriteTimeout            int    `json:"write_timeout"`
	IdleTimeout             int    `json:"idle_timeout"`
	GracefulShutdownTimeout int    `json:"graceful_shutdown_timeout"`
}

// AuthConfig represents admin API authentication configuration
type AuthConfig struct {
	Key string `json:"key"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	EnableFile bool   `json:"enable_file"`
	FilePath   string `json:"file_path"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	DSN string `json:"dsn"`
}

// BackendConfig holds credentials and address of the signage management API.
type BackendConfig struct {
	BaseURL        string `json:"base_url"`
	Username       string `json:"-"`
	Password       string `json:"-"`
	RequestTimeout int    `json:"request_timeout"`
	PageSize       int    `json:"page_size"`
}

// SheetsConfig holds the Google Sheets reporting target.
type SheetsConfig struct {
	CredentialsFile string `json:"credentials_file"`
	SpreadsheetID   string `json:"spreadsheet_id"`
}

// SocketConfig holds the realtime signaling server address.
type SocketConfig struct {
	URL string `json:"url"`
}

// SlackConfig holds the alert webhook target.
type SlackConfig struct {
	WebhookURL string `json:"-"`
}

// MonitorConfig holds check intervals and version expectations.
type MonitorConfig struct {
	ScreenshotIntervalMinutes int      `json:"screenshot_interval_minutes"`
	VersionIntervalMinutes    int      `json:"version_interval_minutes"`
	OfflineIntervalMinutes    int      `json:"offline_interval_minutes"`
	ExpectedServerVersion     string   `json:"expected_server_version"`
	ExpectedUIVersion         string   `json:"expected_ui_version"`
	Zones                     []string `json:"zones"`
	ReportTimezone            string   `json:"report_timezone"`
	ImageDownloadTimeout      int      `json:"image_download_timeout"`
	PortalURLPattern          string   `json:"portal_url_pattern"`
}
