// Package handler contains the admin API handlers.
package handler

import (
	"net/http"
	"time"

	"player-watch/internal/checks"
	app_errors "player-watch/internal/errors"
	"player-watch/internal/models"
	"player-watch/internal/response"
	"player-watch/internal/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Server holds the handler dependencies.
type Server struct {
	DB            *gorm.DB
	config        types.ConfigManager
	checkRegistry map[string]checks.Check
}

// NewServer creates the admin API handler set.
func NewServer(
	db *gorm.DB,
	configManager types.ConfigManager,
	screenshotCheck *checks.ScreenshotHealthCheck,
	versionCheck *checks.VersionZoneCheck,
	offlineCheck *checks.OfflineWindowCheck,
) *Server {
	registry := map[string]checks.Check{
		screenshotCheck.Name(): screenshotCheck,
		versionCheck.Name():    versionCheck,
		offlineCheck.Name():    offlineCheck,
	}
	return &Server{
		DB:            db,
		config:        configManager,
		checkRegistry: registry,
	}
}

// Health handles the health check endpoint
func (s *Server) Health(c *gin.Context) {
	status := "healthy"
	dbStatus := "ok"
	httpStatus := http.StatusOK

	if s.DB != nil {
		sqlDB, err := s.DB.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = "unhealthy"
			dbStatus = "unavailable"
			httpStatus = http.StatusServiceUnavailable
		}
	} else {
		status = "unhealthy"
		dbStatus = "not configured"
		httpStatus = http.StatusServiceUnavailable
	}

	payload := gin.H{
		"status":    status,
		"database":  dbStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if startTime, exists := c.Get("serverStartTime"); exists {
		if st, ok := startTime.(time.Time); ok {
			payload["uptime"] = time.Since(st).String()
		}
	}

	c.JSON(httpStatus, payload)
}

// ListRuns returns recent check runs, newest first, optionally filtered by
// check name.
func (s *Server) ListRuns(c *gin.Context) {
	query := s.DB.Model(&models.CheckRun{}).Order("started_at desc")
	if name := c.Query("check"); name != "" {
		query = query.Where("check_name = ?", name)
	}

	var runs []models.CheckRun
	result, err := response.Paginate(c, query, &runs)
	if err != nil {
		response.Error(c, app_errors.ParseDBError(err))
		return
	}
	response.Success(c, result)
}

// ListDeviceStatuses returns the latest screenshot-health evaluation per
// device, optionally filtered by status code.
func (s *Server) ListDeviceStatuses(c *gin.Context) {
	query := s.DB.Model(&models.DeviceStatusRecord{}).Order("checked_at desc")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var records []models.DeviceStatusRecord
	result, err := response.Paginate(c, query, &records)
	if err != nil {
		response.Error(c, app_errors.ParseDBError(err))
		return
	}
	response.Success(c, result)
}

// ListVersionMismatches returns the devices currently failing the version
// check.
func (s *Server) ListVersionMismatches(c *gin.Context) {
	query := s.DB.Model(&models.VersionMismatchRecord{}).Order("seen_at desc")
	if zone := c.Query("zone"); zone != "" {
		query = query.Where("zone = ?", zone)
	}

	var records []models.VersionMismatchRecord
	result, err := response.Paginate(c, query, &records)
	if err != nil {
		response.Error(c, app_errors.ParseDBError(err))
		return
	}
	response.Success(c, result)
}

// TriggerCheck requests an immediate run of the named check.
func (s *Server) TriggerCheck(c *gin.Context) {
	name := c.Param("name")
	check, ok := s.checkRegistry[name]
	if !ok {
		response.Error(c, app_errors.ErrResourceNotFound)
		return
	}

	if err := check.TryRun(); err != nil {
		if apiErr, ok := err.(*app_errors.APIError); ok {
			response.Error(c, apiErr)
			return
		}
		response.Error(c, app_errors.ErrInternalServer)
		return
	}
	response.Success(c, gin.H{"check": name, "triggered": true})
}
