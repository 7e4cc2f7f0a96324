package handlers

import (
	"net/http"

	"bridge-backend/internal/db"

	"github.com/gin-gonic/gin"
)

// HealthCheckHandler reports process liveness.
// GET /api/health
func HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "bridge-backend",
		"api":     "healthy",
	})
}

// DatabaseHealthCheckHandler pings the database. Endpoints running on
// in-memory stores report mode "memory".
// GET /api/health/db
func DatabaseHealthCheckHandler(c *gin.Context) {
	if db.DB == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": "memory"})
		return
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": err.Error()})
		return
	}
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": "postgres"})
}
