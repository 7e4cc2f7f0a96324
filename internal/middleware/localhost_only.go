package middleware

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LocalhostOnly restricts a route to loopback clients. Used for bootstrap
// endpoints like TOTP secret generation.
func LocalhostOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := net.ParseIP(c.ClientIP())
		if ip == nil || !ip.IsLoopback() {
			logrus.WithFields(logrus.Fields{
				"path":      c.Request.URL.Path,
				"client_ip": c.ClientIP(),
			}).Warn("🚫 Localhost-only route accessed remotely")

			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "This endpoint is only available from localhost",
				"code":    "LOCALHOST_ONLY",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
