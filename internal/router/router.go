package router

import (
	"net/http"
	"os"
	"strings"

	"bridge-backend/internal/app"
	"bridge-backend/internal/handlers"
	"bridge-backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// corsMiddleware allows the configured origins. CORS_ALLOWED_ORIGINS is a
// comma-separated whitelist; unset means allow all.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowedOrigins := []string{"*"}
		if env := os.Getenv("CORS_ALLOWED_ORIGINS"); env != "" {
			allowedOrigins = allowedOrigins[:0]
			for _, o := range strings.Split(env, ",") {
				if trimmed := strings.TrimSpace(o); trimmed != "" {
					allowedOrigins = append(allowedOrigins, trimmed)
				}
			}
		}

		if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, allowed := range allowedOrigins {
				if allowed == origin {
					c.Header("Access-Control-Allow-Origin", origin)
					break
				}
			}
			if c.Writer.Header().Get("Access-Control-Allow-Origin") == "" {
				logrus.WithFields(logrus.Fields{
					"request_origin": origin,
					"path":           c.Request.URL.Path,
				}).Warn("🚫 CORS: origin not in whitelist")
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// SetupRouter wires all HTTP routes against the service container.
func SetupRouter(container *app.ServiceContainer, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	bridgeHandler := handlers.NewBridgeHandler(container.Endpoint, logger)
	queryHandler := handlers.NewQueryHandler(container.Endpoint, container.TransferRepo)
	adminHandler := handlers.NewAdminHandler(container.Endpoint, container.SignaturePolicy, container.AdminPrincipal, logger)
	adminAuthHandler := handlers.NewAdminAuthHandler()
	authHandler := handlers.NewAuthHandler()
	wsHandler := handlers.NewWebSocketHandler(container.WebSocketHub)
	adminAuth := middleware.NewAdminAuthMiddleware(logger)

	// Observability
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/health", handlers.HealthCheckHandler)
		api.GET("/health/db", handlers.DatabaseHealthCheckHandler)

		auth := api.Group("/auth")
		{
			auth.GET("/nonce", authHandler.GenerateNonceHandler)
			auth.POST("/login", authHandler.AuthenticateHandler)
		}

		bridge := api.Group("/bridge")
		{
			// Read-only surface is public.
			bridge.GET("/status", queryHandler.StatusHandler)
			bridge.GET("/nonce/:address", queryHandler.NonceHandler)
			bridge.GET("/processed/:id", queryHandler.ProcessedHandler)
			bridge.GET("/transfers", queryHandler.TransfersHandler)
			bridge.GET("/transfers/:id", queryHandler.TransferByIDHandler)

			// Transfer operations require a wallet session.
			authed := bridge.Group("")
			authed.Use(middleware.RequireUserAuth())
			{
				authed.POST("/lock", bridgeHandler.LockHandler)
				authed.POST("/burn", bridgeHandler.BurnHandler)
				authed.POST("/unlock", bridgeHandler.UnlockHandler)
				authed.POST("/mint", bridgeHandler.MintHandler)
			}
		}

		ws := api.Group("/ws")
		{
			ws.GET("/events", wsHandler.HandleWebSocket)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/auth/login", adminAuthHandler.AdminLoginHandler)
			admin.POST("/auth/totp-secret", middleware.LocalhostOnly(), adminAuthHandler.GenerateTOTPSecretHandler)

			protected := admin.Group("/bridge")
			protected.Use(adminAuth.RequireAdminAuth())
			{
				protected.POST("/pause", adminHandler.PauseHandler)
				protected.POST("/unpause", adminHandler.UnpauseHandler)
				protected.POST("/relayers", adminHandler.AddRelayerHandler)
				protected.DELETE("/relayers", adminHandler.RemoveRelayerHandler)
				protected.POST("/emergency-withdraw", adminHandler.EmergencyWithdrawHandler)
				protected.POST("/rotate-validator", adminHandler.RotateValidatorHandler)
			}
		}
	}

	return r
}
