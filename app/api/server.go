package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, wsHandler gin.HandlerFunc, apiAccessKey string) *gin.Engine {
	// Set Gin mode (can be controlled via GIN_MODE environment variable)
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Middleware
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/ws"},
	}))

	r.Use(gin.Recovery())

	// CORS middleware for API endpoints
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Routes
	setupRoutes(r, handler, wsHandler, apiAccessKey)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler, wsHandler gin.HandlerFunc, apiAccessKey string) {
	// Report endpoints
	r.GET("/reports", handler.ListReports)
	r.GET("/reports/:id", handler.GetReport)

	// Health and status endpoints
	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	if wsHandler != nil {
		r.GET("/ws", wsHandler)
	}

	// API endpoints (conditionally enabled with authentication)
	if apiAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(apiAccessKey))
		{
			api.POST("/reports/archive-all", handler.ArchiveAll)
			api.POST("/reports/unarchive-all", handler.UnarchiveAll)
			api.POST("/reports/:id/archive", handler.ArchiveReport)
			api.DELETE("/reports/:id/archive", handler.UnarchiveReport)
			api.GET("/reports/:id/link", handler.GetReportLink)
			api.PUT("/sort", handler.SetSortKeys)
			api.POST("/sort/columns/:column", handler.ClickColumn)
			api.PUT("/settings/hide-archived", handler.SetHideArchived)
			api.POST("/refresh", handler.TriggerRefresh)
		}
		slog.Info("API endpoints enabled with authentication")
	} else {
		slog.Info("API endpoints disabled (API_ACCESS_KEY not set)")
	}

	// Root endpoint with basic information
	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"reports": "/reports[?hide_archived=true|false]",
			"report":  "/reports/<id>",
			"health":  "/health",
			"stats":   "/stats",
			"events":  "/ws",
		}

		// Add API endpoints if authentication is enabled
		if apiAccessKey != "" {
			endpoints["archive"] = "/api/reports/<id>/archive (POST/DELETE, requires X-API-Key header)"
			endpoints["archive_all"] = "/api/reports/archive-all, /api/reports/unarchive-all (POST, requires X-API-Key header)"
			endpoints["link"] = "/api/reports/<id>/link (requires X-API-Key header)"
			endpoints["sort"] = "/api/sort (PUT), /api/sort/columns/<column> (POST, requires X-API-Key header)"
			endpoints["hide_archived"] = "/api/settings/hide-archived (PUT, requires X-API-Key header)"
			endpoints["refresh"] = "/api/refresh (POST, requires X-API-Key header)"
		}

		c.JSON(http.StatusOK, gin.H{
			"service":     "DOT Reports",
			"version":     handler.info.Version,
			"description": "Road incident and roadwork reports with a persistent archive overlay",
			"endpoints":   endpoints,
			"api_status": map[string]any{
				"enabled":       apiAccessKey != "",
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// authMiddleware creates authentication middleware for API endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get API key from X-API-Key header
		providedKey := c.GetHeader("X-API-Key")

		// Also check Authorization header with Bearer prefix
		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		// Check if API key is provided and matches
		if providedKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			return
		}

		if providedKey != apiAccessKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			return
		}

		// Continue to next middleware/handler
		c.Next()
	}
}
