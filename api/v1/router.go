// Package v1 assembles the HTTP API.
package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"luma-ledger/ledger-backend/internal/audit"
	"luma-ledger/ledger-backend/internal/auth"
	"luma-ledger/ledger-backend/internal/documents"
	"luma-ledger/ledger-backend/internal/emissions/factors"
	"luma-ledger/ledger-backend/internal/metrics"
	"luma-ledger/ledger-backend/internal/reports"
)

// RouterDeps holds the handlers and settings the router is built from.
type RouterDeps struct {
	Documents *documents.Handler
	Reports   *reports.Handler
	Factors   *factors.Handler
	Audit     *audit.Handler
	Metrics   *metrics.Registry
	JWTSecret []byte
	Logger    *zap.Logger
}

// SetupRouter mounts the authenticated API under /api/v1 and the health and
// metrics endpoints at the root.
func SetupRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(deps.Logger), cors())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
		})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := router.Group("/api/v1", auth.Middleware(deps.JWTSecret))
	{
		api.GET("/me", auth.Me)
		deps.Documents.RegisterRoutes(api)
		deps.Reports.RegisterRoutes(api)
		deps.Factors.RegisterRoutes(api)
		if deps.Audit != nil {
			deps.Audit.RegisterRoutes(api)
		}
	}

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Report-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
