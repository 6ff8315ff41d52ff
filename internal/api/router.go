package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/research-output-api/internal/metrics"
	"github.com/research-output-api/internal/service"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewRouter creates and configures the Gin router. db may be nil.
func NewRouter(services *service.Services, m *metrics.Metrics, db HealthChecker, log zerolog.Logger) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(requestIDMiddleware())
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware())
	if m != nil {
		router.Use(metricsMiddleware(m))
	}

	entities := NewEntityHandler(services, log)
	items := NewItemHandler(services, log)

	router.GET("/health", healthCheck(db))
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	v1 := router.Group("/v1")
	{
		re := v1.Group("/research-entities/:id")
		{
			re.POST("/draft", entities.CreateDraft)
			re.PUT("/draft", entities.UpdateDraft)
			re.DELETE("/draft/:itemId", entities.DeleteDraft)
			re.POST("/verify", entities.Verify)
			re.POST("/unverify", entities.Unverify)
			re.POST("/replace", entities.Replace)
			re.GET("/aliases", entities.ListAliases)
			re.POST("/aliases", entities.AddAlias)
			re.DELETE("/aliases/:aliasId", entities.DeleteAlias)
			re.GET("/suggestions", entities.ListSuggestions)
			re.DELETE("/suggestions", entities.RemoveSuggestions)
		}

		ri := v1.Group("/research-items")
		{
			ri.POST("/bulk-verify", items.BulkVerify)
			ri.POST("/unverify", items.BulkUnverify)
			ri.POST("/suggestion", items.BulkSuggest)
			ri.POST("/discard", items.BulkDiscard)
			ri.POST("/delete-drafts", items.BulkDeleteDrafts)
			ri.PUT("/external", items.UpsertExternal)
			ri.POST("/:id/calculate", items.Calculate)
			ri.GET("/:id/duplicates", items.ListDuplicates)
		}

		v1.PATCH("/duplicate", items.SetDuplicate)
	}

	return router
}

// healthCheck returns the health status
func healthCheck(db HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		database := "unchecked"
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			database = "up"
			if err := db.HealthCheck(ctx); err != nil {
				status, code, database = "unhealthy", http.StatusServiceUnavailable, "down"
			}
		}
		c.JSON(code, gin.H{
			"status":    status,
			"database":  database,
			"timestamp": time.Now().Format(time.RFC3339),
			"service":   "research-output-api",
		})
	}
}

// requestIDMiddleware propagates or assigns X-Request-ID
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// recoveryMiddleware handles panics
func recoveryMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("request_id", c.GetString("request_id")).
					Msg("Panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error":   gin.H{"type": service.KindInternal, "message": "Internal server error"},
				})
			}
		}()
		c.Next()
	}
}

// loggingMiddleware logs requests
func loggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		event := log.Info()
		if statusCode >= 400 {
			event = log.Warn()
		}
		if statusCode >= 500 {
			event = log.Error()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString("request_id")).
			Msg("Request completed")
	}
}

// metricsMiddleware records every request against its route template
func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveRequest(c.FullPath(), c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
