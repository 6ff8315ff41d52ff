package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/research-output-api/internal/service"
	"github.com/rs/zerolog"
)

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// respondError maps a service error onto a status code and error body
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) || svcErr.Kind == service.KindInternal {
		log.Error().Err(err).Str("request_id", c.GetString("request_id")).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   gin.H{"type": service.KindInternal, "message": "Internal server error"},
		})
		return
	}

	status := http.StatusBadRequest
	if svcErr.Kind.NotFound() {
		status = http.StatusNotFound
	}
	body := *svcErr
	if body.Message == "" {
		body.Message = svcErr.Error()
	}
	c.JSON(status, gin.H{"success": false, "error": body})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   gin.H{"type": service.KindValidation, "message": message},
	})
}

// int64Param parses a positive path parameter, answering 400 when it is not one
func int64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

// int64Query parses an optional query parameter; absent means zero
func int64Query(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}
