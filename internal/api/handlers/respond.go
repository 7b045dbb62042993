package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nckmackenzie/atarah-api/internal/api/middleware"
	"github.com/nckmackenzie/atarah-api/internal/services"
	"github.com/nckmackenzie/atarah-api/internal/utils"
)

// respondError maps service errors to HTTP responses. Business-rule
// violations become a 400 carrying every offending field so the client can
// highlight them all at once.
func respondError(c *gin.Context, err error) {
	if ve, ok := services.AsValidationError(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"errors": ve.Errors})
		return
	}
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidResetCode):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrEmailExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	default:
		_ = c.Error(err)
		log.Printf("Internal error handling %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// badRequest renders a plain 400 for malformed request bodies.
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

// pathID parses the :id path parameter, responding 400 itself on failure.
func pathID(c *gin.Context, name string) (utils.SixID, bool) {
	id, err := utils.ParseSixID(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid ID format")
		return utils.SixID{}, false
	}
	return id, true
}

// queryDate parses an optional yyyy-mm-dd query parameter. A missing value
// yields the zero time; a malformed one responds 400 itself.
func queryDate(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		badRequest(c, name+" must be formatted yyyy-mm-dd")
		return time.Time{}, false
	}
	return t, true
}

// queryID parses an optional SixID query parameter, zero when absent.
func queryID(c *gin.Context, name string) (utils.SixID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return utils.SixID{}, true
	}
	id, err := utils.ParseSixID(raw)
	if err != nil {
		badRequest(c, "Invalid "+name+" format")
		return utils.SixID{}, false
	}
	return id, true
}

// currentUserID reads the authenticated user's ID set by the auth
// middleware.
func currentUserID(c *gin.Context) (utils.SixID, bool) {
	raw, exists := c.Get(middleware.ContextKeyUserID)
	if !exists {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return utils.SixID{}, false
	}
	id, err := utils.ParseSixID(raw.(string))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
		return utils.SixID{}, false
	}
	return id, true
}
