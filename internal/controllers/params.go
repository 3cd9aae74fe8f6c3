package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/franciscosanchezn/gin-forms-api/internal/access"
	"github.com/franciscosanchezn/gin-forms-api/internal/middleware"
	"github.com/franciscosanchezn/gin-forms-api/internal/models"
	"github.com/franciscosanchezn/gin-forms-api/internal/services"
)

// parseID reads a positive numeric path parameter. It writes the 400
// response itself and returns false on failure.
func parseID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest,
			models.NewAPIError(models.ErrInvalidID, "Invalid "+name, map[string]interface{}{"value": raw}))
		return 0, false
	}
	return uint(id), true
}

// parsePage reads page and limit query parameters. Missing values take the
// defaults; range checks are left to the service.
func parsePage(c *gin.Context) (int, int, bool) {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return 0, 0, false
	}
	limit, ok := queryInt(c, "limit", services.DefaultPageSize)
	if !ok {
		return 0, 0, false
	}
	return page, limit, true
}

func queryInt(c *gin.Context, name string, fallback int) (int, bool) {
	raw, present := c.GetQuery(name)
	if !present || raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest,
			models.NewAPIError(models.ErrInvalidPage, "Invalid pagination parameters", map[string]interface{}{name: raw}))
		return 0, false
	}
	return value, true
}

// principal returns the caller set by middleware.Authenticate
func principal(c *gin.Context) (access.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Header("WWW-Authenticate", `Bearer realm="forms"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			models.NewAPIError(models.ErrUnauthorized, "User not authenticated"))
	}
	return p, ok
}

// paginated is the envelope of every paged listing
type paginated struct {
	Data       interface{}       `json:"data"`
	Pagination models.Pagination `json:"pagination"`
}

type messageResponse struct {
	Message string `json:"message"`
}
