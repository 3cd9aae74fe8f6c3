package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/franciscosanchezn/gin-forms-api/internal/models"
	"github.com/franciscosanchezn/gin-forms-api/internal/services"
)

// AdminController exposes the user directory to admins
type AdminController struct {
	directory services.DirectoryService
}

func NewAdminController(directory services.DirectoryService) *AdminController {
	return &AdminController{directory: directory}
}

type changeRoleRequest struct {
	Role string `json:"role" binding:"required,role"`
}

func toUserResponses(users []models.User) []userResponse {
	out := make([]userResponse, len(users))
	for i := range users {
		out[i] = toUserResponse(&users[i])
	}
	return out
}

// ListUsers godoc
// @Summary List users
// @Description Paginated by id. A page past the end is empty.
// @Tags admin
// @Produce json
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 10, max 100)"
// @Success 200 {object} paginated
// @Failure 400 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Security BearerAuth
// @Router /api/admin/users [get]
func (ac *AdminController) ListUsers(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	page, limit, ok := parsePage(c)
	if !ok {
		return
	}
	users, pagination, err := ac.directory.List(c.Request.Context(), p, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginated{Data: toUserResponses(users), Pagination: pagination})
}

// SearchUsers godoc
// @Summary Search users
// @Description Case-insensitive substring match on name or email, at least 3 characters
// @Tags admin
// @Produce json
// @Param query query string true "Search text"
// @Success 200 {object} map[string]interface{} "count and results"
// @Failure 400 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Security BearerAuth
// @Router /api/admin/users/search [get]
func (ac *AdminController) SearchUsers(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	users, err := ac.directory.Search(c.Request.Context(), p, c.Query("query"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(users),
		"results": toUserResponses(users),
	})
}

// ChangeRole godoc
// @Summary Change a user's role
// @Description Admins cannot demote themselves and the last admin cannot be demoted
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param role body changeRoleRequest true "New role"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/admin/users/{id}/role [put]
func (ac *AdminController) ChangeRole(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	targetID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req changeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	user, err := ac.directory.ChangeRole(c.Request.Context(), p, targetID, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "User role updated to " + user.Role,
		"user":    toUserResponse(user),
	})
}
