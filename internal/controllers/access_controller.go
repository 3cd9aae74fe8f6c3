package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/franciscosanchezn/gin-forms-api/internal/services"
)

// AccessController manages per-user grants on private templates
type AccessController struct {
	service services.AccessService
}

func NewAccessController(service services.AccessService) *AccessController {
	return &AccessController{service: service}
}

type grantRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// ListGrants godoc
// @Summary List access grants
// @Tags access
// @Produce json
// @Param id path int true "Template ID"
// @Success 200 {array} models.TemplateAccess
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/templates/{id}/access [get]
func (ac *AccessController) ListGrants(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	templateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	grants, err := ac.service.List(c.Request.Context(), p, templateID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grants)
}

// Grant godoc
// @Summary Grant access
// @Description Lets a user read and submit a private template. Granting twice is a no-op.
// @Tags access
// @Accept json
// @Produce json
// @Param id path int true "Template ID"
// @Param grant body grantRequest true "Grantee"
// @Success 201 {object} models.TemplateAccess
// @Failure 400 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/templates/{id}/access [post]
func (ac *AccessController) Grant(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	templateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	grant, err := ac.service.Grant(c.Request.Context(), p, templateID, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, grant)
}

// Revoke godoc
// @Summary Revoke access
// @Tags access
// @Produce json
// @Param id path int true "Template ID"
// @Param userId path int true "User ID"
// @Success 200 {object} messageResponse
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/templates/{id}/access/{userId} [delete]
func (ac *AccessController) Revoke(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	templateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}
	if err := ac.service.Revoke(c.Request.Context(), p, templateID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Access revoked"})
}
