package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/franciscosanchezn/gin-forms-api/internal/observability"
	"github.com/franciscosanchezn/gin-forms-api/internal/services"
)

// TemplateController handles HTTP requests for templates and their questions
type TemplateController interface {
	// ListTemplates lists the caller's own and public templates
	ListTemplates(c *gin.Context)
	// ListAllTemplates lists every template (admin)
	ListAllTemplates(c *gin.Context)
	// GetTemplate returns one template with its ordered questions
	GetTemplate(c *gin.Context)
	CreateTemplate(c *gin.Context)
	// UpdateTemplate applies a partial update
	UpdateTemplate(c *gin.Context)
	// DeleteTemplate removes a template with its questions, grants and forms
	DeleteTemplate(c *gin.Context)

	ListQuestions(c *gin.Context)
	AddQuestion(c *gin.Context)
	ReorderQuestions(c *gin.Context)
}

type templateController struct {
	service services.TemplateService
	metrics *observability.Metrics
}

// NewTemplateController creates a new instance of TemplateController.
// metrics may be nil.
func NewTemplateController(service services.TemplateService, metrics *observability.Metrics) TemplateController {
	return &templateController{service: service, metrics: metrics}
}

type createTemplateRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Topic       string `json:"topic" binding:"omitempty,topic"`
	IsPublic    bool   `json:"isPublic"`
}

type updateTemplateRequest struct {
	Title       *string `json:"title" binding:"omitempty,min=1"`
	Description *string `json:"description"`
	Topic       *string `json:"topic" binding:"omitempty,topic"`
	IsPublic    *bool   `json:"isPublic"`
}

// ListTemplates godoc
// @Summary List templates
// @Description Templates owned by the caller plus every public template
// @Tags templates
// @Produce json
// @Success 200 {array} models.Template
// @Failure 401 {object} models.APIError
// @Security BearerAuth
// @Router /api/templates [get]
func (tc *templateController) ListTemplates(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	templates, err := tc.service.List(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

// ListAllTemplates godoc
// @Summary List all templates
// @Tags templates
// @Produce json
// @Success 200 {array} models.Template
// @Failure 403 {object} models.APIError
// @Security BearerAuth
// @Router /api/templates/manage [get]
func (tc *templateController) ListAllTemplates(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	templates, err := tc.service.ListAll(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

// GetTemplate godoc
// @Summary Get template by ID
// @Tags templates
// @Produce json
// @Param id path int true "Template ID"
// @Success 200 {object} models.Template
// @Failure 400 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/templates/{id} [get]
func (tc *templateController) GetTemplate(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	template, err := tc.service.Get(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, template)
}

// CreateTemplate godoc
// @Summary Create a template
// @Description Topic defaults to Other and isPublic to false
// @Tags templates
// @Accept json
// @Produce json
// @Param template body createTemplateRequest true "Template"
// @Success 201 {object} models.Template
// @Failure 400 {object} models.APIError
// @Failure 409 {object} models.APIError "Template limit reached"
// @Security BearerAuth
// @Router /api/templates [post]
func (tc *templateController) CreateTemplate(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	template, err := tc.service.Create(c.Request.Context(), p, services.TemplateInput{
		Title:       req.Title,
		Description: req.Description,
		Topic:       req.Topic,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	tc.metrics.RecordTemplateCreated()
	c.JSON(http.StatusCreated, template)
}

// UpdateTemplate godoc
// @Summary Update a template
// @Description Omitted fields keep their stored values
// @Tags templates
// @Accept json
// @Produce json
// @Param id path int true "Template ID"
// @Param template body updateTemplateRequest true "Fields to change"
// @Success 200 {object} models.Template
// @Failure 400 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/templates/{id} [put]
func (tc *templateController) UpdateTemplate(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	template, err := tc.service.Update(c.Request.Context(), p, id, services.TemplatePatch{
		Title:       req.Title,
		Description: req.Description,
		Topic:       req.Topic,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, template)
}

// DeleteTemplate godoc
// @Summary Delete a template
// @Description Also deletes its questions, access grants, forms and answers
// @Tags templates
// @Produce json
// @Param id path int true "Template ID"
// @Success 200 {object} messageResponse
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/templates/{id} [delete]
func (tc *templateController) DeleteTemplate(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := tc.service.Delete(c.Request.Context(), p, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Template deleted successfully"})
}
