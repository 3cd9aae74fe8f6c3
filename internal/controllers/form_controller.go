package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/franciscosanchezn/gin-forms-api/internal/export"
	"github.com/franciscosanchezn/gin-forms-api/internal/models"
	"github.com/franciscosanchezn/gin-forms-api/internal/observability"
	"github.com/franciscosanchezn/gin-forms-api/internal/services"
)

// FormController handles submissions and their answers
type FormController struct {
	service services.FormService
	metrics *observability.Metrics
}

// NewFormController creates a FormController. metrics may be nil.
func NewFormController(service services.FormService, metrics *observability.Metrics) *FormController {
	return &FormController{service: service, metrics: metrics}
}

// answerRequest carries one answer. A JSON string is stored as is, other
// JSON values are stored as their compact JSON text.
type answerRequest struct {
	QuestionID uint            `json:"question_id"`
	Value      json.RawMessage `json:"value" swaggertype:"string"`
}

type submitFormRequest struct {
	TemplateID uint            `json:"template_id" binding:"required"`
	Answers    []answerRequest `json:"answers"`
}

type amendAnswersRequest struct {
	Answers []answerRequest `json:"answers"`
}

func answerValue(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false
		}
		return s, true
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return "", false
	}
	return compact.String(), true
}

// toAnswerInputs rejects missing or null values before the service runs
func toAnswerInputs(answers []answerRequest) ([]services.AnswerInput, error) {
	inputs := make([]services.AnswerInput, len(answers))
	for i, a := range answers {
		value, ok := answerValue(a.Value)
		if !ok {
			return nil, models.NewValidationError(models.ErrInvalidAnswerFormat, "Each answer needs a non-null value").
				WithDetails(map[string]interface{}{"index": i})
		}
		inputs[i] = services.AnswerInput{QuestionID: a.QuestionID, Value: value}
	}
	return inputs, nil
}

// SubmitForm godoc
// @Summary Submit a form
// @Description Creates the form and all of its answers, or nothing
// @Tags forms
// @Accept json
// @Produce json
// @Param form body submitFormRequest true "Answers"
// @Success 201 {object} map[string]interface{} "message and formId"
// @Failure 400 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/forms [post]
func (fc *FormController) SubmitForm(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req submitFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fc.metrics.RecordSubmission(false)
		respondBindingError(c, err)
		return
	}
	answers, err := toAnswerInputs(req.Answers)
	if err != nil {
		fc.metrics.RecordSubmission(false)
		respondError(c, err)
		return
	}

	form, err := fc.service.Submit(c.Request.Context(), p, req.TemplateID, answers)
	if err != nil {
		fc.metrics.RecordSubmission(false)
		respondError(c, err)
		return
	}

	fc.metrics.RecordSubmission(true)
	c.JSON(http.StatusCreated, gin.H{
		"message": "Form submitted successfully",
		"formId":  form.ID,
	})
}

// GetForm godoc
// @Summary Get a form
// @Description The form with its answers in question order
// @Tags forms
// @Produce json
// @Param id path int true "Form ID"
// @Success 200 {object} services.FormDetail
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/forms/{id} [get]
func (fc *FormController) GetForm(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	detail, err := fc.service.Get(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// ListMyForms godoc
// @Summary List my forms
// @Tags forms
// @Produce json
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 10, max 50)"
// @Success 200 {object} paginated
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/forms [get]
func (fc *FormController) ListMyForms(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	page, limit, ok := parsePage(c)
	if !ok {
		return
	}
	forms, pagination, err := fc.service.ListMine(c.Request.Context(), p, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginated{Data: forms, Pagination: pagination})
}

// ListTemplateForms godoc
// @Summary List submissions of a template
// @Description Template owner or admin only
// @Tags forms
// @Produce json
// @Param id path int true "Template ID"
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 10, max 50)"
// @Success 200 {object} paginated
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/templates/{id}/forms [get]
func (fc *FormController) ListTemplateForms(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	templateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	page, limit, ok := parsePage(c)
	if !ok {
		return
	}
	forms, pagination, err := fc.service.ListForTemplate(c.Request.Context(), p, templateID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginated{Data: forms, Pagination: pagination})
}

// ExportTemplateForms godoc
// @Summary Export submissions
// @Description All submissions of a template as an XLSX workbook
// @Tags forms
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path int true "Template ID"
// @Success 200 {file} file
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/templates/{id}/forms/export [get]
func (fc *FormController) ExportTemplateForms(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	templateID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := fc.service.ExportTemplateSubmissions(c.Request.Context(), p, templateID, &buf); err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="template-%d-submissions.xlsx"`, templateID))
	c.Data(http.StatusOK, export.ContentTypeXLSX, buf.Bytes())
}

// AmendAnswers godoc
// @Summary Amend answers
// @Description Replaces answers for the listed questions. The submitter may amend within the amend window; the template owner and admins at any time.
// @Tags forms
// @Accept json
// @Produce json
// @Param id path int true "Form ID"
// @Param answers body amendAnswersRequest true "Answers"
// @Success 200 {object} services.FormDetail
// @Failure 400 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/forms/{id}/answers [put]
func (fc *FormController) AmendAnswers(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req amendAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}
	answers, err := toAnswerInputs(req.Answers)
	if err != nil {
		respondError(c, err)
		return
	}

	detail, err := fc.service.AmendAnswers(c.Request.Context(), p, id, answers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}
