package controllers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/franciscosanchezn/gin-forms-api/internal/services"
)

type addQuestionRequest struct {
	Type        string         `json:"type" binding:"required,question_type"`
	Title       string         `json:"title" binding:"required"`
	Description string         `json:"description"`
	Config      datatypes.JSON `json:"config" swaggertype:"object"`
}

type reorderRequest struct {
	QuestionIDs []uint `json:"questionIds" binding:"required"`
}

// ListQuestions godoc
// @Summary List questions
// @Description Questions of a template in position order
// @Tags questions
// @Produce json
// @Param id path int true "Template ID"
// @Success 200 {array} models.Question
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/templates/{id}/questions [get]
func (tc *templateController) ListQuestions(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	questions, err := tc.service.ListQuestions(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, questions)
}

// AddQuestion godoc
// @Summary Add a question
// @Description Appends the question after the current last position
// @Tags questions
// @Accept json
// @Produce json
// @Param id path int true "Template ID"
// @Param question body addQuestionRequest true "Question"
// @Success 201 {object} models.Question
// @Failure 400 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/templates/{id}/questions [post]
func (tc *templateController) AddQuestion(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req addQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}
	if bytes.Equal(bytes.TrimSpace(req.Config), []byte("null")) {
		req.Config = nil
	}

	question, err := tc.service.AddQuestion(c.Request.Context(), p, id, services.QuestionInput{
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Config:      req.Config,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, question)
}

// ReorderQuestions godoc
// @Summary Reorder questions
// @Description questionIds must list every question of the template exactly once
// @Tags questions
// @Accept json
// @Produce json
// @Param id path int true "Template ID"
// @Param order body reorderRequest true "New order"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/templates/{id}/questions/order [put]
func (tc *templateController) ReorderQuestions(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	questions, err := tc.service.ReorderQuestions(c.Request.Context(), p, id, req.QuestionIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Questions reordered",
		"questions": questions,
	})
}
