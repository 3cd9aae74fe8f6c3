package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franciscosanchezn/gin-forms-api/internal/models"
	"github.com/franciscosanchezn/gin-forms-api/internal/services"
)

// A owns a private template, B gets access through an admin grant and
// submits, C stays locked out of both the template and the form.
func TestPrivateTemplateSharingFlow(t *testing.T) {
	env := setupTestEnv(t)
	_, tokenA := env.signUp("alice")
	userB, tokenB := env.signUp("bob")
	_, tokenC := env.signUp("carol")
	_, adminToken := env.signUpAdmin()

	templateID, questionIDs := env.createTemplate(tokenA, false, "Name", "Age")
	templatePath := fmt.Sprintf("/api/templates/%d", templateID)

	rr := env.do(http.MethodGet, templatePath, tokenB, nil)
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, models.ErrTemplateAccessDenied, errorCode(t, rr))
	assert.NotContains(t, rr.Body.String(), "user_id")

	rr = env.do(http.MethodPost, templatePath+"/access", adminToken, gin.H{"user_id": userB})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = env.do(http.MethodGet, templatePath, tokenB, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var template models.Template
	decode(t, rr, &template)
	require.Len(t, template.Questions, 2)
	assert.Equal(t, "Name", template.Questions[0].Title)

	rr = env.do(http.MethodPost, "/api/forms", tokenB, gin.H{
		"template_id": templateID,
		"answers": []gin.H{
			{"question_id": questionIDs[0], "value": "Bob"},
			{"question_id": questionIDs[1], "value": 42},
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var submitted struct {
		FormID uint `json:"formId"`
	}
	decode(t, rr, &submitted)
	require.NotZero(t, submitted.FormID)
	formPath := fmt.Sprintf("/api/forms/%d", submitted.FormID)

	rr = env.do(http.MethodGet, formPath, tokenA, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var detail services.FormDetail
	decode(t, rr, &detail)
	assert.Equal(t, userB, detail.Form.UserID)
	assert.Equal(t, "Survey", detail.TemplateTitle)
	require.Len(t, detail.Answers, 2)
	assert.Equal(t, "Bob", detail.Answers[0].Value)
	assert.Equal(t, "42", detail.Answers[1].Value)

	rr = env.do(http.MethodGet, formPath, tokenC, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, models.ErrFormAccessDenied, errorCode(t, rr))

	rr = env.do(http.MethodGet, templatePath, tokenC, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRevokedGrantLocksOutAgain(t *testing.T) {
	env := setupTestEnv(t)
	_, tokenA := env.signUp("alice")
	userB, tokenB := env.signUp("bob")

	templateID, _ := env.createTemplate(tokenA, false, "Q1")
	templatePath := fmt.Sprintf("/api/templates/%d", templateID)

	rr := env.do(http.MethodPost, templatePath+"/access", tokenA, gin.H{"user_id": userB})
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, templatePath, tokenB, nil).Code)

	rr = env.do(http.MethodGet, templatePath+"/access", tokenA, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var grants []models.TemplateAccess
	decode(t, rr, &grants)
	require.Len(t, grants, 1)
	assert.Equal(t, userB, grants[0].UserID)

	rr = env.do(http.MethodDelete, fmt.Sprintf("%s/access/%d", templatePath, userB), tokenA, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, templatePath, tokenB, nil).Code)

	rr = env.do(http.MethodDelete, fmt.Sprintf("%s/access/%d", templatePath, userB), tokenA, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, models.ErrGrantNotFound, errorCode(t, rr))
}
