package controllers

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/gin-forms-api/internal/middleware"
	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

var diagnostics atomic.Bool

// SetDiagnostics attaches the cause of internal errors to responses.
// Only development deployments turn it on.
func SetDiagnostics(enabled bool) {
	diagnostics.Store(enabled)
}

func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindAuthentication:
		return http.StatusUnauthorized
	case models.KindAuthorization, models.KindInvariant:
		return http.StatusForbidden
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as an APIError with the status of its kind.
// Errors that are not AppErrors become 500s.
func respondError(c *gin.Context, err error) {
	appErr, ok := models.AsAppError(err)
	if !ok {
		appErr = models.NewInternalError(err)
	}

	details := appErr.Details
	if appErr.Kind == models.KindInternal {
		log.WithError(appErr.Err).WithFields(logrus.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString(middleware.RequestIDKey),
		}).Error("Request failed with internal error")

		if diagnostics.Load() && appErr.Err != nil {
			details = map[string]interface{}{"error": appErr.Err.Error()}
		}
	}

	c.AbortWithStatusJSON(statusFor(appErr.Kind), models.NewAPIError(appErr.Code, appErr.Message, details))
}

// tagCodes maps custom validator tags to their error codes
var tagCodes = map[string]string{
	"role":          models.ErrInvalidRole,
	"topic":         models.ErrInvalidTopic,
	"question_type": models.ErrInvalidQuestionType,
}

// respondBindingError reports a failed ShouldBind* call as 400 with the
// offending fields
func respondBindingError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.AbortWithStatusJSON(http.StatusBadRequest,
			models.NewAPIError(models.ErrBadRequest, "Malformed request body"))
		return
	}

	code := models.ErrValidationFailed
	fields := make(map[string]interface{}, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
		if tagCode, ok := tagCodes[fe.Tag()]; ok && code == models.ErrValidationFailed {
			code = tagCode
		}
	}

	c.AbortWithStatusJSON(http.StatusBadRequest,
		models.NewAPIError(code, "Request validation failed", map[string]interface{}{"fields": fields}))
}
