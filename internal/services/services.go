package services

import (
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/franciscosanchezn/gin-forms-api/internal/access"
	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// Page size rules for the paginated listings
const (
	DefaultPageSize     = 10
	MaxUserPageSize     = 100
	MaxFormPageSize     = 50
	SearchResultLimit   = 50
	MinSearchQueryRunes = 3
)

// Limits bounds what a single user or request may create
type Limits struct {
	MaxTemplatesPerUser int
	MaxAnswersPerForm   int
	AmendWindow         time.Duration
}

// DefaultLimits mirrors the configuration defaults
func DefaultLimits() Limits {
	return Limits{
		MaxTemplatesPerUser: 50,
		MaxAnswersPerForm:   100,
		AmendWindow:         24 * time.Hour,
	}
}

var forUpdate = clause.Locking{Strength: "UPDATE"}

// normalizePage rejects page or limit below one and clamps limit to max
func normalizePage(page, limit, max int) (int, int, error) {
	if page < 1 || limit < 1 {
		return 0, 0, models.NewValidationError(models.ErrInvalidPage, "page and limit must be positive integers")
	}
	if limit > max {
		limit = max
	}
	return page, limit, nil
}

// asAppError passes service errors through and hides everything else
// behind an internal error
func asAppError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := models.AsAppError(err); ok {
		return err
	}
	return models.NewInternalError(err)
}

// loadTemplate fetches a template, optionally under a row lock
func loadTemplate(tx *gorm.DB, id uint, lock bool) (*models.Template, error) {
	q := tx
	if lock {
		q = q.Clauses(forUpdate)
	}

	var template models.Template
	if err := q.First(&template, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError(models.ErrTemplateNotFound, "Template not found")
		}
		return nil, err
	}
	return &template, nil
}

func hasGrant(tx *gorm.DB, templateID, userID uint) (bool, error) {
	var count int64
	err := tx.Model(&models.TemplateAccess{}).
		Where("template_id = ? AND user_id = ?", templateID, userID).
		Count(&count).Error
	return count > 0, err
}

// templateResource builds the policy input for t. The grant table is only
// consulted when nothing cheaper already decides the outcome.
func templateResource(tx *gorm.DB, p access.Principal, t *models.Template) (access.TemplateResource, error) {
	res := access.TemplateResource{OwnerID: t.UserID, IsPublic: t.IsPublic}
	if p.IsAdmin() || p.UserID == t.UserID || t.IsPublic {
		return res, nil
	}
	granted, err := hasGrant(tx, t.ID, p.UserID)
	if err != nil {
		return res, err
	}
	res.Granted = granted
	return res, nil
}

func templateDenied() error {
	return models.NewForbiddenError(models.ErrTemplateAccessDenied, "Access denied")
}

func formDenied() error {
	return models.NewForbiddenError(models.ErrFormAccessDenied, "Access denied")
}

// escapeLike escapes LIKE wildcards so the query matches literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
