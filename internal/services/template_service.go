package services

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/franciscosanchezn/gin-forms-api/internal/access"
	"github.com/franciscosanchezn/gin-forms-api/internal/events"
	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

// TemplateInput carries the fields of a new template. An empty Topic
// defaults to Other.
type TemplateInput struct {
	Title       string
	Description string
	Topic       string
	IsPublic    bool
}

// TemplatePatch is a partial update. Nil fields keep their stored value.
type TemplatePatch struct {
	Title       *string
	Description *string
	Topic       *string
	IsPublic    *bool
}

type QuestionInput struct {
	Type        string
	Title       string
	Description string
	Config      datatypes.JSON
}

// TemplateService manages templates and their ordered questions
type TemplateService interface {
	List(ctx context.Context, p access.Principal) ([]models.Template, error)
	ListAll(ctx context.Context, p access.Principal) ([]models.Template, error)
	Get(ctx context.Context, p access.Principal, id uint) (*models.Template, error)
	Create(ctx context.Context, p access.Principal, input TemplateInput) (*models.Template, error)
	Update(ctx context.Context, p access.Principal, id uint, patch TemplatePatch) (*models.Template, error)
	Delete(ctx context.Context, p access.Principal, id uint) error
	ListQuestions(ctx context.Context, p access.Principal, id uint) ([]models.Question, error)
	AddQuestion(ctx context.Context, p access.Principal, id uint, input QuestionInput) (*models.Question, error)
	ReorderQuestions(ctx context.Context, p access.Principal, id uint, questionIDs []uint) ([]models.Question, error)
}

type templateService struct {
	db        *gorm.DB
	limits    Limits
	publisher events.Publisher
}

func NewTemplateService(db *gorm.DB, limits Limits, publisher events.Publisher) TemplateService {
	return &templateService{db: db, limits: limits, publisher: publisher}
}

// List returns the caller's own templates and every public one
func (s *templateService) List(ctx context.Context, p access.Principal) ([]models.Template, error) {
	templates := []models.Template{}
	err := s.db.WithContext(ctx).
		Where("user_id = ? OR is_public = ?", p.UserID, true).
		Order("created_at DESC, id DESC").
		Find(&templates).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return templates, nil
}

func (s *templateService) ListAll(ctx context.Context, p access.Principal) ([]models.Template, error) {
	if !access.RequireAdmin(p).Allowed {
		return nil, models.NewForbiddenError(models.ErrAdminRequired, "Admin access required")
	}

	templates := []models.Template{}
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&templates).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return templates, nil
}

// Get returns the template with its questions in position order
func (s *templateService) Get(ctx context.Context, p access.Principal, id uint) (*models.Template, error) {
	db := s.db.WithContext(ctx)
	template, err := loadTemplate(db, id, false)
	if err != nil {
		return nil, asAppError(err)
	}
	if err := s.authorizeRead(db, p, template); err != nil {
		return nil, err
	}

	if err := db.Where("template_id = ?", id).Order("position ASC").Find(&template.Questions).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return template, nil
}

func (s *templateService) authorizeRead(db *gorm.DB, p access.Principal, t *models.Template) error {
	res, err := templateResource(db, p, t)
	if err != nil {
		return models.NewInternalError(err)
	}
	if !access.CanReadTemplate(p, res).Allowed {
		return templateDenied()
	}
	return nil
}

func authorizeWrite(p access.Principal, t *models.Template) error {
	if !access.CanWriteTemplate(p, access.TemplateResource{OwnerID: t.UserID, IsPublic: t.IsPublic}).Allowed {
		return templateDenied()
	}
	return nil
}

// Create enforces the per-user template cap while holding the owner's row lock
func (s *templateService) Create(ctx context.Context, p access.Principal, input TemplateInput) (*models.Template, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, models.NewValidationError(models.ErrTemplateInvalidData, "Title is required")
	}
	topic := input.Topic
	if topic == "" {
		topic = models.TopicOther
	}
	if !models.ValidTopic(topic) {
		return nil, models.NewValidationError(models.ErrInvalidTopic, "Topic must be one of: Education, Quiz, Other")
	}

	template := &models.Template{
		UserID:      p.UserID,
		Title:       title,
		Description: input.Description,
		Topic:       topic,
		IsPublic:    input.IsPublic,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner models.User
		if err := tx.Clauses(forUpdate).First(&owner, p.UserID).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.Template{}).Where("user_id = ?", p.UserID).Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(s.limits.MaxTemplatesPerUser) {
			return models.NewConflictError(models.ErrTemplateLimitReached, "Template limit reached").
				WithDetails(map[string]interface{}{"limit": s.limits.MaxTemplatesPerUser})
		}

		return tx.Create(template).Error
	})
	if err != nil {
		return nil, asAppError(err)
	}

	log.WithFields(logrus.Fields{"template_id": template.ID, "user_id": p.UserID}).Info("Template created")
	return template, nil
}

func (s *templateService) Update(ctx context.Context, p access.Principal, id uint, patch TemplatePatch) (*models.Template, error) {
	updates := map[string]interface{}{}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, models.NewValidationError(models.ErrTemplateInvalidData, "Title cannot be empty")
		}
		updates["title"] = title
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Topic != nil {
		if !models.ValidTopic(*patch.Topic) {
			return nil, models.NewValidationError(models.ErrInvalidTopic, "Topic must be one of: Education, Quiz, Other")
		}
		updates["topic"] = *patch.Topic
	}
	if patch.IsPublic != nil {
		updates["is_public"] = *patch.IsPublic
	}

	var template *models.Template
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		template, err = loadTemplate(tx, id, true)
		if err != nil {
			return err
		}
		if err := authorizeWrite(p, template); err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(template).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(template, id).Error
	})
	if err != nil {
		return nil, asAppError(err)
	}
	return template, nil
}

// Delete removes the template together with its forms, answers, questions
// and access grants in one transaction
func (s *templateService) Delete(ctx context.Context, p access.Principal, id uint) error {
	var formCount int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		template, err := loadTemplate(tx, id, true)
		if err != nil {
			return err
		}
		if err := authorizeWrite(p, template); err != nil {
			return err
		}

		var formIDs []uint
		if err := tx.Model(&models.Form{}).Where("template_id = ?", id).Pluck("id", &formIDs).Error; err != nil {
			return err
		}
		formCount = int64(len(formIDs))
		if len(formIDs) > 0 {
			if err := tx.Where("form_id IN ?", formIDs).Delete(&models.Answer{}).Error; err != nil {
				return err
			}
			if err := tx.Where("template_id = ?", id).Delete(&models.Form{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("template_id = ?", id).Delete(&models.Question{}).Error; err != nil {
			return err
		}
		if err := tx.Where("template_id = ?", id).Delete(&models.TemplateAccess{}).Error; err != nil {
			return err
		}
		return tx.Delete(template).Error
	})
	if err != nil {
		return asAppError(err)
	}

	log.WithFields(logrus.Fields{"template_id": id, "forms": formCount}).Info("Template deleted")
	events.PublishAfterCommit(ctx, s.publisher, events.TopicTemplateDeleted, events.TemplateDeleted{
		TemplateID: id,
		DeletedBy:  p.UserID,
		Forms:      formCount,
		At:         time.Now().UTC(),
	})
	return nil
}

func (s *templateService) ListQuestions(ctx context.Context, p access.Principal, id uint) ([]models.Question, error) {
	template, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return template.Questions, nil
}

// AddQuestion appends at max(position)+1 under the template lock
func (s *templateService) AddQuestion(ctx context.Context, p access.Principal, id uint, input QuestionInput) (*models.Question, error) {
	if !models.ValidQuestionType(input.Type) {
		return nil, models.NewValidationError(models.ErrInvalidQuestionType,
			"Question type must be one of: text, textarea, number, checkbox, select")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, models.NewValidationError(models.ErrValidationFailed, "Question title is required")
	}

	question := &models.Question{
		TemplateID:  id,
		Type:        input.Type,
		Title:       title,
		Description: input.Description,
		Config:      input.Config,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		template, err := loadTemplate(tx, id, true)
		if err != nil {
			return err
		}
		if err := authorizeWrite(p, template); err != nil {
			return err
		}

		var maxPosition int
		err = tx.Model(&models.Question{}).
			Where("template_id = ?", id).
			Select("COALESCE(MAX(position), 0)").
			Scan(&maxPosition).Error
		if err != nil {
			return err
		}
		question.Position = maxPosition + 1
		return tx.Create(question).Error
	})
	if err != nil {
		return nil, asAppError(err)
	}
	return question, nil
}

// ReorderQuestions assigns positions 1..N in the order given. The ids must be
// exactly the template's current question set.
func (s *templateService) ReorderQuestions(ctx context.Context, p access.Principal, id uint, questionIDs []uint) ([]models.Question, error) {
	var questions []models.Question
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		template, err := loadTemplate(tx, id, true)
		if err != nil {
			return err
		}
		if err := authorizeWrite(p, template); err != nil {
			return err
		}

		var current []uint
		if err := tx.Model(&models.Question{}).Where("template_id = ?", id).Pluck("id", &current).Error; err != nil {
			return err
		}
		if !sameIDSet(current, questionIDs) {
			return models.NewValidationError(models.ErrQuestionSetMismatch,
				"questionIds must list every question of the template exactly once")
		}

		// Negate first so no intermediate state collides on (template_id, position)
		if err := tx.Model(&models.Question{}).
			Where("template_id = ?", id).
			Update("position", gorm.Expr("-position")).Error; err != nil {
			return err
		}
		for i, qid := range questionIDs {
			if err := tx.Model(&models.Question{}).
				Where("id = ? AND template_id = ?", qid, id).
				Update("position", i+1).Error; err != nil {
				return err
			}
		}

		return tx.Where("template_id = ?", id).Order("position ASC").Find(&questions).Error
	})
	if err != nil {
		return nil, asAppError(err)
	}
	return questions, nil
}

func sameIDSet(current, submitted []uint) bool {
	if len(current) != len(submitted) {
		return false
	}
	remaining := make(map[uint]bool, len(current))
	for _, id := range current {
		remaining[id] = true
	}
	for _, id := range submitted {
		if !remaining[id] {
			return false
		}
		delete(remaining, id)
	}
	return len(remaining) == 0
}
