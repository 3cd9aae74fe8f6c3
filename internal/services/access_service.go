package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/franciscosanchezn/gin-forms-api/internal/access"
	"github.com/franciscosanchezn/gin-forms-api/internal/events"
	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

// AccessService manages per-user grants on templates
type AccessService interface {
	Grant(ctx context.Context, p access.Principal, templateID, userID uint) (*models.TemplateAccess, error)
	Revoke(ctx context.Context, p access.Principal, templateID, userID uint) error
	List(ctx context.Context, p access.Principal, templateID uint) ([]models.TemplateAccess, error)
}

type accessService struct {
	db        *gorm.DB
	publisher events.Publisher
}

func NewAccessService(db *gorm.DB, publisher events.Publisher) AccessService {
	return &accessService{db: db, publisher: publisher}
}

func authorizeManage(p access.Principal, t *models.Template) error {
	if !access.CanManageAccess(p, access.TemplateResource{OwnerID: t.UserID, IsPublic: t.IsPublic}).Allowed {
		return templateDenied()
	}
	return nil
}

// Grant is idempotent: granting twice returns the existing grant
func (s *accessService) Grant(ctx context.Context, p access.Principal, templateID, userID uint) (*models.TemplateAccess, error) {
	var grant models.TemplateAccess
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		template, err := loadTemplate(tx, templateID, false)
		if err != nil {
			return err
		}
		if err := authorizeManage(p, template); err != nil {
			return err
		}
		if userID == template.UserID {
			return models.NewValidationError(models.ErrGrantToOwner, "The template owner already has access")
		}

		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError(models.ErrUserNotFound, "User not found")
			}
			return err
		}

		row := models.TemplateAccess{TemplateID: templateID, UserID: userID, GrantedBy: p.UserID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}
		return tx.Preload("User").
			Where("template_id = ? AND user_id = ?", templateID, userID).
			First(&grant).Error
	})
	if err != nil {
		return nil, asAppError(err)
	}

	events.PublishAfterCommit(ctx, s.publisher, events.TopicAccessGranted, events.AccessChanged{
		TemplateID: templateID,
		UserID:     userID,
		ChangedBy:  p.UserID,
		At:         time.Now().UTC(),
	})
	return &grant, nil
}

func (s *accessService) Revoke(ctx context.Context, p access.Principal, templateID, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		template, err := loadTemplate(tx, templateID, false)
		if err != nil {
			return err
		}
		if err := authorizeManage(p, template); err != nil {
			return err
		}

		result := tx.Where("template_id = ? AND user_id = ?", templateID, userID).Delete(&models.TemplateAccess{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.NewNotFoundError(models.ErrGrantNotFound, "Access grant not found")
		}
		return nil
	})
	if err != nil {
		return asAppError(err)
	}

	events.PublishAfterCommit(ctx, s.publisher, events.TopicAccessRevoked, events.AccessChanged{
		TemplateID: templateID,
		UserID:     userID,
		ChangedBy:  p.UserID,
		At:         time.Now().UTC(),
	})
	return nil
}

func (s *accessService) List(ctx context.Context, p access.Principal, templateID uint) ([]models.TemplateAccess, error) {
	db := s.db.WithContext(ctx)
	template, err := loadTemplate(db, templateID, false)
	if err != nil {
		return nil, asAppError(err)
	}
	if err := authorizeManage(p, template); err != nil {
		return nil, err
	}

	grants := []models.TemplateAccess{}
	err = db.Preload("User").
		Where("template_id = ?", templateID).
		Order("created_at ASC, id ASC").
		Find(&grants).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return grants, nil
}
