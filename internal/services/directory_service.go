package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/franciscosanchezn/gin-forms-api/internal/access"
	"github.com/franciscosanchezn/gin-forms-api/internal/events"
	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

// DirectoryService is the admin view over users
type DirectoryService interface {
	List(ctx context.Context, actor access.Principal, page, limit int) ([]models.User, models.Pagination, error)
	Search(ctx context.Context, actor access.Principal, query string) ([]models.User, error)
	ChangeRole(ctx context.Context, actor access.Principal, targetID uint, role string) (*models.User, error)
}

type directoryService struct {
	db        *gorm.DB
	publisher events.Publisher
}

func NewDirectoryService(db *gorm.DB, publisher events.Publisher) DirectoryService {
	return &directoryService{db: db, publisher: publisher}
}

func requireAdmin(p access.Principal) error {
	if !access.RequireAdmin(p).Allowed {
		return models.NewForbiddenError(models.ErrAdminRequired, "Admin access required")
	}
	return nil
}

// List pages through users by id. A page past the end is empty, not an error.
func (s *directoryService) List(ctx context.Context, actor access.Principal, page, limit int) ([]models.User, models.Pagination, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, models.Pagination{}, err
	}
	page, limit, err := normalizePage(page, limit, MaxUserPageSize)
	if err != nil {
		return nil, models.Pagination{}, err
	}

	db := s.db.WithContext(ctx)
	var total int64
	if err := db.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, models.Pagination{}, models.NewInternalError(err)
	}
	pagination := models.NewPagination(page, limit, total)

	users := []models.User{}
	if err := db.Order("id ASC").Offset(pagination.Offset()).Limit(limit).Find(&users).Error; err != nil {
		return nil, models.Pagination{}, models.NewInternalError(err)
	}
	return users, pagination, nil
}

// Search matches name or email case-insensitively as a substring
func (s *directoryService) Search(ctx context.Context, actor access.Principal, query string) ([]models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinSearchQueryRunes {
		return nil, models.NewValidationError(models.ErrSearchQueryTooShort, "Search query must be at least 3 characters")
	}

	pattern := "%" + escapeLike(models.SearchFold(query)) + "%"
	users := []models.User{}
	err := s.db.WithContext(ctx).
		Where(`search_name LIKE ? ESCAPE '\' OR search_email LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("name ASC, id ASC").
		Limit(SearchResultLimit).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// ChangeRole locks the target and every admin row so concurrent demotions
// cannot both pass the last-admin check
func (s *directoryService) ChangeRole(ctx context.Context, actor access.Principal, targetID uint, role string) (*models.User, error) {
	if err := access.ValidateRole(role); err != nil {
		return nil, models.NewValidationError(models.ErrInvalidRole, err.Error())
	}
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var target models.User
	var previous string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock admin rows in id order, then the target
		var adminIDs []uint
		err := tx.Model(&models.User{}).
			Clauses(forUpdate).
			Where("role = ?", models.RoleAdmin).
			Order("id ASC").
			Pluck("id", &adminIDs).Error
		if err != nil {
			return err
		}

		if err := tx.Clauses(forUpdate).First(&target, targetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError(models.ErrUserNotFound, "User not found")
			}
			return err
		}

		decision := access.CheckRoleChange(actor, target.ID, target.Role, role, int64(len(adminIDs)))
		if !decision.Allowed {
			switch decision.Reason {
			case access.ReasonSelfDemotion:
				return models.NewInvariantError(models.ErrSelfDemotion, "You cannot remove your own admin role")
			case access.ReasonLastAdmin:
				return models.NewInvariantError(models.ErrLastAdmin, "At least one admin must remain")
			default:
				return models.NewForbiddenError(models.ErrAdminRequired, "Admin access required")
			}
		}

		previous = target.Role
		if target.Role == role {
			return nil
		}
		return tx.Model(&target).Update("role", role).Error
	})
	if err != nil {
		return nil, asAppError(err)
	}

	if previous != role {
		log.WithFields(logrus.Fields{
			"user_id":    target.ID,
			"changed_by": actor.UserID,
			"from":       previous,
			"to":         role,
		}).Info("User role changed")
		events.PublishAfterCommit(ctx, s.publisher, events.TopicRoleChanged, events.RoleChanged{
			UserID:    target.ID,
			ChangedBy: actor.UserID,
			From:      previous,
			To:        role,
			At:        time.Now().UTC(),
		})
	}
	return &target, nil
}
