package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

const minPasswordLength = 6

// RegisterInput is the data needed to create an account
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type UserService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	EnsureAdmin(ctx context.Context, email, password, name string) error
}

type userService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) UserService {
	return &userService{db: db}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *userService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	if name == "" || email == "" {
		return nil, models.NewValidationError(models.ErrValidationFailed, "Name and email are required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, models.NewValidationError(models.ErrValidationFailed, "Password must be at least 6 characters")
	}

	db := s.db.WithContext(ctx)
	var existing int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if existing > 0 {
		return nil, models.NewConflictError(models.ErrEmailTaken, "A user with this email already exists")
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: input.Password,
		Role:     models.RoleUser,
	}
	if err := user.HashPassword(); err != nil {
		return nil, models.NewInternalError(err)
	}

	if err := db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, models.NewConflictError(models.ErrEmailTaken, "A user with this email already exists")
		}
		return nil, models.NewInternalError(err)
	}

	log.WithFields(logrus.Fields{"user_id": user.ID}).Info("User registered")
	return user, nil
}

// Authenticate returns the same error for an unknown email and a wrong password
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		if models.IsKind(err, models.KindNotFound) {
			return nil, models.NewAuthenticationError(models.ErrInvalidCredentials, "Invalid email or password")
		}
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, models.NewAuthenticationError(models.ErrInvalidCredentials, "Invalid email or password")
	}
	return user, nil
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError(models.ErrUserNotFound, "User not found")
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (s *userService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError(models.ErrUserNotFound, "User not found")
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// EnsureAdmin guarantees at least one admin exists at startup. When there is
// none, the account for email is promoted, or created with password.
func (s *userService) EnsureAdmin(ctx context.Context, email, password, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var admins int64
		if err := tx.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error; err != nil {
			return err
		}
		if admins > 0 {
			return nil
		}

		email = normalizeEmail(email)
		if email == "" {
			log.Warn("No admin user exists and BOOTSTRAP_ADMIN_EMAIL is not set")
			return nil
		}

		var user models.User
		err := tx.Where("email = ?", email).First(&user).Error
		switch {
		case err == nil:
			if err := tx.Model(&user).Update("role", models.RoleAdmin).Error; err != nil {
				return err
			}
			log.WithField("user_id", user.ID).Info("Promoted existing user to bootstrap admin")
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if len(password) < minPasswordLength {
			return errors.New("BOOTSTRAP_ADMIN_PASSWORD must be at least 6 characters")
		}
		if strings.TrimSpace(name) == "" {
			name = "Administrator"
		}
		user = models.User{Name: name, Email: email, Password: password, Role: models.RoleAdmin}
		if err := user.HashPassword(); err != nil {
			return err
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		log.WithField("user_id", user.ID).Info("Created bootstrap admin")
		return nil
	})
}
