package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

// ClientInput describes a new integration client
type ClientInput struct {
	Name   string
	Domain string
	Scopes string
}

// ClientService manages the OAuth2 clients a user owns. A client acts as
// its owner when it exchanges credentials for a token.
type ClientService interface {
	CreateClient(ctx context.Context, ownerID uint, input ClientInput) (*models.OAuthClient, string, error)
	GetClientsByUserID(ctx context.Context, userID uint) ([]models.OAuthClient, error)
	GetClientByID(ctx context.Context, id string) (*models.OAuthClient, error)
	DeleteClient(ctx context.Context, clientID string, userID uint) error
}

type clientService struct {
	db *gorm.DB
}

func NewClientService(db *gorm.DB) ClientService {
	return &clientService{db: db}
}

// CreateClient returns the plain secret once; only its hash is stored
func (s *clientService) CreateClient(ctx context.Context, ownerID uint, input ClientInput) (*models.OAuthClient, string, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, "", models.NewValidationError(models.ErrValidationFailed, "Client name is required")
	}

	secret := uuid.New().String()
	client := &models.OAuthClient{
		ID:     uuid.New().String(),
		Secret: secret,
		Name:   name,
		Domain: input.Domain,
		Scopes: input.Scopes,
		UserID: ownerID,
	}
	if err := client.HashSecret(); err != nil {
		return nil, "", models.NewInternalError(err)
	}

	if err := s.db.WithContext(ctx).Create(client).Error; err != nil {
		return nil, "", models.NewInternalError(err)
	}
	log.WithField("client_id", client.ID).Info("OAuth client created")
	return client, secret, nil
}

func (s *clientService) GetClientsByUserID(ctx context.Context, userID uint) ([]models.OAuthClient, error) {
	clients := []models.OAuthClient{}
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&clients).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return clients, nil
}

func (s *clientService) GetClientByID(ctx context.Context, id string) (*models.OAuthClient, error) {
	var client models.OAuthClient
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError(models.ErrNotFound, "Client not found")
		}
		return nil, models.NewInternalError(err)
	}
	return &client, nil
}

// DeleteClient also drops every token the client was issued
func (s *clientService) DeleteClient(ctx context.Context, clientID string, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", clientID, userID).Delete(&models.OAuthClient{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.NewNotFoundError(models.ErrNotFound, "Client not found")
		}
		return tx.Where("client_id = ?", clientID).Delete(&models.OAuthToken{}).Error
	})
	return asAppError(err)
}
