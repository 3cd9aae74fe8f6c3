package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-oauth2/oauth2/v4"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

// ClientAccessGenerate mints access tokens for integration clients. The
// token acts as the client's owning user, with the role read from the
// database at issuance.
type ClientAccessGenerate struct {
	issuer *TokenIssuer
	db     *gorm.DB
}

func NewClientAccessGenerate(issuer *TokenIssuer, db *gorm.DB) *ClientAccessGenerate {
	return &ClientAccessGenerate{
		issuer: issuer,
		db:     db,
	}
}

// Token generates a JWT access token. Refresh tokens are never issued.
// This method is called by the OAuth2 library to generate access tokens
func (g *ClientAccessGenerate) Token(ctx context.Context, data *oauth2.GenerateBasic, isGenRefresh bool) (string, string, error) {
	// For client_credentials flow, GenerateBasic.UserID is empty, so we get it from Client.GetUserID()
	userID := data.UserID
	if userID == "" {
		userID = data.Client.GetUserID()
	}
	if userID == "" {
		return "", "", fmt.Errorf("cannot generate token: no user ID available")
	}

	user, err := g.loadUser(ctx, userID)
	if err != nil {
		return "", "", err
	}

	access, claims, err := g.issuer.Issue(user.ID, user.Role, data.Client.GetID())
	if err != nil {
		return "", "", err
	}

	log.WithFields(logrus.Fields{
		"client_id": data.Client.GetID(),
		"user_id":   user.ID,
		"jti":       claims.ID,
	}).Info("Issued client access token")

	return access, "", nil
}

func (g *ClientAccessGenerate) loadUser(ctx context.Context, userIDStr string) (*models.User, error) {
	userID, err := strconv.ParseUint(userIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID format: %w", err)
	}

	var user models.User
	if err := g.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user with ID %d not found", userID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}
