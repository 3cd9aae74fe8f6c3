package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

func TestClientService(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := NewClientService(db)
	owner := createUser(t, db, "owner", models.RoleUser)
	other := createUser(t, db, "other", models.RoleUser)

	client, secret, err := svc.CreateClient(ctx, owner.ID, ClientInput{Name: "reporting", Scopes: "read"})
	require.NoError(t, err)
	assert.NotEmpty(t, client.ID)
	assert.NotEqual(t, secret, client.Secret, "only the hash is stored")
	assert.True(t, client.VerifyPassword(secret))

	_, _, err = svc.CreateClient(ctx, owner.ID, ClientInput{Name: " "})
	requireKind(t, err, models.KindValidation, models.ErrValidationFailed)

	clients, err := svc.GetClientsByUserID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, clients, 1)

	clients, err = svc.GetClientsByUserID(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, clients)

	require.NoError(t, db.Create(&models.OAuthToken{
		ClientID:    client.ID,
		UserID:      "1",
		AccessToken: "tok",
		TokenID:     "digest",
		ExpiresAt:   time.Now().Add(time.Hour),
	}).Error)

	err = svc.DeleteClient(ctx, client.ID, other.ID)
	requireKind(t, err, models.KindNotFound, models.ErrNotFound)

	require.NoError(t, svc.DeleteClient(ctx, client.ID, owner.ID))
	assert.Equal(t, int64(0), countRows(t, db, &models.OAuthToken{}))

	_, err = svc.GetClientByID(ctx, client.ID)
	requireKind(t, err, models.KindNotFound, models.ErrNotFound)
}
