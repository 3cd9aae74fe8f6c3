package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franciscosanchezn/gin-forms-api/internal/events"
	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

func TestAccessService(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	pub := &recordingPublisher{}
	svc := NewAccessService(db, pub)

	owner := createUser(t, db, "owner", models.RoleUser)
	reader := createUser(t, db, "reader", models.RoleUser)
	stranger := createUser(t, db, "stranger", models.RoleUser)
	admin := createUser(t, db, "admin", models.RoleAdmin)
	template, _ := createTemplate(t, db, owner, false)

	g, err := svc.Grant(ctx, principalOf(owner), template.ID, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, reader.ID, g.UserID)
	assert.Equal(t, owner.ID, g.GrantedBy)
	require.NotNil(t, g.User)
	assert.Equal(t, "reader", g.User.Name)

	again, err := svc.Grant(ctx, principalOf(admin), template.ID, reader.ID)
	require.NoError(t, err, "granting twice is idempotent")
	assert.Equal(t, g.ID, again.ID)
	assert.Equal(t, int64(1), countRows(t, db, &models.TemplateAccess{}))

	_, err = svc.Grant(ctx, principalOf(owner), template.ID, owner.ID)
	requireKind(t, err, models.KindValidation, models.ErrGrantToOwner)

	_, err = svc.Grant(ctx, principalOf(owner), template.ID, 9999)
	requireKind(t, err, models.KindNotFound, models.ErrUserNotFound)

	_, err = svc.Grant(ctx, principalOf(reader), template.ID, stranger.ID)
	requireKind(t, err, models.KindAuthorization, models.ErrTemplateAccessDenied)

	_, err = svc.Grant(ctx, principalOf(owner), 9999, reader.ID)
	requireKind(t, err, models.KindNotFound, models.ErrTemplateNotFound)

	grants, err := svc.List(ctx, principalOf(owner), template.ID)
	require.NoError(t, err)
	assert.Len(t, grants, 1)

	_, err = svc.List(ctx, principalOf(reader), template.ID)
	requireKind(t, err, models.KindAuthorization, models.ErrTemplateAccessDenied)

	require.NoError(t, svc.Revoke(ctx, principalOf(owner), template.ID, reader.ID))
	err = svc.Revoke(ctx, principalOf(owner), template.ID, reader.ID)
	requireKind(t, err, models.KindNotFound, models.ErrGrantNotFound)

	assert.Equal(t, []string{
		events.TopicAccessGranted,
		events.TopicAccessGranted,
		events.TopicAccessRevoked,
	}, pub.topics())
}
