package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franciscosanchezn/gin-forms-api/internal/access"
	"github.com/franciscosanchezn/gin-forms-api/internal/events"
	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

func TestDirectoryService_List(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	admin := createUser(t, db, "admin", models.RoleAdmin)
	for i := 0; i < 22; i++ {
		createUser(t, db, fmt.Sprintf("user%02d", i), models.RoleUser)
	}
	svc := NewDirectoryService(db, events.NopPublisher{})

	users, page, err := svc.List(ctx, principalOf(admin), 1, 10)
	require.NoError(t, err)
	assert.Len(t, users, 10)
	assert.Equal(t, models.Pagination{Page: 1, Limit: 10, Total: 23, TotalPages: 3}, page)

	users, _, err = svc.List(ctx, principalOf(admin), 3, 10)
	require.NoError(t, err)
	assert.Len(t, users, 3)

	users, page, err = svc.List(ctx, principalOf(admin), 4, 10)
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
	assert.Equal(t, int64(23), page.Total)
	assert.Equal(t, 3, page.TotalPages)

	_, page, err = svc.List(ctx, principalOf(admin), 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, MaxUserPageSize, page.Limit)

	for _, tt := range []struct{ page, limit int }{{0, 10}, {1, 0}, {-1, -1}} {
		_, _, err := svc.List(ctx, principalOf(admin), tt.page, tt.limit)
		requireKind(t, err, models.KindValidation, models.ErrInvalidPage)
	}

	_, _, err = svc.List(ctx, access.Principal{UserID: 2, Role: models.RoleUser}, 1, 10)
	requireKind(t, err, models.KindAuthorization, models.ErrAdminRequired)
}

func TestDirectoryService_Search(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	admin := createUser(t, db, "admin", models.RoleAdmin)
	require.NoError(t, db.Create(&models.User{Name: "Grace Hopper", Email: "grace@navy.mil", Password: "x", Role: models.RoleUser}).Error)
	require.NoError(t, db.Create(&models.User{Name: "Ada Lovelace", Email: "ada@engine.org", Password: "x", Role: models.RoleUser}).Error)
	require.NoError(t, db.Create(&models.User{Name: "percent", Email: "100%_sure@x.io", Password: "x", Role: models.RoleUser}).Error)
	svc := NewDirectoryService(db, events.NopPublisher{})
	p := principalOf(admin)

	_, err := svc.Search(ctx, p, "ad")
	requireKind(t, err, models.KindValidation, models.ErrSearchQueryTooShort)

	_, err = svc.Search(ctx, p, "  ad  ")
	requireKind(t, err, models.KindValidation, models.ErrSearchQueryTooShort)

	users, err := svc.Search(ctx, p, "zzz")
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)

	users, err = svc.Search(ctx, p, "HOPP")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Grace Hopper", users[0].Name)

	users, err = svc.Search(ctx, p, "ENGINE.org")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Ada Lovelace", users[0].Name)

	users, err = svc.Search(ctx, p, "0%_")
	require.NoError(t, err)
	require.Len(t, users, 1, "wildcards match literally")
	assert.Equal(t, "percent", users[0].Name)

	users, err = svc.Search(ctx, p, "a_a")
	require.NoError(t, err)
	assert.Empty(t, users)

	require.NoError(t, db.Create(&models.User{Name: "Élodie Öztürk", Email: "ELODIE@Example.FR", Password: "x", Role: models.RoleUser}).Error)
	for _, query := range []string{"Élodie", "élodie", "ÉLODIE", "ÖZTÜRK", "öztürk", "elodie@example.fr"} {
		users, err = svc.Search(ctx, p, query)
		require.NoError(t, err, query)
		require.Len(t, users, 1, query)
		assert.Equal(t, "Élodie Öztürk", users[0].Name, query)
	}
}

func TestDirectoryService_ChangeRole(t *testing.T) {
	ctx := context.Background()

	t.Run("promote and demote second-to-last admin", func(t *testing.T) {
		db := setupTestDB(t)
		pub := &recordingPublisher{}
		svc := NewDirectoryService(db, pub)
		first := createUser(t, db, "first", models.RoleAdmin)
		second := createUser(t, db, "second", models.RoleUser)

		user, err := svc.ChangeRole(ctx, principalOf(first), second.ID, models.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, user.Role)

		user, err = svc.ChangeRole(ctx, principalOf(first), second.ID, models.RoleUser)
		require.NoError(t, err)
		assert.Equal(t, models.RoleUser, user.Role)
		assert.Equal(t, []string{events.TopicRoleChanged, events.TopicRoleChanged}, pub.topics())

		payload := pub.events[1].payload.(events.RoleChanged)
		assert.Equal(t, models.RoleAdmin, payload.From)
		assert.Equal(t, models.RoleUser, payload.To)
	})

	t.Run("self demotion rejected even with other admins", func(t *testing.T) {
		db := setupTestDB(t)
		svc := NewDirectoryService(db, events.NopPublisher{})
		first := createUser(t, db, "first", models.RoleAdmin)
		createUser(t, db, "second", models.RoleAdmin)

		_, err := svc.ChangeRole(ctx, principalOf(first), first.ID, models.RoleUser)
		requireKind(t, err, models.KindInvariant, models.ErrSelfDemotion)
	})

	t.Run("last admin cannot be demoted", func(t *testing.T) {
		db := setupTestDB(t)
		svc := NewDirectoryService(db, events.NopPublisher{})
		only := createUser(t, db, "only", models.RoleAdmin)
		// A principal whose admin row is gone still fails the count check
		stale := access.Principal{UserID: 999, Role: models.RoleAdmin}

		_, err := svc.ChangeRole(ctx, stale, only.ID, models.RoleUser)
		requireKind(t, err, models.KindInvariant, models.ErrLastAdmin)

		var admins int64
		require.NoError(t, db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error)
		assert.Equal(t, int64(1), admins)
	})

	t.Run("unchanged role is a no-op", func(t *testing.T) {
		db := setupTestDB(t)
		pub := &recordingPublisher{}
		svc := NewDirectoryService(db, pub)
		admin := createUser(t, db, "admin", models.RoleAdmin)
		user := createUser(t, db, "user", models.RoleUser)

		got, err := svc.ChangeRole(ctx, principalOf(admin), user.ID, models.RoleUser)
		require.NoError(t, err)
		assert.Equal(t, models.RoleUser, got.Role)
		assert.Empty(t, pub.topics())
	})

	t.Run("errors", func(t *testing.T) {
		db := setupTestDB(t)
		svc := NewDirectoryService(db, events.NopPublisher{})
		admin := createUser(t, db, "admin", models.RoleAdmin)
		user := createUser(t, db, "user", models.RoleUser)

		_, err := svc.ChangeRole(ctx, principalOf(admin), user.ID, "superuser")
		requireKind(t, err, models.KindValidation, models.ErrInvalidRole)

		_, err = svc.ChangeRole(ctx, principalOf(user), admin.ID, models.RoleUser)
		requireKind(t, err, models.KindAuthorization, models.ErrAdminRequired)

		_, err = svc.ChangeRole(ctx, principalOf(admin), 4242, models.RoleAdmin)
		requireKind(t, err, models.KindNotFound, models.ErrUserNotFound)
	})
}
