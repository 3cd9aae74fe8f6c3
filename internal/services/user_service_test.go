package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

func TestUserService_Register(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := NewUserService(db)

	user, err := svc.Register(ctx, RegisterInput{Name: " Ada ", Email: " Ada@Example.COM ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotEqual(t, "secret1", user.Password)
	assert.True(t, user.CheckPassword("secret1"))

	t.Run("duplicate email conflicts", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterInput{Name: "Other", Email: "ADA@example.com", Password: "secret1"})
		requireKind(t, err, models.KindConflict, models.ErrEmailTaken)
	})

	t.Run("short password", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "12345"})
		requireKind(t, err, models.KindValidation, models.ErrValidationFailed)
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterInput{Name: "  ", Email: "bob@example.com", Password: "123456"})
		requireKind(t, err, models.KindValidation, models.ErrValidationFailed)
	})
}

func TestUserService_Authenticate(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := NewUserService(db)

	_, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "ADA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)

	_, err = svc.Authenticate(ctx, "ada@example.com", "wrong")
	requireKind(t, err, models.KindAuthentication, models.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "secret1")
	requireKind(t, err, models.KindAuthentication, models.ErrInvalidCredentials)
}

func TestUserService_GetByID(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db)
	ada := createUser(t, db, "ada", models.RoleUser)

	user, err := svc.GetByID(context.Background(), ada.ID)
	require.NoError(t, err)
	assert.Equal(t, ada.Email, user.Email)

	_, err = svc.GetByID(context.Background(), 999)
	requireKind(t, err, models.KindNotFound, models.ErrUserNotFound)
}

func TestUserService_EnsureAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("creates admin when none exists", func(t *testing.T) {
		db := setupTestDB(t)
		svc := NewUserService(db)

		require.NoError(t, svc.EnsureAdmin(ctx, "root@example.com", "bootstrap-pass", ""))

		user, err := svc.GetByEmail(ctx, "root@example.com")
		require.NoError(t, err)
		assert.True(t, user.IsAdmin())
		assert.Equal(t, "Administrator", user.Name)
		assert.True(t, user.CheckPassword("bootstrap-pass"))
	})

	t.Run("promotes existing account", func(t *testing.T) {
		db := setupTestDB(t)
		svc := NewUserService(db)
		ada := createUser(t, db, "ada", models.RoleUser)

		require.NoError(t, svc.EnsureAdmin(ctx, ada.Email, "", ""))

		user, err := svc.GetByID(ctx, ada.ID)
		require.NoError(t, err)
		assert.True(t, user.IsAdmin())
	})

	t.Run("no-op when an admin exists", func(t *testing.T) {
		db := setupTestDB(t)
		svc := NewUserService(db)
		createUser(t, db, "boss", models.RoleAdmin)

		require.NoError(t, svc.EnsureAdmin(ctx, "root@example.com", "bootstrap-pass", "Root"))
		assert.Equal(t, int64(1), countRows(t, db, &models.User{}))
	})

	t.Run("no email configured", func(t *testing.T) {
		db := setupTestDB(t)
		svc := NewUserService(db)

		require.NoError(t, svc.EnsureAdmin(ctx, "", "", ""))
		assert.Equal(t, int64(0), countRows(t, db, &models.User{}))
	})

	t.Run("weak bootstrap password", func(t *testing.T) {
		db := setupTestDB(t)
		svc := NewUserService(db)

		assert.Error(t, svc.EnsureAdmin(ctx, "root@example.com", "123", ""))
	})
}
