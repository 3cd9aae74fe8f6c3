//go:build integration

package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	postgresdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/franciscosanchezn/gin-forms-api/internal/database"
	"github.com/franciscosanchezn/gin-forms-api/internal/events"
	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

// setupPostgresTestDB starts a PostgreSQL container so row locks behave as in production
func setupPostgresTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("forms_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgresdriver.Open(dsn), database.GormConfig(true))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func TestIntegration_ConcurrentReordersStayContiguous(t *testing.T) {
	ctx := context.Background()
	db := setupPostgresTestDB(t)
	owner := createUser(t, db, "owner", models.RoleUser)
	template, qs := createTemplate(t, db, owner, false, "a", "b", "c", "d")
	svc := NewTemplateService(db, DefaultLimits(), events.NopPublisher{})

	orders := [][]uint{
		{qs[3].ID, qs[2].ID, qs[1].ID, qs[0].ID},
		{qs[1].ID, qs[0].ID, qs[3].ID, qs[2].ID},
		{qs[2].ID, qs[3].ID, qs[0].ID, qs[1].ID},
	}

	var wg sync.WaitGroup
	errs := make(chan error, 30)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(order []uint) {
			defer wg.Done()
			_, err := svc.ReorderQuestions(ctx, principalOf(owner), template.ID, order)
			errs <- err
		}(orders[i%len(orders)])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	questions, err := svc.ListQuestions(ctx, principalOf(owner), template.ID)
	require.NoError(t, err)
	require.Len(t, questions, 4)
	for i, q := range questions {
		assert.Equal(t, i+1, q.Position)
	}
}

func TestIntegration_ConcurrentDemotionsKeepOneAdmin(t *testing.T) {
	ctx := context.Background()
	db := setupPostgresTestDB(t)
	first := createUser(t, db, "first", models.RoleAdmin)
	second := createUser(t, db, "second", models.RoleAdmin)
	svc := NewDirectoryService(db, events.NopPublisher{})

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, results[0] = svc.ChangeRole(ctx, principalOf(first), second.ID, models.RoleUser)
	}()
	go func() {
		defer wg.Done()
		_, results[1] = svc.ChangeRole(ctx, principalOf(second), first.ID, models.RoleUser)
	}()
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		requireKind(t, err, models.KindInvariant, models.ErrLastAdmin)
	}
	assert.Equal(t, 1, succeeded)

	var admins int64
	require.NoError(t, db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error)
	assert.Equal(t, int64(1), admins)
}

func TestIntegration_TemplateCapUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	db := setupPostgresTestDB(t)
	owner := createUser(t, db, "owner", models.RoleUser)
	svc := NewTemplateService(db, Limits{MaxTemplatesPerUser: 3, MaxAnswersPerForm: 10}, events.NopPublisher{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Create(ctx, principalOf(owner), TemplateInput{Title: "t"})
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(3), countRows(t, db, &models.Template{}))
}
