package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/franciscosanchezn/gin-forms-api/internal/access"
	"github.com/franciscosanchezn/gin-forms-api/internal/database"
	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig(true))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, name, role string) *models.User {
	user := &models.User{
		Name:     name,
		Email:    fmt.Sprintf("%s@example.com", name),
		Password: "not-a-real-hash",
		Role:     role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func principalOf(u *models.User) access.Principal {
	return access.Principal{UserID: u.ID, Role: u.Role}
}

func createTemplate(t *testing.T, db *gorm.DB, owner *models.User, public bool, questions ...string) (*models.Template, []models.Question) {
	template := &models.Template{UserID: owner.ID, Title: "Survey", Topic: models.TopicOther, IsPublic: public}
	require.NoError(t, db.Create(template).Error)

	created := make([]models.Question, 0, len(questions))
	for i, title := range questions {
		q := models.Question{TemplateID: template.ID, Type: models.QuestionText, Title: title, Position: i + 1}
		require.NoError(t, db.Create(&q).Error)
		created = append(created, q)
	}
	return template, created
}

func grant(t *testing.T, db *gorm.DB, template *models.Template, user *models.User) {
	require.NoError(t, db.Create(&models.TemplateAccess{
		TemplateID: template.ID,
		UserID:     user.ID,
		GrantedBy:  template.UserID,
	}).Error)
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func requireKind(t *testing.T, err error, kind models.ErrorKind, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := models.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, kind, appErr.Kind, appErr.Error())
	require.Equal(t, code, appErr.Code)
}

type publishedEvent struct {
	topic   string
	payload interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, publishedEvent{topic: topic, payload: payload})
	return nil
}

func (r *recordingPublisher) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	topics := make([]string, len(r.events))
	for i, e := range r.events {
		topics[i] = e.topic
	}
	return topics
}
