package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/franciscosanchezn/gin-forms-api/internal/auth"
	"github.com/franciscosanchezn/gin-forms-api/internal/database"
	"github.com/franciscosanchezn/gin-forms-api/internal/events"
	"github.com/franciscosanchezn/gin-forms-api/internal/models"
	"github.com/franciscosanchezn/gin-forms-api/internal/observability"
	"github.com/franciscosanchezn/gin-forms-api/internal/services"
)

const testSecret = "controllers-test-secret-that-is-long-enough"

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	t       *testing.T
	db      *gorm.DB
	router  *gin.Engine
	users   services.UserService
	metrics *observability.Metrics
}

// setupTestEnv wires the full router over an in-memory database and a
// miniredis revocation store
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig(true))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	issuer := auth.NewTokenIssuer(testSecret, "forms-test", time.Hour)
	limits := services.DefaultLimits()
	publisher := events.NopPublisher{}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	users := services.NewUserService(db)

	router := NewRouter(RouterDeps{
		Issuer:      issuer,
		Revocations: auth.NewRedisRevocationStore(client),
		Users:       users,
		Templates:   services.NewTemplateService(db, limits, publisher),
		Access:      services.NewAccessService(db, publisher),
		Forms:       services.NewFormService(db, limits, publisher),
		Directory:   services.NewDirectoryService(db, publisher),
		Clients:     services.NewClientService(db),
		OAuth:       auth.NewOAuthService(db, issuer),
		Metrics:     metrics,
	})

	return &testEnv{t: t, db: db, router: router, users: users, metrics: metrics}
}

func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// signUp registers name@example.com through the API and logs in
func (e *testEnv) signUp(name string) (uint, string) {
	e.t.Helper()
	email := name + "@example.com"
	rr := e.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": name, "email": email, "password": "secret123",
	})
	require.Equal(e.t, http.StatusCreated, rr.Code, rr.Body.String())
	return e.login(email, "secret123")
}

func (e *testEnv) login(email, password string) (uint, string) {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(e.t, http.StatusOK, rr.Code, rr.Body.String())

	var body tokenResponse
	decode(e.t, rr, &body)
	require.NotEmpty(e.t, body.Token)
	return body.User.ID, body.Token
}

// signUpAdmin bootstraps an admin account and logs in
func (e *testEnv) signUpAdmin() (uint, string) {
	e.t.Helper()
	require.NoError(e.t, e.users.EnsureAdmin(context.Background(), "admin@example.com", "adminpass", "Admin"))
	return e.login("admin@example.com", "adminpass")
}

func (e *testEnv) createTemplate(token string, public bool, questions ...string) (uint, []uint) {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/templates", token, gin.H{"title": "Survey", "isPublic": public})
	require.Equal(e.t, http.StatusCreated, rr.Code, rr.Body.String())
	var template models.Template
	decode(e.t, rr, &template)

	ids := make([]uint, 0, len(questions))
	for _, title := range questions {
		rr := e.do(http.MethodPost, fmt.Sprintf("/api/templates/%d/questions", template.ID), token,
			gin.H{"type": "text", "title": title})
		require.Equal(e.t, http.StatusCreated, rr.Code, rr.Body.String())
		var q models.Question
		decode(e.t, rr, &q)
		ids = append(ids, q.ID)
	}
	return template.ID, ids
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body models.APIError
	decode(t, rr, &body)
	return body.Code
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}
