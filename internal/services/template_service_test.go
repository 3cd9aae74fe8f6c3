package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/franciscosanchezn/gin-forms-api/internal/events"
	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

func newTemplateService(t *testing.T) (TemplateService, *recordingPublisher, *models.User, *models.User, *models.User) {
	db := setupTestDB(t)
	pub := &recordingPublisher{}
	owner := createUser(t, db, "owner", models.RoleUser)
	other := createUser(t, db, "other", models.RoleUser)
	admin := createUser(t, db, "admin", models.RoleAdmin)
	return NewTemplateService(db, DefaultLimits(), pub), pub, owner, other, admin
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestTemplateService_Create(t *testing.T) {
	ctx := context.Background()
	svc, _, owner, _, _ := newTemplateService(t)

	template, err := svc.Create(ctx, principalOf(owner), TemplateInput{Title: "  Feedback  "})
	require.NoError(t, err)
	assert.Equal(t, "Feedback", template.Title)
	assert.Equal(t, models.TopicOther, template.Topic)
	assert.False(t, template.IsPublic)
	assert.Equal(t, owner.ID, template.UserID)

	tests := []struct {
		name  string
		input TemplateInput
		code  string
	}{
		{"empty title", TemplateInput{Title: "   "}, models.ErrTemplateInvalidData},
		{"unknown topic", TemplateInput{Title: "x", Topic: "Sports"}, models.ErrInvalidTopic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, principalOf(owner), tt.input)
			requireKind(t, err, models.KindValidation, tt.code)
		})
	}
}

func TestTemplateService_CreateEnforcesCap(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	owner := createUser(t, db, "owner", models.RoleUser)
	svc := NewTemplateService(db, Limits{MaxTemplatesPerUser: 2, MaxAnswersPerForm: 10}, events.NopPublisher{})

	for i := 0; i < 2; i++ {
		_, err := svc.Create(ctx, principalOf(owner), TemplateInput{Title: "t", Topic: models.TopicQuiz})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, principalOf(owner), TemplateInput{Title: "t"})
	requireKind(t, err, models.KindConflict, models.ErrTemplateLimitReached)
	assert.Equal(t, int64(2), countRows(t, db, &models.Template{}))
}

func TestTemplateService_ListAndGet(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	owner := createUser(t, db, "owner", models.RoleUser)
	other := createUser(t, db, "other", models.RoleUser)
	admin := createUser(t, db, "admin", models.RoleAdmin)
	svc := NewTemplateService(db, DefaultLimits(), events.NopPublisher{})

	private, _ := createTemplate(t, db, owner, false, "q2", "q1")
	public, _ := createTemplate(t, db, owner, true)
	createTemplate(t, db, other, false)

	mine, err := svc.List(ctx, principalOf(owner))
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	visible, err := svc.List(ctx, principalOf(other))
	require.NoError(t, err)
	assert.Len(t, visible, 2, "own private template plus the public one")

	all, err := svc.ListAll(ctx, principalOf(admin))
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = svc.ListAll(ctx, principalOf(owner))
	requireKind(t, err, models.KindAuthorization, models.ErrAdminRequired)

	t.Run("owner sees questions in position order", func(t *testing.T) {
		got, err := svc.Get(ctx, principalOf(owner), private.ID)
		require.NoError(t, err)
		require.Len(t, got.Questions, 2)
		assert.Equal(t, 1, got.Questions[0].Position)
		assert.Equal(t, "q2", got.Questions[0].Title)
	})

	t.Run("private template denied to stranger", func(t *testing.T) {
		_, err := svc.Get(ctx, principalOf(other), private.ID)
		requireKind(t, err, models.KindAuthorization, models.ErrTemplateAccessDenied)
	})

	t.Run("grant opens private template", func(t *testing.T) {
		grant(t, db, private, other)
		_, err := svc.Get(ctx, principalOf(other), private.ID)
		require.NoError(t, err)
	})

	t.Run("public template readable", func(t *testing.T) {
		_, err := svc.Get(ctx, principalOf(other), public.ID)
		require.NoError(t, err)
	})

	t.Run("admin reads anything", func(t *testing.T) {
		_, err := svc.Get(ctx, principalOf(admin), private.ID)
		require.NoError(t, err)
	})

	t.Run("missing template is 404 even for strangers", func(t *testing.T) {
		_, err := svc.Get(ctx, principalOf(other), 9999)
		requireKind(t, err, models.KindNotFound, models.ErrTemplateNotFound)
	})
}

func TestTemplateService_Update(t *testing.T) {
	ctx := context.Background()
	svc, _, owner, other, admin := newTemplateService(t)

	created, err := svc.Create(ctx, principalOf(owner), TemplateInput{
		Title:       "Original",
		Description: "keep me",
		Topic:       models.TopicEducation,
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, principalOf(owner), created.ID, TemplatePatch{IsPublic: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, updated.IsPublic)
	assert.Equal(t, "Original", updated.Title)
	assert.Equal(t, "keep me", updated.Description)
	assert.Equal(t, models.TopicEducation, updated.Topic)

	updated, err = svc.Update(ctx, principalOf(admin), created.ID, TemplatePatch{Title: strPtr("Renamed"), IsPublic: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.False(t, updated.IsPublic)

	_, err = svc.Update(ctx, principalOf(other), created.ID, TemplatePatch{Title: strPtr("Hijack")})
	requireKind(t, err, models.KindAuthorization, models.ErrTemplateAccessDenied)

	_, err = svc.Update(ctx, principalOf(owner), created.ID, TemplatePatch{Title: strPtr(" ")})
	requireKind(t, err, models.KindValidation, models.ErrTemplateInvalidData)

	_, err = svc.Update(ctx, principalOf(owner), created.ID, TemplatePatch{Topic: strPtr("Nope")})
	requireKind(t, err, models.KindValidation, models.ErrInvalidTopic)

	_, err = svc.Update(ctx, principalOf(owner), 4242, TemplatePatch{})
	requireKind(t, err, models.KindNotFound, models.ErrTemplateNotFound)
}

func TestTemplateService_PublicDoesNotGrantWrite(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	owner := createUser(t, db, "owner", models.RoleUser)
	other := createUser(t, db, "other", models.RoleUser)
	svc := NewTemplateService(db, DefaultLimits(), events.NopPublisher{})

	public, _ := createTemplate(t, db, owner, true)
	grant(t, db, public, other)

	_, err := svc.Update(ctx, principalOf(other), public.ID, TemplatePatch{Title: strPtr("x")})
	requireKind(t, err, models.KindAuthorization, models.ErrTemplateAccessDenied)
	err = svc.Delete(ctx, principalOf(other), public.ID)
	requireKind(t, err, models.KindAuthorization, models.ErrTemplateAccessDenied)
	_, err = svc.AddQuestion(ctx, principalOf(other), public.ID, QuestionInput{Type: models.QuestionText, Title: "q"})
	requireKind(t, err, models.KindAuthorization, models.ErrTemplateAccessDenied)
}

func TestTemplateService_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	pub := &recordingPublisher{}
	owner := createUser(t, db, "owner", models.RoleUser)
	other := createUser(t, db, "other", models.RoleUser)
	svc := NewTemplateService(db, DefaultLimits(), pub)

	template, questions := createTemplate(t, db, owner, false, "q1", "q2")
	kept, keptQuestions := createTemplate(t, db, other, true, "k1")
	grant(t, db, template, other)

	form := models.Form{TemplateID: template.ID, UserID: other.ID}
	require.NoError(t, db.Create(&form).Error)
	require.NoError(t, db.Create(&[]models.Answer{
		{FormID: form.ID, QuestionID: questions[0].ID, Value: "a"},
		{FormID: form.ID, QuestionID: questions[1].ID, Value: "b"},
	}).Error)
	keptForm := models.Form{TemplateID: kept.ID, UserID: owner.ID}
	require.NoError(t, db.Create(&keptForm).Error)
	require.NoError(t, db.Create(&models.Answer{FormID: keptForm.ID, QuestionID: keptQuestions[0].ID, Value: "x"}).Error)

	err := svc.Delete(ctx, principalOf(other), template.ID)
	requireKind(t, err, models.KindAuthorization, models.ErrTemplateAccessDenied)

	require.NoError(t, svc.Delete(ctx, principalOf(owner), template.ID))

	assert.Equal(t, int64(1), countRows(t, db, &models.Template{}))
	assert.Equal(t, int64(1), countRows(t, db, &models.Question{}))
	assert.Equal(t, int64(1), countRows(t, db, &models.Form{}))
	assert.Equal(t, int64(1), countRows(t, db, &models.Answer{}))
	assert.Equal(t, int64(0), countRows(t, db, &models.TemplateAccess{}))
	assert.Equal(t, []string{events.TopicTemplateDeleted}, pub.topics())

	err = svc.Delete(ctx, principalOf(owner), template.ID)
	requireKind(t, err, models.KindNotFound, models.ErrTemplateNotFound)
}

func TestTemplateService_AddQuestion(t *testing.T) {
	ctx := context.Background()
	svc, _, owner, _, _ := newTemplateService(t)

	template, err := svc.Create(ctx, principalOf(owner), TemplateInput{Title: "Quiz", Topic: models.TopicQuiz})
	require.NoError(t, err)

	for i, typ := range []string{models.QuestionText, models.QuestionSelect, models.QuestionCheckbox} {
		q, err := svc.AddQuestion(ctx, principalOf(owner), template.ID, QuestionInput{
			Type:   typ,
			Title:  "Question",
			Config: datatypes.JSON(`{"options":["a","b"]}`),
		})
		require.NoError(t, err)
		assert.Equal(t, i+1, q.Position)
	}

	_, err = svc.AddQuestion(ctx, principalOf(owner), template.ID, QuestionInput{Type: "radio", Title: "q"})
	requireKind(t, err, models.KindValidation, models.ErrInvalidQuestionType)

	_, err = svc.AddQuestion(ctx, principalOf(owner), template.ID, QuestionInput{Type: models.QuestionText, Title: ""})
	requireKind(t, err, models.KindValidation, models.ErrValidationFailed)

	_, err = svc.AddQuestion(ctx, principalOf(owner), 777, QuestionInput{Type: models.QuestionText, Title: "q"})
	requireKind(t, err, models.KindNotFound, models.ErrTemplateNotFound)

	questions, err := svc.ListQuestions(ctx, principalOf(owner), template.ID)
	require.NoError(t, err)
	assert.Len(t, questions, 3)
}

func TestTemplateService_ReorderQuestions(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	owner := createUser(t, db, "owner", models.RoleUser)
	other := createUser(t, db, "other", models.RoleUser)
	svc := NewTemplateService(db, DefaultLimits(), events.NopPublisher{})

	template, qs := createTemplate(t, db, owner, true, "a", "b", "c")
	a, b, c := qs[0].ID, qs[1].ID, qs[2].ID

	positions := func(questions []models.Question) map[uint]int {
		out := map[uint]int{}
		for _, q := range questions {
			out[q.ID] = q.Position
		}
		return out
	}

	t.Run("permutation assigns 1..N in order", func(t *testing.T) {
		got, err := svc.ReorderQuestions(ctx, principalOf(owner), template.ID, []uint{c, a, b})
		require.NoError(t, err)
		assert.Equal(t, map[uint]int{c: 1, a: 2, b: 3}, positions(got))
		assert.Equal(t, c, got[0].ID)
	})

	t.Run("current order is a no-op", func(t *testing.T) {
		before, err := svc.ListQuestions(ctx, principalOf(owner), template.ID)
		require.NoError(t, err)
		ids := []uint{before[0].ID, before[1].ID, before[2].ID}

		after, err := svc.ReorderQuestions(ctx, principalOf(owner), template.ID, ids)
		require.NoError(t, err)
		assert.Equal(t, positions(before), positions(after))
	})

	mismatches := []struct {
		name string
		ids  []uint
	}{
		{"missing id", []uint{a, b}},
		{"extra id", []uint{a, b, c, 9999}},
		{"duplicate id", []uint{a, a, b}},
		{"foreign id", []uint{a, b, 9999}},
		{"empty", []uint{}},
	}
	for _, tt := range mismatches {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ReorderQuestions(ctx, principalOf(owner), template.ID, tt.ids)
			requireKind(t, err, models.KindValidation, models.ErrQuestionSetMismatch)
		})
	}

	t.Run("stranger cannot reorder a public template", func(t *testing.T) {
		_, err := svc.ReorderQuestions(ctx, principalOf(other), template.ID, []uint{a, b, c})
		requireKind(t, err, models.KindAuthorization, models.ErrTemplateAccessDenied)
	})

	t.Run("failed reorder leaves positions intact", func(t *testing.T) {
		got, err := svc.ListQuestions(ctx, principalOf(owner), template.ID)
		require.NoError(t, err)
		assert.Equal(t, map[uint]int{c: 1, a: 2, b: 3}, positions(got))
	})
}

func TestSameIDSet(t *testing.T) {
	assert.True(t, sameIDSet([]uint{1, 2, 3}, []uint{3, 1, 2}))
	assert.True(t, sameIDSet(nil, []uint{}))
	assert.False(t, sameIDSet([]uint{1, 2}, []uint{1, 1}))
	assert.False(t, sameIDSet([]uint{1, 2}, []uint{1, 2, 2}))
	assert.False(t, sameIDSet([]uint{1, 2}, []uint{1, 3}))
}
