package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/franciscosanchezn/gin-forms-api/internal/access"
	"github.com/franciscosanchezn/gin-forms-api/internal/events"
	"github.com/franciscosanchezn/gin-forms-api/internal/export"
	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

// AnswerInput is one submitted value. An empty Value is a valid answer.
type AnswerInput struct {
	QuestionID uint
	Value      string
}

// AnswerView is an answer joined with its question
type AnswerView struct {
	ID            uint   `json:"id"`
	QuestionID    uint   `json:"question_id"`
	QuestionTitle string `json:"question_title"`
	QuestionType  string `json:"question_type"`
	Position      int    `json:"position"`
	Value         string `json:"value"`
}

// FormDetail is a form with its template title and answers in question order
type FormDetail struct {
	Form          models.Form  `json:"form"`
	TemplateTitle string       `json:"template_title"`
	Answers       []AnswerView `json:"answers"`
}

// FormSummary is one row of a form listing
type FormSummary struct {
	ID            uint      `json:"id"`
	TemplateID    uint      `json:"template_id"`
	TemplateTitle string    `json:"template_title"`
	UserID        uint      `json:"user_id"`
	SubmittedBy   string    `json:"submitted_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// FormService submits, reads, amends and exports forms
type FormService interface {
	Submit(ctx context.Context, p access.Principal, templateID uint, answers []AnswerInput) (*models.Form, error)
	Get(ctx context.Context, p access.Principal, id uint) (*FormDetail, error)
	ListMine(ctx context.Context, p access.Principal, page, limit int) ([]FormSummary, models.Pagination, error)
	ListForTemplate(ctx context.Context, p access.Principal, templateID uint, page, limit int) ([]FormSummary, models.Pagination, error)
	AmendAnswers(ctx context.Context, p access.Principal, formID uint, answers []AnswerInput) (*FormDetail, error)
	ExportTemplateSubmissions(ctx context.Context, p access.Principal, templateID uint, w io.Writer) error
}

type formService struct {
	db        *gorm.DB
	limits    Limits
	publisher events.Publisher
	now       func() time.Time
}

func NewFormService(db *gorm.DB, limits Limits, publisher events.Publisher) FormService {
	return &formService{db: db, limits: limits, publisher: publisher, now: time.Now}
}

// validateAnswers checks the shape of an answer list before any lookup
func (s *formService) validateAnswers(answers []AnswerInput) error {
	if len(answers) == 0 {
		return models.NewValidationError(models.ErrAnswersRequired, "At least one answer is required")
	}
	if len(answers) > s.limits.MaxAnswersPerForm {
		return models.NewValidationError(models.ErrAnswerLimitExceeded, "Too many answers").
			WithDetails(map[string]interface{}{"limit": s.limits.MaxAnswersPerForm})
	}

	seen := make(map[uint]bool, len(answers))
	for i, a := range answers {
		if a.QuestionID == 0 {
			return models.NewValidationError(models.ErrInvalidAnswerFormat, "Each answer needs a question_id").
				WithDetails(map[string]interface{}{"index": i})
		}
		if seen[a.QuestionID] {
			return models.NewValidationError(models.ErrDuplicateAnswer, "A question may be answered only once").
				WithDetails(map[string]interface{}{"question_id": a.QuestionID})
		}
		seen[a.QuestionID] = true
	}
	return nil
}

// checkMembership rejects answers to questions outside the template
func checkMembership(tx *gorm.DB, templateID uint, answers []AnswerInput) error {
	var ids []uint
	if err := tx.Model(&models.Question{}).Where("template_id = ?", templateID).Pluck("id", &ids).Error; err != nil {
		return err
	}
	known := make(map[uint]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	for _, a := range answers {
		if !known[a.QuestionID] {
			return models.NewValidationError(models.ErrUnknownQuestion, "Question does not belong to this template").
				WithDetails(map[string]interface{}{"question_id": a.QuestionID})
		}
	}
	return nil
}

// Submit creates the form and every answer, or nothing at all
func (s *formService) Submit(ctx context.Context, p access.Principal, templateID uint, answers []AnswerInput) (*models.Form, error) {
	if templateID == 0 {
		return nil, models.NewValidationError(models.ErrValidationFailed, "template_id is required")
	}
	if err := s.validateAnswers(answers); err != nil {
		return nil, err
	}

	form := &models.Form{TemplateID: templateID, UserID: p.UserID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		template, err := loadTemplate(tx, templateID, false)
		if err != nil {
			return err
		}
		res, err := templateResource(tx, p, template)
		if err != nil {
			return err
		}
		if !access.CanSubmitForm(p, res).Allowed {
			return templateDenied()
		}
		if err := checkMembership(tx, templateID, answers); err != nil {
			return err
		}

		if err := tx.Create(form).Error; err != nil {
			return err
		}
		rows := make([]models.Answer, len(answers))
		for i, a := range answers {
			rows[i] = models.Answer{FormID: form.ID, QuestionID: a.QuestionID, Value: a.Value}
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, asAppError(err)
	}

	log.WithFields(logrus.Fields{
		"form_id":     form.ID,
		"template_id": templateID,
		"user_id":     p.UserID,
		"answers":     len(answers),
	}).Info("Form submitted")
	events.PublishAfterCommit(ctx, s.publisher, events.TopicFormSubmitted, events.FormSubmitted{
		FormID:     form.ID,
		TemplateID: templateID,
		UserID:     p.UserID,
		Answers:    len(answers),
		At:         form.CreatedAt.UTC(),
	})
	return form, nil
}

func loadForm(tx *gorm.DB, id uint, lock bool) (*models.Form, error) {
	q := tx
	if lock {
		q = q.Clauses(forUpdate)
	}
	var form models.Form
	if err := q.First(&form, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError(models.ErrFormNotFound, "Form not found")
		}
		return nil, err
	}
	return &form, nil
}

func formResource(tx *gorm.DB, p access.Principal, form *models.Form, t *models.Template) (access.FormResource, error) {
	res := access.FormResource{
		OwnerID:          form.UserID,
		TemplateOwnerID:  t.UserID,
		TemplateIsPublic: t.IsPublic,
	}
	if p.IsAdmin() || p.UserID == form.UserID || p.UserID == t.UserID || t.IsPublic {
		return res, nil
	}
	granted, err := hasGrant(tx, t.ID, p.UserID)
	if err != nil {
		return res, err
	}
	res.Granted = granted
	return res, nil
}

func (s *formService) Get(ctx context.Context, p access.Principal, id uint) (*FormDetail, error) {
	db := s.db.WithContext(ctx)
	form, err := loadForm(db, id, false)
	if err != nil {
		return nil, asAppError(err)
	}
	template, err := loadTemplate(db, form.TemplateID, false)
	if err != nil {
		return nil, asAppError(err)
	}
	res, err := formResource(db, p, form, template)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !access.CanReadForm(p, res).Allowed {
		return nil, formDenied()
	}

	detail, err := buildDetail(db, form, template)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return detail, nil
}

func buildDetail(db *gorm.DB, form *models.Form, template *models.Template) (*FormDetail, error) {
	answers := []AnswerView{}
	err := db.Table("answers").
		Select("answers.id, answers.question_id, questions.title AS question_title, questions.type AS question_type, questions.position, answers.value").
		Joins("JOIN questions ON questions.id = answers.question_id").
		Where("answers.form_id = ?", form.ID).
		Order("questions.position ASC").
		Scan(&answers).Error
	if err != nil {
		return nil, err
	}
	return &FormDetail{Form: *form, TemplateTitle: template.Title, Answers: answers}, nil
}

func summaryQuery(db *gorm.DB) *gorm.DB {
	return db.Table("forms").
		Joins("JOIN templates ON templates.id = forms.template_id").
		Joins("LEFT JOIN users ON users.id = forms.user_id")
}

func (s *formService) listSummaries(db *gorm.DB, where string, arg interface{}, page, limit int) ([]FormSummary, models.Pagination, error) {
	var total int64
	if err := db.Model(&models.Form{}).Where(where, arg).Count(&total).Error; err != nil {
		return nil, models.Pagination{}, models.NewInternalError(err)
	}
	pagination := models.NewPagination(page, limit, total)

	rows := []FormSummary{}
	err := summaryQuery(db).
		Select("forms.id, forms.template_id, templates.title AS template_title, forms.user_id, users.name AS submitted_by, forms.created_at").
		Where("forms."+where, arg).
		Order("forms.created_at DESC, forms.id DESC").
		Offset(pagination.Offset()).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, models.Pagination{}, models.NewInternalError(err)
	}
	return rows, pagination, nil
}

// ListMine returns the caller's own submissions, newest first
func (s *formService) ListMine(ctx context.Context, p access.Principal, page, limit int) ([]FormSummary, models.Pagination, error) {
	page, limit, err := normalizePage(page, limit, MaxFormPageSize)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return s.listSummaries(s.db.WithContext(ctx), "user_id = ?", p.UserID, page, limit)
}

// ListForTemplate returns every submission of a template to its owner or an admin
func (s *formService) ListForTemplate(ctx context.Context, p access.Principal, templateID uint, page, limit int) ([]FormSummary, models.Pagination, error) {
	page, limit, err := normalizePage(page, limit, MaxFormPageSize)
	if err != nil {
		return nil, models.Pagination{}, err
	}

	db := s.db.WithContext(ctx)
	template, err := loadTemplate(db, templateID, false)
	if err != nil {
		return nil, models.Pagination{}, asAppError(err)
	}
	if !access.CanViewSubmissions(p, access.TemplateResource{OwnerID: template.UserID, IsPublic: template.IsPublic}).Allowed {
		return nil, models.Pagination{}, templateDenied()
	}
	return s.listSummaries(db, "template_id = ?", templateID, page, limit)
}

// AmendAnswers replaces the values of the listed questions. Questions the
// form has no answer for yet get one.
func (s *formService) AmendAnswers(ctx context.Context, p access.Principal, formID uint, answers []AnswerInput) (*FormDetail, error) {
	if err := s.validateAnswers(answers); err != nil {
		return nil, err
	}

	var detail *FormDetail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		form, err := loadForm(tx, formID, true)
		if err != nil {
			return err
		}
		template, err := loadTemplate(tx, form.TemplateID, false)
		if err != nil {
			return err
		}

		res, err := formResource(tx, p, form, template)
		if err != nil {
			return err
		}
		decision := access.CanAmendForm(p, res, form.CreatedAt, s.now(), s.limits.AmendWindow)
		if !decision.Allowed {
			if decision.Reason == access.ReasonAmendWindowClosed {
				return models.NewForbiddenError(models.ErrAmendWindowClosed, "The amend window for this form has closed")
			}
			return formDenied()
		}
		if err := checkMembership(tx, template.ID, answers); err != nil {
			return err
		}

		rows := make([]models.Answer, len(answers))
		for i, a := range answers {
			rows[i] = models.Answer{FormID: form.ID, QuestionID: a.QuestionID, Value: a.Value}
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "form_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).Create(&rows).Error
		if err != nil {
			return err
		}
		if err := tx.Model(form).Update("updated_at", s.now()).Error; err != nil {
			return err
		}

		detail, err = buildDetail(tx, form, template)
		return err
	})
	if err != nil {
		return nil, asAppError(err)
	}

	events.PublishAfterCommit(ctx, s.publisher, events.TopicFormAmended, events.FormAmended{
		FormID:    formID,
		AmendedBy: p.UserID,
		Answers:   len(answers),
		At:        s.now().UTC(),
	})
	return detail, nil
}

// ExportTemplateSubmissions writes every submission of a template as XLSX
func (s *formService) ExportTemplateSubmissions(ctx context.Context, p access.Principal, templateID uint, w io.Writer) error {
	db := s.db.WithContext(ctx)
	template, err := loadTemplate(db, templateID, false)
	if err != nil {
		return asAppError(err)
	}
	if !access.CanViewSubmissions(p, access.TemplateResource{OwnerID: template.UserID, IsPublic: template.IsPublic}).Allowed {
		return templateDenied()
	}

	var questions []models.Question
	if err := db.Where("template_id = ?", templateID).Order("position ASC").Find(&questions).Error; err != nil {
		return models.NewInternalError(err)
	}

	var summaries []FormSummary
	err = summaryQuery(db).
		Select("forms.id, forms.template_id, templates.title AS template_title, forms.user_id, users.name AS submitted_by, forms.created_at").
		Where("forms.template_id = ?", templateID).
		Order("forms.created_at ASC, forms.id ASC").
		Scan(&summaries).Error
	if err != nil {
		return models.NewInternalError(err)
	}

	rows := make([]export.SubmissionRow, len(summaries))
	index := make(map[uint]int, len(summaries))
	formIDs := make([]uint, len(summaries))
	for i, f := range summaries {
		rows[i] = export.SubmissionRow{
			FormID:      f.ID,
			SubmittedBy: f.SubmittedBy,
			SubmittedAt: f.CreatedAt,
			Values:      map[uint]string{},
		}
		index[f.ID] = i
		formIDs[i] = f.ID
	}

	if len(formIDs) > 0 {
		var answers []models.Answer
		if err := db.Where("form_id IN ?", formIDs).Find(&answers).Error; err != nil {
			return models.NewInternalError(err)
		}
		for _, a := range answers {
			rows[index[a.FormID]].Values[a.QuestionID] = a.Value
		}
	}

	if err := export.WriteSubmissionsXLSX(w, questions, rows); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
