package models

import "time"

// Form is one submission of a template by one user
type Form struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TemplateID uint      `gorm:"not null;index" json:"template_id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Answers    []Answer  `gorm:"foreignKey:FormID" json:"-"`
}

// Answer holds the textual value for one question of a form.
// A form has at most one answer per question.
type Answer struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	FormID     uint   `gorm:"not null;uniqueIndex:idx_answers_form_question" json:"form_id"`
	QuestionID uint   `gorm:"not null;uniqueIndex:idx_answers_form_question;index" json:"question_id"`
	Value      string `gorm:"type:text;not null" json:"value"`
}
