package models

import (
	"time"

	"gorm.io/datatypes"
)

// Template topics
const (
	TopicEducation = "Education"
	TopicQuiz      = "Quiz"
	TopicOther     = "Other"
)

// Question types
const (
	QuestionText     = "text"
	QuestionTextarea = "textarea"
	QuestionNumber   = "number"
	QuestionCheckbox = "checkbox"
	QuestionSelect   = "select"
)

var topics = map[string]bool{
	TopicEducation: true,
	TopicQuiz:      true,
	TopicOther:     true,
}

var questionTypes = map[string]bool{
	QuestionText:     true,
	QuestionTextarea: true,
	QuestionNumber:   true,
	QuestionCheckbox: true,
	QuestionSelect:   true,
}

func ValidTopic(topic string) bool {
	return topics[topic]
}

func ValidQuestionType(t string) bool {
	return questionTypes[t]
}

// Template is a reusable form definition owned by one user
type Template struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Topic       string     `gorm:"not null;default:'Other'" json:"topic"`
	IsPublic    bool       `gorm:"not null;default:false;index" json:"isPublic"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Questions   []Question `gorm:"foreignKey:TemplateID" json:"questions,omitempty"`
}

// Question belongs to exactly one template. Position is unique per template
// and runs 1..N after every committed change.
type Question struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	TemplateID  uint           `gorm:"not null;uniqueIndex:idx_questions_template_position" json:"template_id"`
	Type        string         `gorm:"not null" json:"type"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Position    int            `gorm:"not null;uniqueIndex:idx_questions_template_position" json:"position"`
	Config      datatypes.JSON `json:"config,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TemplateAccess grants a non-owner read and submit rights on a private template
type TemplateAccess struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TemplateID uint      `gorm:"not null;uniqueIndex:idx_template_access_user" json:"template_id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_template_access_user" json:"user_id"`
	GrantedBy  uint      `gorm:"not null" json:"granted_by"`
	CreatedAt  time.Time `json:"created_at"`
	User       *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (TemplateAccess) TableName() string {
	return "template_access"
}
