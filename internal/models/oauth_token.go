package models

import (
	"time"
)

// OAuthToken records an access token issued to an integration client
type OAuthToken struct {
	ID          uint      `gorm:"primaryKey"`
	ClientID    string    `gorm:"not null;index"`
	UserID      string    `gorm:"not null"`
	AccessToken string    `gorm:"type:text;not null"`
	TokenID     string    `gorm:"uniqueIndex;not null"`
	Scopes      string
	ExpiresAt   time.Time `gorm:"not null;index"`
	CreatedAt   time.Time
}

func (OAuthToken) TableName() string {
	return "oauth_tokens"
}
