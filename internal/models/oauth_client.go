package models

import (
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// OAuthClient is an integration client that exchanges its credentials for
// access tokens acting as the owning user.
type OAuthClient struct {
	ID        string         `gorm:"primaryKey" json:"client_id"`
	Secret    string         `gorm:"not null" json:"-"`
	Name      string         `json:"name"`
	Domain    string         `json:"domain,omitempty"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	Scopes    string         `json:"scopes"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (OAuthClient) TableName() string {
	return "oauth_clients"
}

func (c *OAuthClient) GetID() string {
	return c.ID
}

func (c *OAuthClient) GetSecret() string {
	return c.Secret
}

func (c *OAuthClient) GetDomain() string {
	return c.Domain
}

func (c *OAuthClient) IsPublic() bool {
	return false
}

func (c *OAuthClient) GetUserID() string {
	return strconv.FormatUint(uint64(c.UserID), 10)
}

// HashSecret replaces the plaintext secret with its bcrypt hash
func (c *OAuthClient) HashSecret() error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(c.Secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	c.Secret = string(hashed)
	return nil
}

// VerifyPassword checks a presented client secret against the stored bcrypt hash
func (c *OAuthClient) VerifyPassword(secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(c.Secret), []byte(secret)) == nil
}
