package models

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Roles a user can hold. Everyone starts as RoleUser.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// ValidRole reports whether role is one of the fixed roles
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	Role      string    `gorm:"not null;default:'user';index" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Lowercased copies for search. SQLite's LOWER only folds ASCII.
	SearchName  string `gorm:"not null;default:''" json:"-"`
	SearchEmail string `gorm:"not null;default:''" json:"-"`
}

// SearchFold is the case folding applied to stored search columns and to
// search queries alike
func SearchFold(s string) string {
	return strings.ToLower(s)
}

// BeforeSave keeps the search columns in step with name and email
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.SearchName = SearchFold(u.Name)
	u.SearchEmail = SearchFold(u.Email)
	return nil
}

// HashPassword replaces the plaintext password with its bcrypt hash
func (u *User) HashPassword() error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

// CheckPassword compares a plaintext password against the stored hash
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
