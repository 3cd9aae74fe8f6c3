package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

// Migrate creates or updates every table the service uses
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Template{},
		&models.Question{},
		&models.TemplateAccess{},
		&models.Form{},
		&models.Answer{},
		&models.OAuthClient{},
		&models.OAuthToken{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrating schema: %w", err)
	}
	if err := backfillUserSearch(db); err != nil {
		return fmt.Errorf("backfilling user search columns: %w", err)
	}
	log.Info("Database schema migrated")
	return nil
}

// backfillUserSearch fills the folded search columns of rows written before
// they existed
func backfillUserSearch(db *gorm.DB) error {
	var users []models.User
	if err := db.Where("search_email = ?", "").Find(&users).Error; err != nil {
		return err
	}
	for _, user := range users {
		err := db.Model(&models.User{}).Where("id = ?", user.ID).UpdateColumns(map[string]interface{}{
			"search_name":  models.SearchFold(user.Name),
			"search_email": models.SearchFold(user.Email),
		}).Error
		if err != nil {
			return err
		}
	}
	if len(users) > 0 {
		log.WithField("users", len(users)).Info("Backfilled user search columns")
	}
	return nil
}
