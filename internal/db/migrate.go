package db

import (
	"github.com/friendsincode/hearth_tv/internal/models"
	"gorm.io/gorm"
)

// Migrate applies schema migrations for all models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.MediaItem{},
		&models.SystemSettings{},
		&models.PlayHistory{},
	)
}
