package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/cardaffinity/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// Decklist archive + batch ledger
		&domain.DecklistBatchRecord{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
