package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/stroydoc/upd-processor/internal/model"
)

// NewConnection initializes a new connection pool using GORM.
// TranslateError surfaces unique-index violations as
// gorm.ErrDuplicatedKey, which the upload pipeline relies on for the
// natural-key constraint.
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&model.Document{},
		&model.LineItem{},
		&model.ParsingIssue{},
		&model.DistributionBatch{},
		&model.DistributionEntry{},
		&model.CostEntry{},
	)
	if err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return db, nil
}
