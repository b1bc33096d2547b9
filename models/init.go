package models

import (
	"context"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func Init(ctx context.Context, path string) (*gorm.DB, error) {
	if err := ensureDBFile(path); err != nil {
		return nil, err
	}
	db, err := gorm.Open(sqlite.Open(path))
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate runs AutoMigrate plus legacy-compat backfills. Split out so tests
// can run it against an in-memory database.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.AutoMigrate(
		&APIKey{},
		&Conversation{},
		&ChatMessage{},
		&Folder{},
		&SavedPrompt{},
	); err != nil {
		return err
	}
	// Rows written before the active flag existed default to enabled.
	if _, err := gorm.G[APIKey](db).Where("is_active IS NULL").Update(ctx, "is_active", true); err != nil {
		return err
	}
	return nil
}

func ensureDBFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
