// Package testkit provides shared fixtures for package tests.
package testkit

import (
	"path/filepath"
	"testing"

	"eggbot/internal/infrastructure/database"

	"gorm.io/gorm"
)

// NewDB opens a migrated SQLite database under t.TempDir.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "eggbot.db"), nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
