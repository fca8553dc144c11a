// Package dbtest opens throwaway SQLite databases for tests
package dbtest

import (
	"faceauth/db"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a database backed by a file in t.TempDir(). The pool is limited to one connection so
// concurrent tests serialize in Go instead of hitting SQLITE_BUSY.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	instance, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := instance.DB()
	if err != nil {
		t.Fatalf("test db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return instance
}

// NewGlobal is New plus setting db.Instance, for code written against the global handle
func NewGlobal(t testing.TB) *gorm.DB {
	t.Helper()
	instance := New(t)
	previous := db.Instance
	db.Instance = instance
	t.Cleanup(func() { db.Instance = previous })
	return instance
}
