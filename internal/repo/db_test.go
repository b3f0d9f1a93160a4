package repo

import (
	"path/filepath"
	"testing"

	"github.com/stigerapp/go-rental-backend/internal/domain"
)

func TestOpenSQLite_CreatesFileAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rental.db")
	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range []any{
		&domain.User{}, &domain.Order{}, &domain.Transaction{},
		&domain.SavedCard{}, &domain.AuthCode{}, &domain.Location{}, &domain.Idempotency{},
	} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T after migration", tbl)
		}
	}

	var mode string
	if err := db.Raw("PRAGMA journal_mode;").Scan(&mode).Error; err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}
}

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no-such-dir", "rental.db")
	if _, err := OpenSQLite(path); err == nil {
		t.Fatalf("expected error for missing parent directory")
	}
}
