package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunMigrationsCreatesLedger(t *testing.T) {
	db := openMemoryDB(t)
	if err := RunMigrations(db, zerolog.Nop()); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'usage_ledger'`).Scan(&name)
	if err != nil {
		t.Fatalf("usage_ledger table missing: %v", err)
	}
}

func TestRunMigrationsIdempotent(t *testing.T) {
	db := openMemoryDB(t)
	for i := 0; i < 2; i++ {
		if err := RunMigrations(db, zerolog.Nop()); err != nil {
			t.Fatalf("RunMigrations() pass %d error = %v", i+1, err)
		}
	}
}
