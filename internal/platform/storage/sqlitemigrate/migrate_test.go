package sqlitemigrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

func TestApplyMigrationsRunsOnce(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_create.sql": {Data: []byte("CREATE TABLE things (id TEXT PRIMARY KEY);")},
		"0002_index.sql":  {Data: []byte("CREATE INDEX idx_things ON things (id);")},
		"notes.txt":       {Data: []byte("ignored")},
	}
	sqlDB := openTestDB(t)

	if err := ApplyMigrations(sqlDB, fsys, "."); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	// Re-running must be a no-op; the CREATE statements would fail otherwise.
	if err := ApplyMigrations(sqlDB, fsys, "."); err != nil {
		t.Fatalf("ApplyMigrations rerun: %v", err)
	}

	var applied int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("count applied: %v", err)
	}
	if applied != 2 {
		t.Fatalf("expected 2 applied migrations, got %d", applied)
	}
	if _, err := sqlDB.Exec("INSERT INTO things (id) VALUES ('a')"); err != nil {
		t.Fatalf("migrated table unusable: %v", err)
	}
}

func TestApplyMigrationsOrdersByName(t *testing.T) {
	// 0002 depends on 0001; lexicographic ordering is the contract.
	fsys := fstest.MapFS{
		"0002_add_col.sql": {Data: []byte("ALTER TABLE things ADD COLUMN label TEXT;")},
		"0001_create.sql":  {Data: []byte("CREATE TABLE things (id TEXT PRIMARY KEY);")},
	}
	sqlDB := openTestDB(t)
	if err := ApplyMigrations(sqlDB, fsys, "."); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	if _, err := sqlDB.Exec("INSERT INTO things (id, label) VALUES ('a', 'b')"); err != nil {
		t.Fatalf("expected both migrations applied in order: %v", err)
	}
}

func TestApplyMigrationsRequiresDB(t *testing.T) {
	if err := ApplyMigrations(nil, fstest.MapFS{}, "."); err == nil {
		t.Fatal("expected error for nil db")
	}
}
