package storage

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func TestMigrationManager_Up(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migration-test.db")

	mgr, err := NewMigrationManager(dbPath)
	if err != nil {
		t.Fatalf("Failed to create migration manager: %v", err)
	}

	if err := mgr.Up(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	// Up on an already migrated database is a no-op, not an error.
	if err := mgr.Up(); err != nil {
		t.Fatalf("Second Up failed: %v", err)
	}

	if err := mgr.Close(); err != nil {
		t.Fatalf("Failed to close migration manager: %v", err)
	}

	mgr2, err := NewMigrationManager(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen migration manager: %v", err)
	}
	defer mgr2.Close()

	version, dirty, err := mgr2.Version()
	if err != nil {
		t.Fatalf("Failed to get migration version: %v", err)
	}

	if dirty {
		t.Error("Database is in dirty state after migrations")
	}

	if version != 1 {
		t.Errorf("Expected migration version 1, got %d", version)
	}

	t.Logf("✅ Migrations completed successfully at version %d", version)
}

func TestMigrationManager_CacheTables(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tables-test.db")

	// Run migrations via config
	config := DefaultConfig(dbPath)
	config.AutoMigrate = true

	db, err := Open(config)
	if err != nil {
		t.Fatalf("Failed to open database with migrations: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"cache_info", "cards", "neighbors"} {
		var tableName string
		err = db.Conn().QueryRow(`
			SELECT name FROM sqlite_master
			WHERE type='table' AND name=?
		`, table).Scan(&tableName)
		if err != nil {
			if err == sql.ErrNoRows {
				t.Fatalf("%s table does not exist after migration", table)
			}
			t.Fatalf("Failed to query for table %s: %v", table, err)
		}
	}

	columns := []string{"card_idx", "rank", "neighbor_idx", "similarity"}
	for _, col := range columns {
		var colInfo string
		err = db.Conn().QueryRow(`
			SELECT name FROM pragma_table_info('neighbors') WHERE name = ?
		`, col).Scan(&colInfo)
		if err != nil {
			if err == sql.ErrNoRows {
				t.Errorf("Column '%s' does not exist in neighbors table", col)
				continue
			}
			t.Errorf("Failed to query column info for '%s': %v", col, err)
		}
	}

	var indexName string
	err = db.Conn().QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='index' AND name = 'idx_neighbors_card'
	`).Scan(&indexName)
	if err != nil {
		if err == sql.ErrNoRows {
			t.Error("Index 'idx_neighbors_card' does not exist")
		} else {
			t.Errorf("Failed to query index: %v", err)
		}
	}
}

func TestMigrationManager_Down(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migration-down-test.db")

	mgr, err := NewMigrationManager(dbPath)
	if err != nil {
		t.Fatalf("Failed to create migration manager: %v", err)
	}
	defer mgr.Close()

	if err := mgr.Up(); err != nil {
		t.Fatalf("Failed to run migrations up: %v", err)
	}

	if err := mgr.Down(); err != nil {
		t.Fatalf("Failed to run migration down: %v", err)
	}

	version, dirty, err := mgr.Version()
	if err != nil {
		t.Fatalf("Failed to get version after down: %v", err)
	}
	if dirty {
		t.Error("Database is in dirty state after rollback")
	}
	if version != 0 {
		t.Errorf("Expected version 0 after rollback, got %d", version)
	}
}

func TestMigrationManager_Version(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "version-test.db")

	mgr, err := NewMigrationManager(dbPath)
	if err != nil {
		t.Fatalf("Failed to create migration manager: %v", err)
	}
	defer mgr.Close()

	// Version on a fresh database reports 0 without error.
	version, dirty, err := mgr.Version()
	if err != nil {
		t.Fatalf("Failed to get version: %v", err)
	}
	if dirty {
		t.Error("Fresh database should not be dirty")
	}
	if version != 0 {
		t.Errorf("Expected version 0 on fresh database, got %d", version)
	}
}
