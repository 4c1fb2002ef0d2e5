package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nerrad567/sensorhub/internal/infrastructure/database"
	_ "github.com/nerrad567/sensorhub/migrations"
)

// TestMigrate_EmbeddedSchema applies the schema compiled into the binary,
// which is embedded at the root of its FS rather than in a subdirectory.
func TestMigrate_EmbeddedSchema(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "schema.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
	if len(applied) < 4 {
		t.Fatalf("applied = %d, want at least 4", len(applied))
	}

	for _, table := range []string{"users", "channels", "feeds", "audit_logs"} {
		var name string
		err := db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}
