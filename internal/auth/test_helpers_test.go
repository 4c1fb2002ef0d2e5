package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/nerrad567/sensorhub/internal/infrastructure/database"
	_ "github.com/nerrad567/sensorhub/migrations"
)

// testDB opens a temporary migrated database.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "auth.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db.DB
}

const testSecret = "test-jwt-secret-that-is-32-chars!!"

func testService(t *testing.T) (*Service, *SQLiteUserRepository) {
	t.Helper()
	repo := NewUserRepository(testDB(t))
	return NewService(repo, testSecret, 0), repo
}
