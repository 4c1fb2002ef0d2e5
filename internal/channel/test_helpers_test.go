package channel

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/sensorhub/internal/auth"
	"github.com/nerrad567/sensorhub/internal/infrastructure/database"
	"github.com/nerrad567/sensorhub/internal/keys"
	_ "github.com/nerrad567/sensorhub/migrations"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "channel.db"),
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

type fixture struct {
	db    *sql.DB
	repo  *SQLiteRepository
	users *auth.SQLiteUserRepository
	store *KeyStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testDB(t)
	users := auth.NewUserRepository(db)
	issuer, err := keys.NewIssuer(keys.IssuerConfig{Secret: "test-channel-key-secret-32-chars!!", TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	repo := NewSQLiteRepository(db)
	return &fixture{
		db:    db,
		repo:  repo,
		users: users,
		store: NewKeyStore(repo, issuer, auth.NewService(users, "test-jwt-secret-that-is-32-chars!!", 0)),
	}
}

// seedUser inserts an owner without going through password hashing.
func (f *fixture) seedUser(t *testing.T, email string) *auth.User {
	t.Helper()
	u := &auth.User{Email: email, FullName: "Owner " + email, PasswordHash: "unused"}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	return u
}

func floatPtr(f float64) *float64 { return &f }
