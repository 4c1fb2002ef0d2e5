package feed

import (
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/sensorhub/internal/auth"
	"github.com/nerrad567/sensorhub/internal/channel"
	"github.com/nerrad567/sensorhub/internal/infrastructure/database"
	"github.com/nerrad567/sensorhub/internal/keys"
	"github.com/nerrad567/sensorhub/internal/realtime"
	_ "github.com/nerrad567/sensorhub/migrations"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "feed.db"),
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

// stepClock returns a clock that advances one second per call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(time.Second)
		return now
	}
}

type fixture struct {
	users    *auth.SQLiteUserRepository
	channels *channel.KeyStore
	repo     *SQLiteRepository
	hub      *realtime.Hub
	pipeline *Pipeline
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testDB(t)

	users := auth.NewUserRepository(db)
	issuer, err := keys.NewIssuer(keys.IssuerConfig{Secret: "test-channel-key-secret-32-chars!!", TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	identity := auth.NewService(users, "test-jwt-secret-that-is-32-chars!!", 0)
	channels := channel.NewKeyStore(channel.NewSQLiteRepository(db), issuer, identity)

	repo := NewSQLiteRepository(db)
	repo.now = stepClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	hub := realtime.NewHub()
	pipeline := NewPipeline(repo, channels, hub)
	return &fixture{
		users:    users,
		channels: channels,
		repo:     repo,
		hub:      hub,
		pipeline: pipeline,
		svc:      NewService(repo, channels, pipeline),
	}
}

type seeded struct {
	owner    *auth.User
	channel  string
	readKey  string
	writeKey string
}

// seedChannel creates an owner and a channel, then reissues its keys to
// obtain raw key values.
func (f *fixture) seedChannel(t *testing.T, email string, in channel.CreateInput) seeded {
	t.Helper()
	ctx := context.Background()

	owner := &auth.User{Email: email, FullName: "Owner", PasswordHash: "unused"}
	if err := f.users.Create(ctx, owner); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	if in.Name == "" {
		in.Name = "sensor-1"
	}
	created, err := f.channels.CreateWithKeys(ctx, owner.ID, in)
	if err != nil {
		t.Fatalf("CreateWithKeys() error = %v", err)
	}
	issued, err := f.channels.ReissueKeys(ctx, created.Channel.ID, email)
	if err != nil {
		t.Fatalf("ReissueKeys() error = %v", err)
	}
	return seeded{owner: owner, channel: created.Channel.ID, readKey: issued.ReadKey, writeKey: issued.WriteKey}
}

func floatPtr(f float64) *float64 { return &f }

func inf() float64 { return math.Inf(1) }

func reading(temp, hum float64) Reading {
	return Reading{
		Temperature:          floatPtr(temp),
		Humidity:             floatPtr(hum),
		TemperatureThreshold: floatPtr(30),
		HumidityThreshold:    floatPtr(70),
	}
}

// subscriber registers a realtime client in the room of channelID.
func (f *fixture) subscriber(t *testing.T, id, channelID string) *realtime.Client {
	t.Helper()
	c := realtime.NewClient(id, "", 8)
	f.hub.Register(c)
	if err := f.hub.Join(c, channelID); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	t.Cleanup(func() { f.hub.Unregister(c) })
	return c
}

func pending(c *realtime.Client) int {
	n := 0
	for {
		select {
		case _, ok := <-c.Send():
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}
