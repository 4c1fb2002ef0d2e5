package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/sensorhub/internal/audit"
	"github.com/nerrad567/sensorhub/internal/auth"
	"github.com/nerrad567/sensorhub/internal/channel"
	"github.com/nerrad567/sensorhub/internal/feed"
	"github.com/nerrad567/sensorhub/internal/infrastructure/config"
	"github.com/nerrad567/sensorhub/internal/infrastructure/database"
	"github.com/nerrad567/sensorhub/internal/infrastructure/logging"
	"github.com/nerrad567/sensorhub/internal/keys"
	"github.com/nerrad567/sensorhub/internal/realtime"
	_ "github.com/nerrad567/sensorhub/migrations"
)

const (
	testJWTSecret     = "test-jwt-secret-that-is-32-chars!!"
	testChannelSecret = "test-channel-key-secret-32-chars!!"
	testPassword      = "correct-horse-battery"
)

// setupTestDB opens a temporary migrated database.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "api.db"),
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
	return db
}

type testEnv struct {
	srv     *Server
	ts      *httptest.Server
	db      *sql.DB
	hub     *realtime.Hub
	auditDB *audit.SQLiteRepository
	events  *audit.Recorder
}

// testServer wires a Server to real services over a temporary database and
// mounts it on an httptest listener. opts adjust the Deps before New.
func testServer(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	log := logging.Discard()

	users := auth.NewUserRepository(db.DB)
	identity := auth.NewService(users, testJWTSecret, time.Hour)

	issuer, err := keys.NewIssuer(keys.IssuerConfig{Secret: testChannelSecret, TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewIssuer() error: %v", err)
	}
	channels := channel.NewKeyStore(channel.NewSQLiteRepository(db.DB), issuer, identity)

	auditRepo := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditRepo, 64)
	recorder.Start()
	t.Cleanup(recorder.Close)
	channels.SetEventRecorder(recorder)

	hub := realtime.NewHub()
	hubCtx, cancel := context.WithCancel(context.Background())
	go hub.Run(hubCtx)
	t.Cleanup(cancel)

	feedRepo := feed.NewSQLiteRepository(db.DB)
	pipeline := feed.NewPipeline(feedRepo, channels, hub)
	feeds := feed.NewService(feedRepo, channels, pipeline)

	deps := Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:   log,
		Auth:     identity,
		Channels: channels,
		Feeds:    feeds,
		Hub:      hub,
		Audit:    auditRepo,
		DB:       db.DB,
		Version:  "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{srv: srv, ts: ts, db: db.DB, hub: hub, auditDB: auditRepo, events: recorder}
}

// do sends a JSON request and returns the response with its body read.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		if raw, ok := body.(string); ok {
			reader = bytes.NewBufferString(raw)
		} else {
			data, err := json.Marshal(body)
			if err != nil {
				t.Fatalf("marshal request: %v", err)
			}
			reader = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp, data
}

// expect asserts the status code and decodes the body into T.
func expect[T any](t *testing.T, resp *http.Response, body []byte, status int) T {
	t.Helper()
	var out T
	if resp.StatusCode != status {
		t.Fatalf("status = %d, want %d; body = %s", resp.StatusCode, status, body)
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			t.Fatalf("decoding body %s: %v", body, err)
		}
	}
	return out
}

// expectError asserts an error response with the given status and code.
func expectError(t *testing.T, resp *http.Response, body []byte, status int, code string) ErrorBody {
	t.Helper()
	got := expect[ErrorResponse](t, resp, body, status)
	if got.Error.Code != code {
		t.Fatalf("error code = %q, want %q (message %q)", got.Error.Code, code, got.Error.Message)
	}
	return got.Error
}

// registerOwner creates an account and returns its access token.
func (e *testEnv) registerOwner(t *testing.T, email string) string {
	t.Helper()

	resp, body := e.do(t, http.MethodPost, "/api/v1/auth/register", "", registerRequest{
		Email:    email,
		FullName: "Owner",
		Password: testPassword,
	})
	expect[auth.User](t, resp, body, http.StatusCreated)

	resp, body = e.do(t, http.MethodPost, "/api/v1/auth/login", "", loginRequest{Email: email, Password: testPassword})
	login := expect[loginResponse](t, resp, body, http.StatusOK)
	if login.AccessToken == "" {
		t.Fatal("login returned empty access token")
	}
	return login.AccessToken
}

// createChannel creates a channel and returns its id.
func (e *testEnv) createChannel(t *testing.T, token string, in channel.CreateInput) string {
	t.Helper()
	if in.Name == "" {
		in.Name = "greenhouse"
	}
	resp, body := e.do(t, http.MethodPost, "/api/v1/channels", token, in)
	created := expect[channel.Created](t, resp, body, http.StatusCreated)
	return created.Channel.ID
}

// issueKeys reissues a channel's keys and returns the raw values.
func (e *testEnv) issueKeys(t *testing.T, token, channelID, email string) channel.IssuedKeys {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/v1/channels/"+channelID+"/keys", token, issueKeysRequest{Email: email})
	return expect[channel.IssuedKeys](t, resp, body, http.StatusOK)
}

type ownedChannel struct {
	token    string
	id       string
	readKey  string
	writeKey string
}

// seedChannel registers email, creates a channel with thresholds 30/70 and
// fetches its raw keys.
func (e *testEnv) seedChannel(t *testing.T, email string) ownedChannel {
	t.Helper()
	token := e.registerOwner(t, email)
	id := e.createChannel(t, token, channel.CreateInput{
		Name:                 "greenhouse",
		TemperatureThreshold: floatPtr(30),
		HumidityThreshold:    floatPtr(70),
	})
	issued := e.issueKeys(t, token, id, email)
	return ownedChannel{token: token, id: id, readKey: issued.ReadKey, writeKey: issued.WriteKey}
}

// ingest posts a two-field reading with the write key.
func (e *testEnv) ingest(t *testing.T, ch ownedChannel, temp, hum float64) feed.Populated {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/v1/feeds/ingest", "", map[string]any{
		"channel_id":  ch.id,
		"write_key":   ch.writeKey,
		"temperature": temp,
		"humidity":    hum,
	})
	return expect[feed.Populated](t, resp, body, http.StatusCreated)
}

func floatPtr(f float64) *float64 { return &f }

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
