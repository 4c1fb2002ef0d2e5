package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nerrad567/sensorhub/internal/apperr"
	"github.com/nerrad567/sensorhub/internal/channel"
)

type failingBroadcaster struct {
	calls int
}

func (b *failingBroadcaster) Publish(context.Context, string, any) error {
	b.calls++
	return errors.New("relay unavailable")
}

type recordingSink struct {
	name string
	err  error

	mu    sync.Mutex
	feeds []string
	alive []bool
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(ctx context.Context, f *Populated) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeds = append(s.feeds, f.ID)
	s.alive = append(s.alive, ctx.Err() == nil)
	return s.err
}

type captureLogger struct {
	noopLogger
	mu    sync.Mutex
	warns []string
}

func (l *captureLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

// stubChannels admits everything and knows one channel.
type stubChannels struct {
	c *channel.Channel
}

func (s stubChannels) Get(_ context.Context, id string) (*channel.Channel, error) {
	if s.c == nil || id != s.c.ID {
		return nil, apperr.NotFound("channel not found")
	}
	return s.c, nil
}

func (s stubChannels) RequireOwner(ctx context.Context, id, _ string) (*channel.Channel, error) {
	return s.Get(ctx, id)
}

func (stubChannels) VerifyReadKey(context.Context, string, string) (bool, error)  { return true, nil }
func (stubChannels) VerifyWriteKey(context.Context, string, string) (bool, error) { return true, nil }

func TestPipeline_BroadcastFailureDoesNotFailCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seedChannel(t, "owner@example.com", channel.CreateInput{})

	b := &failingBroadcaster{}
	logger := &captureLogger{}
	p := NewPipeline(f.repo, f.channels, b)
	p.SetLogger(logger)

	got, err := p.Create(ctx, s.channel, reading(20, 50))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if b.calls != 1 {
		t.Errorf("Publish calls = %d, want 1", b.calls)
	}
	if _, err := f.repo.GetByID(ctx, got.ID); err != nil {
		t.Errorf("feed not persisted: %v", err)
	}
	if len(logger.warns) != 1 {
		t.Errorf("warnings = %v, want one broadcast warning", logger.warns)
	}
}

func TestPipeline_Sinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seedChannel(t, "owner@example.com", channel.CreateInput{})

	ok := &recordingSink{name: "ok"}
	broken := &recordingSink{name: "broken", err: fmt.Errorf("influx down")}
	logger := &captureLogger{}
	p := NewPipeline(f.repo, f.channels, nil)
	p.SetLogger(logger)
	p.AddSink(broken)
	p.AddSink(ok)

	got, err := p.Create(ctx, s.channel, reading(20, 50))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for _, sink := range []*recordingSink{ok, broken} {
		if len(sink.feeds) != 1 || sink.feeds[0] != got.ID {
			t.Errorf("sink %s saw %v, want [%s]", sink.name, sink.feeds, got.ID)
		}
		if len(sink.alive) != 1 || !sink.alive[0] {
			t.Errorf("sink %s got a dead context", sink.name)
		}
	}
	if len(logger.warns) != 1 {
		t.Errorf("warnings = %v, want one sink warning", logger.warns)
	}
}

func TestPipeline_StorageFailureIsInternal(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	b := &failingBroadcaster{}
	channels := stubChannels{c: &channel.Channel{ID: "chn-1", Name: "sensor-1"}}
	p := NewPipeline(NewSQLiteRepository(db), channels, b)

	_, err = p.Create(context.Background(), "chn-1", reading(20, 50))
	if !errors.Is(err, apperr.ErrInternal) {
		t.Fatalf("error = %v, want Internal", err)
	}
	if msg := apperr.MessageOf(err); msg != "failed to store feed" {
		t.Errorf("message = %q, storage detail leaked?", msg)
	}
	if b.calls != 0 {
		t.Errorf("Publish calls = %d, want 0", b.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPipeline_ValidationBeforeStorage(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	b := &failingBroadcaster{}
	channels := stubChannels{c: &channel.Channel{ID: "chn-1"}}
	p := NewPipeline(NewSQLiteRepository(db), channels, b)

	_, err = p.Create(context.Background(), "chn-1", Reading{Temperature: floatPtr(1)})
	if apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Fatalf("error = %v, want InvalidInput", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("storage touched: %v", err)
	}
	if b.calls != 0 {
		t.Errorf("Publish calls = %d, want 0", b.calls)
	}
}
