package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/sensorhub/internal/apperr"
	"github.com/nerrad567/sensorhub/internal/feed"
	"github.com/nerrad567/sensorhub/internal/infrastructure/mqtt"
)

// ingestTimeout bounds the handling of one ingest message.
const ingestTimeout = 10 * time.Second

// Bus is the subset of *mqtt.Client the bridge uses.
type Bus interface {
	SubscribeIngest(handler mqtt.IngestHandler) error
	UnsubscribeIngest() error
	PublishAck(channelID string, v any) error
	PublishFeed(channelID string, v any) error
}

// Ingester admits readings with a write key, normally *feed.Service.
type Ingester interface {
	IngestWithWriteKey(ctx context.Context, path, channelID, writeKey string, r feed.Reading) (*feed.Populated, error)
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Ingest turns MQTT ingest messages into feeds.
type Ingest struct {
	bus    Bus
	feeds  Ingester
	logger Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewIngest creates an MQTT ingest bridge.
func NewIngest(bus Bus, feeds Ingester) *Ingest {
	return &Ingest{bus: bus, feeds: feeds, logger: noopLogger{}}
}

// SetLogger sets the logger for the bridge.
func (b *Ingest) SetLogger(logger Logger) {
	b.logger = logger
}

// Start subscribes to every channel's ingest topic. Messages are handled
// until Stop is called or ctx is cancelled.
func (b *Ingest) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	if err := b.bus.SubscribeIngest(b.handle); err != nil {
		b.cancel()
		return fmt.Errorf("subscribing to channel ingest: %w", err)
	}
	b.logger.Info("mqtt ingest bridge started")
	return nil
}

// Stop unsubscribes from the ingest topics.
func (b *Ingest) Stop() error {
	if b.cancel == nil {
		return nil
	}
	b.cancel()
	return b.bus.UnsubscribeIngest()
}

// handle processes one ingest message. Only transport problems are
// returned; ingestion failures are answered on the ack topic.
func (b *Ingest) handle(channelID string, payload []byte) error {
	var msg IngestMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.logger.Debug("malformed ingest message", "channel_id", channelID, "error", err)
		return b.ack(channelID, AckMessage{
			Status: AckFailed,
			Error:  &AckError{Code: apperr.KindInvalidInput.String(), Message: "payload is not valid JSON"},
		})
	}

	ctx, cancel := context.WithTimeout(b.ctx, ingestTimeout)
	defer cancel()

	created, err := b.feeds.IngestWithWriteKey(ctx, feed.PathMQTT, channelID, msg.WriteKey, msg.Reading)
	if err != nil {
		b.logger.Debug("mqtt ingest rejected", "channel_id", channelID, "error", err)
		return b.ack(channelID, AckMessage{
			ID:     msg.ID,
			Status: AckFailed,
			Error:  &AckError{Code: apperr.KindOf(err).String(), Message: apperr.MessageOf(err)},
		})
	}

	return b.ack(channelID, AckMessage{
		ID:     msg.ID,
		Status: AckAccepted,
		FeedID: created.ID,
		Seq:    created.Seq,
	})
}

func (b *Ingest) ack(channelID string, a AckMessage) error {
	a.ChannelID = channelID
	a.Timestamp = time.Now().UTC()
	if err := b.bus.PublishAck(channelID, a); err != nil {
		return fmt.Errorf("publishing ack: %w", err)
	}
	return nil
}
