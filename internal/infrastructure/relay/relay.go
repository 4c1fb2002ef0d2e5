package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/sensorhub/internal/infrastructure/config"
	"github.com/nerrad567/sensorhub/internal/realtime"
)

// Local is the node-local room fan-out, normally *realtime.Hub.
type Local interface {
	Deliver(channelID string, data []byte) int
}

// Logger defines the logging interface used by the relay.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Envelope is the message carried on the Redis channel.
type Envelope struct {
	ChannelID string          `json:"channel_id"`
	Feed      json.RawMessage `json:"feed"`
}

// Relay implements the feed broadcaster on top of Redis pub/sub.
type Relay struct {
	client *redis.Client
	topic  string
	local  Local
	logger Logger
}

// New connects to the Redis server described by cfg.
func New(cfg config.RedisConfig, local Local) *Relay {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(client, cfg.Channel, local)
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, topic string, local Local) *Relay {
	return &Relay{client: client, topic: topic, local: local, logger: noopLogger{}}
}

// SetLogger sets the logger for the relay.
func (r *Relay) SetLogger(logger Logger) {
	r.logger = logger
}

// Ping checks the Redis connection.
func (r *Relay) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (r *Relay) Close() error {
	return r.client.Close()
}

// Publish sends payload to every node. On a Redis failure the event is
// delivered locally instead and the failure is only logged.
func (r *Relay) Publish(ctx context.Context, channelID string, payload any) error {
	feed, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding feed: %w", err)
	}
	msg, err := json.Marshal(Envelope{ChannelID: channelID, Feed: feed})
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	if err := r.client.Publish(ctx, r.topic, msg).Err(); err != nil {
		r.logger.Warn("redis publish failed, delivering locally", "channel_id", channelID, "error", err)
		return r.deliver(channelID, feed)
	}
	return nil
}

// Run subscribes to the relay channel and delivers every envelope into the
// local rooms until ctx is cancelled. ready, if non-nil, is closed once the
// subscription is confirmed.
func (r *Relay) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := r.client.Subscribe(ctx, r.topic)
	defer sub.Close() //nolint:errcheck // best-effort on shutdown

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", r.topic, err)
	}
	r.logger.Info("redis relay subscribed", "channel", r.topic)
	if ready != nil {
		close(ready)
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return errors.New("redis subscription closed")
			}
			r.handle(m.Payload)
		}
	}
}

func (r *Relay) handle(raw string) {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil || env.ChannelID == "" {
		r.logger.Warn("ignoring malformed relay envelope", "error", err)
		return
	}
	if err := r.deliver(env.ChannelID, env.Feed); err != nil {
		r.logger.Warn("relay delivery failed", "channel_id", env.ChannelID, "error", err)
	}
}

func (r *Relay) deliver(channelID string, feed json.RawMessage) error {
	frame, err := realtime.EncodeEvent(channelID, feed)
	if err != nil {
		return err
	}
	n := r.local.Deliver(channelID, frame)
	r.logger.Debug("relay delivered", "channel_id", channelID, "recipients", n)
	return nil
}
