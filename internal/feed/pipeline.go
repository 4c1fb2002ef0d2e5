package feed

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/sensorhub/internal/apperr"
)

// sinkTimeout bounds each mirror sink write.
const sinkTimeout = 2 * time.Second

// Logger defines the logging interface used by the pipeline.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Broadcaster pushes a newly created feed to the channel's room.
type Broadcaster interface {
	Publish(ctx context.Context, channelID string, payload any) error
}

// Sink mirrors created feeds to an external system.
type Sink interface {
	Name() string
	Write(ctx context.Context, f *Populated) error
}

// Pipeline persists admitted readings and fans them out.
type Pipeline struct {
	repo        Repository
	channels    ChannelStore
	broadcaster Broadcaster
	sinks       []Sink
	logger      Logger
}

// NewPipeline creates a Pipeline. broadcaster may be nil.
func NewPipeline(repo Repository, channels ChannelStore, broadcaster Broadcaster) *Pipeline {
	return &Pipeline{
		repo:        repo,
		channels:    channels,
		broadcaster: broadcaster,
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the pipeline.
func (p *Pipeline) SetLogger(logger Logger) {
	p.logger = logger
}

// AddSink registers a best-effort mirror.
func (p *Pipeline) AddSink(s Sink) {
	p.sinks = append(p.sinks, s)
}

// Create validates, persists and publishes one reading for an admitted
// channel. Omitted thresholds are taken from the channel when it has them
// and stay absent otherwise. Persistence
// happens before publication. Publication and sink failures are logged,
// not returned.
func (p *Pipeline) Create(ctx context.Context, channelID string, r Reading) (*Populated, error) {
	c, err := p.channels.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if r.TemperatureThreshold == nil {
		r.TemperatureThreshold = c.TemperatureThreshold
	}
	if r.HumidityThreshold == nil {
		r.HumidityThreshold = c.HumidityThreshold
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	f := &Feed{
		ChannelID:            channelID,
		Temperature:          *r.Temperature,
		Humidity:             *r.Humidity,
		TemperatureThreshold: r.TemperatureThreshold,
		HumidityThreshold:    r.HumidityThreshold,
	}
	if err := p.repo.Insert(ctx, f); err != nil {
		p.logger.Error("storing feed failed", "channel_id", channelID, "error", err)
		return nil, apperr.Internal("failed to store feed", err)
	}

	populated, err := p.load(ctx, f.ID)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("feed stored", "channel_id", channelID, "feed_id", f.ID, "seq", f.Seq)

	// The reading is durable from here on; nothing below can fail the call.
	if p.broadcaster != nil {
		if err := p.broadcaster.Publish(context.WithoutCancel(ctx), channelID, populated); err != nil {
			p.logger.Warn("broadcasting feed failed", "channel_id", channelID, "feed_id", f.ID, "error", err)
		}
	}
	for _, s := range p.sinks {
		sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
		if err := s.Write(sinkCtx, populated); err != nil {
			p.logger.Warn("feed sink failed", "sink", s.Name(), "feed_id", f.ID, "error", err)
		}
		cancel()
	}

	return populated, nil
}

// load reads a feed back with its channel attached.
func (p *Pipeline) load(ctx context.Context, feedID string) (*Populated, error) {
	f, err := p.repo.GetByID(ctx, feedID)
	if err != nil {
		if errors.Is(err, ErrFeedNotFound) {
			return nil, apperr.NotFound("feed not found")
		}
		p.logger.Error("loading feed failed", "feed_id", feedID, "error", err)
		return nil, apperr.Internal("failed to load feed", err)
	}
	c, err := p.channels.Get(ctx, f.ChannelID)
	if err != nil {
		return nil, err
	}
	return &Populated{Feed: *f, Channel: c.Summary()}, nil
}
