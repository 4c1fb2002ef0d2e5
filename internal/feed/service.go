package feed

import (
	"context"
	"errors"

	"github.com/nerrad567/sensorhub/internal/apperr"
	"github.com/nerrad567/sensorhub/internal/channel"
	"github.com/nerrad567/sensorhub/internal/infrastructure/metrics"
)

// Ingestion paths, used as metric labels.
const (
	PathWriteKey = "write_key"
	PathOwner    = "owner"
	PathMQTT     = "mqtt"
)

// Service is the entry point for transports. It pairs every operation with
// the right admission check.
type Service struct {
	authz    *Authorizer
	pipeline *Pipeline
	repo     Repository
	channels ChannelStore
	logger   Logger
}

// NewService creates a feed Service.
func NewService(repo Repository, channels ChannelStore, pipeline *Pipeline) *Service {
	return &Service{
		authz:    NewAuthorizer(channels),
		pipeline: pipeline,
		repo:     repo,
		channels: channels,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// IngestWithWriteKey is the device path. path labels the transport
// (PathWriteKey or PathMQTT).
func (s *Service) IngestWithWriteKey(ctx context.Context, path, channelID, writeKey string, r Reading) (*Populated, error) {
	if err := s.authz.AdmitWriteKey(ctx, channelID, writeKey); err != nil {
		s.reject(err)
		return nil, err
	}
	return s.create(ctx, path, channelID, r)
}

// IngestAsOwner is the authenticated owner path.
func (s *Service) IngestAsOwner(ctx context.Context, userID, channelID string, r Reading) (*Populated, error) {
	if err := s.authz.AdmitOwner(ctx, userID, channelID); err != nil {
		s.reject(err)
		return nil, err
	}
	return s.create(ctx, PathOwner, channelID, r)
}

func (s *Service) create(ctx context.Context, path, channelID string, r Reading) (*Populated, error) {
	f, err := s.pipeline.Create(ctx, channelID, r)
	if err != nil {
		s.reject(err)
		return nil, err
	}
	metrics.FeedsIngested.WithLabelValues(path).Inc()
	return f, nil
}

func (s *Service) reject(err error) {
	metrics.IngestRejections.WithLabelValues(apperr.KindOf(err).String()).Inc()
}

// ListWithReadKey lists a channel's history for a read-key holder.
func (s *Service) ListWithReadKey(ctx context.Context, channelID, readKey string, opts ListOptions) (*Page, error) {
	if err := s.authz.AdmitReadKey(ctx, channelID, readKey); err != nil {
		return nil, err
	}
	return s.list(ctx, channelID, opts)
}

// ListForOwner lists a channel's history for its owner.
func (s *Service) ListForOwner(ctx context.Context, userID, channelID string, opts ListOptions) (*Page, error) {
	if err := s.authz.AdmitOwner(ctx, userID, channelID); err != nil {
		return nil, err
	}
	return s.list(ctx, channelID, opts)
}

func (s *Service) list(ctx context.Context, channelID string, opts ListOptions) (*Page, error) {
	opts, params, err := opts.normalise()
	if err != nil {
		return nil, err
	}

	c, err := s.channels.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}

	feeds, total, err := s.repo.List(ctx, channelID, params)
	if err != nil {
		s.logger.Error("listing feeds failed", "channel_id", channelID, "error", err)
		return nil, apperr.Internal("failed to list feeds", err)
	}

	summary := c.Summary()
	items := make([]Populated, 0, len(feeds))
	for _, f := range feeds {
		items = append(items, Populated{Feed: f, Channel: summary})
	}

	return &Page{
		Items: items,
		Pagination: Pagination{
			TotalDocuments: total,
			TotalPages:     totalPages(total, opts.Size),
			Page:           opts.Page,
			Size:           opts.Size,
			SortBy:         opts.SortBy,
			OrderBy:        opts.OrderBy,
		},
	}, nil
}

// GetWithReadKey returns one feed if readKey opens its channel.
func (s *Service) GetWithReadKey(ctx context.Context, feedID, readKey string) (*Populated, error) {
	f, err := s.pipeline.load(ctx, feedID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.AdmitReadKey(ctx, f.ChannelID, readKey); err != nil {
		return nil, err
	}
	return f, nil
}

// GetForOwner returns one feed if userID owns its channel.
func (s *Service) GetForOwner(ctx context.Context, userID, feedID string) (*Populated, error) {
	f, err := s.pipeline.load(ctx, feedID)
	if err != nil {
		return nil, err
	}
	if f.Channel.OwnerUserID != userID {
		return nil, apperr.Unauthorized("channel is not owned by caller")
	}
	return f, nil
}

// CurrentThresholds returns the thresholds of the latest reading, falling
// back to the channel's configured thresholds when it has no readings or
// the latest reading recorded none.
func (s *Service) CurrentThresholds(ctx context.Context, channelID, readKey string) (*Thresholds, error) {
	if err := s.authz.AdmitReadKey(ctx, channelID, readKey); err != nil {
		return nil, err
	}

	latest, err := s.repo.Latest(ctx, channelID)
	switch {
	case err == nil:
		if latest.TemperatureThreshold != nil || latest.HumidityThreshold != nil {
			return &Thresholds{
				ChannelID:            channelID,
				TemperatureThreshold: latest.TemperatureThreshold,
				HumidityThreshold:    latest.HumidityThreshold,
				Source:               "feed",
			}, nil
		}
	case !errors.Is(err, ErrFeedNotFound):
		s.logger.Error("loading latest feed failed", "channel_id", channelID, "error", err)
		return nil, apperr.Internal("failed to load thresholds", err)
	}

	c, err := s.channels.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return channelThresholds(c)
}

func channelThresholds(c *channel.Channel) (*Thresholds, error) {
	if c.TemperatureThreshold == nil && c.HumidityThreshold == nil {
		return nil, apperr.NotFound("no thresholds recorded for channel")
	}
	return &Thresholds{
		ChannelID:            c.ID,
		TemperatureThreshold: c.TemperatureThreshold,
		HumidityThreshold:    c.HumidityThreshold,
		Source:               "channel",
	}, nil
}
