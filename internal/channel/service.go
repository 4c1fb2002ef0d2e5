package channel

import (
	"context"
	"errors"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nerrad567/sensorhub/internal/apperr"
	"github.com/nerrad567/sensorhub/internal/auth"
	"github.com/nerrad567/sensorhub/internal/infrastructure/metrics"
	"github.com/nerrad567/sensorhub/internal/keys"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 1000

	// maxReissueAttempts bounds the compare-and-swap retry loop.
	maxReissueAttempts = 3
)

// Logger defines the logging interface used by the key store.
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

// UserLookup is the identity collaborator. Errors follow apperr kinds.
type UserLookup interface {
	LookupByID(ctx context.Context, id string) (*auth.User, error)
}

// EventRecorder receives audit events for key and channel lifecycle changes.
type EventRecorder interface {
	Record(action, channelID, userID string, details map[string]any)
}

type noopRecorder struct{}

func (noopRecorder) Record(string, string, string, map[string]any) {}

// KeyStore owns channel lifecycle and key verification.
type KeyStore struct {
	repo   Repository
	issuer *keys.Issuer
	users  UserLookup
	logger Logger
	events EventRecorder
}

// NewKeyStore wires a KeyStore.
func NewKeyStore(repo Repository, issuer *keys.Issuer, users UserLookup) *KeyStore {
	return &KeyStore{
		repo:   repo,
		issuer: issuer,
		users:  users,
		logger: noopLogger{},
		events: noopRecorder{},
	}
}

// SetLogger sets the logger for the key store.
func (s *KeyStore) SetLogger(logger Logger) {
	s.logger = logger
}

// SetEventRecorder sets the audit sink.
func (s *KeyStore) SetEventRecorder(r EventRecorder) {
	s.events = r
}

// CreateWithKeys creates a channel for ownerID with a fresh key pair.
// The result carries digests only; the raw keys are discarded.
func (s *KeyStore) CreateWithKeys(ctx context.Context, ownerID string, in CreateInput) (*Created, error) {
	name := strings.TrimSpace(in.Name)
	if err := validateAttrs(name, in.Description, in.TemperatureThreshold, in.HumidityThreshold); err != nil {
		return nil, err
	}

	owner, err := s.users.LookupByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	c := &Channel{
		ID:                   uuid.NewString(),
		Name:                 name,
		Description:          strings.TrimSpace(in.Description),
		OwnerUserID:          owner.ID,
		TemperatureThreshold: in.TemperatureThreshold,
		HumidityThreshold:    in.HumidityThreshold,
		KeyVersion:           1,
	}

	pair, err := s.issuer.IssuePair(c.ID, owner.Email)
	if err != nil {
		s.logger.Error("issuing channel keys failed", "channel_id", c.ID, "error", err)
		return nil, apperr.Internal("failed to create channel", err)
	}
	c.ReadKeyHash, c.WriteKeyHash = pair.ReadDigest(), pair.WriteDigest()

	if err := s.repo.Create(ctx, c); err != nil {
		s.logger.Error("storing channel failed", "channel_id", c.ID, "error", err)
		return nil, apperr.Internal("failed to create channel", err)
	}

	s.logger.Info("channel created", "channel_id", c.ID, "owner_id", owner.ID)
	s.events.Record("channel.create", c.ID, owner.ID, map[string]any{"name": c.Name})
	s.events.Record("keys.issue", c.ID, owner.ID, map[string]any{"key_version": c.KeyVersion})

	return &Created{
		Channel: c.view(owner.Profile()),
		Keys:    KeyDigests{ReadKeyDigest: rehash(c.ReadKeyHash), WriteKeyDigest: rehash(c.WriteKeyHash)},
	}, nil
}

// ReissueKeys replaces both keys of channelID. ownerEmail must match the
// channel owner's email. The previous keys stop verifying immediately.
func (s *KeyStore) ReissueKeys(ctx context.Context, channelID, ownerEmail string) (*IssuedKeys, error) {
	c, err := s.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}

	owner, err := s.users.LookupByID(ctx, c.OwnerUserID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(ownerEmail), owner.Email) {
		return nil, apperr.Unauthorized("email does not match the channel owner")
	}

	for attempt := 1; ; attempt++ {
		pair, err := s.issuer.IssuePair(c.ID, owner.Email)
		if err != nil {
			s.logger.Error("issuing channel keys failed", "channel_id", c.ID, "error", err)
			return nil, apperr.Internal("failed to issue keys", err)
		}

		readHash, writeHash := pair.ReadDigest(), pair.WriteDigest()
		version, err := s.repo.SetKeys(ctx, c.ID, c.KeyVersion, readHash, writeHash)
		switch {
		case err == nil:
			s.logger.Info("channel keys reissued", "channel_id", c.ID, "key_version", version)
			s.events.Record("keys.reissue", c.ID, owner.ID, map[string]any{"key_version": version})
			return &IssuedKeys{
				KeyDigests: KeyDigests{ReadKeyDigest: rehash(readHash), WriteKeyDigest: rehash(writeHash)},
				ReadKey:    pair.ReadKey,
				WriteKey:   pair.WriteKey,
				KeyVersion: version,
				ExpiresAt:  pair.ExpiresAt,
			}, nil
		case errors.Is(err, ErrChannelNotFound):
			return nil, apperr.NotFound("channel not found")
		case errors.Is(err, ErrVersionConflict) && attempt < maxReissueAttempts:
			s.logger.Debug("key reissue raced, retrying", "channel_id", c.ID, "attempt", attempt)
			if c, err = s.Get(ctx, channelID); err != nil {
				return nil, err
			}
		default:
			s.logger.Error("storing channel keys failed", "channel_id", c.ID, "error", err)
			return nil, apperr.Internal("failed to issue keys", err)
		}
	}
}

// VerifyReadKey reports whether rawReadKey is the current read key of channelID.
func (s *KeyStore) VerifyReadKey(ctx context.Context, channelID, rawReadKey string) (bool, error) {
	return s.verify(ctx, channelID, rawReadKey, keys.RoleRead)
}

// VerifyWriteKey reports whether rawWriteKey is the current write key of channelID.
func (s *KeyStore) VerifyWriteKey(ctx context.Context, channelID, rawWriteKey string) (bool, error) {
	return s.verify(ctx, channelID, rawWriteKey, keys.RoleWrite)
}

func (s *KeyStore) verify(ctx context.Context, channelID, raw string, role keys.Role) (bool, error) {
	c, err := s.Get(ctx, channelID)
	if err != nil {
		return false, err
	}

	stored := c.ReadKeyHash
	if role == keys.RoleWrite {
		stored = c.WriteKeyHash
	}
	ok := stored != "" && keys.Verify(raw, stored) && s.claimsMatch(raw, channelID, role)
	metrics.KeyVerifications.WithLabelValues(string(role), metrics.Result(ok)).Inc()
	return ok, nil
}

// claimsMatch checks a key whose digest is already known to be current:
// the signature must hold, it must not have expired, and it must name this
// channel and role.
func (s *KeyStore) claimsMatch(raw, channelID string, role keys.Role) bool {
	claims, err := s.issuer.Parse(raw)
	if err != nil {
		s.logger.Debug("channel key rejected", "channel_id", channelID, "role", role, "error", err)
		return false
	}
	return claims.ChannelID == channelID && claims.Role == role
}

// Get returns the stored channel record. Callers must not expose its hashes.
func (s *KeyStore) Get(ctx context.Context, channelID string) (*Channel, error) {
	c, err := s.repo.GetByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, ErrChannelNotFound) {
			return nil, apperr.NotFound("channel not found")
		}
		s.logger.Error("loading channel failed", "channel_id", channelID, "error", err)
		return nil, apperr.Internal("failed to load channel", err)
	}
	return c, nil
}

// RequireOwner returns the channel if userID owns it.
func (s *KeyStore) RequireOwner(ctx context.Context, channelID, userID string) (*Channel, error) {
	c, err := s.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if c.OwnerUserID != userID {
		return nil, apperr.Unauthorized("channel is not owned by caller")
	}
	return c, nil
}

// FindByID returns the response view of a channel with its owner populated.
func (s *KeyStore) FindByID(ctx context.Context, channelID string) (*View, error) {
	c, err := s.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	owner, err := s.users.LookupByID(ctx, c.OwnerUserID)
	if err != nil {
		return nil, err
	}
	v := c.view(owner.Profile())
	return &v, nil
}

// FindAllForOwner returns every channel of ownerID, oldest first.
func (s *KeyStore) FindAllForOwner(ctx context.Context, ownerID string) ([]View, error) {
	owner, err := s.users.LookupByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	channels, err := s.repo.ListByOwner(ctx, owner.ID)
	if err != nil {
		s.logger.Error("listing channels failed", "owner_id", owner.ID, "error", err)
		return nil, apperr.Internal("failed to list channels", err)
	}

	views := make([]View, 0, len(channels))
	for i := range channels {
		views = append(views, channels[i].view(owner.Profile()))
	}
	return views, nil
}

// Update applies a bounded patch to a channel owned by userID.
func (s *KeyStore) Update(ctx context.Context, userID, channelID string, p Patch) (*View, error) {
	c, err := s.RequireOwner(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}

	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		c.Description = strings.TrimSpace(*p.Description)
	}
	if p.TemperatureThreshold != nil {
		c.TemperatureThreshold = p.TemperatureThreshold
	}
	if p.HumidityThreshold != nil {
		c.HumidityThreshold = p.HumidityThreshold
	}
	if err := validateAttrs(c.Name, c.Description, c.TemperatureThreshold, c.HumidityThreshold); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, c); err != nil {
		if errors.Is(err, ErrChannelNotFound) {
			return nil, apperr.NotFound("channel not found")
		}
		s.logger.Error("updating channel failed", "channel_id", c.ID, "error", err)
		return nil, apperr.Internal("failed to update channel", err)
	}
	s.events.Record("channel.update", c.ID, userID, nil)

	return s.FindByID(ctx, c.ID)
}

func validateAttrs(name, description string, thresholds ...*float64) error {
	if name == "" {
		return apperr.InvalidInput("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return apperr.InvalidInput("name must be at most %d characters", maxNameLength)
	}
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return apperr.InvalidInput("description must be at most %d characters", maxDescriptionLength)
	}
	for _, t := range thresholds {
		if t != nil && (math.IsNaN(*t) || math.IsInf(*t, 0)) {
			return apperr.InvalidInput("thresholds must be finite numbers")
		}
	}
	return nil
}
