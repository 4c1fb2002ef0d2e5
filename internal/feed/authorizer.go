package feed

import (
	"context"

	"github.com/nerrad567/sensorhub/internal/apperr"
	"github.com/nerrad567/sensorhub/internal/channel"
)

// ChannelStore is the subset of channel.KeyStore the feed package needs.
type ChannelStore interface {
	Get(ctx context.Context, channelID string) (*channel.Channel, error)
	RequireOwner(ctx context.Context, channelID, userID string) (*channel.Channel, error)
	VerifyReadKey(ctx context.Context, channelID, rawReadKey string) (bool, error)
	VerifyWriteKey(ctx context.Context, channelID, rawWriteKey string) (bool, error)
}

// Authorizer decides whether a caller may write to or read from a channel.
type Authorizer struct {
	channels ChannelStore
}

// NewAuthorizer creates an Authorizer.
func NewAuthorizer(channels ChannelStore) *Authorizer {
	return &Authorizer{channels: channels}
}

// AdmitWriteKey is the device path. Absent channel is NotFound, a wrong key
// is Unauthorized.
func (a *Authorizer) AdmitWriteKey(ctx context.Context, channelID, writeKey string) error {
	ok, err := a.channels.VerifyWriteKey(ctx, channelID, writeKey)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Unauthorized("invalid write key")
	}
	return nil
}

// AdmitReadKey gates history and threshold reads on the read key.
func (a *Authorizer) AdmitReadKey(ctx context.Context, channelID, readKey string) error {
	ok, err := a.channels.VerifyReadKey(ctx, channelID, readKey)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Unauthorized("invalid read key")
	}
	return nil
}

// AdmitOwner is the authenticated dashboard path.
func (a *Authorizer) AdmitOwner(ctx context.Context, userID, channelID string) error {
	_, err := a.channels.RequireOwner(ctx, channelID, userID)
	return err
}
