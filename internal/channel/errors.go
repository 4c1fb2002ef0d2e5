package channel

import "errors"

// Repository errors. Services translate these to apperr kinds.
var (
	// ErrChannelNotFound is returned when a channel ID does not exist.
	ErrChannelNotFound = errors.New("channel: not found")

	// ErrVersionConflict is returned when a conditional key update lost a race.
	ErrVersionConflict = errors.New("channel: key version conflict")

	// ErrKeyCollision is returned when a key digest is already held by another channel.
	ErrKeyCollision = errors.New("channel: key digest already in use")
)
