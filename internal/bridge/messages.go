package bridge

import (
	"time"

	"github.com/nerrad567/sensorhub/internal/feed"
)

// IngestMessage is published by devices on {prefix}/channels/{id}/ingest.
type IngestMessage struct {
	// ID is an optional device-chosen correlation id echoed in the ack.
	ID       string `json:"id,omitempty"`
	WriteKey string `json:"write_key"`
	feed.Reading
}

// AckStatus is the outcome of an ingest message.
type AckStatus string

const (
	AckAccepted AckStatus = "accepted"
	AckFailed   AckStatus = "failed"
)

// AckMessage answers an ingest message on {prefix}/channels/{id}/ack.
type AckMessage struct {
	ID        string    `json:"id,omitempty"`
	ChannelID string    `json:"channel_id"`
	Status    AckStatus `json:"status"`
	FeedID    string    `json:"feed_id,omitempty"`
	Seq       int64     `json:"seq,omitempty"`
	Error     *AckError `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AckError carries the error kind and caller-safe message.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
