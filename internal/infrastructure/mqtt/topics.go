package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "sensorhub"

// Topics builds the sensorhub topic names under a prefix.
type Topics struct {
	Prefix string
}

// NewTopics returns topic builders for prefix, falling back to
// DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

// ChannelIngest is where devices publish readings for a channel.
//
// Example: sensorhub/channels/chn-123/ingest
func (t Topics) ChannelIngest(channelID string) string {
	return fmt.Sprintf("%s/channels/%s/ingest", t.Prefix, channelID)
}

// ChannelAck carries the outcome of each ingest message.
//
// Example: sensorhub/channels/chn-123/ack
func (t Topics) ChannelAck(channelID string) string {
	return fmt.Sprintf("%s/channels/%s/ack", t.Prefix, channelID)
}

// ChannelFeeds mirrors every stored reading of a channel.
//
// Example: sensorhub/channels/chn-123/feeds
func (t Topics) ChannelFeeds(channelID string) string {
	return fmt.Sprintf("%s/channels/%s/feeds", t.Prefix, channelID)
}

// SystemStatus is the retained online/offline status topic.
func (t Topics) SystemStatus() string {
	return t.Prefix + "/system/status"
}

// AllChannelIngest matches the ingest topic of every channel.
//
// Pattern: sensorhub/channels/+/ingest
func (t Topics) AllChannelIngest() string {
	return t.Prefix + "/channels/+/ingest"
}

// ChannelFromIngest extracts the channel id from an ingest topic.
func (t Topics) ChannelFromIngest(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/channels/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/ingest")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
