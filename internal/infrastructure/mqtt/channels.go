package mqtt

import (
	"encoding/json"
	"fmt"
)

// AckQoS is the delivery level of ingest acks. Devices block on the ack
// for their reading, so it is sent at least once whatever the configured
// default is.
const AckQoS byte = 1

// IngestHandler receives one message published on a channel's ingest
// topic, already resolved to the channel id.
type IngestHandler func(channelID string, payload []byte) error

// SubscribeIngest subscribes to the ingest topic of every channel at the
// configured QoS.
func (c *Client) SubscribeIngest(handler IngestHandler) error {
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	return c.Subscribe(c.topics.AllChannelIngest(), c.QoS(), ingestRouter(c.topics, handler))
}

// UnsubscribeIngest drops the subscription made by SubscribeIngest.
func (c *Client) UnsubscribeIngest() error {
	return c.Unsubscribe(c.topics.AllChannelIngest())
}

// PublishAck answers an ingest message on the channel's ack topic.
func (c *Client) PublishAck(channelID string, v any) error {
	return c.publishChannelJSON(c.topics.ChannelAck(channelID), v, AckQoS)
}

// PublishFeed mirrors a stored reading on the channel's feeds topic at the
// configured QoS. Feeds are never retained.
func (c *Client) PublishFeed(channelID string, v any) error {
	return c.publishChannelJSON(c.topics.ChannelFeeds(channelID), v, c.QoS())
}

func (c *Client) publishChannelJSON(topic string, v any, qos byte) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrPublishFailed, err)
	}
	return c.Publish(topic, payload, qos, false)
}

// ingestRouter resolves the channel id of each ingest message. Messages on
// topics that do not name exactly one channel never reach handler.
func ingestRouter(topics Topics, handler IngestHandler) MessageHandler {
	return func(topic string, payload []byte) error {
		channelID, ok := topics.ChannelFromIngest(topic)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnexpectedTopic, topic)
		}
		return handler(channelID, payload)
	}
}
