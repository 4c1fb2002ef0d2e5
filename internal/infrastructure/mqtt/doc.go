// Package mqtt connects sensorhub to an MQTT broker.
//
// Devices that cannot speak HTTP publish readings on a per-channel ingest
// topic and receive the outcome on the matching ack topic. Every stored
// reading is also mirrored to a per-channel feeds topic so other systems on
// the bus can follow a channel without holding its read key.
//
//	{prefix}/channels/{channelId}/ingest   device -> hub
//	{prefix}/channels/{channelId}/ack      hub -> device
//	{prefix}/channels/{channelId}/feeds    hub -> bus
//	{prefix}/system/status                 retained online/offline status
//
// Acks are always sent at QoS 1 (AckQoS); feeds use the configured QoS.
// Neither is retained.
//
// The client reconnects on its own and restores its subscriptions after a
// reconnect. A Last Will marks the hub offline if it disappears without
// closing the connection.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.SubscribeIngest(func(channelID string, payload []byte) error {
//	    return client.PublishAck(channelID, ack)
//	})
package mqtt
