// Package bridge connects the feed pipeline to the message bus and the
// time-series store.
//
// Ingest subscribes to every channel's MQTT ingest topic and runs each
// message through the write-key path, answering on the channel's ack
// topic. MQTTSink and InfluxSink are pipeline sinks that mirror stored
// readings to the bus and to InfluxDB.
package bridge
