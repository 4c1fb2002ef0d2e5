package bridge

import (
	"context"

	"github.com/nerrad567/sensorhub/internal/feed"
	"github.com/nerrad567/sensorhub/internal/infrastructure/influxdb"
)

// MQTTSink mirrors stored readings to {prefix}/channels/{id}/feeds.
type MQTTSink struct {
	bus Bus
}

// NewMQTTSink creates the bus mirror.
func NewMQTTSink(bus Bus) *MQTTSink {
	return &MQTTSink{bus: bus}
}

// Name implements feed.Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Write implements feed.Sink. The reading carries no key material.
func (s *MQTTSink) Write(_ context.Context, f *feed.Populated) error {
	return s.bus.PublishFeed(f.ChannelID, f)
}

// PointWriter is the subset of *influxdb.Client used by InfluxSink.
type PointWriter interface {
	WriteFeed(p influxdb.FeedPoint) error
}

// InfluxSink mirrors stored readings to InfluxDB.
type InfluxSink struct {
	w PointWriter
}

// NewInfluxSink creates the time-series mirror.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Name implements feed.Sink.
func (s *InfluxSink) Name() string { return "influxdb" }

// Write implements feed.Sink.
func (s *InfluxSink) Write(_ context.Context, f *feed.Populated) error {
	return s.w.WriteFeed(influxdb.FeedPoint{
		ChannelID:            f.ChannelID,
		Seq:                  f.Seq,
		Temperature:          f.Temperature,
		Humidity:             f.Humidity,
		TemperatureThreshold: f.TemperatureThreshold,
		HumidityThreshold:    f.HumidityThreshold,
		Time:                 f.CreatedAt,
	})
}
