package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementFeed is the measurement name of mirrored readings.
const MeasurementFeed = "feed"

// FeedPoint is one reading as stored in InfluxDB.
type FeedPoint struct {
	ChannelID            string
	Seq                  int64
	Temperature          float64
	Humidity             float64
	TemperatureThreshold *float64 // nil when the reading has none
	HumidityThreshold    *float64
	Time                 time.Time
}

// point converts p to an InfluxDB point tagged by channel. Absent
// thresholds are left out of the field set.
func (p FeedPoint) point() *write.Point {
	fields := map[string]any{
		"temperature": p.Temperature,
		"humidity":    p.Humidity,
		"seq":         p.Seq,
	}
	if p.TemperatureThreshold != nil {
		fields["temperature_threshold"] = *p.TemperatureThreshold
	}
	if p.HumidityThreshold != nil {
		fields["humidity_threshold"] = *p.HumidityThreshold
	}
	return write.NewPoint(MeasurementFeed, map[string]string{"channel_id": p.ChannelID}, fields, p.Time)
}

// WriteFeed queues one reading. It never blocks on the network.
func (c *Client) WriteFeed(p FeedPoint) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.writeAPI.WritePoint(p.point())
	return nil
}
