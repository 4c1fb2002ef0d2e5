package feed

import (
	"math"
	"time"

	"github.com/nerrad567/sensorhub/internal/apperr"
	"github.com/nerrad567/sensorhub/internal/channel"
)

// Feed is one stored reading.
type Feed struct {
	ID                   string    `json:"id"`
	ChannelID            string    `json:"channel_id"`
	Seq                  int64     `json:"seq"`
	Temperature          float64   `json:"temperature"`
	Humidity             float64   `json:"humidity"`
	TemperatureThreshold *float64  `json:"temperature_threshold"`
	HumidityThreshold    *float64  `json:"humidity_threshold"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Populated is a feed with its channel attached. It never carries key
// material.
type Populated struct {
	Feed
	Channel channel.Summary `json:"channel"`
}

// Reading is the caller-supplied payload of an ingestion. Temperature and
// humidity are required. An omitted threshold is taken from the channel, or
// stored as absent when the channel has none. Sign is unconstrained.
type Reading struct {
	Temperature          *float64 `json:"temperature"`
	Humidity             *float64 `json:"humidity"`
	TemperatureThreshold *float64 `json:"temperature_threshold"`
	HumidityThreshold    *float64 `json:"humidity_threshold"`
}

// Validate checks that the measurements are present and that every
// supplied value is finite.
func (r Reading) Validate() error {
	fields := []struct {
		name     string
		value    *float64
		required bool
	}{
		{"temperature", r.Temperature, true},
		{"humidity", r.Humidity, true},
		{"temperature_threshold", r.TemperatureThreshold, false},
		{"humidity_threshold", r.HumidityThreshold, false},
	}
	for _, f := range fields {
		if f.value == nil {
			if f.required {
				return apperr.InvalidInput("%s is required", f.name)
			}
			continue
		}
		if math.IsNaN(*f.value) || math.IsInf(*f.value, 0) {
			return apperr.InvalidInput("%s must be a finite number", f.name)
		}
	}
	return nil
}

// Thresholds are the alert thresholds currently in force for a channel.
type Thresholds struct {
	ChannelID            string   `json:"channel_id"`
	TemperatureThreshold *float64 `json:"temperature_threshold,omitempty"`
	HumidityThreshold    *float64 `json:"humidity_threshold,omitempty"`
	// Source is "feed" when taken from the latest reading, "channel" when
	// taken from the channel's configured defaults.
	Source string `json:"source"`
}
