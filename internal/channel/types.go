package channel

import (
	"time"

	"github.com/nerrad567/sensorhub/internal/auth"
	"github.com/nerrad567/sensorhub/internal/keys"
)

// Channel is the stored record of one sensor device.
type Channel struct {
	ID          string
	Name        string
	Description string
	OwnerUserID string

	// ReadKeyHash and WriteKeyHash are keys.Digest of the raw keys.
	ReadKeyHash  string
	WriteKeyHash string
	KeyVersion   int64

	TemperatureThreshold *float64
	HumidityThreshold    *float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// View is the owner-facing representation of a channel.
type View struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	Description          string       `json:"description"`
	Owner                auth.Profile `json:"owner"`
	ReadKeyHash          string       `json:"read_key_hash,omitempty"`
	WriteKeyHash         string       `json:"write_key_hash,omitempty"`
	TemperatureThreshold *float64     `json:"temperature_threshold,omitempty"`
	HumidityThreshold    *float64     `json:"humidity_threshold,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// Summary is a channel with all key material stripped. It is embedded in
// feed responses.
type Summary struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description"`
	OwnerUserID          string    `json:"owner_user_id"`
	TemperatureThreshold *float64  `json:"temperature_threshold,omitempty"`
	HumidityThreshold    *float64  `json:"humidity_threshold,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// Summary returns c without key material.
func (c *Channel) Summary() Summary {
	return Summary{
		ID:                   c.ID,
		Name:                 c.Name,
		Description:          c.Description,
		OwnerUserID:          c.OwnerUserID,
		TemperatureThreshold: c.TemperatureThreshold,
		HumidityThreshold:    c.HumidityThreshold,
		CreatedAt:            c.CreatedAt,
	}
}

// view builds the response form of c.
//
// The stored hashes are hashed again here, so no response ever carries a
// value that is stored.
func (c *Channel) view(owner auth.Profile) View {
	return View{
		ID:                   c.ID,
		Name:                 c.Name,
		Description:          c.Description,
		Owner:                owner,
		ReadKeyHash:          rehash(c.ReadKeyHash),
		WriteKeyHash:         rehash(c.WriteKeyHash),
		TemperatureThreshold: c.TemperatureThreshold,
		HumidityThreshold:    c.HumidityThreshold,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}

func rehash(stored string) string {
	if stored == "" {
		return ""
	}
	return keys.Digest(stored)
}

// CreateInput holds the attributes of a new channel.
type CreateInput struct {
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	TemperatureThreshold *float64 `json:"temperature_threshold"`
	HumidityThreshold    *float64 `json:"humidity_threshold"`
}

// Patch is a bounded update. Nil fields are left unchanged.
type Patch struct {
	Name                 *string  `json:"name"`
	Description          *string  `json:"description"`
	TemperatureThreshold *float64 `json:"temperature_threshold"`
	HumidityThreshold    *float64 `json:"humidity_threshold"`
}

// KeyDigests is the digest form of a key pair as shown to clients.
type KeyDigests struct {
	ReadKeyDigest  string `json:"read_key_digest"`
	WriteKeyDigest string `json:"write_key_digest"`
}

// Created is the result of CreateWithKeys. It never carries raw keys.
type Created struct {
	Channel View       `json:"channel"`
	Keys    KeyDigests `json:"keys"`
}

// IssuedKeys is the result of ReissueKeys. ReadKey and WriteKey are the raw
// keys and are not retrievable again.
type IssuedKeys struct {
	KeyDigests
	ReadKey    string     `json:"read_key"`
	WriteKey   string     `json:"write_key"`
	KeyVersion int64      `json:"key_version"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}
