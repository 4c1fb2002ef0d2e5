package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/sensorhub/internal/infrastructure/metrics"
)

// ErrClientNotRegistered is returned by Join for unknown clients.
var ErrClientNotRegistered = errors.New("realtime: client not registered")

// Logger defines the logging interface used by the Hub.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Hub tracks clients and per-channel rooms.
//
// Lock ordering: the hub lock is taken before a client's lock, and the hub
// lock is released before any send.
type Hub struct {
	logger  Logger
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		logger:  noopLogger{},
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
	}
}

// SetLogger sets the logger for the hub.
func (h *Hub) SetLogger(logger Logger) {
	h.logger = logger
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client with no room memberships.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	h.logger.Debug("realtime client connected", "client_id", c.ID, "clients", n)
}

// Unregister removes a client from the hub and from every room, then
// closes its send queue. Only the call that actually removed the client
// closes the queue.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, existed := h.clients[c]
	if existed {
		delete(h.clients, c)
		h.removeFromRoomsLocked(c)
	}
	h.mu.Unlock()

	if existed {
		close(c.send)
		metrics.WSConnections.Dec()
		h.logger.Debug("realtime client disconnected", "client_id", c.ID)
	}
}

// Join adds c to the room of channelID. Authorisation is the caller's job.
func (h *Hub) Join(c *Client, channelID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return ErrClientNotRegistered
	}
	room, ok := h.rooms[channelID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[channelID] = room
	}
	room[c] = struct{}{}

	c.mu.Lock()
	c.rooms[channelID] = struct{}{}
	c.mu.Unlock()
	return nil
}

// Leave removes c from the room of channelID.
func (h *Hub) Leave(c *Client, channelID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[channelID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, channelID)
		}
	}
	c.mu.Lock()
	delete(c.rooms, channelID)
	c.mu.Unlock()
}

// Publish encodes payload as a newFeed event and delivers it to the room.
// Only an encoding failure is returned; delivery is best effort.
func (h *Hub) Publish(_ context.Context, channelID string, payload any) error {
	data, err := EncodeEvent(channelID, payload)
	if err != nil {
		return err
	}
	h.Deliver(channelID, data)
	return nil
}

// EncodeEvent renders the newFeed frame for a room.
func EncodeEvent(channelID string, payload any) ([]byte, error) {
	data, err := json.Marshal(Message{
		Type:      TypeEvent,
		Event:     EventNewFeed,
		ChannelID: channelID,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", EventNewFeed, err)
	}
	return data, nil
}

// Deliver queues an encoded frame on every current member of the room and
// returns the number of members it reached.
func (h *Hub) Deliver(channelID string, data []byte) int {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[channelID]))
	for c := range h.rooms[channelID] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range members {
		if c.TrySend(data) {
			delivered++
			continue
		}
		metrics.BroadcastDrops.Inc()
		h.logger.Warn("realtime delivery dropped", "client_id", c.ID, "channel_id", channelID)
	}
	metrics.BroadcastDeliveries.Add(float64(delivered))

	if len(members) > 0 {
		h.logger.Debug("feed broadcast", "channel_id", channelID, "recipients", delivered)
	}
	return delivered
}

// RoomSize returns the number of members in a channel's room.
func (h *Hub) RoomSize(channelID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[channelID])
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) removeFromRoomsLocked(c *Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for channelID := range c.rooms {
		if room, ok := h.rooms[channelID]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, channelID)
			}
		}
		delete(c.rooms, channelID)
	}
}

// closeAll disconnects all clients so transport write loops exit.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		h.removeFromRoomsLocked(c)
		close(c.send)
		metrics.WSConnections.Dec()
		delete(h.clients, c)
	}
}
