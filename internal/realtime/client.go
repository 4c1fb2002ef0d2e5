package realtime

import "sync"

// DefaultSendBuffer is the per-client outbound queue length.
const DefaultSendBuffer = 256

// Client is one realtime connection as seen by the Hub. The transport
// drains Send() and calls Hub.Unregister when the connection ends.
type Client struct {
	ID string
	// UserID is set when the connection authenticated as an owner.
	UserID string

	send  chan []byte
	mu    sync.RWMutex
	rooms map[string]struct{}
}

// NewClient creates a client with a send buffer of the given size.
func NewClient(id, userID string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Client{
		ID:     id,
		UserID: userID,
		send:   make(chan []byte, buffer),
		rooms:  make(map[string]struct{}),
	}
}

// Send is the outbound queue. It is closed when the hub drops the client.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Rooms returns the channel ids the client is currently in.
func (c *Client) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		rooms = append(rooms, id)
	}
	return rooms
}

// TrySend queues data without blocking. It reports false if the buffer is
// full or the client is already gone.
func (c *Client) TrySend(data []byte) (sent bool) {
	defer func() {
		if recover() != nil { // send on closed channel
			sent = false
		}
	}()

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}
