package realtime

// Message types exchanged with realtime clients.
const (
	TypeJoinRoom  = "joinRoom"
	TypeLeaveRoom = "leaveRoom"
	TypePing      = "ping"
	TypePong      = "pong"
	TypeEvent     = "event"
	TypeResponse  = "response"
	TypeError     = "error"
)

// EventNewFeed is pushed to a room for every created reading.
const EventNewFeed = "newFeed"

// Message is the envelope of every frame sent to or received from a client.
type Message struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Event     string `json:"event,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// JoinPayload is the payload of a joinRoom message. ReadKey may be empty
// for connections authenticated as the channel owner.
type JoinPayload struct {
	ChannelID string `json:"channel_id"`
	ReadKey   string `json:"read_key,omitempty"`
}
