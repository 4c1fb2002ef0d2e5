package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/sensorhub/internal/apperr"
	"github.com/nerrad567/sensorhub/internal/realtime"
)

// wsAuthTimeout bounds the key or ownership check of a joinRoom message.
const wsAuthTimeout = 5 * time.Second

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// inboundMessage is a client frame. Payload is decoded per type.
type inboundMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsConn binds one upgraded connection to its hub client.
type wsConn struct {
	server *Server
	conn   *websocket.Conn
	client *realtime.Client
}

// handleWebSocket upgrades the HTTP connection to a WebSocket connection.
//
// A ?ticket= obtained from POST /auth/ws-ticket authenticates the connection
// as that owner, who may then join their own channels without a key. Without
// a ticket every joinRoom must carry a read key.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var userID string
	if ticket := r.URL.Query().Get("ticket"); ticket != "" {
		entry, ok := s.tickets.consume(ticket)
		if !ok {
			writeUnauthorized(w, "invalid or expired ticket")
			return
		}
		userID = entry.userID
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &wsConn{
		server: s,
		conn:   conn,
		client: realtime.NewClient(uuid.NewString(), userID, realtime.DefaultSendBuffer),
	}
	s.hub.Register(c.client)

	go c.writePump()
	go c.readPump()
}

// readPump reads messages from the WebSocket connection.
func (c *wsConn) readPump() {
	defer func() {
		c.server.hub.Unregister(c.client)
		c.conn.Close()
	}()

	cfg := c.server.wsCfg
	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Warn("websocket read error", "client_id", c.client.ID, "error", err)
			} else {
				c.server.logger.Debug("websocket closed", "client_id", c.client.ID, "error", err)
			}
			return
		}
		// Any client message resets the read deadline.
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump drains the client's send queue into the connection. It exits
// when the hub closes the queue or a write fails.
func (c *wsConn) writePump() {
	cfg := c.server.wsCfg
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	send := c.client.Send()
	for {
		select {
		case message, ok := <-send:
			if !ok {
				// Hub dropped the client
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming WebSocket message.
func (c *wsConn) handleMessage(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", apperr.InvalidInput("invalid JSON message"))
		return
	}

	switch msg.Type {
	case realtime.TypeJoinRoom:
		c.handleJoin(msg)
	case realtime.TypeLeaveRoom:
		c.handleLeave(msg)
	case realtime.TypePing:
		c.send(realtime.Message{Type: realtime.TypePong, ID: msg.ID})
	default:
		c.sendError(msg.ID, apperr.InvalidInput("unknown message type: %s", msg.Type))
	}
}

// handleJoin adds the client to a channel room once it is authorised.
func (c *wsConn) handleJoin(msg inboundMessage) {
	var p realtime.JoinPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.ChannelID == "" {
		c.sendError(msg.ID, apperr.InvalidInput("joinRoom requires payload.channel_id"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsAuthTimeout)
	defer cancel()
	if err := c.authorizeJoin(ctx, p); err != nil {
		c.server.logger.Debug("websocket join refused",
			"client_id", c.client.ID,
			"channel_id", p.ChannelID,
			"reason", apperr.KindOf(err).String(),
		)
		c.sendError(msg.ID, err)
		return
	}

	if err := c.server.hub.Join(c.client, p.ChannelID); err != nil {
		c.sendError(msg.ID, apperr.Internal("failed to join room", err))
		return
	}
	c.send(realtime.Message{
		Type:      realtime.TypeResponse,
		ID:        msg.ID,
		ChannelID: p.ChannelID,
		Payload:   map[string]any{"joined": p.ChannelID},
	})
}

// authorizeJoin accepts a verifying read key, or an owner connection
// joining one of its own channels.
func (c *wsConn) authorizeJoin(ctx context.Context, p realtime.JoinPayload) error {
	if p.ReadKey != "" {
		ok, err := c.server.channels.VerifyReadKey(ctx, p.ChannelID, p.ReadKey)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Unauthorized("invalid read key")
		}
		return nil
	}
	if c.client.UserID != "" {
		_, err := c.server.channels.RequireOwner(ctx, p.ChannelID, c.client.UserID)
		return err
	}
	return apperr.Unauthorized("read key is required")
}

// handleLeave removes the client from a room. Leaving a room the client is
// not in is not an error.
func (c *wsConn) handleLeave(msg inboundMessage) {
	var p realtime.JoinPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.ChannelID == "" {
		c.sendError(msg.ID, apperr.InvalidInput("leaveRoom requires payload.channel_id"))
		return
	}
	c.server.hub.Leave(c.client, p.ChannelID)
	c.send(realtime.Message{
		Type:      realtime.TypeResponse,
		ID:        msg.ID,
		ChannelID: p.ChannelID,
		Payload:   map[string]any{"left": p.ChannelID},
	})
}

// sendError queues an error frame. Internal causes are logged, not sent.
func (c *wsConn) sendError(id string, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperr.KindInternal {
		c.server.logger.Error("websocket request failed", "client_id", c.client.ID, "error", err)
	}
	c.send(realtime.Message{
		Type: realtime.TypeError,
		ID:   id,
		Payload: ErrorBody{
			Code:    apperr.KindOf(err).String(),
			Message: apperr.MessageOf(err),
		},
	})
}

// send queues a direct reply. A full queue drops the reply.
func (c *wsConn) send(msg realtime.Message) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(msg)
	if err != nil {
		c.server.logger.Error("failed to marshal websocket message", "error", err)
		return
	}
	if !c.client.TrySend(data) {
		c.server.logger.Debug("websocket reply dropped", "client_id", c.client.ID, "type", msg.Type)
	}
}
