package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

func registered(t *testing.T, h *Hub, id string, buffer int) *Client {
	t.Helper()
	c := NewClient(id, "", buffer)
	h.Register(c)
	return c
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data, ok := <-c.Send():
		if !ok {
			t.Fatalf("client %s: send channel closed", c.ID)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decoding frame: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatalf("client %s: no frame received", c.ID)
	}
	return Message{}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send():
		t.Fatalf("client %s: unexpected frame %s", c.ID, data)
	default:
	}
}

func TestHub_PublishReachesOnlyRoomMembers(t *testing.T) {
	h := NewHub()
	a := registered(t, h, "a", 4)
	b := registered(t, h, "b", 4)
	other := registered(t, h, "other", 4)
	idle := registered(t, h, "idle", 4)

	for _, c := range []*Client{a, b} {
		if err := h.Join(c, "chan-1"); err != nil {
			t.Fatalf("Join() error = %v", err)
		}
	}
	if err := h.Join(other, "chan-2"); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	payload := map[string]any{"id": "feed-1", "temperature": 21.5}
	if err := h.Publish(context.Background(), "chan-1", payload); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	for _, c := range []*Client{a, b} {
		msg := receive(t, c)
		if msg.Type != TypeEvent || msg.Event != EventNewFeed {
			t.Errorf("client %s: got %s/%s, want %s/%s", c.ID, msg.Type, msg.Event, TypeEvent, EventNewFeed)
		}
		if msg.ChannelID != "chan-1" {
			t.Errorf("client %s: ChannelID = %q", c.ID, msg.ChannelID)
		}
		body, ok := msg.Payload.(map[string]any)
		if !ok || body["id"] != "feed-1" {
			t.Errorf("client %s: payload = %v", c.ID, msg.Payload)
		}
		assertEmpty(t, c)
	}
	assertEmpty(t, other)
	assertEmpty(t, idle)
}

func TestHub_PublishToEmptyRoom(t *testing.T) {
	h := NewHub()
	if err := h.Publish(context.Background(), "nobody", map[string]string{"x": "y"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if got := h.Deliver("nobody", []byte("{}")); got != 0 {
		t.Errorf("Deliver() = %d, want 0", got)
	}
}

func TestHub_PublishUnencodablePayload(t *testing.T) {
	h := NewHub()
	if err := h.Publish(context.Background(), "chan-1", make(chan int)); err == nil {
		t.Fatal("Publish() error = nil, want encoding error")
	}
}

func TestHub_JoinRequiresRegistration(t *testing.T) {
	h := NewHub()
	c := NewClient("stray", "", 1)
	if err := h.Join(c, "chan-1"); !errors.Is(err, ErrClientNotRegistered) {
		t.Fatalf("Join() error = %v, want ErrClientNotRegistered", err)
	}
	if h.RoomSize("chan-1") != 0 {
		t.Error("unregistered client was added to room")
	}
}

func TestHub_JoinIsIdempotent(t *testing.T) {
	h := NewHub()
	c := registered(t, h, "a", 4)
	for i := 0; i < 3; i++ {
		if err := h.Join(c, "chan-1"); err != nil {
			t.Fatalf("Join() error = %v", err)
		}
	}
	if got := h.RoomSize("chan-1"); got != 1 {
		t.Errorf("RoomSize() = %d, want 1", got)
	}

	h.Deliver("chan-1", []byte(`{"type":"event"}`))
	receive(t, c)
	assertEmpty(t, c)
}

func TestHub_Leave(t *testing.T) {
	h := NewHub()
	c := registered(t, h, "a", 4)
	_ = h.Join(c, "chan-1")
	_ = h.Join(c, "chan-2")

	h.Leave(c, "chan-1")

	if h.RoomSize("chan-1") != 0 {
		t.Error("client still in chan-1")
	}
	if rooms := c.Rooms(); len(rooms) != 1 || rooms[0] != "chan-2" {
		t.Errorf("Rooms() = %v, want [chan-2]", rooms)
	}

	h.Deliver("chan-1", []byte("{}"))
	assertEmpty(t, c)
}

func TestHub_UnregisterLeavesAllRooms(t *testing.T) {
	h := NewHub()
	c := registered(t, h, "a", 4)
	_ = h.Join(c, "chan-1")
	_ = h.Join(c, "chan-2")

	h.Unregister(c)

	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", h.ClientCount())
	}
	for _, id := range []string{"chan-1", "chan-2"} {
		if h.RoomSize(id) != 0 {
			t.Errorf("RoomSize(%s) = %d, want 0", id, h.RoomSize(id))
		}
	}
	if _, ok := <-c.Send(); ok {
		t.Error("send channel not closed")
	}

	// A second unregister must not panic on the closed channel.
	h.Unregister(c)
}

func TestHub_SlowClientDoesNotBlockOthers(t *testing.T) {
	h := NewHub()
	slow := registered(t, h, "slow", 1)
	fast := registered(t, h, "fast", 8)
	_ = h.Join(slow, "chan-1")
	_ = h.Join(fast, "chan-1")

	for i := 0; i < 3; i++ {
		h.Deliver("chan-1", []byte("{}"))
	}

	if got := len(slow.send); got != 1 {
		t.Errorf("slow buffer = %d, want 1", got)
	}
	if got := len(fast.send); got != 3 {
		t.Errorf("fast buffer = %d, want 3", got)
	}
}

func TestClient_TrySendAfterClose(t *testing.T) {
	c := NewClient("a", "", 1)
	close(c.send)
	if c.TrySend([]byte("{}")) {
		t.Error("TrySend() = true on closed client")
	}
}

func TestHub_RunClosesClients(t *testing.T) {
	h := NewHub()
	c := registered(t, h, "a", 1)
	_ = h.Join(c, "chan-1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if _, ok := <-c.Send(); ok {
		t.Error("send channel not closed on shutdown")
	}
	if h.ClientCount() != 0 || h.RoomSize("chan-1") != 0 {
		t.Error("hub not emptied on shutdown")
	}
}

func TestHub_ConcurrentJoinPublishUnregister(t *testing.T) {
	h := NewHub()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewClient("c", "", 2)
			h.Register(c)
			_ = h.Join(c, "chan-1")
			_ = h.Publish(context.Background(), "chan-1", map[string]int{"n": 1})
			h.Unregister(c)
		}()
	}
	wg.Wait()

	if h.ClientCount() != 0 || h.RoomSize("chan-1") != 0 {
		t.Errorf("hub not empty: clients=%d room=%d", h.ClientCount(), h.RoomSize("chan-1"))
	}
}
