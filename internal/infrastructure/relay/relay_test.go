package relay

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/nerrad567/sensorhub/internal/infrastructure/config"
	"github.com/nerrad567/sensorhub/internal/realtime"
)

type recordingLocal struct {
	mu     sync.Mutex
	frames map[string][][]byte
	got    chan struct{}
}

func newRecordingLocal() *recordingLocal {
	return &recordingLocal{frames: map[string][][]byte{}, got: make(chan struct{}, 16)}
}

func (l *recordingLocal) Deliver(channelID string, data []byte) int {
	l.mu.Lock()
	l.frames[channelID] = append(l.frames[channelID], data)
	l.mu.Unlock()
	l.got <- struct{}{}
	return 1
}

func (l *recordingLocal) count(channelID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.frames[channelID])
}

func startRelay(t *testing.T, mr *miniredis.Miniredis, local Local) *Relay {
	t.Helper()
	r := New(config.RedisConfig{Addr: mr.Addr(), Channel: "sensorhub:feeds"}, local)
	t.Cleanup(func() { r.Close() }) //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, ready) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("Run() exited early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not subscribe")
	}
	return r
}

func waitDelivery(t *testing.T, l *recordingLocal) {
	t.Helper()
	select {
	case <-l.got:
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery")
	}
}

func TestRelay_PublishReachesEveryNode(t *testing.T) {
	mr := miniredis.RunT(t)

	nodeA, nodeB := newRecordingLocal(), newRecordingLocal()
	a := startRelay(t, mr, nodeA)
	startRelay(t, mr, nodeB)

	payload := map[string]any{"id": "feed-1", "temperature": 22.5}
	if err := a.Publish(context.Background(), "chan-1", payload); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	waitDelivery(t, nodeA)
	waitDelivery(t, nodeB)

	for name, node := range map[string]*recordingLocal{"a": nodeA, "b": nodeB} {
		if node.count("chan-1") != 1 {
			t.Fatalf("node %s deliveries = %d, want 1", name, node.count("chan-1"))
		}
		var msg realtime.Message
		if err := json.Unmarshal(node.frames["chan-1"][0], &msg); err != nil {
			t.Fatalf("decoding frame: %v", err)
		}
		if msg.Event != realtime.EventNewFeed || msg.ChannelID != "chan-1" {
			t.Errorf("node %s frame = %+v", name, msg)
		}
		body, _ := msg.Payload.(map[string]any)
		if body["id"] != "feed-1" {
			t.Errorf("node %s payload = %v", name, msg.Payload)
		}
	}
}

func TestRelay_IntoHubRooms(t *testing.T) {
	mr := miniredis.RunT(t)
	hub := realtime.NewHub()
	r := startRelay(t, mr, hub)

	member := realtime.NewClient("member", "", 4)
	outsider := realtime.NewClient("outsider", "", 4)
	hub.Register(member)
	hub.Register(outsider)
	_ = hub.Join(member, "chan-1")
	_ = hub.Join(outsider, "chan-2")

	if err := r.Publish(context.Background(), "chan-1", map[string]string{"id": "f"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-member.Send():
	case <-time.After(2 * time.Second):
		t.Fatal("member received nothing")
	}
	select {
	case data := <-outsider.Send():
		t.Errorf("outsider received %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRelay_FallsBackToLocalDelivery(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	local := newRecordingLocal()
	r := New(config.RedisConfig{Addr: mr.Addr(), Channel: "sensorhub:feeds"}, local)
	defer r.Close() //nolint:errcheck // Test cleanup

	mr.Close()

	if err := r.Publish(context.Background(), "chan-1", map[string]string{"id": "f"}); err != nil {
		t.Fatalf("Publish() error = %v, want fallback", err)
	}
	if local.count("chan-1") != 1 {
		t.Errorf("local deliveries = %d, want 1", local.count("chan-1"))
	}
}

func TestRelay_IgnoresMalformedEnvelopes(t *testing.T) {
	mr := miniredis.RunT(t)
	local := newRecordingLocal()
	r := startRelay(t, mr, local)

	mr.Publish("sensorhub:feeds", "not json")
	mr.Publish("sensorhub:feeds", `{"feed":{}}`)
	if err := r.Publish(context.Background(), "chan-1", map[string]string{"id": "f"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	waitDelivery(t, local)

	if local.count("") != 0 {
		t.Error("malformed envelope was delivered")
	}
	if local.count("chan-1") != 1 {
		t.Errorf("deliveries = %d, want 1", local.count("chan-1"))
	}
}

func TestRelay_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	r := New(config.RedisConfig{Addr: mr.Addr()}, newRecordingLocal())
	defer r.Close() //nolint:errcheck // Test cleanup

	if err := r.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
