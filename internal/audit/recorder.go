package audit

import (
	"context"
	"sync"
	"time"
)

const (
	defaultQueueSize = 256
	writeTimeout     = 5 * time.Second

	// EntityChannel is the entity type of every channel event.
	EntityChannel = "channel"
	// SourceAPI marks events produced by API calls.
	SourceAPI = "api"
)

// Logger defines the logging interface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder queues channel events and persists them in the background.
// It satisfies channel.EventRecorder.
type Recorder struct {
	repo   Repository
	queue  chan Entry
	logger Logger

	mu      sync.RWMutex
	started bool
	closed  bool
	done    chan struct{}
}

// NewRecorder creates a recorder with a queue of size entries.
func NewRecorder(repo Repository, size int) *Recorder {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Recorder{
		repo:   repo,
		queue:  make(chan Entry, size),
		logger: noopLogger{},
		done:   make(chan struct{}),
	}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Record queues an event without blocking.
func (r *Recorder) Record(action, channelID, userID string, details map[string]any) {
	e := Entry{
		Action:     action,
		EntityType: EntityChannel,
		EntityID:   channelID,
		UserID:     userID,
		Source:     SourceAPI,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- e:
	default:
		r.logger.Warn("audit queue full, dropping event", "action", action, "channel_id", channelID)
	}
}

// Start launches the writer goroutine.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true
	go r.run()
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.repo.Create(ctx, &e); err != nil {
			r.logger.Error("writing audit log failed", "action", e.Action, "error", err)
		}
		cancel()
	}
}

// Close stops accepting events and waits for the writer to flush the
// queue.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	started := r.started
	r.mu.Unlock()

	if started {
		<-r.done
	}
}
