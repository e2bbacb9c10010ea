package audit

import (
	"context"
	"log/slog"
	"sync"
)

// DefaultQueueSize is the per-listener buffer used when none is configured.
const DefaultQueueSize = 1024

// Listener consumes audit events. Handle is called from a single goroutine
// per listener, in publish order.
type Listener interface {
	Name() string
	Handle(ctx context.Context, e Event) error
}

// DropRecorder is told about every event a listener lost.
type DropRecorder interface {
	AuditDropped(listener string)
}

type queue struct {
	listener Listener
	events   chan Event
}

// Sink fans events out to listeners through bounded queues. A full queue
// drops the event for that listener only.
type Sink struct {
	queues   []*queue
	logger   *slog.Logger
	recorder DropRecorder

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithDropRecorder reports dropped and failed events.
func WithDropRecorder(r DropRecorder) SinkOption {
	return func(s *Sink) { s.recorder = r }
}

// NewSink starts one worker per listener. queueSize below 1 uses
// DefaultQueueSize.
func NewSink(logger *slog.Logger, queueSize int, listeners []Listener, opts ...SinkOption) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sink{logger: logger, cancel: cancel}
	for _, o := range opts {
		o(s)
	}
	for _, l := range listeners {
		q := &queue{listener: l, events: make(chan Event, queueSize)}
		s.queues = append(s.queues, q)
		s.wg.Add(1)
		go s.run(ctx, q)
	}
	return s
}

// Publish enqueues e for every listener without blocking.
func (s *Sink) Publish(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warn("audit event published after close", "id", e.ID)
		return
	}
	for _, q := range s.queues {
		select {
		case q.events <- e:
		default:
			s.dropped(q.listener.Name(), e, "queue full")
		}
	}
}

func (s *Sink) run(ctx context.Context, q *queue) {
	defer s.wg.Done()
	for e := range q.events {
		if err := s.handle(ctx, q.listener, e); err != nil {
			s.dropped(q.listener.Name(), e, err.Error())
		}
	}
}

func (s *Sink) handle(ctx context.Context, l Listener, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("audit listener panicked", "listener", l.Name(), "panic", r)
			err = errPanicked
		}
	}()
	return l.Handle(ctx, e)
}

func (s *Sink) dropped(listener string, e Event, reason string) {
	s.logger.Warn("audit event dropped",
		"listener", listener,
		"id", e.ID,
		"kind", e.Kind,
		"name", e.Metadata.Name,
		"reason", reason,
	)
	if s.recorder != nil {
		s.recorder.AuditDropped(listener)
	}
}

// Close stops accepting events and waits for queued ones to be handled, or
// for ctx to end. In-flight listener calls are cancelled when ctx ends.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, q := range s.queues {
		close(q.events)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}
