package observe

import (
	"context"
	"sync"

	"github.com/chainguard-dev/clog"
)

type Sink interface {
	Emit(ctx context.Context, event Event) error
}

type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Emit(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type NoopSink struct{}

func (NoopSink) Emit(ctx context.Context, event Event) error {
	_ = ctx
	_ = event
	return nil
}

// LogSink writes events through the contextual structured logger.
type LogSink struct{}

func (LogSink) Emit(ctx context.Context, event Event) error {
	event.Normalize()
	log := clog.FromContext(ctx).With(
		"kind", string(event.Kind),
		"status", string(event.Status),
	)
	if event.RunID != "" {
		log = log.With("run_id", event.RunID)
	}
	if event.ThreadID != "" {
		log = log.With("thread_id", event.ThreadID)
	}
	if event.ToolName != "" {
		log = log.With("tool", event.ToolName)
	}
	if event.Error != "" {
		log.Errorf("agent event: %s", event.Name)
		return nil
	}
	log.Debugf("agent event: %s", event.Name)
	return nil
}

type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) Sink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		filtered = append(filtered, s)
	}
	if len(filtered) == 0 {
		return NoopSink{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &MultiSink{sinks: filtered}
}

func (m *MultiSink) Emit(ctx context.Context, event Event) error {
	if m == nil {
		return nil
	}
	for _, sink := range m.sinks {
		if err := sink.Emit(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// AsyncSink buffers events and delivers them off the run's hot path.
type AsyncSink struct {
	downstream Sink
	queue      chan Event
	once       sync.Once

	mu     sync.Mutex
	closed bool
}

func NewAsyncSink(downstream Sink, buffer int) *AsyncSink {
	if downstream == nil {
		downstream = NoopSink{}
	}
	if buffer <= 0 {
		buffer = 256
	}
	as := &AsyncSink{
		downstream: downstream,
		queue:      make(chan Event, buffer),
	}
	go as.loop()
	return as
}

func (s *AsyncSink) Emit(ctx context.Context, event Event) error {
	if s == nil {
		return nil
	}
	event.Normalize()

	// Holding mu while sending pairs with Close so a late Emit never hits
	// a closed channel; the non-blocking select keeps the critical section
	// short.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.queue <- event:
		return nil
	default:
		// Drop under pressure rather than stall the agent loop.
		return nil
	}
}

func (s *AsyncSink) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.queue)
	})
}

func (s *AsyncSink) loop() {
	for event := range s.queue {
		_ = s.downstream.Emit(context.Background(), event)
	}
}
