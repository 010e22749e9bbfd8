package telemetrysvc

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/coachdesk/core"
)

type (
	// LogSink writes every event as a JSON line through the logger.
	LogSink struct {
		logger core.Logger
	}

	// MemorySink keeps events in memory.
	MemorySink struct {
		mu     sync.Mutex
		events []core.Event
		err    error
	}

	// MultiSink records events on every sink, returning the first error.
	MultiSink []core.EventSink
)

var (
	_ core.EventSink = (*LogSink)(nil)
	_ core.EventSink = (*MemorySink)(nil)
	_ core.EventSink = (MultiSink)(nil)
)

func NewLogSink(logger core.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s LogSink) Record(_ context.Context, evt core.Event) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "marshalling event")
	}
	s.logger.Info("telemetry: " + string(b))
	return nil
}

// NewMemorySink returns a sink failing every Record with err, when not nil.
func NewMemorySink(err error) *MemorySink {
	return &MemorySink{err: err}
}

func (s *MemorySink) Record(_ context.Context, evt core.Event) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

// Events returns the recorded events, oldest first.
func (s *MemorySink) Events() []core.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Event(nil), s.events...)
}

// Types returns the types of the recorded events, oldest first.
func (s *MemorySink) Types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, 0, len(s.events))
	for _, evt := range s.events {
		types = append(types, evt.Type)
	}
	return types
}

func (m MultiSink) Record(ctx context.Context, evt core.Event) error {
	var firstErr error
	for _, s := range m {
		if err := s.Record(ctx, evt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
