package core

import (
	"context"
	"fmt"
	"time"
)

// Telemetry event types
const (
	EventAssignmentCreated = "assignment_created"
	EventAssignmentUpdated = "assignment_updated"
	EventSubmissionCreated = "submission_created"
	EventReviewCreated     = "review_created"
	EventMessageSent       = "message_sent"
	EventRemindersCreated  = "reminders_created"
)

type (
	Event struct {
		Type       string            `json:"event"`
		Properties map[string]string `json:"properties,omitempty"`
		Timestamp  time.Time         `json:"timestamp"`
	}

	// EventSink records telemetry events.
	EventSink interface {
		Record(ctx context.Context, evt Event) error
	}

	// Publisher fans a payload out to the subscribers of topic.
	Publisher interface {
		Publish(ctx context.Context, topic string, payload interface{}) error
	}
)

// Tracker forwards events to an EventSink. Sink failures never reach the caller: they are logged and dropped.
type Tracker struct {
	sink   EventSink
	logger Logger
}

func NewTracker(sink EventSink, logger Logger) *Tracker {
	return &Tracker{sink: sink, logger: logger}
}

func (t *Tracker) Track(ctx context.Context, typ string, props map[string]string) {
	if t == nil || t.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error(fmt.Sprintf("telemetry: recovered from panic recording %q: %v", typ, r))
		}
	}()

	evt := Event{Type: typ, Properties: props, Timestamp: Now()}
	if err := t.sink.Record(ctx, evt); err != nil {
		t.logger.Warn(fmt.Sprintf("telemetry: recording %q: %v", typ, err), err)
	}
}

// ThreadTopic is the pub/sub topic of a message thread.
func ThreadTopic(rootID string) string { return "thread:" + rootID }

// InboxTopic is the pub/sub topic of a user's incoming messages.
func InboxTopic(userID string) string { return "inbox:" + userID }
