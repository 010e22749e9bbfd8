package message

import (
	"time"

	"github.com/trezcool/coachdesk/core"
)

// Message is either the root of a thread (no parent) or a direct reply to a root.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	ParentID   string    `json:"parent_message_id,omitempty"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

func (m Message) IsRoot() bool { return m.ParentID == "" }

// RootID returns the ID of the thread m belongs to.
func (m Message) RootID() string {
	if m.IsRoot() {
		return m.ID
	}
	return m.ParentID
}

// Involves reports whether userID sent or received m.
func (m Message) Involves(userID string) bool {
	return userID != "" && (m.SenderID == userID || m.ReceiverID == userID)
}

// Counterpart returns the participant of m who is not userID.
func (m Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

type NewMessage struct {
	ReceiverID string `json:"receiver_id" validate:"required,uuid"`
	Content    string `json:"content" validate:"required,min=2,max=5000"`
	ParentID   string `json:"parent_message_id" validate:"omitempty,uuid"`
}

func (nm *NewMessage) Clean() {
	nm.ReceiverID = core.CleanString(nm.ReceiverID, true /* lower */)
	nm.Content = core.CleanString(nm.Content)
	nm.ParentID = core.CleanString(nm.ParentID, true /* lower */)
}

// Thread is a root message with its replies, oldest first.
type Thread struct {
	Root    Message   `json:"root"`
	Replies []Message `json:"replies"`
}

// Event is published to the thread and inbox topics after a message is written.
type Event struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

const EventMessageCreated = "message.created"
