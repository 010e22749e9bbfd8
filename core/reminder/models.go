package reminder

import "time"

// Reminder types
const (
	TypeAssignmentDue = "assignment_due"
)

// Reminder is unique per (UserID, AssignmentID, Type).
type Reminder struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	AssignmentID string     `json:"assignment_id"`
	Title        string     `json:"title"`
	Message      string     `json:"message"`
	RemindAt     time.Time  `json:"remind_at"` // UTC
	Type         string     `json:"reminder_type"`
	IsSent       bool       `json:"is_sent"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"` // UTC
}

// Report sums up a Generate run.
type Report struct {
	Assignments int `json:"assignments"` // due assignments scanned
	Created     int `json:"created"`
	Refreshed   int `json:"refreshed"` // already existing and not sent yet
}

// UpsertOutcome tells what UpsertReminder did.
type UpsertOutcome int

const (
	Skipped   UpsertOutcome = iota // a reminder with the same key was already sent
	Created                        // no reminder with the same key existed
	Refreshed                      // the unsent reminder with the same key was updated
)
