package assignment

import (
	"time"

	"github.com/trezcool/coachdesk/core"
)

// Priorities
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Priority string

type Assignment struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	Subject           string    `json:"subject,omitempty"`
	CoachID           string    `json:"coach_id"`   // immutable
	StudentID         string    `json:"student_id"` // immutable
	DueDate           time.Time `json:"due_date"`   // UTC
	Priority          Priority  `json:"priority"`
	Status            Status    `json:"status"`
	EstimatedDuration *int      `json:"estimated_duration,omitempty"` // minutes
	Instructions      string    `json:"instructions,omitempty"`
	MaxScore          int       `json:"max_score"`
	Version           int       `json:"version"`    // bumped on every write
	CreatedAt         time.Time `json:"created_at"` // UTC
	UpdatedAt         time.Time `json:"updated_at"` // UTC
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	Title             string   `json:"title" validate:"required,min=3,max=200"`
	Description       string   `json:"description" validate:"max=5000"`
	Subject           string   `json:"subject" validate:"max=100"`
	StudentID         string   `json:"student_id" validate:"required,uuid"`
	DueDate           string   `json:"due_date" validate:"required,datetime=2006-01-02T15:04:05Z07:00"` // RFC3339
	Priority          Priority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	EstimatedDuration *int     `json:"estimated_duration" validate:"omitempty,min=1,max=1440"`
	Instructions      string   `json:"instructions" validate:"max=5000"`
	MaxScore          int      `json:"max_score" validate:"min=1,max=1000"`

	now   time.Time
	grace time.Duration
}

func (na *NewAssignment) Clean() {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.Subject = core.CleanString(na.Subject)
	na.StudentID = core.CleanString(na.StudentID, true /* lower */)
	na.DueDate = core.CleanString(na.DueDate)
	na.Instructions = core.CleanString(na.Instructions)
	if na.Priority == "" {
		na.Priority = PriorityMedium
	}
}

// UpdateAssignment defines what information may be provided to modify an existing Assignment.
// The coach and the student cannot be changed.
type UpdateAssignment struct {
	Title             *string   `json:"title" validate:"omitempty,min=3,max=200"`
	Description       *string   `json:"description" validate:"omitempty,max=5000"`
	Subject           *string   `json:"subject" validate:"omitempty,max=100"`
	DueDate           *string   `json:"due_date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Priority          *Priority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	EstimatedDuration *int      `json:"estimated_duration" validate:"omitempty,min=1,max=1440"`
	Instructions      *string   `json:"instructions" validate:"omitempty,max=5000"`
	MaxScore          *int      `json:"max_score" validate:"omitempty,min=1,max=1000"`
	Status            *Status   `json:"status" validate:"omitempty,oneof=pending submitted reviewed completed"`
	Version           *int      `json:"version"` // when set, the update fails if the assignment changed since

	now   time.Time
	grace time.Duration
}

func (ua *UpdateAssignment) Clean() {
	for _, s := range []*string{ua.Title, ua.Description, ua.Subject, ua.DueDate, ua.Instructions} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
}

func (ua *UpdateAssignment) IsEmpty() bool {
	return ua.Title == nil && ua.Description == nil && ua.Subject == nil && ua.DueDate == nil && ua.Priority == nil &&
		ua.EstimatedDuration == nil && ua.Instructions == nil && ua.MaxScore == nil && ua.Status == nil
}

// apply sets the provided fields on a; DueDate must have been validated.
func (ua UpdateAssignment) apply(a *Assignment) {
	if ua.Title != nil {
		a.Title = *ua.Title
	}
	if ua.Description != nil {
		a.Description = *ua.Description
	}
	if ua.Subject != nil {
		a.Subject = *ua.Subject
	}
	if ua.DueDate != nil {
		a.DueDate, _ = parseDueDate(*ua.DueDate)
	}
	if ua.Priority != nil {
		a.Priority = *ua.Priority
	}
	if ua.EstimatedDuration != nil {
		d := *ua.EstimatedDuration
		a.EstimatedDuration = &d
	}
	if ua.Instructions != nil {
		a.Instructions = *ua.Instructions
	}
	if ua.MaxScore != nil {
		a.MaxScore = *ua.MaxScore
	}
}

func parseDueDate(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC().Truncate(time.Microsecond), nil
}

// SetStatus is the payload of an explicit status change.
type SetStatus struct {
	Status  Status `json:"status" validate:"required,oneof=pending submitted reviewed completed"`
	Version *int   `json:"version"`
}

type QueryFilter struct {
	CoachID   string    `query:"-"`
	StudentID string    `query:"student_id"`
	Statuses  []Status  `query:"status"`
	Subject   string    `query:"subject"`
	DueFrom   time.Time `query:"due_from"` // inclusive
	DueTo     time.Time `query:"due_to"`   // inclusive
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID, true /* lower */)
	qf.Subject = core.CleanString(qf.Subject)
}

// OrderingFields are the fields assignments can be ordered by.
var OrderingFields = []string{"due_date", "created_at", "updated_at", "title", "priority", "status"}

// Submission is a student's answer to an Assignment; the most recent one is operative.
type Submission struct {
	ID             string    `json:"id"`
	AssignmentID   string    `json:"assignment_id"`
	StudentID      string    `json:"student_id"`
	Content        string    `json:"content,omitempty"`
	AttachmentURLs []string  `json:"attachment_urls"`
	Notes          string    `json:"notes,omitempty"`
	IsFinal        bool      `json:"is_final"`
	SubmittedAt    time.Time `json:"submitted_at"` // UTC
}

// NewSubmission needs content or at least one attachment.
type NewSubmission struct {
	Content        string   `json:"content"`
	AttachmentURLs []string `json:"attachment_urls" validate:"omitempty,max=20,dive,required,absurl"`
	Notes          string   `json:"notes" validate:"max=5000"`
	IsFinal        *bool    `json:"is_final"`
}

func (ns *NewSubmission) Clean() {
	ns.Content = core.CleanString(ns.Content)
	ns.Notes = core.CleanString(ns.Notes)
	for i, u := range ns.AttachmentURLs {
		ns.AttachmentURLs[i] = core.CleanString(u)
	}
}

// Review is a coach's evaluation of a Submission.
type Review struct {
	ID            string    `json:"id"`
	AssignmentID  string    `json:"assignment_id"`
	SubmissionID  string    `json:"submission_id"`
	CoachID       string    `json:"coach_id"`
	Score         *int      `json:"score,omitempty"`
	Feedback      string    `json:"feedback,omitempty"`
	Suggestions   string    `json:"suggestions,omitempty"`
	IsFinalReview bool      `json:"is_final_review"`
	ReviewedAt    time.Time `json:"reviewed_at"` // UTC
}

type NewReview struct {
	SubmissionID  string `json:"submission_id" validate:"required,uuid"`
	Score         *int   `json:"score" validate:"omitempty,min=0,max=1000"`
	Feedback      string `json:"feedback" validate:"max=5000"`
	Suggestions   string `json:"suggestions" validate:"max=5000"`
	IsFinalReview *bool  `json:"is_final_review"`
}

func (nr *NewReview) Clean() {
	nr.SubmissionID = core.CleanString(nr.SubmissionID, true /* lower */)
	nr.Feedback = core.CleanString(nr.Feedback)
	nr.Suggestions = core.CleanString(nr.Suggestions)
}

// Stats summarises the assignments visible to a coach or a student.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Submitted int `json:"submitted"`
	Reviewed  int `json:"reviewed"`
	Completed int `json:"completed"`
	DueToday  int `json:"due_today"` // not completed, due before the end of the current UTC day
	Overdue   int `json:"overdue"`   // pending, due date passed
}
