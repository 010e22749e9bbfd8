package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/coachdesk/core"
)

var (
	futureTag  = "future"
	futureText = "{0} must be in the future"

	contentOrAttachmentsTag  = "content_or_attachments"
	contentOrAttachmentsText = "provide content or at least one attachment"

	datetimeTag  = "datetime"
	datetimeText = "{0} must be an RFC3339 timestamp"
)

// InitValidators registers the assignment rules on v.
func InitValidators(v *core.Validator) {
	v.Engine().RegisterStructValidation(assignmentStructValidation, NewAssignment{}, UpdateAssignment{})
	v.Engine().RegisterStructValidation(submissionStructValidation, NewSubmission{})
	v.RegisterCustomTranslation(futureTag, futureText)
	v.RegisterCustomTranslation(contentOrAttachmentsTag, contentOrAttachmentsText)
	v.RegisterCustomTranslation(datetimeTag, datetimeText, true)
}

// assignmentStructValidation does struct level validation on NewAssignment and UpdateAssignment structs.
func assignmentStructValidation(sl validator.StructLevel) {
	switch a := sl.Current().Interface().(type) {
	case NewAssignment:
		validateDueDate(a.DueDate, a.now, a.grace, sl)
	case UpdateAssignment:
		if a.DueDate != nil {
			validateDueDate(*a.DueDate, a.now, a.grace, sl)
		}
	}
}

// validateDueDate checks that a parseable due date is not in the past, allowing for grace (clock skew).
// Unparseable values are reported by the "datetime" tag.
func validateDueDate(dueDate string, now time.Time, grace time.Duration, sl validator.StructLevel) {
	due, err := parseDueDate(dueDate)
	if err != nil {
		return
	}
	if now.IsZero() {
		now = core.Now()
	}
	if due.Before(now.Add(-grace)) {
		sl.ReportError(dueDate, "due_date", "DueDate", futureTag, "")
	}
}

// submissionStructValidation checks that one of Content or AttachmentURLs is provided.
func submissionStructValidation(sl validator.StructLevel) {
	ns := sl.Current().Interface().(NewSubmission)
	if ns.Content == "" && len(ns.AttachmentURLs) == 0 {
		sl.ReportError(ns.Content, "content", "Content", contentOrAttachmentsTag, "")
		sl.ReportError(ns.AttachmentURLs, "attachment_urls", "AttachmentURLs", contentOrAttachmentsTag, "")
	}
}
