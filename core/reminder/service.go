package reminder

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/assignment"
	"github.com/trezcool/coachdesk/core/authz"
	"github.com/trezcool/coachdesk/core/profile"
)

const dueDateLayout = "Mon, 02 Jan 2006 15:04 MST"

type (
	Repository interface {
		// UpsertReminder inserts r, or refreshes the title, message and remind_at of the unsent reminder
		// sharing its (UserID, AssignmentID, Type). Sent reminders are left untouched.
		UpsertReminder(ctx context.Context, r Reminder, exec ...core.DBExecutor) (UpsertOutcome, error)
		// QueryPendingReminders returns the unsent reminders with remind_at within [from, to], soonest first.
		QueryPendingReminders(ctx context.Context, from, to time.Time, exec ...core.DBExecutor) ([]Reminder, error)
		// MarkReminderSent flags the reminder as sent unless it already is.
		// claimed is false when another dispatcher got there first.
		MarkReminderSent(ctx context.Context, id string, sentAt time.Time, exec ...core.DBExecutor) (claimed bool, err error)
		// QueryReminders returns the reminders of userID, soonest first.
		QueryReminders(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Reminder, error)
	}

	// DueAssignments lists the pending assignments due within [from, to].
	DueAssignments interface {
		DueBetween(ctx context.Context, from, to time.Time) ([]assignment.Assignment, error)
	}

	Service struct {
		repo        Repository
		assignments DueAssignments
		profiles    profile.Repository
		mailer      core.EmailService
		tracker     *core.Tracker
		logger      core.Logger
		window      time.Duration
	}
)

func NewService(
	repo Repository,
	assignments DueAssignments,
	profiles profile.Repository,
	mailer core.EmailService,
	tracker *core.Tracker,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:        repo,
		assignments: assignments,
		profiles:    profiles,
		mailer:      mailer,
		tracker:     tracker,
		logger:      logger,
		window:      conf.Reminders.Window,
	}
}

// Generate makes sure the coach and the student of every pending assignment due within the window
// starting at now have an assignment_due reminder. Running it again creates no duplicates.
func (svc *Service) Generate(ctx context.Context, now time.Time) (Report, error) {
	now = now.UTC()
	as, err := svc.assignments.DueBetween(ctx, now, now.Add(svc.window))
	if err != nil {
		return Report{}, errors.Wrap(err, "listing due assignments")
	}

	report := Report{Assignments: len(as)}
	for _, a := range as {
		for _, r := range dueReminders(a, now) {
			outcome, err := svc.repo.UpsertReminder(ctx, r)
			if err != nil {
				return report, core.RepoError(err, "upserting reminder", nil, "")
			}
			switch outcome {
			case Created:
				report.Created++
			case Refreshed:
				report.Refreshed++
			}
		}
	}

	if report.Created > 0 {
		svc.tracker.Track(ctx, core.EventRemindersCreated, map[string]string{
			"count":       strconv.Itoa(report.Created),
			"assignments": strconv.Itoa(report.Assignments),
		})
	}
	return report, nil
}

// Dispatch emails the unsent reminders due within the window starting at now, and marks them sent.
// Each reminder is claimed before its email is queued, so concurrent dispatchers never send it twice.
func (svc *Service) Dispatch(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	rs, err := svc.repo.QueryPendingReminders(ctx, now, now.Add(svc.window))
	if err != nil {
		return 0, core.RepoError(err, "querying pending reminders", nil, "")
	}

	messages := make([]*core.EmailMessage, 0, len(rs))
	for _, r := range rs {
		// left unclaimed on failure: the next pass picks it up again
		p, err := svc.profiles.GetProfileByID(ctx, r.UserID)
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("reminder: getting profile of reminder %s: %v", r.ID, err), err)
			continue
		}

		claimed, err := svc.repo.MarkReminderSent(ctx, r.ID, now)
		if err != nil {
			return len(messages), core.RepoError(err, "marking reminder sent", nil, "")
		}
		if !claimed || !p.IsActive {
			continue
		}
		messages = append(messages, reminderEmail(r, p))
	}

	if len(messages) > 0 && svc.mailer != nil {
		svc.mailer.SendMessages(messages...)
	}
	return len(messages), nil
}

// ForUser lists the reminders of the actor.
func (svc *Service) ForUser(ctx context.Context, actor authz.Identity) ([]Reminder, error) {
	if err := authz.Check(actor, authz.Authenticated()); err != nil {
		return nil, err
	}
	rs, err := svc.repo.QueryReminders(ctx, actor.ID)
	return rs, core.RepoError(err, "querying reminders", nil, "")
}

func dueReminders(a assignment.Assignment, now time.Time) []Reminder {
	due := a.DueDate.Format(dueDateLayout)
	return []Reminder{
		{
			UserID:       a.StudentID,
			AssignmentID: a.ID,
			Title:        a.Title,
			Message:      fmt.Sprintf("Your assignment %q is due on %s.", a.Title, due),
			RemindAt:     a.DueDate,
			Type:         TypeAssignmentDue,
			CreatedAt:    now,
		},
		{
			UserID:       a.CoachID,
			AssignmentID: a.ID,
			Title:        a.Title,
			Message:      fmt.Sprintf("The assignment %q of your student is due on %s.", a.Title, due),
			RemindAt:     a.DueDate,
			Type:         TypeAssignmentDue,
			CreatedAt:    now,
		},
	}
}

func reminderEmail(r Reminder, p profile.Profile) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{p.Address()},
		Subject:      "Reminder: " + r.Title + " is due soon",
		TemplateName: "assignment_due",
		TemplateData: map[string]interface{}{
			"Name":            p.FirstName,
			"AssignmentTitle": r.Title,
			"AssignmentID":    r.AssignmentID,
			"DueDate":         r.RemindAt.Format(dueDateLayout),
		},
	}
}
