package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/assignment"
	"github.com/trezcool/coachdesk/core/reminder"
)

var reminderColumns = []string{
	"id", "user_id", "assignment_id", "title", "message", "remind_at", "reminder_type", "is_sent", "sent_at", "created_at",
}

// sent reminders are left untouched; xmax is 0 only for freshly inserted rows.
const reminderUpsertSuffix = `ON CONFLICT ON CONSTRAINT reminders_user_assignment_type_key DO UPDATE SET
	title = EXCLUDED.title,
	message = EXCLUDED.message,
	remind_at = EXCLUDED.remind_at
WHERE NOT reminders.is_sent
RETURNING (xmax = 0) AS inserted`

type reminderRow struct {
	ID           string      `db:"id"`
	UserID       string      `db:"user_id"`
	AssignmentID string      `db:"assignment_id"`
	Title        string      `db:"title"`
	Message      null.String `db:"message"`
	RemindAt     time.Time   `db:"remind_at"`
	Type         string      `db:"reminder_type"`
	IsSent       bool        `db:"is_sent"`
	SentAt       null.Time   `db:"sent_at"`
	CreatedAt    time.Time   `db:"created_at"`
}

func (r reminderRow) reminder() reminder.Reminder {
	rem := reminder.Reminder{
		ID:           r.ID,
		UserID:       r.UserID,
		AssignmentID: r.AssignmentID,
		Title:        r.Title,
		Message:      r.Message.String,
		RemindAt:     r.RemindAt.UTC(),
		Type:         r.Type,
		IsSent:       r.IsSent,
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if r.SentAt.Valid {
		t := r.SentAt.Time.UTC()
		rem.SentAt = &t
	}
	return rem
}

type reminderRepository struct {
	repository
}

var _ reminder.Repository = (*reminderRepository)(nil) // interface compliance check

func NewReminderRepository(db *sqlx.DB) *reminderRepository {
	return &reminderRepository{repository{db: db}}
}

func (repo reminderRepository) UpsertReminder(ctx context.Context, r reminder.Reminder, exec ...core.DBExecutor) (reminder.UpsertOutcome, error) {
	q := psql.Insert("reminders").
		Columns(reminderColumns...).
		Values(
			uuid.New().String(), r.UserID, r.AssignmentID, r.Title,
			null.NewString(r.Message, r.Message != ""),
			r.RemindAt, r.Type, false, nil, r.CreatedAt,
		).
		Suffix(reminderUpsertSuffix)

	var inserted bool
	if err := getRow(ctx, repo.getExec(exec), &inserted, q); err != nil {
		switch {
		case isNoRows(err):
			return reminder.Skipped, nil
		case pqCode(err) == foreignKeyViolation:
			return reminder.Skipped, assignment.ErrNotFound
		}
		return reminder.Skipped, errors.Wrap(err, "upserting reminder")
	}
	if inserted {
		return reminder.Created, nil
	}
	return reminder.Refreshed, nil
}

func (repo reminderRepository) selectReminders(ctx context.Context, exec []core.DBExecutor, where sq.Sqlizer) ([]reminder.Reminder, error) {
	q := psql.Select(reminderColumns...).From("reminders").Where(where).OrderBy("remind_at ASC")

	var rows []reminderRow
	if err := selectRows(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying reminders")
	}
	rs := make([]reminder.Reminder, 0, len(rows))
	for _, r := range rows {
		rs = append(rs, r.reminder())
	}
	return rs, nil
}

func (repo reminderRepository) QueryPendingReminders(ctx context.Context, from, to time.Time, exec ...core.DBExecutor) ([]reminder.Reminder, error) {
	return repo.selectReminders(ctx, exec, sq.And{
		sq.Eq{"is_sent": false},
		sq.GtOrEq{"remind_at": from.UTC()},
		sq.LtOrEq{"remind_at": to.UTC()},
	})
}

// MarkReminderSent claims the reminder: only one caller sees claimed == true.
func (repo reminderRepository) MarkReminderSent(ctx context.Context, id string, sentAt time.Time, exec ...core.DBExecutor) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	q := psql.Update("reminders").
		SetMap(map[string]interface{}{"is_sent": true, "sent_at": sentAt.UTC()}).
		Where(sq.Eq{"id": id, "is_sent": false})

	n, err := execute(ctx, repo.getExec(exec), q)
	if err != nil {
		return false, errors.Wrap(err, "marking reminder sent")
	}
	return n == 1, nil
}

func (repo reminderRepository) QueryReminders(ctx context.Context, userID string, exec ...core.DBExecutor) ([]reminder.Reminder, error) {
	if !validID(userID) {
		return []reminder.Reminder{}, nil
	}
	return repo.selectReminders(ctx, exec, sq.Eq{"user_id": userID})
}
