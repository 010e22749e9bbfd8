package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/assignment"
	"github.com/trezcool/coachdesk/core/reminder"
)

type reminderRepository struct {
	db *DB
}

var _ reminder.Repository = (*reminderRepository)(nil) // interface compliance check

func NewReminderRepository(db *DB) *reminderRepository {
	return &reminderRepository{db: db}
}

func (repo *reminderRepository) UpsertReminder(_ context.Context, r reminder.Reminder, exec ...core.DBExecutor) (reminder.UpsertOutcome, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.assignments[r.AssignmentID]; !ok {
		return reminder.Skipped, assignment.ErrNotFound
	}

	for id, orig := range repo.db.reminders {
		if orig.UserID != r.UserID || orig.AssignmentID != r.AssignmentID || orig.Type != r.Type {
			continue
		}
		if orig.IsSent {
			return reminder.Skipped, nil
		}
		upd := orig
		upd.Title = r.Title
		upd.Message = r.Message
		upd.RemindAt = r.RemindAt
		repo.db.reminders[id] = upd
		repo.db.journal(exec, func() { repo.db.reminders[orig.ID] = orig })
		return reminder.Refreshed, nil
	}

	r.ID = uuid.New().String()
	r.IsSent = false
	r.SentAt = nil
	repo.db.reminders[r.ID] = r
	repo.db.insert(r.ID)
	repo.db.journal(exec, func() { delete(repo.db.reminders, r.ID) })
	return reminder.Created, nil
}

// collect returns the reminders matching keep, soonest first. db.mu must be held.
func (repo *reminderRepository) collect(keep func(r reminder.Reminder) bool) []reminder.Reminder {
	ids := make([]string, 0)
	for id, r := range repo.db.reminders {
		if keep(r) {
			ids = append(ids, id)
		}
	}
	sortRows(ids, repo.db.order, []core.DBOrdering{{Field: "remind_at", Ascending: true}}, func(id, _ string) interface{} {
		return repo.db.reminders[id].RemindAt
	}, true)

	rs := make([]reminder.Reminder, 0, len(ids))
	for _, id := range ids {
		rs = append(rs, repo.db.reminders[id])
	}
	return rs
}

func (repo *reminderRepository) QueryPendingReminders(_ context.Context, from, to time.Time, _ ...core.DBExecutor) ([]reminder.Reminder, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.collect(func(r reminder.Reminder) bool {
		return !r.IsSent && !r.RemindAt.Before(from) && !r.RemindAt.After(to)
	}), nil
}

func (repo *reminderRepository) MarkReminderSent(_ context.Context, id string, sentAt time.Time, exec ...core.DBExecutor) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.reminders[id]
	if !ok || orig.IsSent {
		return false, nil
	}
	upd := orig
	upd.IsSent = true
	upd.SentAt = &sentAt
	repo.db.reminders[id] = upd
	repo.db.journal(exec, func() { repo.db.reminders[orig.ID] = orig })
	return true, nil
}

func (repo *reminderRepository) QueryReminders(_ context.Context, userID string, _ ...core.DBExecutor) ([]reminder.Reminder, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.collect(func(r reminder.Reminder) bool {
		return r.UserID == userID
	}), nil
}
