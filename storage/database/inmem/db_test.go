package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/assignment"
	"github.com/trezcool/coachdesk/core/authz"
	"github.com/trezcool/coachdesk/core/profile"
	"github.com/trezcool/coachdesk/core/reminder"
)

func TestDB_WithinTx(t *testing.T) {
	ctx := context.Background()
	db, err := Open()
	require.NoError(t, err)
	profiles := NewProfileRepository(db)
	assignments := NewAssignmentRepository(db)

	coach, err := profiles.CreateProfile(ctx, profile.Profile{Email: "coach@test.cd", Role: authz.RoleCoach})
	require.NoError(t, err)
	a, err := assignments.CreateAssignment(ctx, assignment.Assignment{Title: "Essay", CoachID: coach.ID, Status: assignment.StatusPending})
	require.NoError(t, err)

	t.Run("rolled back", func(t *testing.T) {
		boom := errors.New("boom")
		err := db.WithinTx(ctx, func(exec core.DBExecutor) error {
			if _, err := assignments.CreateSubmission(ctx, assignment.Submission{AssignmentID: a.ID, Content: "done"}, exec); err != nil {
				return err
			}
			upd := a
			upd.Status = assignment.StatusSubmitted
			if _, err := assignments.UpdateAssignment(ctx, upd, exec); err != nil {
				return err
			}
			return boom
		})
		assert.Equal(t, boom, err)

		subs, err := assignments.QuerySubmissions(ctx, a.ID)
		require.NoError(t, err)
		assert.Empty(t, subs)
		got, err := assignments.GetAssignment(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a, got)
	})

	t.Run("committed", func(t *testing.T) {
		err := db.WithinTx(ctx, func(exec core.DBExecutor) error {
			_, err := assignments.CreateSubmission(ctx, assignment.Submission{AssignmentID: a.ID, Content: "done"}, exec)
			return err
		})
		require.NoError(t, err)

		subs, err := assignments.QuerySubmissions(ctx, a.ID)
		require.NoError(t, err)
		assert.Len(t, subs, 1)
	})

	t.Run("raw SQL", func(t *testing.T) {
		_ = db.WithinTx(ctx, func(exec core.DBExecutor) error {
			_, err := exec.Exec("SELECT 1")
			assert.Equal(t, errRawSQL, err)
			return nil
		})
	})
}

func TestAssignmentRepository_UpdateAssignment(t *testing.T) {
	ctx := context.Background()
	db, err := Open()
	require.NoError(t, err)
	repo := NewAssignmentRepository(db)

	a, err := repo.CreateAssignment(ctx, assignment.Assignment{Title: "Essay", CoachID: "c1", StudentID: "s1", Status: assignment.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, 1, a.Version)

	upd := a
	upd.Title = "Essay v2"
	upd.CoachID = "c2"
	saved, err := repo.UpdateAssignment(ctx, upd)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Version)
	assert.Equal(t, "Essay v2", saved.Title)
	assert.Equal(t, "c1", saved.CoachID)

	// stale
	_, err = repo.UpdateAssignment(ctx, upd)
	assert.Equal(t, assignment.ErrVersionConflict, errors.Cause(err))

	upd.ID = "missing"
	_, err = repo.UpdateAssignment(ctx, upd)
	assert.Equal(t, assignment.ErrNotFound, errors.Cause(err))
}

func TestReminderRepository_UpsertReminder(t *testing.T) {
	ctx := context.Background()
	db, err := Open()
	require.NoError(t, err)
	repo := NewReminderRepository(db)
	a, err := NewAssignmentRepository(db).CreateAssignment(ctx, assignment.Assignment{Title: "Essay"})
	require.NoError(t, err)

	due := time.Date(2030, 1, 2, 15, 0, 0, 0, time.UTC)
	r := reminder.Reminder{UserID: "u1", AssignmentID: a.ID, Title: "Essay", RemindAt: due, Type: reminder.TypeAssignmentDue}

	outcome, err := repo.UpsertReminder(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, reminder.Created, outcome)

	r.Title = "Essay (renamed)"
	outcome, err = repo.UpsertReminder(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, reminder.Refreshed, outcome)

	pending, err := repo.QueryPendingReminders(ctx, due.Add(-time.Hour), due)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Essay (renamed)", pending[0].Title)

	claimed, err := repo.MarkReminderSent(ctx, pending[0].ID, due)
	require.NoError(t, err)
	assert.True(t, claimed)
	claimed, err = repo.MarkReminderSent(ctx, pending[0].ID, due)
	require.NoError(t, err)
	assert.False(t, claimed)

	outcome, err = repo.UpsertReminder(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, reminder.Skipped, outcome)

	r.AssignmentID = "missing"
	_, err = repo.UpsertReminder(ctx, r)
	assert.Equal(t, assignment.ErrNotFound, errors.Cause(err))
}
