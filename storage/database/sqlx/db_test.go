package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/assignment"
	"github.com/trezcool/coachdesk/core/authz"
	"github.com/trezcool/coachdesk/core/message"
	"github.com/trezcool/coachdesk/core/profile"
	"github.com/trezcool/coachdesk/core/reminder"
	"github.com/trezcool/coachdesk/core/student"
	"github.com/trezcool/coachdesk/storage/database"
	sqlxrepos "github.com/trezcool/coachdesk/storage/database/sqlx"
	testutil "github.com/trezcool/coachdesk/tests"
)

// startPostgres runs a throwaway postgres server and returns the migrated application database.
func startPostgres(t *testing.T) *sqlx.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "coachdesk",
			"POSTGRES_PASSWORD": "coachdesk",
			"POSTGRES_DB":       "coachdesk",
		},
		// the server restarts once after running the init scripts
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminating postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	conf := core.NewTestConfig()
	conf.Database.Engine = "postgres"
	conf.Database.Host = host
	conf.Database.Port = port.Port()
	conf.Database.Name = "coachdesk"
	conf.Database.User = "coachdesk"
	conf.Database.Password = "coachdesk"
	conf.Database.DisableTLS = true

	db, err := database.Open(conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(ctx, db, "up"))
	return db
}

func TestPostgresRepositories(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	profiles := sqlxrepos.NewProfileRepository(db)
	students := sqlxrepos.NewStudentRepository(db)
	assignments := sqlxrepos.NewAssignmentRepository(db)
	messages := sqlxrepos.NewMessageRepository(db)
	reminders := sqlxrepos.NewReminderRepository(db)
	txr := sqlxrepos.NewTransactor(db)

	coach := testutil.CreateProfile(t, profiles, "coach@pg.test", "Cora", "Coach", authz.RoleCoach, "Passw0rd!x", true)
	learner := testutil.CreateProfile(t, profiles, "sam@pg.test", "Sam", "Student", authz.RoleStudent, "", true)
	testutil.EnrollStudent(t, students, learner.ID, coach.ID)

	t.Run("profiles", func(t *testing.T) {
		_, err := profiles.CreateProfile(ctx, profile.Profile{Email: "coach@pg.test", Role: authz.RoleCoach})
		assert.Equal(t, profile.ErrEmailExists, errors.Cause(err))

		got, err := profiles.GetProfileByEmail(ctx, "coach@pg.test")
		require.NoError(t, err)
		assert.Equal(t, coach.ID, got.ID)
		assert.NoError(t, got.CheckPassword("Passw0rd!x"))

		_, err = profiles.GetProfileByID(ctx, "not-a-uuid")
		assert.Equal(t, profile.ErrNotFound, errors.Cause(err))

		now := core.Now()
		got.Phone = "+243000000"
		got.LastLogin = &now
		updated, err := profiles.UpdateProfile(ctx, got)
		require.NoError(t, err)
		assert.Equal(t, "+243000000", updated.Phone)
		assert.NotNil(t, updated.LastLogin)
	})

	t.Run("students", func(t *testing.T) {
		got, err := students.GetStudent(ctx, learner.ID)
		require.NoError(t, err)
		assert.Equal(t, coach.ID, got.CoachID)
		assert.Equal(t, "sam@pg.test", got.Email)

		list, err := students.QueryStudents(ctx, student.QueryFilter{CoachID: coach.ID, Search: "SAM"}, nil)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		_, err = students.SaveStudent(ctx, student.Student{ID: "00000000-0000-0000-0000-000000000000"})
		assert.Equal(t, profile.ErrNotFound, errors.Cause(err))
	})

	t.Run("assignments", func(t *testing.T) {
		due := time.Now().Add(12 * time.Hour)
		a := testutil.CreateAssignment(t, assignments, coach.ID, learner.ID, "Essay", due, assignment.StatusPending)
		assert.Equal(t, 1, a.Version)

		a.Title = "Long essay"
		updated, err := assignments.UpdateAssignment(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Version)

		// a still carries version 1
		_, err = assignments.UpdateAssignment(ctx, a)
		assert.Equal(t, assignment.ErrVersionConflict, errors.Cause(err))

		list, err := assignments.QueryAssignments(ctx, assignment.QueryFilter{
			StudentID: learner.ID,
			Statuses:  []assignment.Status{assignment.StatusPending},
		}, nil)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Long essay", list[0].Title)

		counts, err := assignments.CountAssignmentsByStatus(ctx, assignment.QueryFilter{CoachID: coach.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, counts[assignment.StatusPending])

		// the submission is rolled back with the failed transaction
		err = txr.WithinTx(ctx, func(exec core.DBExecutor) error {
			if _, err := assignments.CreateSubmission(ctx, assignment.Submission{
				AssignmentID:   a.ID,
				StudentID:      learner.ID,
				Content:        "draft",
				AttachmentURLs: []string{},
				SubmittedAt:    core.Now(),
			}, exec); err != nil {
				return err
			}
			_, err := assignments.UpdateAssignment(ctx, a, exec)
			return err
		})
		assert.Equal(t, assignment.ErrVersionConflict, errors.Cause(err))
		subs, err := assignments.QuerySubmissions(ctx, a.ID)
		require.NoError(t, err)
		assert.Empty(t, subs)

		sub, err := assignments.CreateSubmission(ctx, assignment.Submission{
			AssignmentID:   a.ID,
			StudentID:      learner.ID,
			Content:        "final",
			AttachmentURLs: []string{"https://files.test/essay.pdf"},
			SubmittedAt:    core.Now(),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"https://files.test/essay.pdf"}, sub.AttachmentURLs)

		rev, err := assignments.CreateReview(ctx, assignment.Review{
			SubmissionID: sub.ID,
			AssignmentID: a.ID,
			CoachID:      coach.ID,
			Score:        testutil.IntPtr(90),
			Feedback:     "good",
			ReviewedAt:   core.Now(),
		})
		require.NoError(t, err)
		require.NotNil(t, rev.Score)
		assert.Equal(t, 90, *rev.Score)

		_, err = assignments.GetSubmission(ctx, "00000000-0000-0000-0000-000000000000")
		assert.Equal(t, assignment.ErrSubmissionNotFound, errors.Cause(err))
	})

	t.Run("messages", func(t *testing.T) {
		root, err := messages.CreateMessage(ctx, message.Message{
			SenderID: coach.ID, ReceiverID: learner.ID, Content: "hello", CreatedAt: core.Now(),
		})
		require.NoError(t, err)
		_, err = messages.CreateMessage(ctx, message.Message{
			SenderID: learner.ID, ReceiverID: coach.ID, Content: "hi", ParentID: root.ID, CreatedAt: core.Now(),
		})
		require.NoError(t, err)
		_, err = messages.CreateMessage(ctx, message.Message{
			SenderID: coach.ID, ReceiverID: learner.ID, Content: "question?", ParentID: root.ID, CreatedAt: core.Now(),
		})
		require.NoError(t, err)

		threads, err := messages.QueryThreads(ctx, learner.ID)
		require.NoError(t, err)
		require.Len(t, threads, 1)
		assert.True(t, threads[0].IsRoot())

		replies, err := messages.QueryReplies(ctx, root.ID)
		require.NoError(t, err)
		require.Len(t, replies, 2)
		assert.Equal(t, "hi", replies[0].Content)

		n, err := messages.MarkThreadRead(ctx, root.ID, learner.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		n, err = messages.MarkThreadRead(ctx, root.ID, learner.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		unread, err := messages.CountUnread(ctx, coach.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, unread)

		_, err = messages.CreateMessage(ctx, message.Message{
			SenderID:   coach.ID,
			ReceiverID: learner.ID,
			Content:    "lost",
			ParentID:   "00000000-0000-0000-0000-000000000000",
			CreatedAt:  core.Now(),
		})
		assert.Equal(t, message.ErrNotFound, errors.Cause(err))
	})

	t.Run("reminders", func(t *testing.T) {
		due := time.Now().Add(6 * time.Hour).UTC()
		a := testutil.CreateAssignment(t, assignments, coach.ID, learner.ID, "Quiz", due, assignment.StatusPending)
		r := reminder.Reminder{
			UserID:       learner.ID,
			AssignmentID: a.ID,
			Title:        "Quiz",
			Message:      "due soon",
			RemindAt:     due,
			Type:         reminder.TypeAssignmentDue,
			CreatedAt:    core.Now(),
		}

		out, err := reminders.UpsertReminder(ctx, r)
		require.NoError(t, err)
		assert.Equal(t, reminder.Created, out)

		r.Title = "Quiz (updated)"
		out, err = reminders.UpsertReminder(ctx, r)
		require.NoError(t, err)
		assert.Equal(t, reminder.Refreshed, out)

		pending, err := reminders.QueryPendingReminders(ctx, time.Now(), time.Now().Add(24*time.Hour))
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "Quiz (updated)", pending[0].Title)

		claimed, err := reminders.MarkReminderSent(ctx, pending[0].ID, core.Now())
		require.NoError(t, err)
		assert.True(t, claimed)
		claimed, err = reminders.MarkReminderSent(ctx, pending[0].ID, core.Now())
		require.NoError(t, err)
		assert.False(t, claimed)

		out, err = reminders.UpsertReminder(ctx, r)
		require.NoError(t, err)
		assert.Equal(t, reminder.Skipped, out)

		mine, err := reminders.QueryReminders(ctx, learner.ID)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.True(t, mine[0].IsSent)
		assert.NotNil(t, mine[0].SentAt)

		r.AssignmentID = "00000000-0000-0000-0000-000000000000"
		_, err = reminders.UpsertReminder(ctx, r)
		assert.Equal(t, assignment.ErrNotFound, errors.Cause(err))
	})
}
