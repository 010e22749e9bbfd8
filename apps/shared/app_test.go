package shared_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/coachdesk/apps/shared"
	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/assignment"
	"github.com/trezcool/coachdesk/core/authz"
	"github.com/trezcool/coachdesk/core/message"
	"github.com/trezcool/coachdesk/core/profile"
	"github.com/trezcool/coachdesk/core/student"
	testutil "github.com/trezcool/coachdesk/tests"
)

func TestNewApp(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Database.Engine = "cassandra"
	_, err := shared.NewApp(context.Background(), conf, testutil.NewLogger())
	assert.EqualError(t, err, `unknown database engine "cassandra"`)
}

func TestNewApp_inmem(t *testing.T) {
	ctx := context.Background()
	conf := core.NewTestConfig()
	conf.Debug = true // console emails
	app, err := shared.NewApp(ctx, conf, testutil.NewLogger())
	require.NoError(t, err)
	defer func() { assert.NoError(t, app.Close()) }()
	assert.Nil(t, app.DB)

	register := func(email string, role authz.Role) authz.Identity {
		p, err := app.Profiles.Register(ctx, profile.NewProfile{
			Email: email, FirstName: "Ada", LastName: "Lovelace", Role: role,
			Password: "L0ng&Unguessable", PasswordConfirm: "L0ng&Unguessable",
		})
		require.NoError(t, err)
		return p.Identity()
	}
	coach := register("coach@test.cd", authz.RoleCoach)
	stud := register("student@test.cd", authz.RoleStudent)

	// the services share the same storage
	_, err = app.Students.Add(ctx, coach, student.NewStudent{Email: "student@test.cd"})
	require.NoError(t, err)
	a, err := app.Assignments.Create(ctx, coach, assignment.NewAssignment{
		Title: "Essay", StudentID: stud.ID, DueDate: testutil.RFC3339(time.Now().Add(time.Hour)), MaxScore: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, coach.ID, a.CoachID)

	sub, err := app.Broker.Subscribe(core.InboxTopic(stud.ID))
	require.NoError(t, err)
	m, err := app.Messages.Send(ctx, coach, message.NewMessage{ReceiverID: stud.ID, Content: "Hello!"})
	require.NoError(t, err)
	select {
	case payload := <-sub.C():
		assert.Equal(t, m.ID, payload.(message.Event).Message.ID)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}

	report, err := app.Reminders.Generate(ctx, core.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
}
