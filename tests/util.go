package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/trezcool/coachdesk/apps/shared"
	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/assignment"
	"github.com/trezcool/coachdesk/core/authz"
	"github.com/trezcool/coachdesk/core/message"
	"github.com/trezcool/coachdesk/core/profile"
	"github.com/trezcool/coachdesk/core/progress"
	"github.com/trezcool/coachdesk/core/reminder"
	"github.com/trezcool/coachdesk/core/student"
	emailsvc "github.com/trezcool/coachdesk/services/email"
	logsvc "github.com/trezcool/coachdesk/services/logger"
	"github.com/trezcool/coachdesk/services/pubsub"
	telemetrysvc "github.com/trezcool/coachdesk/services/telemetry"
	inmemdb "github.com/trezcool/coachdesk/storage/database/inmem"
)

// Env wires every service over in-memory repositories.
type Env struct {
	Conf     *core.Config
	Logger   *logsvc.RollbarLogger
	Validate *core.Validator
	DB       *inmemdb.DB
	Sink     *telemetrysvc.MemorySink
	Broker   *pubsub.Broker
	Mailer   core.EmailService

	ProfileRepo    profile.Repository
	StudentRepo    student.Repository
	AssignmentRepo assignment.Repository
	MessageRepo    message.Repository
	ReminderRepo   reminder.Repository

	Profiles    *profile.Service
	Students    *student.Service
	Assignments *assignment.Service
	Messages    *message.Service
	Reminders   *reminder.Service
	Progress    *progress.Service
}

func NewLogger() *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), core.NewTestConfig())
	logger.Enable(false)
	return logger
}

// NewValidator returns a validator knowing the rules of every domain.
func NewValidator() *core.Validator {
	return shared.NewValidator()
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}

	conf := core.NewTestConfig()
	logger := NewLogger()
	core.ParseEmailTemplates(conf, logger)
	emailsvc.ResetSentMessages()

	env := &Env{
		Conf:     conf,
		Logger:   logger,
		Validate: NewValidator(),
		DB:       db,
		Sink:     telemetrysvc.NewMemorySink(nil),
		Broker:   pubsub.NewBroker(logger),
		Mailer:   emailsvc.NewConsoleServiceMock(conf, logger),

		ProfileRepo:    inmemdb.NewProfileRepository(db),
		StudentRepo:    inmemdb.NewStudentRepository(db),
		AssignmentRepo: inmemdb.NewAssignmentRepository(db),
		MessageRepo:    inmemdb.NewMessageRepository(db),
		ReminderRepo:   inmemdb.NewReminderRepository(db),
	}
	t.Cleanup(env.Broker.Close)

	tracker := core.NewTracker(env.Sink, logger)
	env.Profiles = profile.NewService(env.ProfileRepo, env.Validate)
	env.Students = student.NewService(env.StudentRepo, env.ProfileRepo, env.Validate)
	env.Assignments = assignment.NewService(db, env.AssignmentRepo, env.Students, env.Validate, tracker, conf)
	env.Messages = message.NewService(env.MessageRepo, env.ProfileRepo, env.Validate, env.Broker, tracker, logger)
	env.Reminders = reminder.NewService(env.ReminderRepo, env.Assignments, env.ProfileRepo, env.Mailer, tracker, logger, conf)
	env.Progress = progress.NewService(env.AssignmentRepo, env.Students)
	return env
}

func CreateProfile(
	t *testing.T,
	repo profile.Repository,
	email, first, last string,
	role authz.Role,
	pwd string,
	isActive bool,
	createdAt ...time.Time,
) profile.Profile {
	t.Helper()

	tstamp := core.Now()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	p := profile.Profile{
		Email:     email,
		FirstName: first,
		LastName:  last,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := p.SetPassword(pwd); err != nil {
			t.Fatalf("createProfile() failed: %v", err)
		}
	}
	p, err := repo.CreateProfile(context.Background(), p)
	if err != nil {
		t.Fatalf("createProfile() failed: %v", err)
	}
	return p
}

// Coach creates an active coach profile.
func (env *Env) Coach(t *testing.T, email string) authz.Identity {
	t.Helper()
	return CreateProfile(t, env.ProfileRepo, email, "Coach", "Carter", authz.RoleCoach, "", true).Identity()
}

// Student creates an active student profile, enrolled with coachID when not empty.
func (env *Env) Student(t *testing.T, email, coachID string) authz.Identity {
	t.Helper()

	p := CreateProfile(t, env.ProfileRepo, email, "Sam", "Student", authz.RoleStudent, "", true)
	if coachID != "" {
		EnrollStudent(t, env.StudentRepo, p.ID, coachID)
	}
	return p.Identity()
}

func EnrollStudent(t *testing.T, repo student.Repository, studentID, coachID string) student.Student {
	t.Helper()

	now := core.Now()
	s, err := repo.SaveStudent(context.Background(), student.Student{
		ID:             studentID,
		CoachID:        coachID,
		Subjects:       []string{},
		EnrollmentDate: now,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("enrollStudent() failed: %v", err)
	}
	return s
}

// CreateAssignment stores an assignment directly, bypassing the service rules.
func CreateAssignment(
	t *testing.T,
	repo assignment.Repository,
	coachID, studentID, title string,
	due time.Time,
	status assignment.Status,
) assignment.Assignment {
	t.Helper()

	now := core.Now()
	a, err := repo.CreateAssignment(context.Background(), assignment.Assignment{
		Title:     title,
		CoachID:   coachID,
		StudentID: studentID,
		DueDate:   due.UTC().Truncate(time.Microsecond),
		Priority:  assignment.PriorityMedium,
		Status:    status,
		MaxScore:  100,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("createAssignment() failed: %v", err)
	}
	return a
}

// RFC3339 formats t the way clients send timestamps.
func RFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func IntPtr(i int) *int { return &i }
