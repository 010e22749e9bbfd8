// Package shared wires the storage engine, the services and their collaborators
// for the binaries under apps/.
package shared

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/assignment"
	"github.com/trezcool/coachdesk/core/message"
	"github.com/trezcool/coachdesk/core/profile"
	"github.com/trezcool/coachdesk/core/progress"
	"github.com/trezcool/coachdesk/core/reminder"
	"github.com/trezcool/coachdesk/core/student"
	emailsvc "github.com/trezcool/coachdesk/services/email"
	"github.com/trezcool/coachdesk/services/pubsub"
	telemetrysvc "github.com/trezcool/coachdesk/services/telemetry"
	"github.com/trezcool/coachdesk/storage/database"
	inmemdb "github.com/trezcool/coachdesk/storage/database/inmem"
	sqlxrepos "github.com/trezcool/coachdesk/storage/database/sqlx"
)

const (
	EnginePostgres = "postgres"
	EngineInMem    = "inmem"
)

type App struct {
	Conf     *core.Config
	Logger   core.Logger
	Validate *core.Validator
	Mailer   core.EmailService
	Broker   *pubsub.Broker

	// DB is nil with the inmem engine.
	DB *sqlx.DB

	ProfileRepo  profile.Repository
	ReminderRepo reminder.Repository

	Profiles    *profile.Service
	Students    *student.Service
	Assignments *assignment.Service
	Messages    *message.Service
	Reminders   *reminder.Service
	Progress    *progress.Service
}

type repositories struct {
	tx          core.Transactor
	profiles    profile.Repository
	students    student.Repository
	assignments assignment.Repository
	messages    message.Repository
	reminders   reminder.Repository
}

// NewValidator returns a validator knowing the rules of every domain.
func NewValidator() *core.Validator {
	v := core.NewValidator()
	profile.InitValidators(v)
	assignment.InitValidators(v)
	return v
}

// NewEmailService prints emails in debug mode and sends them through SendGrid otherwise.
func NewEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// NewApp opens the configured storage engine (creating and migrating the postgres database if needed)
// and builds every service on top of it. Close must be called once done.
func NewApp(ctx context.Context, conf *core.Config, logger core.Logger) (*App, error) {
	app := &App{
		Conf:     conf,
		Logger:   logger,
		Validate: NewValidator(),
		Mailer:   NewEmailService(conf, logger),
		Broker:   pubsub.NewBroker(logger),
	}

	var repos repositories
	switch conf.Database.Engine {
	case EnginePostgres:
		db, err := setUpDB(ctx, conf)
		if err != nil {
			return nil, errors.Wrap(err, "setting up database")
		}
		app.DB = db
		repos = repositories{
			tx:          sqlxrepos.NewTransactor(db),
			profiles:    sqlxrepos.NewProfileRepository(db),
			students:    sqlxrepos.NewStudentRepository(db),
			assignments: sqlxrepos.NewAssignmentRepository(db),
			messages:    sqlxrepos.NewMessageRepository(db),
			reminders:   sqlxrepos.NewReminderRepository(db),
		}
	case EngineInMem:
		db, err := inmemdb.Open()
		if err != nil {
			return nil, errors.Wrap(err, "opening in-memory database")
		}
		repos = repositories{
			tx:          db,
			profiles:    inmemdb.NewProfileRepository(db),
			students:    inmemdb.NewStudentRepository(db),
			assignments: inmemdb.NewAssignmentRepository(db),
			messages:    inmemdb.NewMessageRepository(db),
			reminders:   inmemdb.NewReminderRepository(db),
		}
	default:
		return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}
	app.ProfileRepo = repos.profiles
	app.ReminderRepo = repos.reminders

	tracker := core.NewTracker(telemetrysvc.NewLogSink(logger), logger)
	app.Profiles = profile.NewService(repos.profiles, app.Validate)
	app.Students = student.NewService(repos.students, repos.profiles, app.Validate)
	app.Assignments = assignment.NewService(repos.tx, repos.assignments, app.Students, app.Validate, tracker, conf)
	app.Messages = message.NewService(repos.messages, repos.profiles, app.Validate, app.Broker, tracker, logger)
	app.Reminders = reminder.NewService(repos.reminders, app.Assignments, repos.profiles, app.Mailer, tracker, logger, conf)
	app.Progress = progress.NewService(repos.assignments, app.Students)
	return app, nil
}

// Close ends the subscriptions of the broker and closes the database.
func (app *App) Close() error {
	app.Broker.Close()
	if app.DB != nil {
		return app.DB.Close()
	}
	return nil
}

func setUpDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(ctx, db, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
