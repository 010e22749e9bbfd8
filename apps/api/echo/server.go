package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/assignment"
	"github.com/trezcool/coachdesk/core/message"
	"github.com/trezcool/coachdesk/core/profile"
	"github.com/trezcool/coachdesk/core/progress"
	"github.com/trezcool/coachdesk/core/reminder"
	"github.com/trezcool/coachdesk/core/student"
	"github.com/trezcool/coachdesk/services/pubsub"
)

type (
	ServerDeps struct {
		Conf        *core.Config
		Logger      core.Logger
		Broker      *pubsub.Broker
		ProfileSvc  *profile.Service
		StudentSvc  *student.Service
		AssignSvc   *assignment.Service
		MessageSvc  *message.Service
		ReminderSvc *reminder.Service
		ProgressSvc *progress.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: []string{conf.FrontendBaseURL}}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := jwtMiddleware(conf, "header:Authorization")

	registerProfileAPI(v1, jwt, conf, s.deps.ProfileSvc)
	registerStudentAPI(v1, jwt, s.deps.StudentSvc, s.deps.ProgressSvc)
	registerAssignmentAPI(v1, jwt, s.deps.AssignSvc)
	registerMessageAPI(v1, jwt, s.deps.MessageSvc)
	registerRealtimeAPI(v1, jwtMiddleware(conf, "query:token"), conf, s.deps.Logger, s.deps.MessageSvc, s.deps.Broker)
	registerReminderAPI(v1, jwt, s.deps.ReminderSvc)
}

// Start blocks serving requests; listener failures are reported on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
