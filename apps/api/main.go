package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	echoapi "github.com/trezcool/coachdesk/apps/api/echo"
	"github.com/trezcool/coachdesk/apps/shared"
	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/profile"
	"github.com/trezcool/coachdesk/core/reminder"
	emailsvc "github.com/trezcool/coachdesk/services/email"
	logsvc "github.com/trezcool/coachdesk/services/logger"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	app, err := shared.NewApp(context.Background(), conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up app: %v", err), err)
	}
	defer func() {
		emailsvc.Wait()
		if err = app.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing app: %v", err), err)
		}
	}()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q, storage %q", conf.Build, conf.Database.Engine))
	defer logger.Info("Application stopped")

	core.ParseEmailTemplates(conf, logger)
	profile.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Reminder Scheduler

	if conf.Reminders.Interval > 0 {
		scheduler := reminder.NewScheduler(app.Reminders, logger, conf)
		scheduler.Start(context.Background())
		defer scheduler.Stop()
	}

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			Broker:      app.Broker,
			ProfileSvc:  app.Profiles,
			StudentSvc:  app.Students,
			AssignSvc:   app.Assignments,
			MessageSvc:  app.Messages,
			ReminderSvc: app.Reminders,
			ProgressSvc: app.Progress,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
