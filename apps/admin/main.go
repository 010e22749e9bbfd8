package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/trezcool/coachdesk/apps/shared"
	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/profile"
	emailsvc "github.com/trezcool/coachdesk/services/email"
	logsvc "github.com/trezcool/coachdesk/services/logger"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	app, err := shared.NewApp(context.Background(), conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up app: %v", err), err)
	}

	core.ParseEmailTemplates(conf, logger)
	profile.LoadCommonPasswords(logger)

	// start CLI
	cli := commandLine{
		db:        app.DB,
		profiles:  app.Profiles,
		reminders: app.Reminders,
	}
	err = cli.run(os.Args)
	emailsvc.Wait()
	_ = app.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
