package main

import (
	"context"

	"github.com/trezcool/coachdesk/core"
)

func (cli *commandLine) runReminders(ctx context.Context, action string) error {
	now := core.Now()
	switch action {
	case "generate":
		report, err := cli.reminders.Generate(ctx, now)
		if err != nil {
			return err
		}
		cli.printf("%d due assignments: %d reminders created, %d refreshed\n", report.Assignments, report.Created, report.Refreshed)
	case "dispatch":
		sent, err := cli.reminders.Dispatch(ctx, now)
		if err != nil {
			return err
		}
		cli.printf("%d reminders sent\n", sent)
	default:
		cli.printUsage()
		return errHelp
	}
	return nil
}
