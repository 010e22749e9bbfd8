package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/coachdesk/storage/database"
)

var migrateFunc = database.Migrate // mockable

var errNoDatabase = errors.New("migrations require the postgres engine")

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	return migrateFunc(ctx, cli.db, args[0], args[1:]...)
}
