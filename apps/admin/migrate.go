package main

import (
	"context"
	"errors"
)

var errNoMigrations = errors.New("the configured database engine has no migrations")

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	if cli.runMigration == nil {
		return errNoMigrations
	}
	return cli.runMigration(ctx, args[0], args[1:]...)
}
