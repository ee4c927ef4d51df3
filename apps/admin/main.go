package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	dig_container "github.com/NaveenRoman/AI-TUTor/apps/api/di/dig"
	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/book"
	"github.com/NaveenRoman/AI-TUTor/core/institution"
	"github.com/NaveenRoman/AI-TUTor/storage/database"
)

func main() {
	c := dig_container.New("ADMIN")

	var code int
	err := c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		repos *database.Repositories,
		bookSvc book.Service,
		instSvc institution.Service,
		validate *validator.Validate,
	) {
		core.ParseEmailTemplates(logger)

		var db *sql.DB
		defer func() {
			if db != nil {
				_ = db.Close()
			}
			_ = repos.Close()
		}()

		cli := commandLine{
			usrRepo:  repos.User,
			bookSvc:  bookSvc,
			instSvc:  instSvc,
			validate: validate,
			booksDir: conf.BooksDir,
			out:      os.Stdout,
			logger:   logger,
		}
		if conf.Database.Engine != database.EngineMemory {
			cli.runMigration = func(ctx context.Context, command string, args ...string) error {
				if db == nil {
					var err error
					if db, err = database.Open(ctx, conf); err != nil {
						return err
					}
				}
				return database.RunMigration(ctx, db, command, args...)
			}
		}

		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				logger.Error("admin command failed", err)
			}
			code = 1
		}
	})
	if err != nil {
		log.Fatal(err)
	}
	os.Exit(code)
}
