package main

import (
	"context"
	"os"

	"github.com/NaveenRoman/AI-TUTor/core/book"
	"github.com/NaveenRoman/AI-TUTor/core/institution"
)

func (cli *commandLine) loadBooks(ctx context.Context, dir string) error {
	_, catalog, err := book.NewLoader(cli.logger).Load(os.DirFS(dir))
	if err != nil {
		return err
	}
	if err = cli.bookSvc.SyncCatalog(ctx, catalog); err != nil {
		return err
	}
	for _, cb := range catalog {
		cli.println("Loaded", cb.Book.Slug, "-", len(cb.Chapters), "chapters")
	}
	return nil
}

func (cli *commandLine) createInstitution(ctx context.Context, ni institution.NewInstitution) error {
	if err := ni.Validate(cli.validate); err != nil {
		return err
	}
	inst, admin, err := cli.instSvc.Create(ctx, ni)
	if err != nil {
		return err
	}
	cli.println("Created institution", inst.Code, "with admin", admin.Username)
	cli.println("The admin credentials were sent to", admin.Email)
	return nil
}
