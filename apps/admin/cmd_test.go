package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NaveenRoman/AI-TUTor/apps"
	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/activity"
	"github.com/NaveenRoman/AI-TUTor/core/book"
	"github.com/NaveenRoman/AI-TUTor/core/institution"
	"github.com/NaveenRoman/AI-TUTor/core/user"
	emailsvc "github.com/NaveenRoman/AI-TUTor/services/email"
	"github.com/NaveenRoman/AI-TUTor/storage/database"
	inmemdb "github.com/NaveenRoman/AI-TUTor/storage/database/inmem"
	"github.com/NaveenRoman/AI-TUTor/tests"
)

var repos *database.Repositories

func setup(t *testing.T) *commandLine {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(t)
	validate, _ := testutil.NewValidator()
	core.ParseEmailTemplates(logger)

	repos = database.NewMemoryRepositories(inmemdb.Open())
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	userSvc := user.NewServiceMock(repos.User, mailSvc, conf, logger)
	activitySvc := activity.NewService(repos.Activity)

	return &commandLine{
		usrRepo:  repos.User,
		bookSvc:  book.NewService(repos.Book, book.NewKnowledgeBase(), userSvc, activitySvc, logger),
		instSvc:  institution.NewService(repos.Institution, userSvc, mailSvc, conf, logger),
		validate: validate,
		out:      new(bytes.Buffer),
		logger:   logger,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErrStr, err.Error())
				}
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	runCLITests(t, cli, []cliTest{
		{name: "no migrations", args: []string{"migrate", "up"}, wantErr: errNoMigrations},
	})

	cli.runMigration = func(_ context.Context, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return errors.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return errors.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return errors.New("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return errors.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCLITests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "placement_drives", "sql"}},
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, repos.User, "User", "awe", "awe@test.in", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", "AWE@test.in"}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			refreshedUsr, err := repos.User.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.NoError(t, refreshedUsr.CheckPassword(tt.extra.(extra).pwd))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("s3cret!Pass"), nil }

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-username", "root"}, wantErr: errHelp},
		{
			name:    "unknown role",
			args:    []string{"adduser", "-username", "root", "-email", "root@test.in", "-role", "god"},
			wantErr: apps.NewArgumentError("role", "unknown role god"),
		},
		{
			name:       "invalid email",
			args:       []string{"adduser", "-username", "root", "-email", "root"},
			wantErrStr: "-email: invalid email root",
		},
		{name: "create owner", args: []string{"adduser", "-username", "Root", "-email", "root@test.in", "-role", "owner"}},
		{name: "update", args: []string{"adduser", "-username", "root", "-email", "root@test.in", "-name", "Super User", "-role", "admin"}},
	})

	usr, err := repos.User.GetUser(context.Background(), user.GetFilter{Username: "root"})
	require.NoError(t, err)
	assert.Equal(t, "Super User", usr.Name)
	assert.Equal(t, []string{user.RoleAdmin}, usr.Roles)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("s3cret!Pass"))
}

func Test_commandLine_loadBooks(t *testing.T) {
	cli := setup(t)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "python"), 0o755))
	page := `<html><head><title>Introduction</title></head><body>
<h1>Variables</h1><p>A variable stores a value. Names are case sensitive.</p>
</body></html>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "python", "1_intro.html"), []byte(page), 0o644))

	assert.Error(t, cli.run([]string{"admin", "loadbooks", "-dir", filepath.Join(dir, "nope")}))
	require.NoError(t, cli.run([]string{"admin", "loadbooks", "-dir", dir}))

	books, err := cli.bookSvc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "python", books[0].Slug)
}

func Test_commandLine_createInstitution(t *testing.T) {
	cli := setup(t)

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"createinstitution"}, wantErr: errHelp},
		{name: "create", args: []string{"createinstitution", "-name", "City College", "-code", "city", "-email", "head@city.in"}},
	})

	err := cli.run([]string{"admin", "createinstitution", "-name", "Other", "-code", "city", "-email", "x@city.in"})
	require.IsType(t, &core.ValidationError{}, err)
	assert.Equal(t, institution.ErrCodeExists, err.(*core.ValidationError).Err)
}
