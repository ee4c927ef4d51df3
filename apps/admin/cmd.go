package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/book"
	"github.com/NaveenRoman/AI-TUTor/core/institution"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type migrateFunc func(ctx context.Context, command string, args ...string) error

type commandLine struct {
	usrRepo      user.Repository
	bookSvc      book.Service
	instSvc      institution.Service
	validate     *validator.Validate
	runMigration migrateFunc
	booksDir     string
	out          io.Writer
	logger       core.Logger
}

func (cli *commandLine) printUsage() {
	cli.println("Usage:")
	cli.println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	cli.println("  adduser -username USERNAME -email EMAIL [-name NAME] [-role ROLE] - add or update a user")
	cli.println("  migrate COMMAND [ARGS...] - run a goose migration command (up, down, status, version, redo...)")
	cli.println("  loadbooks [-dir DIR] - load the books directory into the catalog")
	cli.println("  createinstitution -name NAME -code CODE -email ADMIN_EMAIL [-plan PLAN] [-limit N] - onboard a college")
}

func (cli *commandLine) println(a ...interface{}) {
	_, _ = fmt.Fprintln(cli.out, a...)
}

func (cli *commandLine) promptPassword() (string, error) {
	_, _ = fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserRole := addUserCmd.String("role", "student", "One of student, company, college_admin, admin, owner.")

	loadBooksCmd := flag.NewFlagSet("loadbooks", flag.ContinueOnError)
	loadBooksDir := loadBooksCmd.String("dir", cli.booksDir, "The books directory: one folder per subject.")

	createInstCmd := flag.NewFlagSet("createinstitution", flag.ContinueOnError)
	createInstName := createInstCmd.String("name", "", "The institution's name.")
	createInstCode := createInstCmd.String("code", "", "The institution's unique code.")
	createInstEmail := createInstCmd.String("email", "", "The email of the college admin account to provision.")
	createInstPlan := createInstCmd.String("plan", institution.PlanFree, "The subscription plan.")
	createInstLimit := createInstCmd.Int("limit", 0, "The maximum number of students; 0 uses the plan default.")

	for _, fs := range []*flag.FlagSet{resetPasswordCmd, addUserCmd, loadBooksCmd, createInstCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *resetPasswordUname, pwd)

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(ctx, newUserArgs{
			name:     *addUserName,
			username: *addUserUname,
			email:    *addUserEmail,
			role:     *addUserRole,
			password: pwd,
		})

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])

	case "loadbooks":
		if err := loadBooksCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.loadBooks(ctx, *loadBooksDir)

	case "createinstitution":
		if err := createInstCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *createInstName == "" || *createInstCode == "" || *createInstEmail == "" {
			createInstCmd.Usage()
			return errHelp
		}
		return cli.createInstitution(ctx, institution.NewInstitution{
			Name:         *createInstName,
			Code:         *createInstCode,
			AdminEmail:   *createInstEmail,
			Plan:         *createInstPlan,
			StudentLimit: *createInstLimit,
		})

	default:
		cli.printUsage()
		return errHelp
	}
}
