package main

import (
	"context"

	"github.com/NaveenRoman/AI-TUTor/apps"
	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

var cliRoles = map[string][]string{
	"student":       {user.RoleStudent},
	"company":       {user.RoleCompany},
	"college_admin": {user.RoleCollegeAdmin},
	"admin":         {user.RoleAdmin},
	"owner":         {user.RoleAdminOwner},
}

type newUserArgs struct {
	name, username, email, role, password string
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, args newUserArgs) error {
	roles, ok := cliRoles[core.CleanString(args.role, true /* lower */)]
	if !ok {
		return apps.NewArgumentError("role", "unknown role "+args.role)
	}
	uname := core.CleanString(args.username, true /* lower */)
	email := core.CleanString(args.email, true /* lower */)
	if err := cli.validate.Var(email, "email"); err != nil {
		return apps.NewArgumentError("email", "invalid email "+email)
	}

	now := core.Now()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, email}})
	exists := err == nil
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr = user.User{Username: uname, Email: email, CreatedAt: now}
	}
	if name := core.CleanString(args.name); name != "" {
		usr.Name = name
	}
	usr.Roles = roles
	usr.IsActive = true
	usr.UpdatedAt = now
	if err := usr.SetPassword(args.password); err != nil {
		return err
	}

	if exists {
		usr, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		usr, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	if err != nil {
		return err
	}
	cli.println("Saved user", usr.Username, usr.Roles)
	return nil
}
