package main

import (
	"context"

	"github.com/tukerin/backend/core/user"
)

func (cli *commandLine) addUserCmd(args []string) error {
	fs := cli.newFlagSet("adduser")
	email := fs.String("email", "", "The manager's email. The password will be prompted next.")
	name := fs.String("name", "", "The manager's full name.")
	school := fs.String("school", "", "The id of the manager's school, if any.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *email == "" || *name == "" {
		fs.Usage()
		return errHelp
	}

	pwd, err := cli.promptPassword("Enter password:")
	if err != nil {
		return err
	}
	if pwd == "" {
		fs.Usage()
		return errHelp
	}
	pwdConfirm, err := cli.promptPassword("Confirm password:")
	if err != nil {
		return err
	}

	return cli.addUser(user.NewManager{
		FullName:        *name,
		Email:           *email,
		SchoolID:        *school,
		Password:        pwd,
		PasswordConfirm: pwdConfirm,
	})
}

// addUser provisions a management account from nm.
func (cli *commandLine) addUser(nm user.NewManager) error {
	if err := nm.Validate(cli.validate); err != nil {
		return err
	}
	usr, err := cli.usrSvc.CreateManager(context.Background(), nm)
	if err != nil {
		return err
	}
	cli.println("created manager", usr.Email, "("+usr.ID+")")
	return nil
}
