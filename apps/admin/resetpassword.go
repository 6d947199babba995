package main

import "context"

func (cli *commandLine) resetPasswordCmd(args []string) error {
	fs := cli.newFlagSet("resetpassword")
	email := fs.String("email", "", "The user's email. The password will be prompted next.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *email == "" {
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
	return cli.usrSvc.ResetPassword(context.Background(), *email, pwd)
}
