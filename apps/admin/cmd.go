package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/tukerin/backend/core"
	"github.com/tukerin/backend/core/management"
	"github.com/tukerin/backend/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sqlx.DB
	conf       *core.Config
	usrSvc     *user.Service
	mgmtSvc    *management.Service
	validate   *validator.Validate
	translator ut.Translator
	stdin      *bufio.Reader
	stdout     io.Writer
}

func (cli *commandLine) printUsage() {
	cli.println("Usage:")
	cli.println("  migrate COMMAND [ARGS] - run a goose command against the embedded migrations")
	cli.println("  adduser -email EMAIL -name NAME [-school SCHOOL_ID] - create a management account")
	cli.println("  resetpassword -email EMAIL - reset a user's password")
	cli.println("  stats - print the dashboard headline figures")
	cli.println("  schools [-limit N] - print the school ranking")
	cli.println("  activities [-limit N] - print the activity feed")
	cli.println("  notify -user USER_ID -title TITLE -message MESSAGE [-deadline RFC3339] [-yes] - notify a user")
	cli.println("  broadcast -title TITLE -message MESSAGE [-role ROLE,...] [-yes] - notify every user, or those with a role")
	cli.println("  export -type users|schools|activities [-dir DIR] - export a table as CSV")
}

func (cli *commandLine) println(a ...interface{}) {
	_, _ = fmt.Fprintln(cli.stdout, a...)
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.stdout)
	return fs
}

// parse parses args into fs, turning -h into errHelp.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errHelp
		}
		return err
	}
	return nil
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword(prompt string) (string, error) {
	_, _ = fmt.Fprint(cli.stdout, prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

// confirmer asks on the terminal before any write; skip answers yes on the user's behalf.
func (cli *commandLine) confirmer(skip bool) management.Confirmer {
	return management.ConfirmFunc(func(_ context.Context, intent management.Intent) (management.Decision, error) {
		if skip {
			return management.Accepted, nil
		}
		_, _ = fmt.Fprintf(cli.stdout, "%s [y/N] ", intent.Summary())
		answer, err := cli.stdin.ReadString('\n')
		if err != nil && err != io.EOF {
			return management.Declined, err
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return management.Accepted, nil
		}
		return management.Declined, nil
	})
}

func (cli *commandLine) noticer() management.Noticer {
	return management.NoticeFunc(func(n management.Notice) {
		_, _ = fmt.Fprintf(cli.stdout, "[%s] %s %s\n", n.Level, n.Title, n.Text)
	})
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch cmd, cmdArgs := args[1], args[2:]; cmd {
	case "migrate":
		if len(cmdArgs) == 0 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(cmdArgs)
	case "adduser":
		return cli.addUserCmd(cmdArgs)
	case "resetpassword":
		return cli.resetPasswordCmd(cmdArgs)
	case "stats", "schools", "activities":
		return cli.reportCmd(cmd, cmdArgs)
	case "notify":
		return cli.notifyCmd(cmdArgs)
	case "broadcast":
		return cli.broadcastCmd(cmdArgs)
	case "export":
		return cli.exportCmd(cmdArgs)
	default:
		cli.printUsage()
		return errHelp
	}
}

// printError prints err, field by field when it is a validation failure.
func (cli *commandLine) printError(err error) {
	if fields, ok := core.FieldErrors(err, cli.translator); ok {
		cli.println("\nerror: invalid input")
		for fld, msg := range fields {
			_, _ = fmt.Fprintf(cli.stdout, "  %s: %s\n", fld, msg)
		}
		return
	}
	_, _ = fmt.Fprintf(cli.stdout, "\nerror: %s\n", err)
}
