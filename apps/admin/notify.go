package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tukerin/backend/core"
	"github.com/tukerin/backend/core/management"
)

func (cli *commandLine) notifyCmd(args []string) error {
	fs := cli.newFlagSet("notify")
	userID := fs.String("user", "", "The id of the user to notify.")
	title := fs.String("title", "", "The notification title.")
	message := fs.String("message", "", "The notification message.")
	deadline := fs.String("deadline", "", "An optional deadline, as RFC3339.")
	yes := fs.Bool("yes", false, "Send without asking for confirmation.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *userID == "" {
		fs.Usage()
		return errHelp
	}

	nn := management.NewNotification{UserID: *userID, Title: *title, Message: *message}
	if *deadline != "" {
		t, err := time.Parse(time.RFC3339, *deadline)
		if err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "deadline", Error: "must be an RFC3339 time"})
		}
		nn.Deadline = &t
	}
	if err := nn.Validate(cli.validate); err != nil {
		return err
	}

	res, err := cli.mgmtSvc.SendNotification(context.Background(), nn, cli.confirmer(*yes), cli.noticer())
	if err != nil {
		return err
	}
	cli.printSendResult(res)
	return nil
}

func (cli *commandLine) broadcastCmd(args []string) error {
	fs := cli.newFlagSet("broadcast")
	title := fs.String("title", "", "The notification title.")
	message := fs.String("message", "", "The notification message.")
	roles := fs.String("role", "", "Comma separated roles to notify; every user when empty.")
	yes := fs.Bool("yes", false, "Send without asking for confirmation.")
	if err := parse(fs, args); err != nil {
		return err
	}

	nb := management.NewBroadcast{Title: *title, Message: *message}
	if *roles != "" {
		nb.Roles = strings.Split(*roles, ",")
	}
	if err := nb.Validate(cli.validate); err != nil {
		return err
	}

	res, err := cli.mgmtSvc.Broadcast(context.Background(), nb, cli.confirmer(*yes), cli.noticer())
	if err != nil {
		return err
	}
	cli.printSendResult(res)
	return nil
}

func (cli *commandLine) printSendResult(res management.SendResult) {
	if !res.Sent {
		cli.println("nothing sent")
		return
	}
	cli.println(fmt.Sprintf("sent to %d recipient(s)", res.Recipients))
}
