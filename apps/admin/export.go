package main

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/tukerin/backend/core"
	"github.com/tukerin/backend/core/management"
)

func (cli *commandLine) exportCmd(args []string) error {
	fs := cli.newFlagSet("export")
	typ := fs.String("type", "", "The table to export: users, schools or activities.")
	dir := fs.String("dir", cli.conf.ExportDir, "The directory the CSV file is written to.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *typ == "" {
		fs.Usage()
		return errHelp
	}

	dt, err := management.ParseDataType(*typ)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "type", Error: err.Error()})
	}

	var buf bytes.Buffer
	res, err := cli.mgmtSvc.Export(context.Background(), dt, &buf, cli.noticer())
	if err != nil || !res.Exported {
		return err
	}

	path := filepath.Join(*dir, res.Filename)
	if err = ioutil.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return errors.Wrap(err, "writing export")
	}
	cli.println(fmt.Sprintf("%d row(s) written to %s", res.Rows, path))
	return nil
}
