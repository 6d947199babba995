package main

import (
	"bufio"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/tukerin/backend/core"
	"github.com/tukerin/backend/core/management"
	"github.com/tukerin/backend/core/user"
	emailsvc "github.com/tukerin/backend/services/email"
	logsvc "github.com/tukerin/backend/services/logger"
	"github.com/tukerin/backend/storage/database"
	sqlxrepos "github.com/tukerin/backend/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	logger = logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(logger, conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)

	// start CLI
	cli := commandLine{
		db:         db,
		conf:       conf,
		usrSvc:     user.NewService(sqlxrepos.NewUserRepository(db), logger),
		mgmtSvc:    management.NewService(sqlxrepos.NewManagementRepository(db), logger, emailsvc.NewService(conf, logger), conf),
		validate:   validate,
		translator: translator,
		stdin:      bufio.NewReader(os.Stdin),
		stdout:     os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			cli.printError(err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
