package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/user"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	"github.com/trezcool/mahudhurio/storage"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	stores, err := storage.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	var db *sql.DB
	if stores.DB != nil {
		db = stores.DB.DB
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	// start CLI
	schoolSvc := school.NewService(stores.Schools)
	cli := commandLine{
		conf:      conf,
		db:        db,
		usrRepo:   stores.Users,
		usrSvc:    user.NewService(stores.Users, nil, conf, logger),
		schoolSvc: schoolSvc,
		attSvc:    attendance.NewService(stores.TxDB(), stores.Attendance, schoolSvc, conf, logger),
		validate:  validate,
		out:       os.Stdout,
	}
	err = cli.run(os.Args)
	if cerr := stores.Close(); cerr != nil {
		logger.Error(fmt.Sprintf("closing database: %v", cerr), cerr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
