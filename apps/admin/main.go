package main

import (
	"fmt"
	"os"

	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/permission"
	"github.com/koneum/eduwaly/core/plan"
	"github.com/koneum/eduwaly/core/school"
	"github.com/koneum/eduwaly/core/user"
	logsvc "github.com/koneum/eduwaly/services/logger"
	"github.com/koneum/eduwaly/storage/database"
	boiledrepos "github.com/koneum/eduwaly/storage/database/sqlboiler"
	sqlxrepos "github.com/koneum/eduwaly/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(os.Stdout, conf)
	logger.Enable(false)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = db.Ping(); err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}

	usrRepo := boiledrepos.NewUserRepository(db)
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:         db,
		usrRepo:    usrRepo,
		usrSvc:     user.NewService(usrRepo, nil, school.NewService(boiledrepos.NewSchoolRepository(db), nil, logger)),
		planSvc:    plan.NewService(boiledrepos.NewPlanRepository(db), nil, logger),
		permSvc:    permission.NewService(conf, sqlxrepos.NewPermissionRepository(db), logger),
		validate:   validate,
		translator: translator,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}
