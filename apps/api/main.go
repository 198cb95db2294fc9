package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"net/http"
	"os"

	echoapi "github.com/koneum/eduwaly/apps/api/echo"
	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/permission"
	"github.com/koneum/eduwaly/core/plan"
	"github.com/koneum/eduwaly/core/school"
	"github.com/koneum/eduwaly/core/subscription"
	"github.com/koneum/eduwaly/core/user"
	emailsvc "github.com/koneum/eduwaly/services/email"
	logsvc "github.com/koneum/eduwaly/services/logger"
	"github.com/koneum/eduwaly/services/metrics"
	"github.com/koneum/eduwaly/storage/cache"
	"github.com/koneum/eduwaly/storage/database"
	boiledrepos "github.com/koneum/eduwaly/storage/database/sqlboiler"
	sqlxrepos "github.com/koneum/eduwaly/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(os.Stdout, conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// set up the plan catalog cache
	var planCache plan.Cache
	if conf.Cache.RedisAddress != "" {
		client := cache.NewRedisClient(conf)
		defer func() { _ = client.Close() }()
		planCache = cache.NewRedisPlanCache(client, conf.Cache.TTL, logger)
	} else {
		planCache = cache.NewPlanCache(conf.Cache.MaxSize, conf.Cache.TTL)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	usrRepo := boiledrepos.NewUserRepository(db)
	schoolRepo := boiledrepos.NewSchoolRepository(db)

	planSvc := plan.NewService(boiledrepos.NewPlanRepository(db), planCache, logger)
	subSvc := subscription.NewService(
		conf, boiledrepos.NewSubscriptionRepository(db), planSvc, schoolRepo, usrRepo, mailSvc, logger,
	)
	schoolSvc := school.NewService(schoolRepo, boiledrepos.NewSchoolUnitOfWork(db, subSvc), logger)
	usrSvc := user.NewService(usrRepo, subSvc, schoolSvc)
	permSvc := permission.NewService(conf, sqlxrepos.NewPermissionRepository(db), logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	plan.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /metrics - Prometheus counters of requests and access decisions.
	// /debug/vars - expvar.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	debugServer := metrics.NewServer(conf.Server.DebugAddress)
	go func() {
		if err := debugServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:            conf,
			Logger:          logger,
			Validate:        validate,
			Translator:      translator,
			UserSvc:         usrSvc,
			SchoolSvc:       schoolSvc,
			PlanSvc:         planSvc,
			SubscriptionSvc: subSvc,
			PermissionSvc:   permSvc,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		_ = debugServer.Shutdown(ctx)

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(context.Background(), db, "up"); err != nil {
		return nil, err
	}
	return db, nil
}
