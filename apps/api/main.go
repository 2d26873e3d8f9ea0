package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/agape/apps/api/echo"
	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/announcement"
	"github.com/trezcool/agape/core/billing"
	"github.com/trezcool/agape/core/enrollment"
	"github.com/trezcool/agape/core/expense"
	"github.com/trezcool/agape/core/grade"
	"github.com/trezcool/agape/core/portal"
	"github.com/trezcool/agape/core/user"
	emailsvc "github.com/trezcool/agape/services/email"
	"github.com/trezcool/agape/services/gateway/asaas"
	logsvc "github.com/trezcool/agape/services/logger"
	"github.com/trezcool/agape/services/ratelimit"
	"github.com/trezcool/agape/storage/database"
	boiledrepos "github.com/trezcool/agape/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/agape/storage/database/sqlx"
	redisdb "github.com/trezcool/agape/storage/redis"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up logger
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger(conf), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")

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

	// the portal login throttle is shared between instances through redis when available
	limiter := ratelimit.NewMemoryLimiter(conf.Portal.MaxLoginAttempts, conf.Portal.LoginWindow)
	if conf.RedisURL != "" {
		rdb, err := redisdb.Open(context.Background(), conf.RedisURL)
		if err != nil {
			logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
		}
		defer func() { _ = rdb.Close() }()
		limiter = ratelimit.NewRedisLimiter(rdb, conf.Portal.MaxLoginAttempts, conf.Portal.LoginWindow)
	}

	gateway, err := asaas.NewClient(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up payment gateway: %v", err), err)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator, conf.Billing.PhoneRegion)
	user.InitValidators(validate, translator)

	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(os.Stdout, logger, conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger, conf)
	}

	// set up services
	tx := core.NewTransactor(db)
	charges := boiledrepos.NewChargeRepository(db)
	grades := boiledrepos.NewGradeRepository(db)

	usrSvc := user.NewService(boiledrepos.NewUserRepository(db), validate, mailSvc, conf)
	enrollSvc := enrollment.NewService(tx, boiledrepos.NewEnrollmentRepository(db), logger, validate, charges, grades)
	billingSvc := billing.NewService(
		tx,
		charges,
		sqlxrepos.NewReportRepository(database.OpenX(db, conf)),
		gateway,
		enrollSvc,
		logger,
		validate,
		conf,
	)
	gradeSvc := grade.NewService(tx, grades, enrollSvc, validate)
	annSvc := announcement.NewService(boiledrepos.NewAnnouncementRepository(db), validate)
	portalSvc := portal.NewService(enrollSvc, billingSvc, gradeSvc, annSvc, limiter, logger, validate)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	if conf.Server.DebugHost != "" {
		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()
	}

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:            conf,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		UserSvc:         usrSvc,
		EnrollmentSvc:   enrollSvc,
		BillingSvc:      billingSvc,
		ExpenseSvc:      expense.NewService(boiledrepos.NewExpenseRepository(db), validate),
		GradeSvc:        gradeSvc,
		AnnouncementSvc: annSvc,
		PortalSvc:       portalSvc,
	})

	go server.Start()

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

	if err = database.Migrate(db, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
