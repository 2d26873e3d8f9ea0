package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/billing"
	"github.com/trezcool/agape/core/enrollment"
	"github.com/trezcool/agape/core/user"
	emailsvc "github.com/trezcool/agape/services/email"
	"github.com/trezcool/agape/services/gateway/asaas"
	"github.com/trezcool/agape/services/joblock"
	logsvc "github.com/trezcool/agape/services/logger"
	"github.com/trezcool/agape/storage/database"
	boiledrepos "github.com/trezcool/agape/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/agape/storage/database/sqlx"
	redisdb "github.com/trezcool/agape/storage/redis"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger(conf), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() { _ = db.Close() }()

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

	locker := joblock.NewLocalLocker()
	if conf.RedisURL != "" {
		rdb, err := redisdb.Open(context.Background(), conf.RedisURL)
		if err != nil {
			logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
		}
		defer func() { _ = rdb.Close() }()
		locker = joblock.NewRedisLocker(rdb)
	}

	gateway, err := asaas.NewClient(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up payment gateway: %v", err), err)
	}

	tx := core.NewTransactor(db)
	charges := boiledrepos.NewChargeRepository(db)
	enrollSvc := enrollment.NewService(
		tx, boiledrepos.NewEnrollmentRepository(db), logger, validate,
		charges, boiledrepos.NewGradeRepository(db),
	)

	// start CLI
	cli := commandLine{
		db:     db,
		usrSvc: user.NewService(boiledrepos.NewUserRepository(db), validate, mailSvc, conf),
		billingSvc: billing.NewService(
			tx, charges, sqlxrepos.NewReportRepository(database.OpenX(db, conf)),
			gateway, enrollSvc, logger, validate, conf,
		),
		mailSvc: mailSvc,
		locker:  locker,
		conf:    conf,
		out:     os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", errorText(err, translator))
		}
		os.Exit(1)
	}
}

// errorText spells out validation errors field by field.
func errorText(err error, translator ut.Translator) string {
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		msgs := make([]string, 0, len(vErrs))
		for _, fe := range vErrs {
			msgs = append(msgs, fe.Field()+": "+fe.Translate(translator))
		}
		return strings.Join(msgs, "; ")
	}
	return err.Error()
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
