// mealctl is the operator CLI for the meal program client: log in, record
// attendance, inspect the offline queue, toggle network mode, force a sync.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/sekolahmbg/mbg-client/api"
	"github.com/sekolahmbg/mbg-client/core"
	"github.com/sekolahmbg/mbg-client/core/attendance"
	"github.com/sekolahmbg/mbg-client/core/auth"
	"github.com/sekolahmbg/mbg-client/core/netmode"
	"github.com/sekolahmbg/mbg-client/core/offline"
	"github.com/sekolahmbg/mbg-client/core/report"
	"github.com/sekolahmbg/mbg-client/core/session"
	logsvc "github.com/sekolahmbg/mbg-client/services/logger"
	"github.com/sekolahmbg/mbg-client/services/netcheck"
	"github.com/sekolahmbg/mbg-client/storage/kv"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "MEALCTL : ", log.LstdFlags)

	conf := core.NewConfig()
	coreLogger := logsvc.NewConsoleLogger(logger)
	coreLogger.Enable(conf.Debug)

	store, err := kv.NewFileStore(conf.DataDir, coreLogger)
	errAndDie(err)
	secrets := kv.NewSecretStore(store, conf.DataDir, coreLogger)

	sessions := session.NewStore(store, conf.SessionKey, coreLogger)
	resolver := netmode.NewResolver(store, conf)
	client := api.NewClient(conf, sessions, resolver, secrets, coreLogger)

	queue := offline.NewQueue(store)
	checker := netcheck.NewChecker(resolver, sessions)
	engine := offline.NewEngine(queue, client, checker, coreLogger)

	validate := validator.New()
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)

	cli := commandLine{
		sessions:   sessions,
		resolver:   resolver,
		engine:     engine,
		authSvc:    auth.NewService(client, sessions, validate),
		attendance: attendance.NewService(client, engine, validate),
		reports:    report.NewService(client, engine, validate),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			printError(core.TranslateValidationErrors(err, translator))
		}
		os.Exit(1)
	}
}

func printError(err error) {
	if vErr, ok := err.(*core.ValidationError); ok {
		fmt.Fprintf(os.Stderr, "\nerror: %s\n", vErr.Error())
		for _, fld := range vErr.Fields {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", fld.Field, fld.Error)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
