package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/profile"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
	appfs "github.com/Gokulakrishnan610/chicken-dinner/fs"
	emailsvc "github.com/Gokulakrishnan610/chicken-dinner/services/email"
	logsvc "github.com/Gokulakrishnan610/chicken-dinner/services/logger"
	"github.com/Gokulakrishnan610/chicken-dinner/storage/database"
	inmemdb "github.com/Gokulakrishnan610/chicken-dinner/storage/database/inmem"
	sqlxrepos "github.com/Gokulakrishnan610/chicken-dinner/storage/database/sqlx"
)

type repositories interface {
	user.Repository
	profile.Repository
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	// set up DB
	var (
		repos   repositories
		migrate migrateFunc
	)
	if conf.IsInMemoryDB() {
		repos = inmemdb.NewDB()
		migrate = func(string, ...string) error { return errNoDatabase }
	} else {
		db, err := database.Open(conf)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("Failed to close DB", err)
			}
		}()
		repos = sqlxrepos.NewStore(db)
		migrate = func(command string, args ...string) error {
			return database.Run(db, command, args...)
		}
	}

	// set up services
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswords, logger)

	tmpls, err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf)
	if err != nil {
		return err
	}
	mailSvc := emailsvc.NewConsoleService(conf, tmpls, logger)
	usrSvc := user.NewService(repos, profile.NewService(repos, validate), mailSvc, validate, conf, logger)

	// start CLI
	cli := &commandLine{
		usrSvc:     usrSvc,
		validate:   validate,
		translator: translator,
		migrate:    migrate,
		out:        os.Stdout,
	}
	return newRootCmd(cli).Execute()
}
