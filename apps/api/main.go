package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/Gokulakrishnan610/chicken-dinner/apps/api/echo"
	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/achievement"
	"github.com/Gokulakrishnan610/chicken-dinner/core/certificate"
	"github.com/Gokulakrishnan610/chicken-dinner/core/dashboard"
	"github.com/Gokulakrishnan610/chicken-dinner/core/notification"
	"github.com/Gokulakrishnan610/chicken-dinner/core/profile"
	"github.com/Gokulakrishnan610/chicken-dinner/core/report"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
	"github.com/Gokulakrishnan610/chicken-dinner/core/volunteering"
	appfs "github.com/Gokulakrishnan610/chicken-dinner/fs"
	emailsvc "github.com/Gokulakrishnan610/chicken-dinner/services/email"
	logsvc "github.com/Gokulakrishnan610/chicken-dinner/services/logger"
	"github.com/Gokulakrishnan610/chicken-dinner/services/metrics"
	"github.com/Gokulakrishnan610/chicken-dinner/services/scheduler"
	"github.com/Gokulakrishnan610/chicken-dinner/storage/database"
	inmemdb "github.com/Gokulakrishnan610/chicken-dinner/storage/database/inmem"
	sqlxrepos "github.com/Gokulakrishnan610/chicken-dinner/storage/database/sqlx"
)

// repositories is implemented by every storage backend.
type repositories interface {
	user.Repository
	profile.Repository
	achievement.Repository
	certificate.Repository
	volunteering.Repository
	notification.Repository
	report.Repository
	submission.Store
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	var repos repositories
	if conf.IsInMemoryDB() {
		logger.Warn("using the in-memory database; data will not survive a restart")
		repos = inmemdb.NewDB()
	} else {
		db, err := setUpDB(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err = db.Close(); err != nil {
				dbLogger.Error("Failed to close", err)
			}
		}()
		repos = sqlxrepos.NewStore(db)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	tmpls, err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswords, logger)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, tmpls, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, tmpls, logger)
	}
	mtr := metrics.New()

	profileSvc := profile.NewService(repos, validate)
	usrSvc := user.NewService(repos, profileSvc, mailSvc, validate, conf, logger)
	notifSvc := notification.NewService(repos, validate)
	submissionSvc := submission.NewService(repos, notifSvc, mtr, validate, logger)
	certificateSvc := certificate.NewService(repos, notifSvc, validate, logger)
	reportSvc := report.NewService(repos, mailSvc, validate, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Scheduler

	var sched *scheduler.Scheduler
	if conf.Scheduler.Enabled {
		sched, err = scheduler.New(
			conf,
			log.New(os.Stdout, "CRON : ", log.LstdFlags|log.Lmicroseconds),
			scheduler.Deps{
				Reports:       reportSvc,
				Certificates:  certificateSvc,
				Notifications: notifSvc,
				Observer:      mtr,
				Logger:        logger,
			},
		)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up scheduler: %v", err), err)
		}
		sched.Start()
	}

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:            conf,
			Logger:          logger,
			Metrics:         mtr,
			Validate:        validate,
			Translator:      translator,
			UserSvc:         usrSvc,
			ProfileSvc:      profileSvc,
			SubmissionSvc:   submissionSvc,
			AchievementSvc:  achievement.NewService(repos, validate),
			CertificateSvc:  certificateSvc,
			VolunteeringSvc: volunteering.NewService(repos, validate),
			NotificationSvc: notifSvc,
			ReportSvc:       reportSvc,
			DashboardSvc:    dashboard.NewService(usrSvc, submissionSvc, profileSvc, notifSvc),
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

		if sched != nil {
			if err = sched.Stop(ctx); err != nil {
				logger.Warn(fmt.Sprintf("scheduler did not stop in time: %v", err), err)
			}
		}

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
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
