// Package scheduler runs the periodic background jobs.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
)

const (
	JobReportSchedules     = "report_schedules"
	JobCertificateExpiry   = "certificate_expiry"
	JobNotificationCleanup = "notification_cleanup"
)

type (
	ReportRunner interface {
		RunDueSchedules(ctx context.Context) (int, error)
	}

	ExpiryNotifier interface {
		NotifyExpiring(ctx context.Context, window time.Duration) (int, error)
	}

	NotificationPurger interface {
		PurgeExpired(ctx context.Context) (int, error)
	}

	// Observer is told the outcome of every job run (metrics).
	Observer interface {
		ObserveJob(job string, err error)
	}

	Deps struct {
		Reports       ReportRunner
		Certificates  ExpiryNotifier
		Notifications NotificationPurger
		Observer      Observer
		Logger        core.Logger
	}

	Scheduler struct {
		cron    *cron.Cron
		deps    Deps
		window  time.Duration
		timeout time.Duration
		jobs    map[string]func(ctx context.Context) (int, error)
	}
)

// New registers the jobs on their cron specs (5 fields, UTC). Overlapping runs of a job are skipped.
func New(conf *core.Config, std *log.Logger, deps Deps) (*Scheduler, error) {
	cronLogger := cron.PrintfLogger(std)
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		deps:    deps,
		window:  conf.Scheduler.CertificateExpiryWindow,
		timeout: 5 * time.Minute,
	}
	s.jobs = map[string]func(ctx context.Context) (int, error){
		JobReportSchedules:     deps.Reports.RunDueSchedules,
		JobCertificateExpiry:   func(ctx context.Context) (int, error) { return deps.Certificates.NotifyExpiring(ctx, s.window) },
		JobNotificationCleanup: deps.Notifications.PurgeExpired,
	}

	specs := []struct{ job, spec string }{
		{JobReportSchedules, conf.Scheduler.ReportSchedulesSpec},
		{JobCertificateExpiry, conf.Scheduler.CertificateExpirySpec},
		{JobNotificationCleanup, conf.Scheduler.NotificationCleanupSpec},
	}
	for _, js := range specs {
		job := js.job
		if _, err := s.cron.AddFunc(js.spec, func() { _, _ = s.Run(context.Background(), job) }); err != nil {
			return nil, errors.Wrapf(err, "scheduling %s (%q)", job, js.spec)
		}
	}
	return s, nil
}

// Run runs `job` once, now.
func (s *Scheduler) Run(ctx context.Context, job string) (int, error) {
	fn, ok := s.jobs[job]
	if !ok {
		return 0, errors.Errorf("unknown job %q", job)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := fn(ctx)
	if s.deps.Observer != nil {
		s.deps.Observer.ObserveJob(job, err)
	}
	if err != nil {
		s.deps.Logger.Error(fmt.Sprintf("running %s: %v", job, err), errors.Wrap(err, job))
	} else if n > 0 {
		s.deps.Logger.Info(fmt.Sprintf("%s: %d processed", job, n))
	}
	return n, err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling jobs and waits for the running ones, or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for running jobs")
	}
}
