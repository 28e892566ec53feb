package scheduler

import (
	"bytes"
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
)

type fakeJobs struct {
	mu      sync.Mutex
	window  time.Duration
	runs    map[string]int
	failing bool
}

func (f *fakeJobs) record(job string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[job]++
	if f.failing {
		return 0, errors.New("db down")
	}
	return 2, nil
}

func (f *fakeJobs) RunDueSchedules(context.Context) (int, error) { return f.record(JobReportSchedules) }

func (f *fakeJobs) NotifyExpiring(_ context.Context, window time.Duration) (int, error) {
	f.mu.Lock()
	f.window = window
	f.mu.Unlock()
	return f.record(JobCertificateExpiry)
}

func (f *fakeJobs) PurgeExpired(context.Context) (int, error) { return f.record(JobNotificationCleanup) }

type recordedJob struct {
	job string
	err error
}

type fakeObserver struct {
	observed []recordedJob
}

func (o *fakeObserver) ObserveJob(job string, err error) {
	o.observed = append(o.observed, recordedJob{job, err})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newScheduler(t *testing.T, conf *core.Config, jobs *fakeJobs, obs *fakeObserver) *Scheduler {
	t.Helper()
	s, err := New(conf, log.New(&bytes.Buffer{}, "", 0), Deps{
		Reports:       jobs,
		Certificates:  jobs,
		Notifications: jobs,
		Observer:      obs,
		Logger:        nopLogger{},
	})
	require.NoError(t, err)
	return s
}

func TestScheduler_Run(t *testing.T) {
	ctx := context.Background()
	conf := core.NewTestConfig()
	jobs := &fakeJobs{runs: make(map[string]int)}
	obs := &fakeObserver{}
	s := newScheduler(t, conf, jobs, obs)

	for _, job := range []string{JobReportSchedules, JobCertificateExpiry, JobNotificationCleanup} {
		n, err := s.Run(ctx, job)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 1, jobs.runs[job])
	}
	assert.Equal(t, conf.Scheduler.CertificateExpiryWindow, jobs.window)
	assert.Len(t, obs.observed, 3)

	jobs.failing = true
	_, err := s.Run(ctx, JobReportSchedules)
	assert.Error(t, err)
	assert.Equal(t, recordedJob{JobReportSchedules, err}, obs.observed[3])

	_, err = s.Run(ctx, "backup")
	assert.Error(t, err)
	assert.Len(t, obs.observed, 4)
}

func TestNew_invalidSpec(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Scheduler.CertificateExpirySpec = "every morning"
	_, err := New(conf, log.New(&bytes.Buffer{}, "", 0), Deps{
		Reports:       &fakeJobs{},
		Certificates:  &fakeJobs{},
		Notifications: &fakeJobs{},
		Logger:        nopLogger{},
	})
	assert.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	s := newScheduler(t, core.NewTestConfig(), &fakeJobs{runs: make(map[string]int)}, &fakeObserver{})
	assert.Len(t, s.cron.Entries(), 3)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
