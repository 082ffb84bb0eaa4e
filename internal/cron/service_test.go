package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/harvestdesk/farmops-backend/pkg/logger"
	"github.com/harvestdesk/farmops-backend/pkg/metrics"
)

type fakeLock struct {
	acquired bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.acquired = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

type panickyJob struct{}

func (panickyJob) Name() string              { return "panicky" }
func (panickyJob) Run(context.Context) error { panic("nil map") }

func newTestService(t *testing.T, lock Lock, reg prometheus.Registerer, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	require.NoError(t, err)
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	return service
}

func TestRunOnceRunsEveryJobAndJoinsFailures(t *testing.T) {
	ok := &testJob{name: "success"}
	failing := &testJob{name: "fail", err: errors.New("boom")}
	lock := &fakeLock{}
	reg := prometheus.NewRegistry()
	service := newTestService(t, lock, reg, failing, ok, panickyJob{})

	err := service.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "fail: boom")
	assert.ErrorContains(t, err, "panicky: panic: nil map")
	assert.Len(t, multierr.Errors(err), 2)

	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 1, lock.releases)
	assert.False(t, lock.acquired)

	count, err := testutil.GatherAndCount(reg, "farmops_cron_job_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRunOnceSelectsNamedJobs(t *testing.T) {
	segments := &testJob{name: "segment-refresh"}
	journal := &testJob{name: "journal-retention"}
	service := newTestService(t, nil, nil, segments, journal)

	require.NoError(t, service.RunOnce(context.Background(), "journal-retention"))
	assert.Zero(t, segments.runs)
	assert.Equal(t, 1, journal.runs)

	assert.Error(t, service.RunOnce(context.Background(), "nope"))
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "segment-refresh"}
	lock := &fakeLock{acquired: true}
	service := newTestService(t, lock, nil, job)

	require.NoError(t, service.RunOnce(context.Background()))
	assert.Zero(t, job.runs)
	assert.Zero(t, lock.releases)
}

func TestLocalLockAllowsSequentialCycles(t *testing.T) {
	job := &testJob{name: "journal-retention"}
	service := newTestService(t, nil, nil, job)

	require.NoError(t, service.RunOnce(context.Background()))
	require.NoError(t, service.RunOnce(context.Background()))
	assert.Equal(t, 2, job.runs)
}

func TestRunRepeatsUntilCancelled(t *testing.T) {
	job := &testJob{name: "outbox-retention"}
	service := newTestService(t, nil, nil, job)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := service.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, job.runs, 2)
}

func TestRunReturnsImmediatelyWhenCancelled(t *testing.T) {
	job := &testJob{name: "outbox-retention"}
	service := newTestService(t, nil, nil, job)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, service.Run(ctx), context.Canceled)
	assert.Zero(t, job.runs)
}

func TestNewServiceRequiresLogger(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}
