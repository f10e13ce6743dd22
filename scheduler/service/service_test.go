package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/tungahq/payments/common"
	"github.com/tungahq/payments/logger"
	"github.com/tungahq/payments/rails"
	jobMocks "github.com/tungahq/payments/scheduler/dal/mocks"
	"github.com/tungahq/payments/scheduler/domain"
	slackMocks "github.com/tungahq/payments/slack/mocks"
)

// Wednesday July 17th 2024, well past Monday 07:00 UTC.
var testTime = time.Date(2024, 7, 17, 9, 3, 0, 0, time.UTC)

type fields struct {
	jobs     *jobMocks.Jobs
	notifier *slackMocks.Notifier
}

func newFields() *fields {
	return &fields{
		jobs:     &jobMocks.Jobs{},
		notifier: &slackMocks.Notifier{},
	}
}

func newTestScheduler(f *fields) *Scheduler {
	s := NewSchedulerWithDeps(
		logger.FromContext,
		&common.Config{
			PayoutCadence: 5 * time.Minute,
			SweepCadence:  time.Hour,
			Workers:       2,
		},
		f.jobs,
		f.notifier,
	)
	s.now = func() time.Time { return testTime }

	return s
}

func expectEnqueue(f *fields, key string) {
	f.jobs.On("Enqueue", mock.Anything, mock.MatchedBy(func(job *domain.Job) bool {
		return job.ID == key && job.IdempotencyKey == key && job.Status == domain.JobStatusPending
	})).Return(true, nil).Once()
}

func TestEnqueueDue_WindowKeys(t *testing.T) {
	f := newFields()

	// 09:03 truncates to the 09:00 five-minute and hourly windows
	expectEnqueue(f, "payout-dispatch-2024-07-17T09-00")
	expectEnqueue(f, "invoice-reminders-2024-07-17T09-00")
	expectEnqueue(f, "ledger-sweep-2024-07-17T09-00")
	expectEnqueue(f, "weekly-reports-2024-07-15T00-00")

	s := newTestScheduler(f)

	assert.NoError(t, s.EnqueueDue(context.Background()))
	f.jobs.AssertExpectations(t)
}

func TestEnqueueDue_WeeklyReportsNotDueBeforeMondayMorning(t *testing.T) {
	f := newFields()
	f.jobs.On("Enqueue", mock.Anything, mock.Anything).Return(true, nil)

	s := newTestScheduler(f)
	// Monday 06:59 UTC, one minute before the reports window opens
	s.now = func() time.Time { return time.Date(2024, 7, 15, 6, 59, 0, 0, time.UTC) }

	assert.NoError(t, s.EnqueueDue(context.Background()))

	for _, call := range f.jobs.Calls {
		job := call.Arguments.Get(1).(*domain.Job)
		assert.NotEqual(t, domain.JobKindWeeklyReports, job.Kind)
	}
}

func TestProcessPending_CompletesSuccessfulJob(t *testing.T) {
	job := &domain.Job{ID: "ledger-sweep-2024-07-17T09-00", Kind: domain.JobKindLedgerSweep}

	f := newFields()
	f.jobs.On("LeasePending", mock.Anything, "test-worker", 8, jobLeaseFor).
		Return([]*domain.Job{job}, nil)
	f.jobs.On("Complete", mock.Anything, job.ID).Return(nil).Once()

	s := newTestScheduler(f)

	ran := false
	s.Register(domain.JobKindLedgerSweep, func(ctx context.Context, _ json.RawMessage) error {
		ran = true
		return nil
	})

	assert.NoError(t, s.ProcessPending(context.Background()))
	assert.True(t, ran)
	f.jobs.AssertExpectations(t)
	f.notifier.AssertNotCalled(t, "PostMessage", mock.Anything, mock.Anything)
}

func TestProcessPending_TransientFailureRequeues(t *testing.T) {
	job := &domain.Job{ID: "payout-dispatch-2024-07-17T09-00", Kind: domain.JobKindPayoutDispatch, Attempt: 1}

	f := newFields()
	f.jobs.On("LeasePending", mock.Anything, "test-worker", 8, jobLeaseFor).
		Return([]*domain.Job{job}, nil)
	f.jobs.On("Fail", mock.Anything, job.ID, false).Return(nil).Once()

	s := newTestScheduler(f)
	s.Register(domain.JobKindPayoutDispatch, func(ctx context.Context, _ json.RawMessage) error {
		return rails.NewTransient("payoneer", errors.New("gateway timeout"))
	})

	assert.NoError(t, s.ProcessPending(context.Background()))
	f.jobs.AssertExpectations(t)
	f.jobs.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "PostMessage", mock.Anything, mock.Anything)
}

func TestProcessPending_PermanentFailureParksAndAlertsOnce(t *testing.T) {
	first := &domain.Job{ID: "job-a", Kind: domain.JobKindPayoutDispatch}
	second := &domain.Job{ID: "job-b", Kind: domain.JobKindPayoutDispatch}

	f := newFields()
	f.jobs.On("LeasePending", mock.Anything, "test-worker", 8, jobLeaseFor).
		Return([]*domain.Job{first, second}, nil)
	f.jobs.On("Fail", mock.Anything, "job-a", true).Return(nil).Once()
	f.jobs.On("Fail", mock.Anything, "job-b", true).Return(nil).Once()
	f.notifier.On("PostMessage", mock.Anything, mock.Anything).Return(nil).Once()

	s := newTestScheduler(f)
	s.Register(domain.JobKindPayoutDispatch, func(ctx context.Context, _ json.RawMessage) error {
		return rails.NewPermanent("payoneer", errors.New("program misconfigured"))
	})

	assert.NoError(t, s.ProcessPending(context.Background()))
	f.jobs.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestProcessPending_UnregisteredKindIsParked(t *testing.T) {
	job := &domain.Job{ID: "job-x", Kind: domain.JobKind("unknown")}

	f := newFields()
	f.jobs.On("LeasePending", mock.Anything, "test-worker", 8, jobLeaseFor).
		Return([]*domain.Job{job}, nil)
	f.jobs.On("Fail", mock.Anything, "job-x", true).Return(nil).Once()
	f.notifier.On("PostMessage", mock.Anything, mock.Anything).Return(nil).Once()

	s := newTestScheduler(f)

	assert.NoError(t, s.ProcessPending(context.Background()))
	f.jobs.AssertExpectations(t)
}

func TestProcessPending_EmptyQueueIsQuiet(t *testing.T) {
	f := newFields()
	f.jobs.On("LeasePending", mock.Anything, "test-worker", 8, jobLeaseFor).
		Return([]*domain.Job(nil), nil)

	s := newTestScheduler(f)

	assert.NoError(t, s.ProcessPending(context.Background()))
	f.notifier.AssertNotCalled(t, "PostMessage", mock.Anything, mock.Anything)
}
