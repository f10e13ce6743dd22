package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tungahq/payments/common"
	"github.com/tungahq/payments/framework/connection"
	"github.com/tungahq/payments/logger"
	"github.com/tungahq/payments/rails"
	"github.com/tungahq/payments/scheduler/dal"
	"github.com/tungahq/payments/scheduler/domain"
	"github.com/tungahq/payments/slack"
	"github.com/tungahq/payments/times"
)

// jobLeaseFor must outlast the slowest handler; ledger sweeps over a large
// backlog are the worst case.
const jobLeaseFor = 5 * time.Minute

// reportHour is the UTC hour on Monday after which the weekly reports job
// for the current week becomes due.
const reportHour = 7

// HandlerFunc runs one leased job. A nil return completes the job; rail
// errors are classified transient or permanent, everything else retries.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Scheduler owns the periodic enqueue tick and the worker pool draining the
// durable jobs collection. Multiple replicas may run it concurrently: the
// idempotency key dedupes enqueues and the per-job lease dedupes execution.
type Scheduler struct {
	loggerProvider logger.Provider
	conf           *common.Config
	jobsDAL        dal.Jobs
	notifier       slack.Notifier
	handlers       map[domain.JobKind]HandlerFunc
	worker         string
	now            func() time.Time
}

func NewScheduler(
	loggerProvider logger.Provider,
	conn *connection.Connection,
	conf *common.Config,
	notifier slack.Notifier,
) *Scheduler {
	return &Scheduler{
		loggerProvider: loggerProvider,
		conf:           conf,
		jobsDAL:        dal.NewJobsFirestoreWithClient(conn.Firestore),
		notifier:       notifier,
		handlers:       make(map[domain.JobKind]HandlerFunc),
		worker:         uuid.New().String(),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// NewSchedulerWithDeps wires explicit dependencies, used by tests.
func NewSchedulerWithDeps(
	loggerProvider logger.Provider,
	conf *common.Config,
	jobsDAL dal.Jobs,
	notifier slack.Notifier,
) *Scheduler {
	return &Scheduler{
		loggerProvider: loggerProvider,
		conf:           conf,
		jobsDAL:        jobsDAL,
		notifier:       notifier,
		handlers:       make(map[domain.JobKind]HandlerFunc),
		worker:         "test-worker",
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Register binds a handler to a job kind. Jobs of an unregistered kind are
// parked as DEAD rather than retried forever.
func (s *Scheduler) Register(kind domain.JobKind, handler HandlerFunc) {
	s.handlers[kind] = handler
}

// Run ticks until the context is canceled. Each tick enqueues whatever
// periodic jobs are due and drains the pending queue.
func (s *Scheduler) Run(ctx context.Context, tick time.Duration) error {
	log := s.loggerProvider(ctx)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		if err := s.EnqueueDue(ctx); err != nil {
			log.Errorf("scheduler enqueue: %v", err)
		}

		if err := s.ProcessPending(ctx); err != nil {
			log.Errorf("scheduler process: %v", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// EnqueueDue inserts the periodic jobs whose window contains now. The
// window timestamp is part of the idempotency key, so replicas ticking in
// the same window insert each job once.
func (s *Scheduler) EnqueueDue(ctx context.Context) error {
	now := s.now()

	due := []struct {
		kind   domain.JobKind
		window time.Time
	}{
		{domain.JobKindPayoutDispatch, now.Truncate(s.conf.PayoutCadence)},
		{domain.JobKindReminders, now.Truncate(time.Hour)},
		{domain.JobKindLedgerSweep, now.Truncate(s.conf.SweepCadence)},
	}

	// the weekly reports job becomes due Monday 07:00 UTC and is keyed by
	// the week start, so a late tick still produces the week's run
	weekStart, _ := times.WeekWindow(now)
	if !now.Before(weekStart.Add(reportHour * time.Hour)) {
		due = append(due, struct {
			kind   domain.JobKind
			window time.Time
		}{domain.JobKindWeeklyReports, weekStart})
	}

	for _, d := range due {
		if err := s.enqueue(ctx, d.kind, d.window, now); err != nil {
			return err
		}
	}

	return nil
}

func (s *Scheduler) enqueue(ctx context.Context, kind domain.JobKind, window, now time.Time) error {
	log := s.loggerProvider(ctx)

	key := jobKey(kind, window)

	created, err := s.jobsDAL.Enqueue(ctx, &domain.Job{
		ID:             key,
		Kind:           kind,
		IdempotencyKey: key,
		Status:         domain.JobStatusPending,
		CreatedAt:      now,
	})
	if err != nil {
		return err
	}

	if created {
		log.Infof("enqueued job %s", key)
	}

	return nil
}

// ProcessPending leases a batch of runnable jobs and runs them on the
// worker pool. Permanent failures within the batch produce a single
// operator alert.
func (s *Scheduler) ProcessPending(ctx context.Context) error {
	log := s.loggerProvider(ctx)

	jobs, err := s.jobsDAL.LeasePending(ctx, s.worker, s.conf.Workers*4, jobLeaseFor)
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		return nil
	}

	var (
		mu   sync.Mutex
		dead []string
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.conf.Workers)

	for _, job := range jobs {
		job := job

		group.Go(func() error {
			if permanent := s.runJob(groupCtx, job); permanent {
				mu.Lock()
				dead = append(dead, job.ID)
				mu.Unlock()
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	if len(dead) > 0 {
		text := fmt.Sprintf("scheduler parked %d job(s) as dead: %v", len(dead), dead)
		if err := s.notifier.PostMessage(ctx, text); err != nil {
			log.Errorf("dead job alert: %v", err)
		}
	}

	return nil
}

// runJob executes one leased job and settles its status. The return value
// reports whether the job failed permanently.
func (s *Scheduler) runJob(ctx context.Context, job *domain.Job) bool {
	log := s.loggerProvider(ctx)

	handler, ok := s.handlers[job.Kind]
	if !ok {
		log.Errorf("job %s has unregistered kind %s", job.ID, job.Kind)

		if err := s.jobsDAL.Fail(ctx, job.ID, true); err != nil {
			log.Errorf("failing job %s: %v", job.ID, err)
		}

		return true
	}

	err := handler(ctx, job.Payload)
	if err == nil {
		if err := s.jobsDAL.Complete(ctx, job.ID); err != nil {
			log.Errorf("completing job %s: %v", job.ID, err)
		}

		return false
	}

	permanent := rails.IsPermanent(err)
	log.Errorf("job %s attempt %d failed (permanent=%v): %v", job.ID, job.Attempt, permanent, err)

	if err := s.jobsDAL.Fail(ctx, job.ID, permanent); err != nil {
		log.Errorf("failing job %s: %v", job.ID, err)
	}

	return permanent
}

func jobKey(kind domain.JobKind, window time.Time) string {
	return fmt.Sprintf("%s-%s", kind, window.UTC().Format("2006-01-02T15-04"))
}
