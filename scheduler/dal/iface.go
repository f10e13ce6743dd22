package dal

import (
	"context"
	"time"

	"github.com/tungahq/payments/scheduler/domain"
)

//go:generate mockery --name Leases --output ./mocks
type Leases interface {
	// Acquire takes the named lease for the holder, reporting false when a
	// live lease is held elsewhere. Re-acquiring an own lease renews it.
	Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, holder string) error
}

//go:generate mockery --name Jobs --output ./mocks
type Jobs interface {
	// Enqueue inserts the job unless one with the same idempotency key exists.
	Enqueue(ctx context.Context, job *domain.Job) (bool, error)

	// LeasePending leases up to limit runnable jobs for the worker.
	LeasePending(ctx context.Context, worker string, limit int, leaseFor time.Duration) ([]*domain.Job, error)

	Complete(ctx context.Context, jobID string) error

	// Fail either requeues the job with a bumped attempt count or parks it
	// as DEAD once attempts are exhausted or the failure is permanent.
	Fail(ctx context.Context, jobID string, permanent bool) error
}
