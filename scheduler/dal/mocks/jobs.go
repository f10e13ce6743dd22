package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tungahq/payments/scheduler/domain"
)

type Jobs struct {
	mock.Mock
}

func (m *Jobs) Enqueue(ctx context.Context, job *domain.Job) (bool, error) {
	args := m.Called(ctx, job)
	return args.Bool(0), args.Error(1)
}

func (m *Jobs) LeasePending(ctx context.Context, worker string, limit int, leaseFor time.Duration) ([]*domain.Job, error) {
	args := m.Called(ctx, worker, limit, leaseFor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*domain.Job), args.Error(1)
}

func (m *Jobs) Complete(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *Jobs) Fail(ctx context.Context, jobID string, permanent bool) error {
	args := m.Called(ctx, jobID, permanent)
	return args.Error(0)
}
