package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type Leases struct {
	mock.Mock
}

func (m *Leases) Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, name, holder, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *Leases) Release(ctx context.Context, name, holder string) error {
	args := m.Called(ctx, name, holder)
	return args.Error(0)
}
