package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tungahq/payments/ledger/domain"
)

type Syncs struct {
	mock.Mock
}

func (m *Syncs) GetSync(ctx context.Context, invoiceID string) (*domain.SyncRecord, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.SyncRecord), args.Error(1)
}

func (m *Syncs) CreateSync(ctx context.Context, record *domain.SyncRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}
