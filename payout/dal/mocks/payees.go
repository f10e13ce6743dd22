package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tungahq/payments/payout/domain"
)

type Payees struct {
	mock.Mock
}

func (m *Payees) GetPayee(ctx context.Context, userID string) (*domain.Payee, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Payee), args.Error(1)
}

func (m *Payees) SavePayee(ctx context.Context, payee *domain.Payee) error {
	args := m.Called(ctx, payee)
	return args.Error(0)
}
