package mocks

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/rails"
)

type PaymentRail struct {
	mock.Mock
}

func (m *PaymentRail) Charge(ctx context.Context, invoice *domain.Invoice, instrument rails.Instrument, idempotencyKey string) (*rails.ChargeResult, error) {
	args := m.Called(ctx, invoice, instrument, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*rails.ChargeResult), args.Error(1)
}

func (m *PaymentRail) Payout(ctx context.Context, invoice *domain.Invoice, destination rails.Destination, idempotencyKey string) (*rails.PayoutResult, error) {
	args := m.Called(ctx, invoice, destination, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*rails.PayoutResult), args.Error(1)
}

func (m *PaymentRail) Balance(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}
