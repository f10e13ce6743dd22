package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tungahq/payments/payment/dal"
	"github.com/tungahq/payments/payment/domain"
)

type Payments struct {
	mock.Mock
}

func (m *Payments) GetOrCreate(ctx context.Context, payment *domain.Payment) (*domain.Payment, bool, error) {
	args := m.Called(ctx, payment)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}

	return args.Get(0).(*domain.Payment), args.Bool(1), args.Error(2)
}

func (m *Payments) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *Payments) GetByExternalRef(ctx context.Context, externalRef string) (*domain.Payment, error) {
	args := m.Called(ctx, externalRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *Payments) ListByInvoice(ctx context.Context, invoiceID string) ([]*domain.Payment, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *Payments) ListPayments(ctx context.Context, filter dal.PaymentFilter) ([]*domain.Payment, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *Payments) HasNonFailedPayment(ctx context.Context, invoiceID string) (bool, error) {
	args := m.Called(ctx, invoiceID)
	return args.Bool(0), args.Error(1)
}

func (m *Payments) UpdateStatus(ctx context.Context, paymentID string, expect []domain.Status, to domain.Status) error {
	args := m.Called(ctx, paymentID, expect, to)
	return args.Error(0)
}

func (m *Payments) SetProcessing(ctx context.Context, paymentID, externalRef string, paidAt time.Time) error {
	args := m.Called(ctx, paymentID, externalRef, paidAt)
	return args.Error(0)
}

func (m *Payments) SetCompleted(ctx context.Context, paymentID string) error {
	args := m.Called(ctx, paymentID)
	return args.Error(0)
}
