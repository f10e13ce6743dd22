package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tungahq/payments/invoicing/dal"
	"github.com/tungahq/payments/invoicing/domain"
)

type Invoices struct {
	mock.Mock
}

func (m *Invoices) NewInvoiceID(ctx context.Context) string {
	args := m.Called(ctx)
	return args.String(0)
}

func (m *Invoices) GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *Invoices) ListByBatchRef(ctx context.Context, batchRef string) ([]*domain.Invoice, error) {
	args := m.Called(ctx, batchRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*domain.Invoice), args.Error(1)
}

func (m *Invoices) ListByProject(ctx context.Context, projectID string) ([]*domain.Invoice, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*domain.Invoice), args.Error(1)
}

func (m *Invoices) ListByNumber(ctx context.Context, number string) ([]*domain.Invoice, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*domain.Invoice), args.Error(1)
}

func (m *Invoices) ListByUser(ctx context.Context, userID string) ([]*domain.Invoice, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*domain.Invoice), args.Error(1)
}

func (m *Invoices) ApplyBatch(ctx context.Context, creates, updates []*domain.Invoice, deleteIDs []string) error {
	args := m.Called(ctx, creates, updates, deleteIDs)
	return args.Error(0)
}

func (m *Invoices) LockInvoice(ctx context.Context, invoiceID string) error {
	args := m.Called(ctx, invoiceID)
	return args.Error(0)
}

func (m *Invoices) UnlockInvoice(ctx context.Context, invoiceID string) error {
	args := m.Called(ctx, invoiceID)
	return args.Error(0)
}

func (m *Invoices) MarkPaid(ctx context.Context, invoiceID string, paidAt time.Time) error {
	args := m.Called(ctx, invoiceID, paidAt)
	return args.Error(0)
}

func (m *Invoices) MarkVoid(ctx context.Context, invoiceID string) error {
	args := m.Called(ctx, invoiceID)
	return args.Error(0)
}

func (m *Invoices) SetLastSent(ctx context.Context, invoiceID string, sentAt time.Time) error {
	args := m.Called(ctx, invoiceID, sentAt)
	return args.Error(0)
}

func (m *Invoices) SetReminderSent(ctx context.Context, invoiceID string, stage dal.ReminderStage, sentAt time.Time) error {
	args := m.Called(ctx, invoiceID, stage, sentAt)
	return args.Error(0)
}

func (m *Invoices) ListUnpaidSaleInvoices(ctx context.Context) ([]*domain.Invoice, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*domain.Invoice), args.Error(1)
}

func (m *Invoices) ListEligiblePurchaseInvoices(ctx context.Context) ([]*domain.Invoice, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*domain.Invoice), args.Error(1)
}

func (m *Invoices) ListSaleInvoicesIssuedBetween(ctx context.Context, from, to time.Time) ([]*domain.Invoice, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*domain.Invoice), args.Error(1)
}

func (m *Invoices) ListPurchaseInvoicesIssuedBetween(ctx context.Context, from, to time.Time) ([]*domain.Invoice, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*domain.Invoice), args.Error(1)
}

func (m *Invoices) ListPaidSaleInvoicesPaidBetween(ctx context.Context, from, to time.Time) ([]*domain.Invoice, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*domain.Invoice), args.Error(1)
}

func (m *Invoices) ListPaidInvoices(ctx context.Context) ([]*domain.Invoice, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*domain.Invoice), args.Error(1)
}
