package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/renderer"
)

type Renderer struct {
	mock.Mock
}

func (m *Renderer) InvoicePDF(ctx context.Context, invoice *domain.Invoice) ([]byte, error) {
	args := m.Called(ctx, invoice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]byte), args.Error(1)
}

func (m *Renderer) InvoiceHTML(ctx context.Context, invoice *domain.Invoice) ([]byte, error) {
	args := m.Called(ctx, invoice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]byte), args.Error(1)
}

func (m *Renderer) CreditNotePDF(ctx context.Context, invoice *domain.Invoice) ([]byte, error) {
	args := m.Called(ctx, invoice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]byte), args.Error(1)
}

func (m *Renderer) ProjectReportPDF(ctx context.Context, report *renderer.ReportContext) ([]byte, error) {
	args := m.Called(ctx, report)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]byte), args.Error(1)
}

func (m *Renderer) PaymentReportPDF(ctx context.Context, report *renderer.ReportContext) ([]byte, error) {
	args := m.Called(ctx, report)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]byte), args.Error(1)
}
