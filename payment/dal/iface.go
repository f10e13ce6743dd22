package dal

import (
	"context"
	"time"

	"github.com/tungahq/payments/payment/domain"
)

// PaymentFilter narrows ListPayments. Zero values mean "any".
type PaymentFilter struct {
	MinDate    *time.Time
	MaxDate    *time.Time
	InvoiceIDs []string
	Method     domain.Method
	Status     domain.Status
}

//go:generate mockery --name Payments --output ./mocks
type Payments interface {
	// GetOrCreate upserts under the idempotency key and reports whether the
	// payment was created by this call.
	GetOrCreate(ctx context.Context, payment *domain.Payment) (*domain.Payment, bool, error)

	GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error)
	GetByExternalRef(ctx context.Context, externalRef string) (*domain.Payment, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]*domain.Payment, error)
	ListPayments(ctx context.Context, filter PaymentFilter) ([]*domain.Payment, error)
	HasNonFailedPayment(ctx context.Context, invoiceID string) (bool, error)

	// UpdateStatus is a compare-and-set from one of the expected statuses.
	UpdateStatus(ctx context.Context, paymentID string, expect []domain.Status, to domain.Status) error
	SetProcessing(ctx context.Context, paymentID, externalRef string, paidAt time.Time) error
	SetCompleted(ctx context.Context, paymentID string) error
}
