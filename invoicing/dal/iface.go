package dal

import (
	"context"
	"time"

	"github.com/tungahq/payments/invoicing/domain"
)

// ReminderStage selects which reminder guard field a compare-and-set targets.
type ReminderStage string

const (
	ReminderStageFirst     ReminderStage = "first"
	ReminderStageEscalated ReminderStage = "escalated"
)

//go:generate mockery --name Invoices --output ./mocks
type Invoices interface {
	NewInvoiceID(ctx context.Context) string

	GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error)
	ListByBatchRef(ctx context.Context, batchRef string) ([]*domain.Invoice, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.Invoice, error)
	ListByNumber(ctx context.Context, number string) ([]*domain.Invoice, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Invoice, error)

	// ApplyBatch creates, updates and deletes invoices in one transaction.
	ApplyBatch(ctx context.Context, creates, updates []*domain.Invoice, deleteIDs []string) error

	// LockInvoice takes the per-invoice advisory lock; UnlockInvoice releases it.
	LockInvoice(ctx context.Context, invoiceID string) error
	UnlockInvoice(ctx context.Context, invoiceID string) error

	MarkPaid(ctx context.Context, invoiceID string, paidAt time.Time) error
	MarkVoid(ctx context.Context, invoiceID string) error
	SetLastSent(ctx context.Context, invoiceID string, sentAt time.Time) error

	// SetReminderSent sets the stage guard, failing with ErrAlreadyReminded
	// when another job won the race.
	SetReminderSent(ctx context.Context, invoiceID string, stage ReminderStage, sentAt time.Time) error

	ListUnpaidSaleInvoices(ctx context.Context) ([]*domain.Invoice, error)
	ListEligiblePurchaseInvoices(ctx context.Context) ([]*domain.Invoice, error)
	ListSaleInvoicesIssuedBetween(ctx context.Context, from, to time.Time) ([]*domain.Invoice, error)
	ListPurchaseInvoicesIssuedBetween(ctx context.Context, from, to time.Time) ([]*domain.Invoice, error)
	ListPaidSaleInvoicesPaidBetween(ctx context.Context, from, to time.Time) ([]*domain.Invoice, error)
	ListPaidInvoices(ctx context.Context) ([]*domain.Invoice, error)
}
