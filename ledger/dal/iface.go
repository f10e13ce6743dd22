package dal

import (
	"context"

	"github.com/tungahq/payments/ledger/domain"
)

//go:generate mockery --name Syncs --output ./mocks
type Syncs interface {
	GetSync(ctx context.Context, invoiceID string) (*domain.SyncRecord, error)

	// CreateSync records the sync, failing with ErrAlreadySynced when a
	// record for the invoice already exists.
	CreateSync(ctx context.Context, record *domain.SyncRecord) error
}
