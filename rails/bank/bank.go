package bank

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/rails"
)

const railName = "bank"

// Rail records manual bank transfers. There is no remote call: an admin
// confirming receipt is the settlement event.
type Rail struct{}

func NewRail() *Rail {
	return &Rail{}
}

func (r *Rail) Charge(_ context.Context, _ *domain.Invoice, _ rails.Instrument, idempotencyKey string) (*rails.ChargeResult, error) {
	return &rails.ChargeResult{
		ExternalRef: "bank-" + idempotencyKey,
		Status:      rails.ChargeCaptured,
	}, nil
}

func (r *Rail) Payout(_ context.Context, _ *domain.Invoice, _ rails.Destination, _ string) (*rails.PayoutResult, error) {
	return nil, rails.NewPermanent(railName, rails.ErrUnsupported)
}

func (r *Rail) Balance(_ context.Context) (decimal.Decimal, error) {
	return decimal.Zero, rails.NewPermanent(railName, rails.ErrUnsupported)
}
