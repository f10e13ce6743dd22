package rails

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tungahq/payments/invoicing/domain"
)

type ChargeStatus string

const (
	ChargeAuthorized ChargeStatus = "AUTHORIZED"
	ChargeCaptured   ChargeStatus = "CAPTURED"
	ChargeFailed     ChargeStatus = "FAILED"
)

type PayoutStatus string

const (
	PayoutAccepted PayoutStatus = "ACCEPTED"
	PayoutFailed   PayoutStatus = "FAILED"
)

// Instrument identifies the client-side payment source for a charge.
type Instrument struct {
	Token string
	Email string
}

// Destination identifies the payee for a payout.
type Destination struct {
	PayeeID string
}

type ChargeResult struct {
	ExternalRef string
	Status      ChargeStatus
}

type PayoutResult struct {
	ExternalRef string
	Status      PayoutStatus
}

// PaymentRail is an external settlement provider. Every call carries the
// idempotency key so retries never double-settle.
//
//go:generate mockery --name PaymentRail --output ./mocks
type PaymentRail interface {
	Charge(ctx context.Context, invoice *domain.Invoice, instrument Instrument, idempotencyKey string) (*ChargeResult, error)
	Payout(ctx context.Context, invoice *domain.Invoice, destination Destination, idempotencyKey string) (*PayoutResult, error)
	Balance(ctx context.Context) (decimal.Decimal, error)
}
