package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodStripe   Method = "STRIPE"
	MethodBank     Method = "BANK"
	MethodBitcoin  Method = "BITCOIN"
	MethodPayoneer Method = "PAYONEER"
	MethodBitonic  Method = "BITONIC"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInitiated  Status = "INITIATED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusRetry      Status = "RETRY"
	StatusCanceled   Status = "CANCELED"
)

// Payment is one attempt to settle an invoice via a payment rail. The
// idempotency key doubles as the document id, making the key unique across
// the whole payment set and stable across retries.
type Payment struct {
	ID             string
	InvoiceID      string
	Amount         decimal.Decimal
	Currency       string
	Method         Method
	Status         Status
	ExternalRef    string
	IdempotencyKey string
	PaidAt         *time.Time
	CreatedBy      string
	Extra          map[string]interface{}
	CreatedAt      time.Time
}

// Terminal reports whether no further transition is allowed except the
// operator's FAILED -> RETRY flip.
func (p *Payment) Terminal() bool {
	switch p.Status {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}
