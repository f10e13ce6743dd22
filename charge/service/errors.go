package service

import (
	"errors"
)

var (
	ErrNotSaleInvoice   = errors.New("charge operations apply to sale invoices only")
	ErrLegacyInvoice    = errors.New("legacy invoices are read-only")
	ErrInvoiceVoid      = errors.New("invoice is void")
	ErrAmountMismatch   = errors.New("amount does not match the invoice total")
	ErrUnknownMethod    = errors.New("unknown payment method")
	ErrPaymentInFlight  = errors.New("a payment is still in flight for this invoice")
	ErrInvalidSignature = errors.New("webhook signature verification failed")

	// ErrChargeFailed is the only failure detail a payer ever sees.
	ErrChargeFailed = errors.New("payment failed, please contact support@tunga.io")
)
