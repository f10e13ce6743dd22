package service

import (
	"errors"
)

var (
	ErrNotPurchaseInvoice = errors.New("payout operations apply to purchase invoices only")
	ErrPaymentInFlight    = errors.New("a payout is still in flight for this invoice")
	ErrNotFailed          = errors.New("only failed payments can be retried")
)
