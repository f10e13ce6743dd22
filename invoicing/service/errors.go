package service

import "errors"

var (
	ErrStateConflict      = errors.New("project already has paid invoices")
	ErrMissingShares      = errors.New("project has no accepted participations")
	ErrUnknownCurrency    = errors.New("unknown currency")
	ErrBatchNotFound      = errors.New("invoice batch not found")
	ErrBatchHasPayments   = errors.New("batch has non-failed payments")
	ErrBatchMismatch      = errors.New("item disagrees with the existing batch")
	ErrInvoiceNotEditable = errors.New("paid invoices are immutable")
)
