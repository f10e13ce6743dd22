package dal

import "errors"

var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrInvoiceLocked   = errors.New("invoice is locked")
	ErrAlreadyPaid     = errors.New("invoice is already paid")
	ErrAlreadyReminded = errors.New("reminder was already sent")
	ErrBatchNotFound   = errors.New("invoice batch not found")
)
