package dal

import (
	"errors"
)

var (
	ErrSyncNotFound  = errors.New("ledger sync record not found")
	ErrAlreadySynced = errors.New("invoice already synced to the ledger")
)
