package domain

import (
	"time"
)

// SyncRecord marks an invoice as booked in the accounting system. At most
// one exists per invoice; its presence is the idempotency guard.
type SyncRecord struct {
	InvoiceID  string
	AccountID  string
	DocumentID string
	EntryID    string
	SyncedAt   time.Time
}
