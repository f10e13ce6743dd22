package domain

import (
	"encoding/json"
	"time"
)

type JobKind string

const (
	JobKindPayoutDispatch JobKind = "payout-dispatch"
	JobKindReminders      JobKind = "invoice-reminders"
	JobKindLedgerSweep    JobKind = "ledger-sweep"
	JobKindWeeklyReports  JobKind = "weekly-reports"
)

type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusLeased  JobStatus = "LEASED"
	JobStatusDone    JobStatus = "DONE"
	JobStatusDead    JobStatus = "DEAD"
)

// MaxAttempts caps transient retries before a job is parked as DEAD.
const MaxAttempts = 5

// Job is one durable unit of background work. The idempotency key
// deduplicates enqueues of the same logical run.
type Job struct {
	ID             string
	Kind           JobKind
	Payload        json.RawMessage
	Attempt        int
	IdempotencyKey string
	Status         JobStatus
	LeaseUntil     *time.Time
	LeasedBy       string
	CreatedAt      time.Time
}
