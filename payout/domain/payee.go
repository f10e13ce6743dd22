package domain

import (
	"time"
)

// PayeeStatus is the developer's onboarding state on the payout program,
// advanced by the Payoneer IPCN callback. Only ACTIVE payees receive money.
type PayeeStatus string

const (
	PayeeActive   PayeeStatus = "ACTIVE"
	PayeePending  PayeeStatus = "PENDING"
	PayeeDeclined PayeeStatus = "DECLINED"
)

// Payee links a developer user to a Payoneer payee account.
type Payee struct {
	UserID     string
	PayoneerID string
	Status     PayeeStatus
	UpdatedAt  time.Time
}

func (p *Payee) Active() bool {
	return p.Status == PayeeActive
}
