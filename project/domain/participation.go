package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ParticipationStatus string

const (
	ParticipationInvited  ParticipationStatus = "INVITED"
	ParticipationAccepted ParticipationStatus = "ACCEPTED"
	ParticipationRejected ParticipationStatus = "REJECTED"
)

// Prepaid is tri-state. UNSET on an internal user is treated as TRUE.
type Prepaid string

const (
	PrepaidTrue  Prepaid = "TRUE"
	PrepaidFalse Prepaid = "FALSE"
	PrepaidUnset Prepaid = "UNSET"
)

// Participation links an invited developer to a project. At most one exists
// per (project, user).
type Participation struct {
	ID          string
	ProjectID   string
	UserID      string
	Email       string
	Status      ParticipationStatus
	ShareWeight decimal.Decimal
	Prepaid     Prepaid
	Internal    bool
	RespondedAt *time.Time
}

// PrepaidEffective resolves the tri-state against the internal flag.
func (p *Participation) PrepaidEffective() bool {
	switch p.Prepaid {
	case PrepaidTrue:
		return true
	case PrepaidFalse:
		return false
	default:
		return p.Internal
	}
}

// Share is one participant's fraction of the project payment. Payable is
// false for internal prepaid participants: their mass reduces the outgoing
// cash requirement but stays in the share bookkeeping.
type Share struct {
	UserID   string
	Fraction decimal.Decimal
	Payable  bool
}
