package service

import (
	"context"

	"github.com/qmuntal/stateless"

	"github.com/tungahq/payments/invoicing/domain"
)

const (
	stateIssued          = "ISSUED"
	stateSent            = "SENT"
	stateAwaitingPayment = "AWAITING_PAYMENT"
	statePaid            = "PAID"
	stateFailed          = "FAILED"
	stateVoid            = "VOID"
)

const (
	triggerSend   = "send"
	triggerCharge = "charge"
	triggerSettle = "settle"
	triggerFail   = "fail"
	triggerVoid   = "void"
)

// chargeEffects are the side effects hung off machine entries. An illegal
// trigger fails the Fire call before any effect runs.
type chargeEffects struct {
	onSent    func(ctx context.Context, args ...interface{}) error
	onSettled func(ctx context.Context, args ...interface{}) error
	onFailed  func(ctx context.Context, args ...interface{}) error
	onVoided  func(ctx context.Context, args ...interface{}) error
}

func noopEffect(_ context.Context, _ ...interface{}) error {
	return nil
}

func (e chargeEffects) withDefaults() chargeEffects {
	if e.onSent == nil {
		e.onSent = noopEffect
	}

	if e.onSettled == nil {
		e.onSettled = noopEffect
	}

	if e.onFailed == nil {
		e.onFailed = noopEffect
	}

	if e.onVoided == nil {
		e.onVoided = noopEffect
	}

	return e
}

// chargeState derives the machine state from the stored invoice. FAILED and
// AWAITING_PAYMENT are transient states that never persist on the invoice.
func chargeState(invoice *domain.Invoice) string {
	switch {
	case invoice.Status == domain.InvoiceStatusVoid:
		return stateVoid
	case invoice.Paid():
		return statePaid
	case invoice.LastSentAt != nil:
		return stateSent
	default:
		return stateIssued
	}
}

func newChargeMachine(initial string, effects chargeEffects) *stateless.StateMachine {
	effects = effects.withDefaults()
	machine := stateless.NewStateMachine(initial)

	// settle is permitted straight from ISSUED: a charge authorized inline
	// may settle over the webhook before the invoice was ever sent
	machine.Configure(stateIssued).
		Permit(triggerSend, stateSent).
		Permit(triggerCharge, stateAwaitingPayment).
		Permit(triggerSettle, statePaid).
		Permit(triggerVoid, stateVoid)

	machine.Configure(stateSent).
		OnEntryFrom(triggerSend, effects.onSent).
		Permit(triggerCharge, stateAwaitingPayment).
		Permit(triggerSettle, statePaid).
		Permit(triggerVoid, stateVoid)

	machine.Configure(stateAwaitingPayment).
		Permit(triggerSettle, statePaid).
		Permit(triggerFail, stateFailed).
		Permit(triggerVoid, stateVoid)

	machine.Configure(statePaid).
		OnEntryFrom(triggerSettle, effects.onSettled)

	// the invoice remains collectable after a failed charge
	machine.Configure(stateFailed).
		OnEntryFrom(triggerFail, effects.onFailed).
		Permit(triggerCharge, stateAwaitingPayment).
		Permit(triggerVoid, stateVoid)

	machine.Configure(stateVoid).
		OnEntryFrom(triggerVoid, effects.onVoided)

	return machine
}
