package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tungahq/payments/common"
	"github.com/tungahq/payments/framework/connection"
	invoicingDal "github.com/tungahq/payments/invoicing/dal"
	"github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/logger"
	paymentDal "github.com/tungahq/payments/payment/dal"
	paymentDomain "github.com/tungahq/payments/payment/domain"
	"github.com/tungahq/payments/payout/dal"
	payoutDomain "github.com/tungahq/payments/payout/domain"
	"github.com/tungahq/payments/rails"
	"github.com/tungahq/payments/rails/payoneer"
	schedulerDal "github.com/tungahq/payments/scheduler/dal"
	"github.com/tungahq/payments/slack"
)

const (
	dispatchLease = "payout-dispatch"
	leaseTTL      = 4 * time.Minute
)

// payoutNamespace seeds the deterministic idempotency key derived from the
// invoice id. Changing it would re-dispatch every historical invoice.
var payoutNamespace = uuid.MustParse("5b18d0f6-7a3e-4f6a-9c1d-3f2b8a6e4c01")

// IdempotencyKey is the stable payout key for an invoice: the same invoice
// always maps to the same payment document, across retries and restarts.
func IdempotencyKey(invoiceID string) string {
	return uuid.NewSHA1(payoutNamespace, []byte(invoiceID)).String()
}

// PayoutService dispatches approved purchase invoices over the payout rail.
// A named lease keeps a single dispatcher per cadence so balance checks
// cannot race each other into an overdraw.
type PayoutService struct {
	loggerProvider logger.Provider
	conf           *common.Config
	invoicesDAL    invoicingDal.Invoices
	paymentsDAL    paymentDal.Payments
	payeesDAL      dal.Payees
	leasesDAL      schedulerDal.Leases
	rail           rails.PaymentRail
	notifier       slack.Notifier
	holder         string
	now            func() time.Time
}

func NewPayoutService(
	loggerProvider logger.Provider,
	conn *connection.Connection,
	conf *common.Config,
	notifier slack.Notifier,
) *PayoutService {
	return &PayoutService{
		loggerProvider: loggerProvider,
		conf:           conf,
		invoicesDAL:    invoicingDal.NewInvoicesFirestoreWithClient(conn.Firestore),
		paymentsDAL:    paymentDal.NewPaymentsFirestoreWithClient(conn.Firestore),
		payeesDAL:      dal.NewPayeesFirestoreWithClient(conn.Firestore),
		leasesDAL:      schedulerDal.NewLeasesFirestoreWithClient(conn.Firestore),
		rail:           payoneer.NewRail(conf.Payoneer),
		notifier:       slack.NewClient(conf.SlackToken, conf.OperatorChannel),
		holder:         uuid.New().String(),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// NewPayoutServiceWithDeps wires explicit dependencies, used by tests.
func NewPayoutServiceWithDeps(
	loggerProvider logger.Provider,
	conf *common.Config,
	invoicesDAL invoicingDal.Invoices,
	paymentsDAL paymentDal.Payments,
	payeesDAL dal.Payees,
	leasesDAL schedulerDal.Leases,
	rail rails.PaymentRail,
	notifier slack.Notifier,
) *PayoutService {
	return &PayoutService{
		loggerProvider: loggerProvider,
		conf:           conf,
		invoicesDAL:    invoicesDAL,
		paymentsDAL:    paymentsDAL,
		payeesDAL:      payeesDAL,
		leasesDAL:      leasesDAL,
		rail:           rail,
		notifier:       notifier,
		holder:         "test-holder",
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch runs one payout cycle over the eligible purchase invoices. The
// eligible set is recomputed from scratch every cycle, so skipped invoices
// cost nothing and there is no queue to back up.
func (s *PayoutService) Dispatch(ctx context.Context) error {
	log := s.loggerProvider(ctx)

	acquired, err := s.leasesDAL.Acquire(ctx, dispatchLease, s.holder, leaseTTL)
	if err != nil {
		return err
	}

	if !acquired {
		log.Debugf("payout dispatch lease held elsewhere, skipping cycle")
		return nil
	}

	defer func() {
		if err := s.leasesDAL.Release(ctx, dispatchLease, s.holder); err != nil {
			log.Errorf("release payout dispatch lease: %v", err)
		}
	}()

	invoices, err := s.invoicesDAL.ListEligiblePurchaseInvoices(ctx)
	if err != nil {
		return err
	}

	balance, err := s.rail.Balance(ctx)
	if err != nil {
		// transient by definition, the next cadence retries
		log.Errorf("payout rail balance unavailable: %v", err)
		return nil
	}

	for _, invoice := range invoices {
		if !s.eligible(invoice) {
			continue
		}

		dispatched, err := s.dispatchOne(ctx, invoice, balance)
		if err != nil {
			log.Errorf("dispatch payout for invoice %s: %v", invoice.ID, err)
			continue
		}

		if dispatched {
			balance = balance.Sub(invoice.Amount)
		}
	}

	return nil
}

// eligible applies the filters a Firestore query on string amounts cannot.
func (s *PayoutService) eligible(invoice *domain.Invoice) bool {
	return invoice.Type == domain.InvoiceTypePurchase &&
		invoice.Status == domain.InvoiceStatusApproved &&
		!invoice.Paid() &&
		!invoice.Legacy() &&
		invoice.Amount.GreaterThanOrEqual(s.conf.MinPayout)
}

// dispatchOne moves a single invoice through the payout machine. It reports
// whether money actually left the program balance.
func (s *PayoutService) dispatchOne(ctx context.Context, invoice *domain.Invoice, balance decimal.Decimal) (bool, error) {
	log := s.loggerProvider(ctx)

	payee, err := s.payeesDAL.GetPayee(ctx, invoice.UserID)
	if err != nil {
		if errors.Is(err, dal.ErrPayeeNotFound) {
			log.Debugf("no payee for user %s, invoice %s waits", invoice.UserID, invoice.ID)
			return false, nil
		}

		return false, err
	}

	if !payee.Active() {
		log.Debugf("payee %s not onboarded (%s), invoice %s waits", payee.UserID, payee.Status, invoice.ID)
		return false, nil
	}

	now := s.now()

	payment, _, err := s.paymentsDAL.GetOrCreate(ctx, &paymentDomain.Payment{
		InvoiceID:      invoice.ID,
		Amount:         invoice.Amount,
		Currency:       invoice.Currency,
		Method:         paymentDomain.MethodPayoneer,
		Status:         paymentDomain.StatusPending,
		IdempotencyKey: IdempotencyKey(invoice.ID),
		CreatedAt:      now,
	})
	if err != nil {
		return false, err
	}

	if payment.Status != paymentDomain.StatusPending && payment.Status != paymentDomain.StatusRetry {
		return false, nil
	}

	// balance gate: skip without a state change, next cadence retries
	if invoice.Amount.GreaterThan(balance) {
		log.Infof("balance %s below invoice %s amount %s, skipping",
			balance.StringFixed(2), invoice.ID, invoice.Amount.StringFixed(2))
		return false, nil
	}

	if err := s.invoicesDAL.LockInvoice(ctx, invoice.ID); err != nil {
		if errors.Is(err, invoicingDal.ErrInvoiceLocked) {
			return false, nil
		}

		return false, err
	}

	defer func() {
		if err := s.invoicesDAL.UnlockInvoice(ctx, invoice.ID); err != nil {
			log.Errorf("unlock invoice %s: %v", invoice.ID, err)
		}
	}()

	expect := []paymentDomain.Status{paymentDomain.StatusPending, paymentDomain.StatusRetry}
	if err := s.paymentsDAL.UpdateStatus(ctx, payment.ID, expect, paymentDomain.StatusInitiated); err != nil {
		return false, err
	}

	result, err := s.rail.Payout(ctx, invoice, rails.Destination{PayeeID: payee.PayoneerID}, payment.ID)
	if err != nil {
		if rails.IsTransient(err) {
			// payment stays INITIATED, next cycle or an operator resolves it
			log.Errorf("transient payout failure for invoice %s: %v", invoice.ID, err)
			return false, nil
		}

		return false, s.failPayment(ctx, invoice, payment.ID, err)
	}

	if result.Status == rails.PayoutFailed {
		return false, s.failPayment(ctx, invoice, payment.ID, errors.New("rail rejected the payout"))
	}

	if err := s.paymentsDAL.SetProcessing(ctx, payment.ID, result.ExternalRef, now); err != nil {
		return false, err
	}

	if err := s.invoicesDAL.MarkPaid(ctx, invoice.ID, now); err != nil {
		return false, err
	}

	log.Infof("payout for invoice %s accepted as %s", invoice.ID, result.ExternalRef)

	return true, nil
}

// RetryPayment is the operator's FAILED -> RETRY flip. The idempotency key
// stays the same, so the rail sees a resubmission, not a new payout.
func (s *PayoutService) RetryPayment(ctx context.Context, paymentID string) error {
	err := s.paymentsDAL.UpdateStatus(ctx, paymentID,
		[]paymentDomain.Status{paymentDomain.StatusFailed}, paymentDomain.StatusRetry)
	if errors.Is(err, paymentDal.ErrInvalidTransition) {
		return ErrNotFailed
	}

	return err
}

// VoidInvoice cancels a purchase invoice. Rejected while its payout payment
// is non-terminal.
func (s *PayoutService) VoidInvoice(ctx context.Context, invoiceID string) error {
	invoice, err := s.invoicesDAL.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}

	if invoice.Type != domain.InvoiceTypePurchase {
		return ErrNotPurchaseInvoice
	}

	payments, err := s.paymentsDAL.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}

	for _, payment := range payments {
		if !payment.Terminal() {
			return ErrPaymentInFlight
		}
	}

	return s.invoicesDAL.MarkVoid(ctx, invoiceID)
}

// HandleIPCN advances the developer's onboarding state from a Payoneer
// program callback.
func (s *PayoutService) HandleIPCN(ctx context.Context, apuid, payoneerID, callbackStatus string) error {
	payee, err := s.payeesDAL.GetPayee(ctx, apuid)
	if err != nil {
		return err
	}

	payee.PayoneerID = payoneerID
	payee.Status = payeeStatusFromCallback(callbackStatus)
	payee.UpdatedAt = s.now()

	return s.payeesDAL.SavePayee(ctx, payee)
}

func payeeStatusFromCallback(callbackStatus string) payoutDomain.PayeeStatus {
	switch callbackStatus {
	case "APPROVED", "ACTIVE":
		return payoutDomain.PayeeActive
	case "DECLINED":
		return payoutDomain.PayeeDeclined
	default:
		return payoutDomain.PayeePending
	}
}

func (s *PayoutService) failPayment(ctx context.Context, invoice *domain.Invoice, paymentID string, cause error) error {
	log := s.loggerProvider(ctx)

	if err := s.paymentsDAL.UpdateStatus(ctx, paymentID, nil, paymentDomain.StatusFailed); err != nil {
		return err
	}

	message := fmt.Sprintf("payout for invoice %s (%s) failed permanently: %v",
		invoice.Number, invoice.Amount.StringFixed(2), cause)

	if err := s.notifier.PostMessage(ctx, message); err != nil {
		log.Errorf("operator alert: %v", err)
	}

	return cause
}
