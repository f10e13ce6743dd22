package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"

	"github.com/tungahq/payments/common"
	"github.com/tungahq/payments/framework/connection"
	invoicingDal "github.com/tungahq/payments/invoicing/dal"
	"github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/logger"
	"github.com/tungahq/payments/mailer"
	paymentDal "github.com/tungahq/payments/payment/dal"
	paymentDomain "github.com/tungahq/payments/payment/domain"
	projectDal "github.com/tungahq/payments/project/dal"
	"github.com/tungahq/payments/rails"
	"github.com/tungahq/payments/rails/bank"
	stripeRail "github.com/tungahq/payments/rails/stripe"
	"github.com/tungahq/payments/renderer"
)

// EventVerifier validates an incoming webhook payload against the rail's
// signature scheme and decodes the event.
type EventVerifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (stripe.Event, error)
}

// Syncer pushes a paid invoice into the accounting ledger. The call is best
// effort; the periodic sweep retries whatever it misses.
type Syncer interface {
	SyncInvoice(ctx context.Context, invoice *domain.Invoice) error
}

// PayRequest is a charge attempt against a sale invoice. An empty
// IdempotencyKey gets a fresh one, so operator retries after a permanent
// failure mint a new payment row.
type PayRequest struct {
	Method         paymentDomain.Method
	Token          string
	Email          string
	Amount         decimal.Decimal
	IdempotencyKey string
	CreatedBy      string
}

// ChargeService drives the sale invoice lifecycle: sending, charging,
// settlement via webhook or manual bank confirmation, reminders and voiding.
// Every state transition runs under the per-invoice advisory lock.
type ChargeService struct {
	loggerProvider logger.Provider
	conf           *common.Config
	invoicesDAL    invoicingDal.Invoices
	paymentsDAL    paymentDal.Payments
	projectsDAL    projectDal.Projects
	cardRail       rails.PaymentRail
	bankRail       rails.PaymentRail
	verifier       EventVerifier
	renderer       renderer.Renderer
	mailer         mailer.ISender
	syncer         Syncer
	now            func() time.Time
}

func NewChargeService(
	loggerProvider logger.Provider,
	conn *connection.Connection,
	conf *common.Config,
	docRenderer renderer.Renderer,
	sender mailer.ISender,
	syncer Syncer,
) *ChargeService {
	card := stripeRail.NewRail(conf.Stripe)

	return &ChargeService{
		loggerProvider: loggerProvider,
		conf:           conf,
		invoicesDAL:    invoicingDal.NewInvoicesFirestoreWithClient(conn.Firestore),
		paymentsDAL:    paymentDal.NewPaymentsFirestoreWithClient(conn.Firestore),
		projectsDAL:    projectDal.NewProjectsFirestoreWithClient(conn.Firestore),
		cardRail:       card,
		bankRail:       bank.NewRail(),
		verifier:       card,
		renderer:       docRenderer,
		mailer:         sender,
		syncer:         syncer,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// NewChargeServiceWithDeps wires explicit dependencies, used by tests.
func NewChargeServiceWithDeps(
	loggerProvider logger.Provider,
	conf *common.Config,
	invoicesDAL invoicingDal.Invoices,
	paymentsDAL paymentDal.Payments,
	projectsDAL projectDal.Projects,
	cardRail rails.PaymentRail,
	bankRail rails.PaymentRail,
	verifier EventVerifier,
	docRenderer renderer.Renderer,
	sender mailer.ISender,
	syncer Syncer,
) *ChargeService {
	return &ChargeService{
		loggerProvider: loggerProvider,
		conf:           conf,
		invoicesDAL:    invoicesDAL,
		paymentsDAL:    paymentsDAL,
		projectsDAL:    projectsDAL,
		cardRail:       cardRail,
		bankRail:       bankRail,
		verifier:       verifier,
		renderer:       docRenderer,
		mailer:         sender,
		syncer:         syncer,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// SendInvoice emails the rendered invoice to the client and records the send.
func (s *ChargeService) SendInvoice(ctx context.Context, invoiceID string) error {
	invoice, unlock, err := s.lockSaleInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	defer unlock()

	machine := newChargeMachine(chargeState(invoice), chargeEffects{
		onSent: func(_ context.Context, _ ...interface{}) error {
			return s.deliverInvoice(ctx, invoice)
		},
	})

	return machine.Fire(triggerSend)
}

// Pay charges the invoice inline. The payment row is committed under its
// idempotency key before the rail sees the key, so a crash between the two
// never produces an untracked external charge.
func (s *ChargeService) Pay(ctx context.Context, invoiceID string, req PayRequest) (*domain.Invoice, error) {
	log := s.loggerProvider(ctx)

	invoice, unlock, err := s.lockSaleInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if invoice.Paid() {
		return nil, invoicingDal.ErrAlreadyPaid
	}

	if !req.Amount.IsZero() && !req.Amount.Equal(invoice.Total()) {
		return nil, ErrAmountMismatch
	}

	rail, err := s.railFor(req.Method)
	if err != nil {
		return nil, err
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.New().String()
	}

	now := s.now()

	payment := &paymentDomain.Payment{
		InvoiceID:      invoice.ID,
		Amount:         invoice.Total(),
		Currency:       invoice.Currency,
		Method:         req.Method,
		Status:         paymentDomain.StatusPending,
		IdempotencyKey: key,
		CreatedBy:      req.CreatedBy,
		CreatedAt:      now,
	}

	stored, created, err := s.paymentsDAL.GetOrCreate(ctx, payment)
	if err != nil {
		return nil, err
	}

	if !created && stored.Status == paymentDomain.StatusCompleted {
		return s.invoicesDAL.GetInvoice(ctx, invoiceID)
	}

	expect := []paymentDomain.Status{paymentDomain.StatusPending, paymentDomain.StatusRetry}
	if err := s.paymentsDAL.UpdateStatus(ctx, stored.ID, expect, paymentDomain.StatusInitiated); err != nil {
		return nil, err
	}

	machine := newChargeMachine(chargeState(invoice), chargeEffects{
		onSettled: func(_ context.Context, args ...interface{}) error {
			return s.settle(ctx, invoice, stored.ID, args[0].(string))
		},
		onFailed: func(_ context.Context, _ ...interface{}) error {
			return s.paymentsDAL.UpdateStatus(ctx, stored.ID, nil, paymentDomain.StatusFailed)
		},
	})

	if err := machine.Fire(triggerCharge); err != nil {
		return nil, err
	}

	instrument := rails.Instrument{Token: req.Token, Email: req.Email}

	result, err := rail.Charge(ctx, invoice, instrument, stored.ID)
	if err != nil || result.Status == rails.ChargeFailed {
		log.Errorf("charge for invoice %s failed: %v", invoice.ID, err)

		if ferr := machine.Fire(triggerFail); ferr != nil {
			return nil, ferr
		}

		return nil, ErrChargeFailed
	}

	if result.Status == rails.ChargeAuthorized {
		// settlement arrives later over the webhook
		return s.invoicesDAL.GetInvoice(ctx, invoiceID)
	}

	if err := machine.Fire(triggerSettle, result.ExternalRef); err != nil {
		return nil, err
	}

	return s.invoicesDAL.GetInvoice(ctx, invoiceID)
}

// Void cancels the invoice, renders a credit note and emails it to the
// client. Rejected while a payment is still in flight.
func (s *ChargeService) Void(ctx context.Context, invoiceID string) error {
	invoice, unlock, err := s.lockSaleInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	defer unlock()

	payments, err := s.paymentsDAL.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}

	for _, payment := range payments {
		if payment.Status == paymentDomain.StatusInitiated || payment.Status == paymentDomain.StatusProcessing {
			return ErrPaymentInFlight
		}
	}

	machine := newChargeMachine(chargeState(invoice), chargeEffects{
		onVoided: func(_ context.Context, _ ...interface{}) error {
			return s.voidAndNotify(ctx, invoice)
		},
	})

	return machine.Fire(triggerVoid)
}

// HandleStripeEvent settles the matching payment on a successful charge
// event. Re-deliveries are no-ops: the payment row keyed by the idempotency
// key admits exactly one PAID transition.
func (s *ChargeService) HandleStripeEvent(ctx context.Context, payload []byte, signatureHeader string) error {
	log := s.loggerProvider(ctx)

	event, err := s.verifier.VerifyEvent(payload, signatureHeader)
	if err != nil {
		return ErrInvalidSignature
	}

	if event.Type != "payment_intent.succeeded" {
		log.Debugf("ignoring stripe event %s of type %s", event.ID, event.Type)
		return nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return err
	}

	payment, err := s.resolvePayment(ctx, &intent)
	if err != nil {
		if errors.Is(err, paymentDal.ErrPaymentNotFound) {
			log.Warningf("stripe event %s references no known payment", event.ID)
			return nil
		}

		return err
	}

	if payment.Terminal() {
		return nil
	}

	invoice, unlock, err := s.lockSaleInvoice(ctx, payment.InvoiceID)
	if err != nil {
		return err
	}
	defer unlock()

	if invoice.Paid() {
		return nil
	}

	machine := newChargeMachine(chargeState(invoice), chargeEffects{
		onSettled: func(_ context.Context, args ...interface{}) error {
			return s.settle(ctx, invoice, payment.ID, args[0].(string))
		},
	})

	return machine.Fire(triggerSettle, intent.ID)
}

func (s *ChargeService) railFor(method paymentDomain.Method) (rails.PaymentRail, error) {
	switch method {
	case paymentDomain.MethodStripe:
		return s.cardRail, nil
	case paymentDomain.MethodBank:
		return s.bankRail, nil
	default:
		return nil, ErrUnknownMethod
	}
}

func (s *ChargeService) resolvePayment(ctx context.Context, intent *stripe.PaymentIntent) (*paymentDomain.Payment, error) {
	if key := intent.Metadata["payment_id"]; key != "" {
		payment, err := s.paymentsDAL.GetPayment(ctx, key)
		if err == nil {
			return payment, nil
		}

		if !errors.Is(err, paymentDal.ErrPaymentNotFound) {
			return nil, err
		}
	}

	return s.paymentsDAL.GetByExternalRef(ctx, intent.ID)
}

// settle is the single PAID transition: payment to PROCESSING with the rail
// reference, invoice to PAID, payment to COMPLETED, then notifications.
func (s *ChargeService) settle(ctx context.Context, invoice *domain.Invoice, paymentID, externalRef string) error {
	log := s.loggerProvider(ctx)
	now := s.now()

	if err := s.paymentsDAL.SetProcessing(ctx, paymentID, externalRef, now); err != nil &&
		!errors.Is(err, paymentDal.ErrInvalidTransition) {
		return err
	}

	if err := s.invoicesDAL.MarkPaid(ctx, invoice.ID, now); err != nil {
		if errors.Is(err, invoicingDal.ErrAlreadyPaid) {
			return nil
		}

		return err
	}

	if err := s.paymentsDAL.SetCompleted(ctx, paymentID); err != nil &&
		!errors.Is(err, paymentDal.ErrInvalidTransition) {
		return err
	}

	invoice.Status = domain.InvoiceStatusPaid
	invoice.PaidAt = &now

	if err := s.notifyPaymentReceived(ctx, invoice); err != nil {
		log.Errorf("payment received notification for invoice %s: %v", invoice.ID, err)
	}

	if s.syncer != nil {
		if err := s.syncer.SyncInvoice(ctx, invoice); err != nil {
			log.Errorf("ledger sync for invoice %s deferred to sweep: %v", invoice.ID, err)
		}
	}

	return nil
}

func (s *ChargeService) deliverInvoice(ctx context.Context, invoice *domain.Invoice) error {
	project, err := s.projectsDAL.GetProject(ctx, invoice.ProjectID)
	if err != nil {
		return err
	}

	pdf, err := s.renderer.InvoicePDF(ctx, invoice)
	if err != nil {
		return err
	}

	notification := &mailer.SimpleNotification{
		Subject:    "New invoice " + invoice.Number,
		TemplateID: s.conf.Sendgrid.InvoiceTpl,
		Categories: []string{mailer.CategoryInvoices},
		Attachments: []mailer.Attachment{{
			Content:  base64.StdEncoding.EncodeToString(pdf),
			Filename: "invoice-" + invoice.ID + ".pdf",
		}},
	}

	params := map[string]interface{}{
		"invoice_number": invoice.Number,
		"total":          invoice.Total().StringFixed(2),
		"due_at":         invoice.DueAt.Format(time.RFC3339),
		"project":        project.Title,
	}

	if err := s.mailer.SendNotification(notification, project.OwnerEmail, params); err != nil {
		return err
	}

	return s.invoicesDAL.SetLastSent(ctx, invoice.ID, s.now())
}

func (s *ChargeService) notifyPaymentReceived(ctx context.Context, invoice *domain.Invoice) error {
	project, err := s.projectsDAL.GetProject(ctx, invoice.ProjectID)
	if err != nil {
		return err
	}

	notification := &mailer.SimpleNotification{
		Subject:    "Payment received for invoice " + invoice.Number,
		TemplateID: s.conf.Sendgrid.PaidTpl,
		Categories: []string{mailer.CategoryInvoices},
	}

	params := map[string]interface{}{
		"invoice_number": invoice.Number,
		"total":          invoice.Total().StringFixed(2),
	}

	return s.mailer.SendNotification(notification, project.OwnerEmail, params)
}

func (s *ChargeService) voidAndNotify(ctx context.Context, invoice *domain.Invoice) error {
	log := s.loggerProvider(ctx)

	if err := s.invoicesDAL.MarkVoid(ctx, invoice.ID); err != nil {
		return err
	}

	project, err := s.projectsDAL.GetProject(ctx, invoice.ProjectID)
	if err != nil {
		return err
	}

	creditNote, err := s.renderer.CreditNotePDF(ctx, invoice)
	if err != nil {
		return err
	}

	notification := &mailer.SimpleNotification{
		Subject:    "Credit note for invoice " + invoice.Number,
		TemplateID: s.conf.Sendgrid.CreditNoteTpl,
		Categories: []string{mailer.CategoryInvoices},
		Attachments: []mailer.Attachment{{
			Content:  base64.StdEncoding.EncodeToString(creditNote),
			Filename: "credit-note-" + invoice.ID + ".pdf",
		}},
	}

	if err := s.mailer.SendNotification(notification, project.OwnerEmail, nil); err != nil {
		log.Errorf("credit note notification for invoice %s: %v", invoice.ID, err)
	}

	return nil
}

// lockSaleInvoice takes the per-invoice advisory lock and validates the
// invoice is an operable sale invoice. The caller must run the unlock func.
func (s *ChargeService) lockSaleInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, func(), error) {
	log := s.loggerProvider(ctx)

	if err := s.invoicesDAL.LockInvoice(ctx, invoiceID); err != nil {
		return nil, nil, err
	}

	unlock := func() {
		if err := s.invoicesDAL.UnlockInvoice(ctx, invoiceID); err != nil {
			log.Errorf("unlock invoice %s: %v", invoiceID, err)
		}
	}

	invoice, err := s.invoicesDAL.GetInvoice(ctx, invoiceID)
	if err != nil {
		unlock()
		return nil, nil, err
	}

	if invoice.Type != domain.InvoiceTypeSale {
		unlock()
		return nil, nil, ErrNotSaleInvoice
	}

	if invoice.Legacy() {
		unlock()
		return nil, nil, ErrLegacyInvoice
	}

	return invoice, unlock, nil
}
