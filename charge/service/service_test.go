package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v74"

	"github.com/tungahq/payments/common"
	invoicingDal "github.com/tungahq/payments/invoicing/dal"
	invoiceMocks "github.com/tungahq/payments/invoicing/dal/mocks"
	"github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/logger"
	"github.com/tungahq/payments/mailer"
	mailerMocks "github.com/tungahq/payments/mailer/mocks"
	paymentDal "github.com/tungahq/payments/payment/dal"
	paymentMocks "github.com/tungahq/payments/payment/dal/mocks"
	paymentDomain "github.com/tungahq/payments/payment/domain"
	projectMocks "github.com/tungahq/payments/project/dal/mocks"
	prjDomain "github.com/tungahq/payments/project/domain"
	"github.com/tungahq/payments/rails"
	railMocks "github.com/tungahq/payments/rails/mocks"
	rendererMocks "github.com/tungahq/payments/renderer/mocks"
)

var testTime = time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC)

type verifierMock struct {
	mock.Mock
}

func (m *verifierMock) VerifyEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	args := m.Called(payload, signatureHeader)
	return args.Get(0).(stripe.Event), args.Error(1)
}

type fields struct {
	invoices *invoiceMocks.Invoices
	payments *paymentMocks.Payments
	projects *projectMocks.Projects
	card     *railMocks.PaymentRail
	bank     *railMocks.PaymentRail
	verifier *verifierMock
	renderer *rendererMocks.Renderer
	sender   *mailerMocks.ISender
}

func newFields() *fields {
	return &fields{
		invoices: &invoiceMocks.Invoices{},
		payments: &paymentMocks.Payments{},
		projects: &projectMocks.Projects{},
		card:     &railMocks.PaymentRail{},
		bank:     &railMocks.PaymentRail{},
		verifier: &verifierMock{},
		renderer: &rendererMocks.Renderer{},
		sender:   &mailerMocks.ISender{},
	}
}

func newTestService(f *fields) *ChargeService {
	conf := &common.Config{
		ReminderAt:   14 * 24 * time.Hour,
		EscalationAt: 21 * 24 * time.Hour,
	}
	conf.Sendgrid.InvoiceTpl = "tpl-invoice"
	conf.Sendgrid.ReminderTpl = "tpl-reminder"
	conf.Sendgrid.EscalationTpl = "tpl-escalation"
	conf.Sendgrid.PaidTpl = "tpl-paid"
	conf.Sendgrid.CreditNoteTpl = "tpl-credit-note"

	s := NewChargeServiceWithDeps(
		logger.FromContext,
		conf,
		f.invoices,
		f.payments,
		f.projects,
		f.card,
		f.bank,
		f.verifier,
		f.renderer,
		f.sender,
		nil,
	)
	s.now = func() time.Time { return testTime }

	return s
}

func saleInvoice(id string, issuedAt time.Time) *domain.Invoice {
	amount, _ := decimal.NewFromString("1500")

	return &domain.Invoice{
		ID:        id,
		ProjectID: "9",
		Type:      domain.InvoiceTypeSale,
		Status:    domain.InvoiceStatusIssued,
		Amount:    amount,
		Currency:  "EUR",
		TaxRate:   decimal.NewFromInt(21),
		Number:    "2024/101/9/" + id,
		IssuedAt:  issuedAt,
		DueAt:     issuedAt.Add(14 * 24 * time.Hour),
	}
}

func testProject() *prjDomain.Project {
	return &prjDomain.Project{
		ID:         "9",
		Title:      "Platform build",
		OwnerID:    "101",
		OwnerEmail: "client@example.com",
	}
}

func expectLock(f *fields, invoice *domain.Invoice) {
	f.invoices.On("LockInvoice", mock.Anything, invoice.ID).Return(nil)
	f.invoices.On("UnlockInvoice", mock.Anything, invoice.ID).Return(nil)
	f.invoices.On("GetInvoice", mock.Anything, invoice.ID).Return(invoice, nil)
}

func TestPay_CardChargeSettlesInvoice(t *testing.T) {
	f := newFields()
	invoice := saleInvoice("42", testTime.Add(-24*time.Hour))

	expectLock(f, invoice)
	f.payments.On("GetOrCreate", mock.Anything, mock.Anything).
		Return(&paymentDomain.Payment{
			ID:             "key-1",
			InvoiceID:      "42",
			Status:         paymentDomain.StatusPending,
			IdempotencyKey: "key-1",
		}, true, nil)
	f.payments.On("UpdateStatus", mock.Anything, "key-1",
		[]paymentDomain.Status{paymentDomain.StatusPending, paymentDomain.StatusRetry},
		paymentDomain.StatusInitiated).Return(nil)
	f.card.On("Charge", mock.Anything, invoice, rails.Instrument{Token: "tok_visa"}, "key-1").
		Return(&rails.ChargeResult{ExternalRef: "pi_1", Status: rails.ChargeCaptured}, nil).Once()
	f.payments.On("SetProcessing", mock.Anything, "key-1", "pi_1", testTime).Return(nil)
	f.invoices.On("MarkPaid", mock.Anything, "42", testTime).Return(nil).Once()
	f.payments.On("SetCompleted", mock.Anything, "key-1").Return(nil)
	f.projects.On("GetProject", mock.Anything, "9").Return(testProject(), nil)
	f.sender.On("SendNotification", mock.Anything, "client@example.com", mock.Anything).Return(nil)

	s := newTestService(f)

	_, err := s.Pay(context.Background(), "42", PayRequest{
		Method: paymentDomain.MethodStripe,
		Token:  "tok_visa",
	})

	assert.NoError(t, err)
	f.card.AssertExpectations(t)
	f.invoices.AssertExpectations(t)
}

func TestPay_FailedChargeReturnsGenericError(t *testing.T) {
	f := newFields()
	invoice := saleInvoice("42", testTime.Add(-24*time.Hour))

	expectLock(f, invoice)
	f.payments.On("GetOrCreate", mock.Anything, mock.Anything).
		Return(&paymentDomain.Payment{
			ID:             "key-1",
			InvoiceID:      "42",
			Status:         paymentDomain.StatusPending,
			IdempotencyKey: "key-1",
		}, true, nil)
	f.payments.On("UpdateStatus", mock.Anything, "key-1", mock.Anything, paymentDomain.StatusInitiated).Return(nil)
	f.card.On("Charge", mock.Anything, invoice, mock.Anything, "key-1").
		Return(&rails.ChargeResult{Status: rails.ChargeFailed}, nil)
	f.payments.On("UpdateStatus", mock.Anything, "key-1", []paymentDomain.Status(nil), paymentDomain.StatusFailed).Return(nil).Once()

	s := newTestService(f)

	_, err := s.Pay(context.Background(), "42", PayRequest{Method: paymentDomain.MethodStripe, Token: "tok_visa"})

	assert.ErrorIs(t, err, ErrChargeFailed)
	f.payments.AssertExpectations(t)
}

func TestPay_AlreadyPaidInvoice(t *testing.T) {
	f := newFields()
	invoice := saleInvoice("42", testTime.Add(-24*time.Hour))
	invoice.Status = domain.InvoiceStatusPaid

	expectLock(f, invoice)

	s := newTestService(f)

	_, err := s.Pay(context.Background(), "42", PayRequest{Method: paymentDomain.MethodStripe})

	assert.ErrorIs(t, err, invoicingDal.ErrAlreadyPaid)
}

func TestPay_AmountMismatch(t *testing.T) {
	f := newFields()
	invoice := saleInvoice("42", testTime.Add(-24*time.Hour))

	expectLock(f, invoice)

	s := newTestService(f)

	_, err := s.Pay(context.Background(), "42", PayRequest{
		Method: paymentDomain.MethodStripe,
		Amount: decimal.NewFromInt(1),
	})

	assert.ErrorIs(t, err, ErrAmountMismatch)
}

func stripeEvent(intentJSON string) stripe.Event {
	return stripe.Event{
		ID:   "evt_1",
		Type: "payment_intent.succeeded",
		Data: &stripe.EventData{Raw: []byte(intentJSON)},
	}
}

func TestHandleStripeEvent_SingleSettlement(t *testing.T) {
	// two deliveries of the same charge event settle the invoice exactly once
	f := newFields()
	invoice := saleInvoice("42", testTime.Add(-24*time.Hour))

	event := stripeEvent(`{"id":"pi_1","metadata":{"payment_id":"key-1"}}`)
	f.verifier.On("VerifyEvent", mock.Anything, "sig").Return(event, nil)

	pending := &paymentDomain.Payment{
		ID:             "key-1",
		InvoiceID:      "42",
		Status:         paymentDomain.StatusInitiated,
		IdempotencyKey: "key-1",
	}
	completed := &paymentDomain.Payment{
		ID:             "key-1",
		InvoiceID:      "42",
		Status:         paymentDomain.StatusCompleted,
		IdempotencyKey: "key-1",
	}

	f.payments.On("GetPayment", mock.Anything, "key-1").Return(pending, nil).Once()
	f.payments.On("GetPayment", mock.Anything, "key-1").Return(completed, nil).Once()

	expectLock(f, invoice)
	f.payments.On("SetProcessing", mock.Anything, "key-1", "pi_1", testTime).Return(nil).Once()
	f.invoices.On("MarkPaid", mock.Anything, "42", testTime).Return(nil).Once()
	f.payments.On("SetCompleted", mock.Anything, "key-1").Return(nil).Once()
	f.projects.On("GetProject", mock.Anything, "9").Return(testProject(), nil)
	f.sender.On("SendNotification", mock.Anything, "client@example.com", mock.Anything).Return(nil)

	s := newTestService(f)

	assert.NoError(t, s.HandleStripeEvent(context.Background(), []byte(`{}`), "sig"))
	assert.NoError(t, s.HandleStripeEvent(context.Background(), []byte(`{}`), "sig"))

	f.invoices.AssertNumberOfCalls(t, "MarkPaid", 1)
	f.payments.AssertExpectations(t)
}

func TestHandleStripeEvent_SettlesPaymentLeftBeforeInitiated(t *testing.T) {
	// a crash between creating the payment row and initiating the charge
	// leaves the row PENDING; the webhook settlement must still land
	f := newFields()
	invoice := saleInvoice("42", testTime.Add(-24*time.Hour))

	event := stripeEvent(`{"id":"pi_1","metadata":{"payment_id":"key-1"}}`)
	f.verifier.On("VerifyEvent", mock.Anything, "sig").Return(event, nil)

	pending := &paymentDomain.Payment{
		ID:             "key-1",
		InvoiceID:      "42",
		Status:         paymentDomain.StatusPending,
		IdempotencyKey: "key-1",
	}

	f.payments.On("GetPayment", mock.Anything, "key-1").Return(pending, nil)
	expectLock(f, invoice)
	f.payments.On("SetProcessing", mock.Anything, "key-1", "pi_1", testTime).
		Return(paymentDal.ErrInvalidTransition)
	f.invoices.On("MarkPaid", mock.Anything, "42", testTime).Return(nil).Once()
	f.payments.On("SetCompleted", mock.Anything, "key-1").
		Return(paymentDal.ErrInvalidTransition)
	f.projects.On("GetProject", mock.Anything, "9").Return(testProject(), nil)
	f.sender.On("SendNotification", mock.Anything, "client@example.com", mock.Anything).Return(nil)

	s := newTestService(f)

	assert.NoError(t, s.HandleStripeEvent(context.Background(), []byte(`{}`), "sig"))
	f.invoices.AssertExpectations(t)
}

func TestHandleStripeEvent_BadSignature(t *testing.T) {
	f := newFields()
	f.verifier.On("VerifyEvent", mock.Anything, "bad").
		Return(stripe.Event{}, assert.AnError)

	s := newTestService(f)

	err := s.HandleStripeEvent(context.Background(), []byte(`{}`), "bad")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestSendInvoice_RecordsSend(t *testing.T) {
	f := newFields()
	invoice := saleInvoice("42", testTime.Add(-time.Hour))

	expectLock(f, invoice)
	f.projects.On("GetProject", mock.Anything, "9").Return(testProject(), nil)
	f.renderer.On("InvoicePDF", mock.Anything, invoice).Return([]byte("pdf"), nil)
	f.sender.On("SendNotification", mock.Anything, "client@example.com", mock.Anything).Return(nil).Once()
	f.invoices.On("SetLastSent", mock.Anything, "42", testTime).Return(nil).Once()

	s := newTestService(f)

	assert.NoError(t, s.SendInvoice(context.Background(), "42"))
	f.invoices.AssertExpectations(t)
	f.sender.AssertExpectations(t)
}

func TestVoid_RejectsInFlightPayment(t *testing.T) {
	f := newFields()
	invoice := saleInvoice("42", testTime.Add(-24*time.Hour))

	expectLock(f, invoice)
	f.payments.On("ListByInvoice", mock.Anything, "42").
		Return([]*paymentDomain.Payment{{ID: "key-1", Status: paymentDomain.StatusProcessing}}, nil)

	s := newTestService(f)

	assert.ErrorIs(t, s.Void(context.Background(), "42"), ErrPaymentInFlight)
}

func TestVoid_SendsCreditNote(t *testing.T) {
	f := newFields()
	invoice := saleInvoice("42", testTime.Add(-24*time.Hour))

	expectLock(f, invoice)
	f.payments.On("ListByInvoice", mock.Anything, "42").Return([]*paymentDomain.Payment(nil), nil)
	f.invoices.On("MarkVoid", mock.Anything, "42").Return(nil).Once()
	f.projects.On("GetProject", mock.Anything, "9").Return(testProject(), nil)
	f.renderer.On("CreditNotePDF", mock.Anything, invoice).Return([]byte("pdf"), nil)
	f.sender.On("SendNotification", mock.Anything, "client@example.com", mock.Anything).Return(nil).Once()

	s := newTestService(f)

	assert.NoError(t, s.Void(context.Background(), "42"))
	f.invoices.AssertExpectations(t)
	f.sender.AssertExpectations(t)
}

func TestSendReminders(t *testing.T) {
	firstDue := saleInvoice("42", testTime.Add(-15*24*time.Hour))
	escalationDue := saleInvoice("43", testTime.Add(-22*24*time.Hour))
	reminded := testTime.Add(-7 * 24 * time.Hour)
	escalationDue.ReminderSentAt = &reminded
	fresh := saleInvoice("44", testTime.Add(-2*24*time.Hour))

	tests := []struct {
		name        string
		invoice     *domain.Invoice
		wantTpl     string
		wantStage   invoicingDal.ReminderStage
		wantNothing bool
	}{
		{
			name:      "first reminder at fourteen days",
			invoice:   firstDue,
			wantTpl:   "tpl-reminder",
			wantStage: invoicingDal.ReminderStageFirst,
		},
		{
			name:      "escalation at twenty one days",
			invoice:   escalationDue,
			wantTpl:   "tpl-escalation",
			wantStage: invoicingDal.ReminderStageEscalated,
		},
		{
			name:        "fresh invoice untouched",
			invoice:     fresh,
			wantNothing: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFields()
			f.invoices.On("ListUnpaidSaleInvoices", mock.Anything).
				Return([]*domain.Invoice{tt.invoice}, nil)

			if !tt.wantNothing {
				expectLock(f, tt.invoice)
				f.projects.On("GetProject", mock.Anything, "9").Return(testProject(), nil)
				f.sender.On("SendNotification",
					mock.MatchedBy(func(sn *mailer.SimpleNotification) bool { return sn.TemplateID == tt.wantTpl }),
					"client@example.com", mock.Anything).Return(nil).Once()
				f.invoices.On("SetReminderSent", mock.Anything, tt.invoice.ID, tt.wantStage, testTime).
					Return(nil).Once()
			}

			s := newTestService(f)

			assert.NoError(t, s.SendReminders(context.Background()))
			f.invoices.AssertExpectations(t)
			f.sender.AssertExpectations(t)
		})
	}
}

func TestSendReminders_EscalationSupersedesFirst(t *testing.T) {
	// an invoice that reached escalation without a first reminder gets the
	// escalated mail only, and later runs never backfill the first stage
	escalated := testTime.Add(-time.Hour)
	invoice := saleInvoice("42", testTime.Add(-22*24*time.Hour))
	invoice.ReminderEscalatedSentAt = &escalated

	f := newFields()
	f.invoices.On("ListUnpaidSaleInvoices", mock.Anything).Return([]*domain.Invoice{invoice}, nil)

	s := newTestService(f)

	assert.NoError(t, s.SendReminders(context.Background()))
	f.sender.AssertNotCalled(t, "SendNotification", mock.Anything, mock.Anything, mock.Anything)
	f.invoices.AssertNotCalled(t, "SetReminderSent",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendReminders_LostRaceIsSilent(t *testing.T) {
	f := newFields()
	invoice := saleInvoice("42", testTime.Add(-15*24*time.Hour))

	f.invoices.On("ListUnpaidSaleInvoices", mock.Anything).Return([]*domain.Invoice{invoice}, nil)
	expectLock(f, invoice)
	f.projects.On("GetProject", mock.Anything, "9").Return(testProject(), nil)
	f.sender.On("SendNotification", mock.Anything, "client@example.com", mock.Anything).Return(nil)
	f.invoices.On("SetReminderSent", mock.Anything, "42", invoicingDal.ReminderStageFirst, testTime).
		Return(invoicingDal.ErrAlreadyReminded)

	s := newTestService(f)

	assert.NoError(t, s.SendReminders(context.Background()))
}
