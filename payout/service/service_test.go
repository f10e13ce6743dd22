package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/tungahq/payments/common"
	invoiceMocks "github.com/tungahq/payments/invoicing/dal/mocks"
	"github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/logger"
	paymentMocks "github.com/tungahq/payments/payment/dal/mocks"
	paymentDomain "github.com/tungahq/payments/payment/domain"
	payoutDal "github.com/tungahq/payments/payout/dal"
	payeeMocks "github.com/tungahq/payments/payout/dal/mocks"
	payoutDomain "github.com/tungahq/payments/payout/domain"
	"github.com/tungahq/payments/rails"
	railMocks "github.com/tungahq/payments/rails/mocks"
	leaseMocks "github.com/tungahq/payments/scheduler/dal/mocks"
	slackMocks "github.com/tungahq/payments/slack/mocks"
)

var testTime = time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC)

type fields struct {
	invoices *invoiceMocks.Invoices
	payments *paymentMocks.Payments
	payees   *payeeMocks.Payees
	leases   *leaseMocks.Leases
	rail     *railMocks.PaymentRail
	notifier *slackMocks.Notifier
}

func newFields() *fields {
	return &fields{
		invoices: &invoiceMocks.Invoices{},
		payments: &paymentMocks.Payments{},
		payees:   &payeeMocks.Payees{},
		leases:   &leaseMocks.Leases{},
		rail:     &railMocks.PaymentRail{},
		notifier: &slackMocks.Notifier{},
	}
}

func newTestService(f *fields) *PayoutService {
	conf := &common.Config{
		MinPayout:       decimal.NewFromInt(20),
		OperatorChannel: "#payments-ops",
	}

	s := NewPayoutServiceWithDeps(
		logger.FromContext,
		conf,
		f.invoices,
		f.payments,
		f.payees,
		f.leases,
		f.rail,
		f.notifier,
	)
	s.now = func() time.Time { return testTime }

	return s
}

func purchaseInvoice(id, userID, amount string) *domain.Invoice {
	a, _ := decimal.NewFromString(amount)

	return &domain.Invoice{
		ID:        id,
		ProjectID: "9",
		UserID:    userID,
		Type:      domain.InvoiceTypePurchase,
		Status:    domain.InvoiceStatusApproved,
		Amount:    a,
		Currency:  "EUR",
		Number:    "2024/101/9/42/" + userID,
	}
}

func activePayee(userID string) *payoutDomain.Payee {
	return &payoutDomain.Payee{
		UserID:     userID,
		PayoneerID: "pn-" + userID,
		Status:     payoutDomain.PayeeActive,
	}
}

func expectLease(f *fields) {
	f.leases.On("Acquire", mock.Anything, dispatchLease, "test-holder", leaseTTL).Return(true, nil)
	f.leases.On("Release", mock.Anything, dispatchLease, "test-holder").Return(nil)
}

func pendingPayment(invoiceID string) *paymentDomain.Payment {
	key := IdempotencyKey(invoiceID)

	return &paymentDomain.Payment{
		ID:             key,
		InvoiceID:      invoiceID,
		Method:         paymentDomain.MethodPayoneer,
		Status:         paymentDomain.StatusPending,
		IdempotencyKey: key,
	}
}

func TestDispatch_BalanceGateThenPayout(t *testing.T) {
	// balance 200 blocks a 937.50 invoice; 2000 lets it through
	invoice := purchaseInvoice("43", "77", "937.50")
	key := IdempotencyKey("43")

	t.Run("insufficient balance skips without state change", func(t *testing.T) {
		f := newFields()
		expectLease(f)
		f.invoices.On("ListEligiblePurchaseInvoices", mock.Anything).Return([]*domain.Invoice{invoice}, nil)
		f.rail.On("Balance", mock.Anything).Return(decimal.NewFromInt(200), nil)
		f.payees.On("GetPayee", mock.Anything, "77").Return(activePayee("77"), nil)
		f.payments.On("GetOrCreate", mock.Anything, mock.Anything).Return(pendingPayment("43"), true, nil)

		s := newTestService(f)

		assert.NoError(t, s.Dispatch(context.Background()))
		f.rail.AssertNotCalled(t, "Payout", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.payments.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("sufficient balance dispatches once", func(t *testing.T) {
		f := newFields()
		expectLease(f)
		f.invoices.On("ListEligiblePurchaseInvoices", mock.Anything).Return([]*domain.Invoice{invoice}, nil)
		f.rail.On("Balance", mock.Anything).Return(decimal.NewFromInt(2000), nil)
		f.payees.On("GetPayee", mock.Anything, "77").Return(activePayee("77"), nil)
		f.payments.On("GetOrCreate", mock.Anything, mock.Anything).Return(pendingPayment("43"), true, nil)
		f.invoices.On("LockInvoice", mock.Anything, "43").Return(nil)
		f.invoices.On("UnlockInvoice", mock.Anything, "43").Return(nil)
		f.payments.On("UpdateStatus", mock.Anything, key,
			[]paymentDomain.Status{paymentDomain.StatusPending, paymentDomain.StatusRetry},
			paymentDomain.StatusInitiated).Return(nil)
		f.rail.On("Payout", mock.Anything, invoice, rails.Destination{PayeeID: "pn-77"}, key).
			Return(&rails.PayoutResult{ExternalRef: "po_1", Status: rails.PayoutAccepted}, nil).Once()
		f.payments.On("SetProcessing", mock.Anything, key, "po_1", testTime).Return(nil).Once()
		f.invoices.On("MarkPaid", mock.Anything, "43", testTime).Return(nil).Once()

		s := newTestService(f)

		assert.NoError(t, s.Dispatch(context.Background()))
		f.rail.AssertExpectations(t)
		f.invoices.AssertExpectations(t)
	})
}

func TestDispatch_IdempotentAcrossRuns(t *testing.T) {
	// a second run sees the PROCESSING payment under the same key and skips
	invoice := purchaseInvoice("43", "77", "937.50")
	key := IdempotencyKey("43")

	f := newFields()
	expectLease(f)
	f.invoices.On("ListEligiblePurchaseInvoices", mock.Anything).Return([]*domain.Invoice{invoice}, nil)
	f.rail.On("Balance", mock.Anything).Return(decimal.NewFromInt(2000), nil)
	f.payees.On("GetPayee", mock.Anything, "77").Return(activePayee("77"), nil)

	f.payments.On("GetOrCreate", mock.Anything, mock.Anything).Return(pendingPayment("43"), true, nil).Once()
	processing := pendingPayment("43")
	processing.Status = paymentDomain.StatusProcessing
	f.payments.On("GetOrCreate", mock.Anything, mock.Anything).Return(processing, false, nil).Once()

	f.invoices.On("LockInvoice", mock.Anything, "43").Return(nil)
	f.invoices.On("UnlockInvoice", mock.Anything, "43").Return(nil)
	f.payments.On("UpdateStatus", mock.Anything, key, mock.Anything, paymentDomain.StatusInitiated).Return(nil)
	f.rail.On("Payout", mock.Anything, invoice, mock.Anything, key).
		Return(&rails.PayoutResult{ExternalRef: "po_1", Status: rails.PayoutAccepted}, nil)
	f.payments.On("SetProcessing", mock.Anything, key, "po_1", testTime).Return(nil)
	f.invoices.On("MarkPaid", mock.Anything, "43", testTime).Return(nil)

	s := newTestService(f)

	assert.NoError(t, s.Dispatch(context.Background()))
	assert.NoError(t, s.Dispatch(context.Background()))

	f.rail.AssertNumberOfCalls(t, "Payout", 1)
}

func TestDispatch_LeaseHeldElsewhere(t *testing.T) {
	f := newFields()
	f.leases.On("Acquire", mock.Anything, dispatchLease, "test-holder", leaseTTL).Return(false, nil)

	s := newTestService(f)

	assert.NoError(t, s.Dispatch(context.Background()))
	f.invoices.AssertNotCalled(t, "ListEligiblePurchaseInvoices", mock.Anything)
}

func TestDispatch_SkipsBelowMinimumAndLegacy(t *testing.T) {
	small := purchaseInvoice("44", "78", "19.99")
	legacy := purchaseInvoice("45", "79", "500")
	legacy.LegacyID = "old-123"

	f := newFields()
	expectLease(f)
	f.invoices.On("ListEligiblePurchaseInvoices", mock.Anything).
		Return([]*domain.Invoice{small, legacy}, nil)
	f.rail.On("Balance", mock.Anything).Return(decimal.NewFromInt(2000), nil)

	s := newTestService(f)

	assert.NoError(t, s.Dispatch(context.Background()))
	f.payees.AssertNotCalled(t, "GetPayee", mock.Anything, mock.Anything)
	f.rail.AssertNotCalled(t, "Payout", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_PendingPayeeWaits(t *testing.T) {
	invoice := purchaseInvoice("43", "77", "937.50")

	f := newFields()
	expectLease(f)
	f.invoices.On("ListEligiblePurchaseInvoices", mock.Anything).Return([]*domain.Invoice{invoice}, nil)
	f.rail.On("Balance", mock.Anything).Return(decimal.NewFromInt(2000), nil)
	f.payees.On("GetPayee", mock.Anything, "77").
		Return(&payoutDomain.Payee{UserID: "77", Status: payoutDomain.PayeePending}, nil)

	s := newTestService(f)

	assert.NoError(t, s.Dispatch(context.Background()))
	f.rail.AssertNotCalled(t, "Payout", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_PermanentFailureAlertsOperator(t *testing.T) {
	invoice := purchaseInvoice("43", "77", "937.50")
	key := IdempotencyKey("43")

	f := newFields()
	expectLease(f)
	f.invoices.On("ListEligiblePurchaseInvoices", mock.Anything).Return([]*domain.Invoice{invoice}, nil)
	f.rail.On("Balance", mock.Anything).Return(decimal.NewFromInt(2000), nil)
	f.payees.On("GetPayee", mock.Anything, "77").Return(activePayee("77"), nil)
	f.payments.On("GetOrCreate", mock.Anything, mock.Anything).Return(pendingPayment("43"), true, nil)
	f.invoices.On("LockInvoice", mock.Anything, "43").Return(nil)
	f.invoices.On("UnlockInvoice", mock.Anything, "43").Return(nil)
	f.payments.On("UpdateStatus", mock.Anything, key, mock.Anything, paymentDomain.StatusInitiated).Return(nil)
	f.rail.On("Payout", mock.Anything, invoice, mock.Anything, key).
		Return(nil, rails.NewPermanent("payoneer", assert.AnError))
	f.payments.On("UpdateStatus", mock.Anything, key, []paymentDomain.Status(nil), paymentDomain.StatusFailed).
		Return(nil).Once()
	f.notifier.On("PostMessage", mock.Anything, mock.Anything).Return(nil).Once()

	s := newTestService(f)

	assert.NoError(t, s.Dispatch(context.Background()))
	f.payments.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
	f.invoices.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
}

func TestRetryPayment(t *testing.T) {
	f := newFields()
	f.payments.On("UpdateStatus", mock.Anything, "key-1",
		[]paymentDomain.Status{paymentDomain.StatusFailed}, paymentDomain.StatusRetry).Return(nil)

	s := newTestService(f)

	assert.NoError(t, s.RetryPayment(context.Background(), "key-1"))
}

func TestVoidInvoice_RejectsInFlightPayout(t *testing.T) {
	invoice := purchaseInvoice("43", "77", "937.50")

	f := newFields()
	f.invoices.On("GetInvoice", mock.Anything, "43").Return(invoice, nil)
	f.payments.On("ListByInvoice", mock.Anything, "43").
		Return([]*paymentDomain.Payment{{ID: "key-1", Status: paymentDomain.StatusProcessing}}, nil)

	s := newTestService(f)

	assert.ErrorIs(t, s.VoidInvoice(context.Background(), "43"), ErrPaymentInFlight)
	f.invoices.AssertNotCalled(t, "MarkVoid", mock.Anything, mock.Anything)
}

func TestHandleIPCN(t *testing.T) {
	f := newFields()
	f.payees.On("GetPayee", mock.Anything, "77").
		Return(&payoutDomain.Payee{UserID: "77", Status: payoutDomain.PayeePending}, nil)
	f.payees.On("SavePayee", mock.Anything, mock.MatchedBy(func(p *payoutDomain.Payee) bool {
		return p.PayoneerID == "pn-77" && p.Status == payoutDomain.PayeeActive && p.UpdatedAt.Equal(testTime)
	})).Return(nil).Once()

	s := newTestService(f)

	assert.NoError(t, s.HandleIPCN(context.Background(), "77", "pn-77", "APPROVED"))
	f.payees.AssertExpectations(t)
}

func TestHandleIPCN_UnknownPayee(t *testing.T) {
	f := newFields()
	f.payees.On("GetPayee", mock.Anything, "unknown").Return(nil, payoutDal.ErrPayeeNotFound)

	s := newTestService(f)

	assert.ErrorIs(t, s.HandleIPCN(context.Background(), "unknown", "pn-x", "APPROVED"), payoutDal.ErrPayeeNotFound)
}

func TestIdempotencyKey_Stable(t *testing.T) {
	assert.Equal(t, IdempotencyKey("43"), IdempotencyKey("43"))
	assert.NotEqual(t, IdempotencyKey("43"), IdempotencyKey("44"))
}
