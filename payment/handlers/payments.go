package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tungahq/payments/framework/connection"
	"github.com/tungahq/payments/framework/web"
	invoicingDal "github.com/tungahq/payments/invoicing/dal"
	invoicingDomain "github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/logger"
	"github.com/tungahq/payments/payment/dal"
	"github.com/tungahq/payments/payment/domain"
	"github.com/tungahq/payments/times"
)

// Payments serves the admin payment listing. It is read-only; every
// mutation of a payment goes through the charge or payout services.
type Payments struct {
	loggerProvider logger.Provider
	paymentsDAL    dal.Payments
	invoicesDAL    invoicingDal.Invoices
}

func NewPayments(loggerProvider logger.Provider, conn *connection.Connection) *Payments {
	return &Payments{
		loggerProvider: loggerProvider,
		paymentsDAL:    dal.NewPaymentsFirestoreWithClient(conn.Firestore),
		invoicesDAL:    invoicingDal.NewInvoicesFirestoreWithClient(conn.Firestore),
	}
}

type paymentResponse struct {
	ID          string     `json:"id"`
	Invoice     string     `json:"invoice"`
	Amount      string     `json:"amount"`
	Currency    string     `json:"currency"`
	Method      string     `json:"method"`
	Status      string     `json:"status"`
	ExternalRef string     `json:"external_ref"`
	PaidAt      *time.Time `json:"paid_at"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toResponse(payment *domain.Payment) paymentResponse {
	return paymentResponse{
		ID:          payment.ID,
		Invoice:     payment.InvoiceID,
		Amount:      payment.Amount.StringFixed(2),
		Currency:    payment.Currency,
		Method:      string(payment.Method),
		Status:      string(payment.Status),
		ExternalRef: payment.ExternalRef,
		PaidAt:      payment.PaidAt,
		CreatedBy:   payment.CreatedBy,
		CreatedAt:   payment.CreatedAt,
	}
}

// ListHandler filters payments by date range, method, status and invoice
// scope. Batch, project, number and user scopes resolve to invoice id sets
// first.
func (h *Payments) ListHandler(ctx *gin.Context) error {
	filter := dal.PaymentFilter{
		Method: domain.Method(ctx.Query("method")),
		Status: domain.Status(ctx.Query("status")),
	}

	if raw := ctx.Query("min_date"); raw != "" {
		t, err := time.Parse(times.YearMonthDayLayout, raw)
		if err != nil {
			return web.NewRequestError(err, http.StatusBadRequest)
		}

		filter.MinDate = &t
	}

	if raw := ctx.Query("max_date"); raw != "" {
		t, err := time.Parse(times.YearMonthDayLayout, raw)
		if err != nil {
			return web.NewRequestError(err, http.StatusBadRequest)
		}

		// the day itself is included
		end := t.AddDate(0, 0, 1).Add(-time.Microsecond)
		filter.MaxDate = &end
	}

	if invoiceID := ctx.Query("invoice"); invoiceID != "" {
		filter.InvoiceIDs = append(filter.InvoiceIDs, invoiceID)
	}

	scopes := []struct {
		param string
		list  func(ctx *gin.Context, value string) ([]*invoicingDomain.Invoice, error)
	}{
		{"batch_ref", func(ctx *gin.Context, v string) ([]*invoicingDomain.Invoice, error) {
			return h.invoicesDAL.ListByBatchRef(ctx, v)
		}},
		{"project", func(ctx *gin.Context, v string) ([]*invoicingDomain.Invoice, error) {
			return h.invoicesDAL.ListByProject(ctx, v)
		}},
		{"number", func(ctx *gin.Context, v string) ([]*invoicingDomain.Invoice, error) {
			return h.invoicesDAL.ListByNumber(ctx, v)
		}},
		{"user", func(ctx *gin.Context, v string) ([]*invoicingDomain.Invoice, error) {
			return h.invoicesDAL.ListByUser(ctx, v)
		}},
	}

	scoped := ctx.Query("invoice") != ""

	for _, scope := range scopes {
		value := ctx.Query(scope.param)
		if value == "" {
			continue
		}

		scoped = true

		invoices, err := scope.list(ctx, value)
		if err != nil {
			return web.NewRequestError(err, http.StatusInternalServerError)
		}

		for _, invoice := range invoices {
			filter.InvoiceIDs = append(filter.InvoiceIDs, invoice.ID)
		}
	}

	if scoped && len(filter.InvoiceIDs) == 0 {
		return web.Respond(ctx, []paymentResponse{}, http.StatusOK)
	}

	payments, err := h.paymentsDAL.ListPayments(ctx, filter)
	if err != nil {
		return web.NewRequestError(err, http.StatusInternalServerError)
	}

	out := make([]paymentResponse, 0, len(payments))
	for _, payment := range payments {
		out = append(out, toResponse(payment))
	}

	return web.Respond(ctx, out, http.StatusOK)
}

// GetHandler returns one payment by id.
func (h *Payments) GetHandler(ctx *gin.Context) error {
	paymentID := ctx.Param("paymentID")
	if paymentID == "" {
		return web.NewRequestError(web.ErrBadRequest, http.StatusBadRequest)
	}

	payment, err := h.paymentsDAL.GetPayment(ctx, paymentID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, dal.ErrPaymentNotFound) {
			status = http.StatusNotFound
		}

		return web.NewRequestError(err, status)
	}

	return web.Respond(ctx, toResponse(payment), http.StatusOK)
}
