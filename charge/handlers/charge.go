package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tungahq/payments/charge/service"
	"github.com/tungahq/payments/common"
	"github.com/tungahq/payments/framework/connection"
	"github.com/tungahq/payments/framework/web"
	invoicingDal "github.com/tungahq/payments/invoicing/dal"
	"github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/logger"
	"github.com/tungahq/payments/mailer"
	paymentDomain "github.com/tungahq/payments/payment/domain"
	"github.com/tungahq/payments/renderer"
)

type Charge struct {
	loggerProvider logger.Provider
	service        *service.ChargeService
}

func NewCharge(
	loggerProvider logger.Provider,
	conn *connection.Connection,
	conf *common.Config,
	docRenderer renderer.Renderer,
	sender mailer.ISender,
	syncer service.Syncer,
) *Charge {
	return &Charge{
		loggerProvider: loggerProvider,
		service:        service.NewChargeService(loggerProvider, conn, conf, docRenderer, sender, syncer),
	}
}

type payRequest struct {
	PaymentMethod string          `json:"payment_method"`
	Token         string          `json:"token"`
	Email         string          `json:"email"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	IdemKey       string          `json:"idem_key"`
}

type payResponse struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Status string `json:"status"`
	Total  string `json:"total"`
	Paid   bool   `json:"paid"`
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrUnknownMethod),
		errors.Is(err, service.ErrAmountMismatch),
		errors.Is(err, service.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, invoicingDal.ErrAlreadyPaid),
		errors.Is(err, invoicingDal.ErrInvoiceLocked),
		errors.Is(err, service.ErrNotSaleInvoice),
		errors.Is(err, service.ErrLegacyInvoice),
		errors.Is(err, service.ErrPaymentInFlight):
		return http.StatusConflict
	case errors.Is(err, invoicingDal.ErrInvoiceNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PayHandler charges a sale invoice inline. Rail failures come back as a
// generic 500 so no rail detail leaks to the payer.
func (h *Charge) PayHandler(ctx *gin.Context) error {
	invoiceID := ctx.Param("invoiceID")
	if invoiceID == "" {
		return web.NewRequestError(web.ErrBadRequest, http.StatusBadRequest)
	}

	var input payRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		return web.NewRequestError(err, http.StatusBadRequest)
	}

	invoice, err := h.service.Pay(ctx, invoiceID, service.PayRequest{
		Method:         paymentDomain.Method(input.PaymentMethod),
		Token:          input.Token,
		Email:          input.Email,
		Amount:         input.Amount,
		IdempotencyKey: input.IdemKey,
		CreatedBy:      ctx.GetString(common.CtxKeys.Email),
	})
	if err != nil {
		return web.NewRequestError(err, statusForError(err))
	}

	return web.Respond(ctx, toPayResponse(invoice), http.StatusOK)
}

// SendInvoiceHandler emails the invoice to the client.
func (h *Charge) SendInvoiceHandler(ctx *gin.Context) error {
	invoiceID := ctx.Param("invoiceID")
	if invoiceID == "" {
		return web.NewRequestError(web.ErrBadRequest, http.StatusBadRequest)
	}

	if err := h.service.SendInvoice(ctx, invoiceID); err != nil {
		return web.NewRequestError(err, statusForError(err))
	}

	return web.Respond(ctx, nil, http.StatusNoContent)
}

// VoidHandler cancels the invoice and mails the credit note.
func (h *Charge) VoidHandler(ctx *gin.Context) error {
	invoiceID := ctx.Param("invoiceID")
	if invoiceID == "" {
		return web.NewRequestError(web.ErrBadRequest, http.StatusBadRequest)
	}

	if err := h.service.Void(ctx, invoiceID); err != nil {
		return web.NewRequestError(err, statusForError(err))
	}

	return web.Respond(ctx, nil, http.StatusNoContent)
}

// StripeWebhookHandler verifies and settles incoming charge events.
func (h *Charge) StripeWebhookHandler(ctx *gin.Context) error {
	payload, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		return web.NewRequestError(err, http.StatusBadRequest)
	}

	signature := ctx.GetHeader("Stripe-Signature")

	if err := h.service.HandleStripeEvent(ctx, payload, signature); err != nil {
		return web.NewRequestError(err, statusForError(err))
	}

	return web.Respond(ctx, nil, http.StatusOK)
}

// RemindersHandler runs the reminder pass, normally invoked by the scheduler.
func (h *Charge) RemindersHandler(ctx *gin.Context) error {
	if err := h.service.SendReminders(ctx); err != nil {
		return web.NewRequestError(err, http.StatusInternalServerError)
	}

	return web.Respond(ctx, nil, http.StatusOK)
}

func toPayResponse(invoice *domain.Invoice) payResponse {
	return payResponse{
		ID:     invoice.ID,
		Number: invoice.Number,
		Status: string(invoice.Status),
		Total:  invoice.Total().StringFixed(2),
		Paid:   invoice.Paid(),
	}
}
