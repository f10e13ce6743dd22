package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tungahq/payments/common"
	"github.com/tungahq/payments/framework/connection"
	"github.com/tungahq/payments/framework/web"
	invoicingDal "github.com/tungahq/payments/invoicing/dal"
	"github.com/tungahq/payments/logger"
	paymentDal "github.com/tungahq/payments/payment/dal"
	"github.com/tungahq/payments/payout/dal"
	"github.com/tungahq/payments/payout/service"
	"github.com/tungahq/payments/slack"
)

type Payout struct {
	loggerProvider logger.Provider
	service        *service.PayoutService
}

func NewPayout(
	loggerProvider logger.Provider,
	conn *connection.Connection,
	conf *common.Config,
	notifier slack.Notifier,
) *Payout {
	return &Payout{
		loggerProvider: loggerProvider,
		service:        service.NewPayoutService(loggerProvider, conn, conf, notifier),
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, dal.ErrPayeeNotFound):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotPurchaseInvoice),
		errors.Is(err, service.ErrNotFailed):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrPaymentInFlight):
		return http.StatusConflict
	case errors.Is(err, invoicingDal.ErrInvoiceNotFound),
		errors.Is(err, paymentDal.ErrPaymentNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// DispatchHandler runs one payout cycle, normally invoked by the scheduler.
func (h *Payout) DispatchHandler(ctx *gin.Context) error {
	if err := h.service.Dispatch(ctx); err != nil {
		return web.NewRequestError(err, http.StatusInternalServerError)
	}

	return web.Respond(ctx, nil, http.StatusOK)
}

// RetryHandler flips a failed payment back into the dispatch loop.
func (h *Payout) RetryHandler(ctx *gin.Context) error {
	paymentID := ctx.Param("paymentID")
	if paymentID == "" {
		return web.NewRequestError(web.ErrBadRequest, http.StatusBadRequest)
	}

	if err := h.service.RetryPayment(ctx, paymentID); err != nil {
		return web.NewRequestError(err, statusForError(err))
	}

	return web.Respond(ctx, nil, http.StatusOK)
}

// VoidHandler cancels a purchase invoice unless a payout is in flight.
func (h *Payout) VoidHandler(ctx *gin.Context) error {
	invoiceID := ctx.Param("invoiceID")
	if invoiceID == "" {
		return web.NewRequestError(web.ErrBadRequest, http.StatusBadRequest)
	}

	if err := h.service.VoidInvoice(ctx, invoiceID); err != nil {
		return web.NewRequestError(err, statusForError(err))
	}

	return web.Respond(ctx, nil, http.StatusNoContent)
}

// IPCNHandler is the Payoneer program callback advancing payee onboarding.
func (h *Payout) IPCNHandler(ctx *gin.Context) error {
	apuid := ctx.Query("apuid")
	payoneerID := ctx.Query("payoneerid")
	callbackStatus := ctx.Query("status")

	if apuid == "" || payoneerID == "" {
		return web.NewRequestError(web.ErrBadRequest, http.StatusBadRequest)
	}

	if err := h.service.HandleIPCN(ctx, apuid, payoneerID, callbackStatus); err != nil {
		return web.NewRequestError(err, statusForError(err))
	}

	return web.Respond(ctx, nil, http.StatusOK)
}
