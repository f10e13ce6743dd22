package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tungahq/payments/common"
	"github.com/tungahq/payments/framework/connection"
	"github.com/tungahq/payments/framework/web"
	"github.com/tungahq/payments/invoicing/dal"
	"github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/invoicing/service"
	"github.com/tungahq/payments/logger"
	"github.com/tungahq/payments/renderer"
)

type Invoicing struct {
	loggerProvider logger.Provider
	service        *service.InvoicingService
}

func NewInvoicing(loggerProvider logger.Provider, conn *connection.Connection, conf *common.Config, docRenderer renderer.Renderer) *Invoicing {
	return &Invoicing{
		loggerProvider: loggerProvider,
		service:        service.NewInvoicingService(loggerProvider, conn, conf, docRenderer),
	}
}

type invoiceRequest struct {
	ID            string          `json:"id"`
	Project       string          `json:"project"`
	Milestone     string          `json:"milestone"`
	User          string          `json:"user"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	ProcessingFee decimal.Decimal `json:"processing_fee"`
}

func (r *invoiceRequest) toInput() service.InvoiceInput {
	return service.InvoiceInput{
		ID:            r.ID,
		ProjectID:     r.Project,
		MilestoneID:   r.Milestone,
		UserID:        r.User,
		Type:          domain.InvoiceType(r.Type),
		Amount:        r.Amount,
		Currency:      r.Currency,
		TaxRate:       r.TaxRate,
		ProcessingFee: r.ProcessingFee,
	}
}

type invoiceResponse struct {
	ID            string     `json:"id"`
	Project       string     `json:"project"`
	Milestone     string     `json:"milestone,omitempty"`
	User          string     `json:"user"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	TaxRate       string     `json:"tax_rate"`
	TaxAmount     string     `json:"tax_amount"`
	ProcessingFee string     `json:"processing_fee"`
	Total         string     `json:"total"`
	Number        string     `json:"number"`
	BatchRef      string     `json:"batch_ref"`
	IssuedAt      time.Time  `json:"issued_at"`
	DueAt         time.Time  `json:"due_at"`
	PaidAt        *time.Time `json:"paid_at"`
	Paid          bool       `json:"paid"`
}

func toResponse(invoice *domain.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:            invoice.ID,
		Project:       invoice.ProjectID,
		Milestone:     invoice.MilestoneID,
		User:          invoice.UserID,
		Type:          string(invoice.Type),
		Status:        string(invoice.Status),
		Amount:        invoice.Amount.StringFixed(2),
		Currency:      invoice.Currency,
		TaxRate:       invoice.TaxRate.String(),
		TaxAmount:     invoice.TaxAmount().StringFixed(2),
		ProcessingFee: invoice.ProcessingFee.StringFixed(2),
		Total:         invoice.Total().StringFixed(2),
		Number:        invoice.Number,
		BatchRef:      invoice.BatchRef,
		IssuedAt:      invoice.IssuedAt,
		DueAt:         invoice.DueAt,
		PaidAt:        invoice.PaidAt,
		Paid:          invoice.Paid(),
	}
}

func toResponses(invoices []*domain.Invoice) []invoiceResponse {
	out := make([]invoiceResponse, 0, len(invoices))
	for _, invoice := range invoices {
		out = append(out, toResponse(invoice))
	}

	return out
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrUnknownCurrency),
		errors.Is(err, service.ErrBatchMismatch):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrMissingShares):
		return http.StatusPreconditionFailed
	case errors.Is(err, service.ErrStateConflict),
		errors.Is(err, service.ErrBatchHasPayments),
		errors.Is(err, service.ErrInvoiceNotEditable):
		return http.StatusConflict
	case errors.Is(err, service.ErrBatchNotFound),
		errors.Is(err, dal.ErrInvoiceNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// CreateInvoiceHandler mints a single invoice.
func (h *Invoicing) CreateInvoiceHandler(ctx *gin.Context) error {
	var input invoiceRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		return web.NewRequestError(err, http.StatusBadRequest)
	}

	invoice, err := h.service.CreateInvoice(ctx, input.toInput(), ctx.GetString(common.CtxKeys.Email))
	if err != nil {
		return web.NewRequestError(err, statusForError(err))
	}

	return web.Respond(ctx, toResponse(invoice), http.StatusCreated)
}

// BulkCreateHandler mints all items atomically under one batch ref.
func (h *Invoicing) BulkCreateHandler(ctx *gin.Context) error {
	var inputs []invoiceRequest
	if err := ctx.ShouldBindJSON(&inputs); err != nil {
		return web.NewRequestError(err, http.StatusBadRequest)
	}

	items := make([]service.InvoiceInput, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, in.toInput())
	}

	invoices, err := h.service.BulkCreate(ctx, items, ctx.GetString(common.CtxKeys.Email))
	if err != nil {
		return web.NewRequestError(err, statusForError(err))
	}

	return web.Respond(ctx, toResponses(invoices), http.StatusCreated)
}

// ReplaceBatchHandler brings a batch to the enumerated state.
func (h *Invoicing) ReplaceBatchHandler(ctx *gin.Context) error {
	batchRef := ctx.Param("batchRef")
	if batchRef == "" {
		return web.NewRequestError(web.ErrBadRequest, http.StatusBadRequest)
	}

	var inputs []invoiceRequest
	if err := ctx.ShouldBindJSON(&inputs); err != nil {
		return web.NewRequestError(err, http.StatusBadRequest)
	}

	items := make([]service.InvoiceInput, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, in.toInput())
	}

	invoices, err := h.service.ReplaceBatch(ctx, batchRef, items, ctx.GetString(common.CtxKeys.Email))
	if err != nil {
		return web.NewRequestError(err, statusForError(err))
	}

	return web.Respond(ctx, toResponses(invoices), http.StatusOK)
}

// DeleteBatchHandler deletes every invoice in the batch.
func (h *Invoicing) DeleteBatchHandler(ctx *gin.Context) error {
	batchRef := ctx.Param("batchRef")
	if batchRef == "" {
		return web.NewRequestError(web.ErrBadRequest, http.StatusBadRequest)
	}

	if err := h.service.DeleteBatch(ctx, batchRef); err != nil {
		return web.NewRequestError(err, statusForError(err))
	}

	return web.Respond(ctx, nil, http.StatusNoContent)
}

// GenerateBatchHandler runs the invoice factory over a closed project.
func (h *Invoicing) GenerateBatchHandler(ctx *gin.Context) error {
	projectID := ctx.Param("projectID")
	if projectID == "" {
		return web.NewRequestError(web.ErrBadRequest, http.StatusBadRequest)
	}

	invoices, err := h.service.GenerateBatch(ctx, projectID, ctx.GetString(common.CtxKeys.Email))
	if err != nil {
		return web.NewRequestError(err, statusForError(err))
	}

	return web.Respond(ctx, toResponses(invoices), http.StatusCreated)
}

// DownloadHandler streams the rendered invoice document.
func (h *Invoicing) DownloadHandler(ctx *gin.Context) error {
	invoiceID := ctx.Param("invoiceID")
	if invoiceID == "" {
		return web.NewRequestError(web.ErrBadRequest, http.StatusBadRequest)
	}

	format := ctx.DefaultQuery("format", "pdf")
	if format != "pdf" && format != "html" {
		return web.NewRequestError(web.ErrBadRequest, http.StatusBadRequest)
	}

	data, contentType, err := h.service.Download(ctx, invoiceID, format)
	if err != nil {
		return web.NewRequestError(err, statusForError(err))
	}

	filename := "invoice-" + invoiceID + "." + format

	return web.RespondDownloadFile(ctx, data, filename, contentType)
}
