package renderer

import (
	"context"

	"github.com/tungahq/payments/invoicing/domain"
)

// ReportContext carries the data a report template is rendered from. The
// renderer output is opaque to the caller.
type ReportContext struct {
	Title     string                 `json:"title"`
	WeekStart string                 `json:"week_start"`
	WeekEnd   string                 `json:"week_end"`
	Data      map[string]interface{} `json:"data"`
}

//go:generate mockery --name Renderer --output ./mocks
type Renderer interface {
	InvoicePDF(ctx context.Context, invoice *domain.Invoice) ([]byte, error)
	InvoiceHTML(ctx context.Context, invoice *domain.Invoice) ([]byte, error)
	CreditNotePDF(ctx context.Context, invoice *domain.Invoice) ([]byte, error)
	ProjectReportPDF(ctx context.Context, report *ReportContext) ([]byte, error)
	PaymentReportPDF(ctx context.Context, report *ReportContext) ([]byte, error)
}
