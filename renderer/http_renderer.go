package renderer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tungahq/payments/invoicing/domain"
)

var ErrRenderFailed = errors.New("renderer returned a non-200 response")

// HTTPRenderer renders documents through the internal rendering service.
type HTTPRenderer struct {
	client *resty.Client
}

func NewHTTPRenderer(baseURL string, timeout time.Duration) *HTTPRenderer {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)

	return &HTTPRenderer{client: client}
}

func (r *HTTPRenderer) render(ctx context.Context, path string, body interface{}) ([]byte, error) {
	response, err := r.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		return nil, err
	}

	if response.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: %s %d", ErrRenderFailed, path, response.StatusCode())
	}

	return response.Body(), nil
}

func (r *HTTPRenderer) InvoicePDF(ctx context.Context, invoice *domain.Invoice) ([]byte, error) {
	return r.render(ctx, "/render/invoice/pdf", invoice)
}

func (r *HTTPRenderer) InvoiceHTML(ctx context.Context, invoice *domain.Invoice) ([]byte, error) {
	return r.render(ctx, "/render/invoice/html", invoice)
}

func (r *HTTPRenderer) CreditNotePDF(ctx context.Context, invoice *domain.Invoice) ([]byte, error) {
	return r.render(ctx, "/render/credit-note/pdf", invoice)
}

func (r *HTTPRenderer) ProjectReportPDF(ctx context.Context, report *ReportContext) ([]byte, error) {
	return r.render(ctx, "/render/report/project/pdf", report)
}

func (r *HTTPRenderer) PaymentReportPDF(ctx context.Context, report *ReportContext) ([]byte, error) {
	return r.render(ctx, "/render/report/payment/pdf", report)
}
