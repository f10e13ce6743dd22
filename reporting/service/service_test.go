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
	projectMocks "github.com/tungahq/payments/project/dal/mocks"
	prjDomain "github.com/tungahq/payments/project/domain"
	"github.com/tungahq/payments/renderer"
	rendererMocks "github.com/tungahq/payments/renderer/mocks"
	slackMocks "github.com/tungahq/payments/slack/mocks"
	"github.com/tungahq/payments/times"
)

// Wednesday July 17th 2024; the containing week runs Mon 15th to Sun 21st.
var testTime = time.Date(2024, 7, 17, 9, 0, 0, 0, time.UTC)

type fields struct {
	invoices *invoiceMocks.Invoices
	projects *projectMocks.Projects
	renderer *rendererMocks.Renderer
	notifier *slackMocks.Notifier
}

func newFields() *fields {
	return &fields{
		invoices: &invoiceMocks.Invoices{},
		projects: &projectMocks.Projects{},
		renderer: &rendererMocks.Renderer{},
		notifier: &slackMocks.Notifier{},
	}
}

func newTestService(f *fields) *ReportingService {
	s := NewReportingServiceWithDeps(
		logger.FromContext,
		&common.Config{},
		f.invoices,
		f.projects,
		f.renderer,
		f.notifier,
	)
	s.now = func() time.Time { return testTime }

	return s
}

func sale(id string, issuedAt time.Time) *domain.Invoice {
	amount, _ := decimal.NewFromString("1000")

	return &domain.Invoice{
		ID:        id,
		ProjectID: "9",
		Type:      domain.InvoiceTypeSale,
		Status:    domain.InvoiceStatusIssued,
		Amount:    amount,
		Currency:  "EUR",
		Number:    "2024/101/9/" + id,
		IssuedAt:  issuedAt,
	}
}

func TestPaymentBuckets_NonOverlap(t *testing.T) {
	weekStart, _ := times.WeekWindow(testTime)
	prevStart, _ := times.PrevWeekWindow(testTime)

	// issued exactly 14 days before the week start: first day of "upcoming"
	upcoming := sale("50", weekStart.Add(-clientLeadTime))
	// issued one microsecond earlier: overdue
	overdue := sale("51", weekStart.Add(-clientLeadTime).Add(-time.Microsecond))
	// issued this week: not due yet, reported nowhere
	notDue := sale("52", weekStart.Add(24*time.Hour))

	paidAt := prevStart.Add(48 * time.Hour)
	paid := sale("53", prevStart.Add(-10*24*time.Hour))
	paid.Status = domain.InvoiceStatusPaid
	paid.PaidAt = &paidAt

	f := newFields()
	f.invoices.On("ListPaidSaleInvoicesPaidBetween", mock.Anything, mock.Anything, mock.Anything).
		Return([]*domain.Invoice{paid}, nil)
	f.invoices.On("ListUnpaidSaleInvoices", mock.Anything).
		Return([]*domain.Invoice{upcoming, overdue, notDue}, nil)

	s := newTestService(f)

	buckets, err := s.PaymentBucketsFor(context.Background(), testTime)
	assert.NoError(t, err)

	assert.Len(t, buckets.PaidLastWeek, 1)
	assert.Len(t, buckets.Upcoming, 1)
	assert.Len(t, buckets.Overdue, 1)
	assert.Equal(t, "50", buckets.Upcoming[0].ID)
	assert.Equal(t, "51", buckets.Overdue[0].ID)

	// every invoice appears in exactly one bucket
	seen := map[string]int{}
	for _, invoice := range buckets.PaidLastWeek {
		seen[invoice.ID]++
	}
	for _, invoice := range buckets.Upcoming {
		seen[invoice.ID]++
	}
	for _, invoice := range buckets.Overdue {
		seen[invoice.ID]++
	}

	for id, count := range seen {
		assert.Equalf(t, 1, count, "invoice %s bucketed %d times", id, count)
	}

	assert.NotContains(t, seen, "52")
}

func TestPaymentBuckets_Totals(t *testing.T) {
	weekStart, _ := times.WeekWindow(testTime)

	first := sale("50", weekStart.Add(-clientLeadTime))
	second := sale("51", weekStart.Add(-clientLeadTime).Add(time.Hour))
	second.TaxRate = decimal.NewFromInt(21)

	f := newFields()
	f.invoices.On("ListPaidSaleInvoicesPaidBetween", mock.Anything, mock.Anything, mock.Anything).
		Return([]*domain.Invoice(nil), nil)
	f.invoices.On("ListUnpaidSaleInvoices", mock.Anything).
		Return([]*domain.Invoice{first, second}, nil)

	s := newTestService(f)

	buckets, err := s.PaymentBucketsFor(context.Background(), testTime)
	assert.NoError(t, err)

	// 1000.00 + 1210.00
	assert.Equal(t, "2210.00", buckets.UpcomingTotal().StringFixed(2))
	assert.Equal(t, "0.00", buckets.OverdueTotal().StringFixed(2))
}

func TestRunPaymentReport_UploadsPDF(t *testing.T) {
	f := newFields()
	f.invoices.On("ListPaidSaleInvoicesPaidBetween", mock.Anything, mock.Anything, mock.Anything).
		Return([]*domain.Invoice(nil), nil)
	f.invoices.On("ListUnpaidSaleInvoices", mock.Anything).Return([]*domain.Invoice(nil), nil)
	f.renderer.On("PaymentReportPDF", mock.Anything, mock.Anything).Return([]byte("pdf"), nil)
	f.notifier.On("UploadFile", mock.Anything, "payment-report-2024-07-15.pdf",
		"Weekly payment report", []byte("pdf")).Return(nil).Once()

	s := newTestService(f)

	assert.NoError(t, s.RunPaymentReport(context.Background()))
	f.notifier.AssertExpectations(t)
}

func TestRunProjectReport_GroupsByProject(t *testing.T) {
	weekStart, weekEnd := times.WeekWindow(testTime)

	project := &prjDomain.Project{ID: "9", Title: "Platform build", State: prjDomain.ProjectStateActive}
	saleInvoice := sale("50", weekStart.Add(-clientLeadTime).Add(time.Hour))
	purchase := sale("51", weekStart.Add(time.Hour))
	purchase.Type = domain.InvoiceTypePurchase

	milestone := &prjDomain.Milestone{
		ID:        "m-1",
		ProjectID: "9",
		Title:     "Beta launch",
		DueAt:     weekStart.Add(72 * time.Hour),
	}

	f := newFields()
	f.projects.On("ListActiveProjects", mock.Anything).Return([]*prjDomain.Project{project}, nil)
	f.projects.On("ListMilestonesDueBetween", mock.Anything, weekStart, weekEnd).
		Return([]*prjDomain.Milestone{milestone}, nil).Once()
	f.invoices.On("ListSaleInvoicesIssuedBetween", mock.Anything,
		weekStart.Add(-clientLeadTime), weekEnd.Add(-clientLeadTime)).
		Return([]*domain.Invoice{saleInvoice}, nil)
	f.invoices.On("ListPurchaseInvoicesIssuedBetween", mock.Anything, weekStart, weekEnd).
		Return([]*domain.Invoice{purchase}, nil)
	f.renderer.On("ProjectReportPDF", mock.Anything, mock.MatchedBy(func(r *renderer.ReportContext) bool {
		rows, ok := r.Data["projects"].([]map[string]interface{})
		if !ok || len(rows) != 1 {
			return false
		}

		milestones, ok := rows[0]["milestones"].([]map[string]interface{})

		return ok && len(milestones) == 1 && milestones[0]["title"] == "Beta launch"
	})).Return([]byte("pdf"), nil)
	f.notifier.On("UploadFile", mock.Anything, "project-report-2024-07-15.pdf",
		"Weekly project report", []byte("pdf")).Return(nil).Once()

	s := newTestService(f)

	assert.NoError(t, s.RunProjectReport(context.Background()))
	f.invoices.AssertExpectations(t)
	f.projects.AssertExpectations(t)
	f.renderer.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}
