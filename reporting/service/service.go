package service

import (
	"context"
	"fmt"
	"time"

	"github.com/tungahq/payments/common"
	"github.com/tungahq/payments/framework/connection"
	invoicingDal "github.com/tungahq/payments/invoicing/dal"
	"github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/logger"
	projectDal "github.com/tungahq/payments/project/dal"
	prjDomain "github.com/tungahq/payments/project/domain"
	"github.com/tungahq/payments/renderer"
	"github.com/tungahq/payments/slack"
	"github.com/tungahq/payments/times"
)

// ReportingService produces the weekly project and payment reports over
// Mon-Sun UTC windows and posts the rendered PDFs to the operator channel.
// Both reports are read-only over the invoice set.
type ReportingService struct {
	loggerProvider logger.Provider
	conf           *common.Config
	invoicesDAL    invoicingDal.Invoices
	projectsDAL    projectDal.Projects
	renderer       renderer.Renderer
	notifier       slack.Notifier
	now            func() time.Time
}

func NewReportingService(
	loggerProvider logger.Provider,
	conn *connection.Connection,
	conf *common.Config,
	docRenderer renderer.Renderer,
	notifier slack.Notifier,
) *ReportingService {
	return &ReportingService{
		loggerProvider: loggerProvider,
		conf:           conf,
		invoicesDAL:    invoicingDal.NewInvoicesFirestoreWithClient(conn.Firestore),
		projectsDAL:    projectDal.NewProjectsFirestoreWithClient(conn.Firestore),
		renderer:       docRenderer,
		notifier:       notifier,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// NewReportingServiceWithDeps wires explicit dependencies, used by tests.
func NewReportingServiceWithDeps(
	loggerProvider logger.Provider,
	conf *common.Config,
	invoicesDAL invoicingDal.Invoices,
	projectsDAL projectDal.Projects,
	docRenderer renderer.Renderer,
	notifier slack.Notifier,
) *ReportingService {
	return &ReportingService{
		loggerProvider: loggerProvider,
		conf:           conf,
		invoicesDAL:    invoicesDAL,
		projectsDAL:    projectsDAL,
		renderer:       docRenderer,
		notifier:       notifier,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// PaymentBucketsFor computes the three payment buckets for the week
// containing ref.
func (s *ReportingService) PaymentBucketsFor(ctx context.Context, ref time.Time) (*PaymentBuckets, error) {
	weekStart, weekEnd := times.WeekWindow(ref)
	prevStart, prevEnd := times.PrevWeekWindow(ref)

	buckets := &PaymentBuckets{}

	paid, err := s.invoicesDAL.ListPaidSaleInvoicesPaidBetween(ctx, prevStart, prevEnd)
	if err != nil {
		return nil, err
	}

	buckets.PaidLastWeek = paid

	unpaid, err := s.invoicesDAL.ListUnpaidSaleInvoices(ctx)
	if err != nil {
		return nil, err
	}

	for _, invoice := range unpaid {
		if invoice.Status == domain.InvoiceStatusVoid {
			continue
		}

		bucketUnpaid(buckets, invoice, weekStart, weekEnd)
	}

	return buckets, nil
}

// RunPaymentReport renders and delivers the weekly payment report.
func (s *ReportingService) RunPaymentReport(ctx context.Context) error {
	ref := s.now()
	weekStart, weekEnd := times.WeekWindow(ref)

	buckets, err := s.PaymentBucketsFor(ctx, ref)
	if err != nil {
		return err
	}

	report := &renderer.ReportContext{
		Title:     "Weekly payment report",
		WeekStart: weekStart.Format(times.YearMonthDayLayout),
		WeekEnd:   weekEnd.Format(times.YearMonthDayLayout),
		Data: map[string]interface{}{
			"paid_last_week": summarize(buckets.PaidLastWeek),
			"paid_total":     buckets.PaidTotal().StringFixed(2),
			"upcoming":       summarize(buckets.Upcoming),
			"upcoming_total": buckets.UpcomingTotal().StringFixed(2),
			"overdue":        summarize(buckets.Overdue),
			"overdue_total":  buckets.OverdueTotal().StringFixed(2),
		},
	}

	pdf, err := s.renderer.PaymentReportPDF(ctx, report)
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("payment-report-%s.pdf", weekStart.Format(times.YearMonthDayLayout))

	return s.notifier.UploadFile(ctx, filename, report.Title, pdf)
}

// RunProjectReport renders and delivers the weekly project report over all
// active, non-archived projects: milestones due this week, plus the week's
// billing activity.
func (s *ReportingService) RunProjectReport(ctx context.Context) error {
	ref := s.now()
	weekStart, weekEnd := times.WeekWindow(ref)

	projects, err := s.projectsDAL.ListActiveProjects(ctx)
	if err != nil {
		return err
	}

	milestones, err := s.projectsDAL.ListMilestonesDueBetween(ctx, weekStart, weekEnd)
	if err != nil {
		return err
	}

	// sale invoices shifted by the payment term, purchases in the window
	sales, err := s.invoicesDAL.ListSaleInvoicesIssuedBetween(ctx,
		weekStart.Add(-clientLeadTime), weekEnd.Add(-clientLeadTime))
	if err != nil {
		return err
	}

	purchases, err := s.invoicesDAL.ListPurchaseInvoicesIssuedBetween(ctx, weekStart, weekEnd)
	if err != nil {
		return err
	}

	salesByProject := groupByProject(sales)
	purchasesByProject := groupByProject(purchases)
	milestonesByProject := groupMilestones(milestones)

	rows := make([]map[string]interface{}, 0, len(projects))

	for _, project := range projects {
		rows = append(rows, map[string]interface{}{
			"project":    project.Title,
			"milestones": summarizeMilestones(milestonesByProject[project.ID]),
			"sales":      summarize(salesByProject[project.ID]),
			"purchases":  summarize(purchasesByProject[project.ID]),
		})
	}

	report := &renderer.ReportContext{
		Title:     "Weekly project report",
		WeekStart: weekStart.Format(times.YearMonthDayLayout),
		WeekEnd:   weekEnd.Format(times.YearMonthDayLayout),
		Data: map[string]interface{}{
			"projects": rows,
		},
	}

	pdf, err := s.renderer.ProjectReportPDF(ctx, report)
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("project-report-%s.pdf", weekStart.Format(times.YearMonthDayLayout))

	return s.notifier.UploadFile(ctx, filename, report.Title, pdf)
}

// RunWeeklyReports produces both weekly reports in one job run.
func (s *ReportingService) RunWeeklyReports(ctx context.Context) error {
	if err := s.RunProjectReport(ctx); err != nil {
		return err
	}

	return s.RunPaymentReport(ctx)
}

func groupMilestones(milestones []*prjDomain.Milestone) map[string][]*prjDomain.Milestone {
	grouped := make(map[string][]*prjDomain.Milestone)
	for _, milestone := range milestones {
		grouped[milestone.ProjectID] = append(grouped[milestone.ProjectID], milestone)
	}

	return grouped
}

func summarizeMilestones(milestones []*prjDomain.Milestone) []map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(milestones))

	for _, milestone := range milestones {
		items = append(items, map[string]interface{}{
			"title":  milestone.Title,
			"due_at": milestone.DueAt.Format(times.YearMonthDayLayout),
		})
	}

	return items
}

func groupByProject(invoices []*domain.Invoice) map[string][]*domain.Invoice {
	grouped := make(map[string][]*domain.Invoice)
	for _, invoice := range invoices {
		grouped[invoice.ProjectID] = append(grouped[invoice.ProjectID], invoice)
	}

	return grouped
}

func summarize(invoices []*domain.Invoice) []map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(invoices))

	for _, invoice := range invoices {
		items = append(items, map[string]interface{}{
			"number":    invoice.Number,
			"total":     invoice.Total().StringFixed(2),
			"issued_at": invoice.IssuedAt.Format(times.YearMonthDayLayout),
		})
	}

	return items
}
