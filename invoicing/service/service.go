package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tungahq/payments/common"
	"github.com/tungahq/payments/framework/connection"
	"github.com/tungahq/payments/invoicing/dal"
	"github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/logger"
	"github.com/tungahq/payments/money"
	paymentDal "github.com/tungahq/payments/payment/dal"
	projectDal "github.com/tungahq/payments/project/dal"
	prjDomain "github.com/tungahq/payments/project/domain"
	projectService "github.com/tungahq/payments/project/service"
	"github.com/tungahq/payments/renderer"
)

// InvoicingService mints and maintains invoices. Purchase invoices come out
// of the factory APPROVED: batch generation is itself the admin action that
// releases them into the payout loop.
type InvoicingService struct {
	loggerProvider logger.Provider
	conf           *common.Config
	invoicesDAL    dal.Invoices
	paymentsDAL    paymentDal.Payments
	projectsDAL    projectDal.Projects
	renderer       renderer.Renderer
	now            func() time.Time
}

func NewInvoicingService(
	loggerProvider logger.Provider,
	conn *connection.Connection,
	conf *common.Config,
	docRenderer renderer.Renderer,
) *InvoicingService {
	return &InvoicingService{
		loggerProvider: loggerProvider,
		conf:           conf,
		invoicesDAL:    dal.NewInvoicesFirestoreWithClient(conn.Firestore),
		paymentsDAL:    paymentDal.NewPaymentsFirestoreWithClient(conn.Firestore),
		projectsDAL:    projectDal.NewProjectsFirestoreWithClient(conn.Firestore),
		renderer:       docRenderer,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// NewInvoicingServiceWithDALs wires explicit dependencies, used by tests.
func NewInvoicingServiceWithDALs(
	loggerProvider logger.Provider,
	conf *common.Config,
	invoicesDAL dal.Invoices,
	paymentsDAL paymentDal.Payments,
	projectsDAL projectDal.Projects,
	docRenderer renderer.Renderer,
) *InvoicingService {
	return &InvoicingService{
		loggerProvider: loggerProvider,
		conf:           conf,
		invoicesDAL:    invoicesDAL,
		paymentsDAL:    paymentsDAL,
		projectsDAL:    projectsDAL,
		renderer:       docRenderer,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *InvoicingService) GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	return s.invoicesDAL.GetInvoice(ctx, invoiceID)
}

// GenerateBatch mints one SALE invoice for the project owner and one
// PURCHASE invoice per payable participant, grouped under a fresh batch ref.
func (s *InvoicingService) GenerateBatch(ctx context.Context, projectID, createdBy string) ([]*domain.Invoice, error) {
	log := s.loggerProvider(ctx)

	project, err := s.projectsDAL.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if project.Currency != "" && project.Currency != money.CurrencyEUR {
		return nil, ErrUnknownCurrency
	}

	existing, err := s.invoicesDAL.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	for _, invoice := range existing {
		if invoice.Paid() {
			return nil, ErrStateConflict
		}
	}

	participations, err := s.projectsDAL.ListParticipations(ctx, projectID)
	if err != nil {
		return nil, err
	}

	shares, err := projectService.Shares(participations)
	if err != nil {
		return nil, err
	}

	if len(shares) == 0 {
		return nil, ErrMissingShares
	}

	now := s.now()
	batchRef := uuid.New().String()
	saleID := s.invoicesDAL.NewInvoiceID(ctx)

	sale := &domain.Invoice{
		ID:            saleID,
		ProjectID:     project.ID,
		UserID:        project.OwnerID,
		CreatedBy:     createdBy,
		Type:          domain.InvoiceTypeSale,
		Status:        domain.InvoiceStatusIssued,
		Amount:        project.Budget,
		Currency:      money.CurrencyEUR,
		TaxRate:       project.TaxRate(),
		ProcessingFee: decimal.Zero,
		Number:        domain.SaleNumber(now.Year(), project.OwnerID, project.ID, saleID),
		BatchRef:      batchRef,
		IssuedAt:      now,
		DueAt:         now.Add(s.conf.PaymentTerm),
	}

	invoices := []*domain.Invoice{sale}

	purchases := s.mintPurchaseInvoices(ctx, project, shares, sale, createdBy, now, batchRef)
	invoices = append(invoices, purchases...)

	if err := s.invoicesDAL.ApplyBatch(ctx, invoices, nil, nil); err != nil {
		return nil, err
	}

	log.Infof("generated invoice batch %s for project %s: 1 sale, %d purchase", batchRef, projectID, len(purchases))

	return invoices, nil
}

// mintPurchaseInvoices applies the share split to the developer portion of
// the budget. Rounding residue is absorbed by the largest-share participant
// so the purchase amounts sum to the intended developer payout exactly.
func (s *InvoicingService) mintPurchaseInvoices(
	ctx context.Context,
	project *prjDomain.Project,
	shares []prjDomain.Share,
	sale *domain.Invoice,
	createdBy string,
	now time.Time,
	batchRef string,
) []*domain.Invoice {
	devFactor := decimal.NewFromInt(1).Sub(s.conf.TungaMargin)
	devPool := project.Budget.Mul(devFactor)

	var payable []prjDomain.Share

	payableMass := decimal.Zero

	for _, share := range shares {
		if share.Payable {
			payable = append(payable, share)
			payableMass = payableMass.Add(share.Fraction)
		}
	}

	if len(payable) == 0 {
		return nil
	}

	intended := money.Round2(devPool.Mul(payableMass))

	amounts := make([]decimal.Decimal, len(payable))
	sum := decimal.Zero

	for i, share := range payable {
		amounts[i] = money.Round2(devPool.Mul(share.Fraction))
		sum = sum.Add(amounts[i])
	}

	// shares are sorted by descending fraction, so index 0 absorbs the residual
	residual := intended.Sub(sum)
	if !residual.IsZero() {
		amounts[0] = amounts[0].Add(residual)
	}

	invoices := make([]*domain.Invoice, 0, len(payable))

	for i, share := range payable {
		purchaseID := s.invoicesDAL.NewInvoiceID(ctx)

		invoices = append(invoices, &domain.Invoice{
			ID:            purchaseID,
			ProjectID:     project.ID,
			UserID:        share.UserID,
			CreatedBy:     createdBy,
			Type:          domain.InvoiceTypePurchase,
			Status:        domain.InvoiceStatusApproved,
			Amount:        amounts[i],
			Currency:      money.CurrencyEUR,
			TaxRate:       decimal.Zero,
			ProcessingFee: decimal.Zero,
			Number:        domain.PurchaseNumber(now.Year(), project.OwnerID, project.ID, sale.ID, share.UserID),
			BatchRef:      batchRef,
			IssuedAt:      now,
			DueAt:         now,
		})
	}

	return invoices
}
