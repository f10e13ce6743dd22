package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/money"
)

// InvoiceInput is the caller-supplied shape of an invoice for the create and
// bulk endpoints. An empty ID means insert.
type InvoiceInput struct {
	ID            string
	ProjectID     string
	MilestoneID   string
	UserID        string
	Type          domain.InvoiceType
	Amount        decimal.Decimal
	Currency      string
	TaxRate       decimal.Decimal
	ProcessingFee decimal.Decimal
}

func (in *InvoiceInput) validate() error {
	if in.Currency != "" && in.Currency != money.CurrencyEUR {
		return ErrUnknownCurrency
	}

	return nil
}

// CreateInvoice mints a single invoice under its own batch ref.
func (s *InvoicingService) CreateInvoice(ctx context.Context, in InvoiceInput, createdBy string) (*domain.Invoice, error) {
	invoices, err := s.BulkCreate(ctx, []InvoiceInput{in}, createdBy)
	if err != nil {
		return nil, err
	}

	return invoices[0], nil
}

// BulkCreate mints all items atomically under one fresh batch ref.
func (s *InvoicingService) BulkCreate(ctx context.Context, items []InvoiceInput, createdBy string) ([]*domain.Invoice, error) {
	batchRef := uuid.New().String()
	now := s.now()

	invoices := make([]*domain.Invoice, 0, len(items))

	for _, in := range items {
		if err := in.validate(); err != nil {
			return nil, err
		}

		project, err := s.projectsDAL.GetProject(ctx, in.ProjectID)
		if err != nil {
			return nil, err
		}

		id := s.invoicesDAL.NewInvoiceID(ctx)

		number := domain.SaleNumber(now.Year(), project.OwnerID, project.ID, id)
		status := domain.InvoiceStatusIssued

		if in.Type == domain.InvoiceTypePurchase {
			number = domain.PurchaseNumber(now.Year(), project.OwnerID, project.ID, id, in.UserID)
			status = domain.InvoiceStatusApproved
		}

		invoices = append(invoices, &domain.Invoice{
			ID:            id,
			ProjectID:     in.ProjectID,
			MilestoneID:   in.MilestoneID,
			UserID:        in.UserID,
			CreatedBy:     createdBy,
			Type:          in.Type,
			Status:        status,
			Amount:        in.Amount,
			Currency:      money.CurrencyEUR,
			TaxRate:       in.TaxRate,
			ProcessingFee: in.ProcessingFee,
			Number:        number,
			BatchRef:      batchRef,
			IssuedAt:      now,
			DueAt:         now.Add(s.conf.PaymentTerm),
		})
	}

	if err := s.invoicesDAL.ApplyBatch(ctx, invoices, nil, nil); err != nil {
		return nil, err
	}

	return invoices, nil
}

// ReplaceBatch brings the batch to the enumerated state: items with an id
// are updated in place, items without are inserted, existing invoices not
// mentioned are deleted. Forbidden once any invoice in the batch carries a
// non-failed payment.
func (s *InvoicingService) ReplaceBatch(ctx context.Context, batchRef string, items []InvoiceInput, createdBy string) ([]*domain.Invoice, error) {
	existing, err := s.invoicesDAL.ListByBatchRef(ctx, batchRef)
	if err != nil {
		return nil, err
	}

	if len(existing) == 0 {
		return nil, ErrBatchNotFound
	}

	if err := s.assertNoPayments(ctx, existing); err != nil {
		return nil, err
	}

	batchProject := existing[0].ProjectID
	batchMilestone := existing[0].MilestoneID
	existingByID := make(map[string]*domain.Invoice, len(existing))

	for _, invoice := range existing {
		existingByID[invoice.ID] = invoice
	}

	now := s.now()

	var (
		creates   []*domain.Invoice
		updates   []*domain.Invoice
		mentioned = map[string]bool{}
		result    []*domain.Invoice
	)

	for _, in := range items {
		if err := in.validate(); err != nil {
			return nil, err
		}

		if in.ProjectID != "" && in.ProjectID != batchProject {
			return nil, ErrBatchMismatch
		}

		if in.MilestoneID != "" && in.MilestoneID != batchMilestone {
			return nil, ErrBatchMismatch
		}

		if in.ID == "" {
			project, err := s.projectsDAL.GetProject(ctx, batchProject)
			if err != nil {
				return nil, err
			}

			id := s.invoicesDAL.NewInvoiceID(ctx)

			number := domain.SaleNumber(now.Year(), project.OwnerID, project.ID, id)
			status := domain.InvoiceStatusIssued

			if in.Type == domain.InvoiceTypePurchase {
				number = domain.PurchaseNumber(now.Year(), project.OwnerID, project.ID, id, in.UserID)
				status = domain.InvoiceStatusApproved
			}

			invoice := &domain.Invoice{
				ID:            id,
				ProjectID:     batchProject,
				MilestoneID:   batchMilestone,
				UserID:        in.UserID,
				CreatedBy:     createdBy,
				Type:          in.Type,
				Status:        status,
				Amount:        in.Amount,
				Currency:      money.CurrencyEUR,
				TaxRate:       in.TaxRate,
				ProcessingFee: in.ProcessingFee,
				Number:        number,
				BatchRef:      batchRef,
				IssuedAt:      now,
				DueAt:         now.Add(s.conf.PaymentTerm),
			}

			creates = append(creates, invoice)
			result = append(result, invoice)

			continue
		}

		current, ok := existingByID[in.ID]
		if !ok {
			return nil, ErrBatchMismatch
		}

		if current.Paid() {
			return nil, ErrInvoiceNotEditable
		}

		mentioned[in.ID] = true

		updated := *current
		updated.UserID = in.UserID
		updated.Amount = in.Amount
		updated.TaxRate = in.TaxRate
		updated.ProcessingFee = in.ProcessingFee

		updates = append(updates, &updated)
		result = append(result, &updated)
	}

	var deleteIDs []string

	for _, invoice := range existing {
		if !mentioned[invoice.ID] {
			deleteIDs = append(deleteIDs, invoice.ID)
		}
	}

	if err := s.invoicesDAL.ApplyBatch(ctx, creates, updates, deleteIDs); err != nil {
		return nil, err
	}

	return result, nil
}

// DeleteBatch removes every invoice in the batch. Forbidden if any invoice
// has a non-failed payment.
func (s *InvoicingService) DeleteBatch(ctx context.Context, batchRef string) error {
	existing, err := s.invoicesDAL.ListByBatchRef(ctx, batchRef)
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		return ErrBatchNotFound
	}

	if err := s.assertNoPayments(ctx, existing); err != nil {
		return err
	}

	ids := make([]string, 0, len(existing))
	for _, invoice := range existing {
		ids = append(ids, invoice.ID)
	}

	return s.invoicesDAL.ApplyBatch(ctx, nil, nil, ids)
}

func (s *InvoicingService) assertNoPayments(ctx context.Context, invoices []*domain.Invoice) error {
	for _, invoice := range invoices {
		has, err := s.paymentsDAL.HasNonFailedPayment(ctx, invoice.ID)
		if err != nil {
			return err
		}

		if has {
			return ErrBatchHasPayments
		}
	}

	return nil
}

// Download renders the invoice in the requested format.
func (s *InvoicingService) Download(ctx context.Context, invoiceID, format string) ([]byte, string, error) {
	invoice, err := s.invoicesDAL.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, "", err
	}

	if format == "html" {
		data, err := s.renderer.InvoiceHTML(ctx, invoice)
		return data, "text/html", err
	}

	data, err := s.renderer.InvoicePDF(ctx, invoice)

	return data, "application/pdf", err
}
