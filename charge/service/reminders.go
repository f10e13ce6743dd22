package service

import (
	"context"
	"errors"

	"github.com/hashicorp/go-multierror"

	invoicingDal "github.com/tungahq/payments/invoicing/dal"
	"github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/mailer"
)

// SendReminders walks the unpaid sale invoices and emails the stage the
// invoice is due for. The guard field is set only after the mail gateway
// confirms the send; a job that loses the compare-and-set no-ops.
func (s *ChargeService) SendReminders(ctx context.Context) error {
	log := s.loggerProvider(ctx)
	now := s.now()

	invoices, err := s.invoicesDAL.ListUnpaidSaleInvoices(ctx)
	if err != nil {
		return err
	}

	var result *multierror.Error

	for _, invoice := range invoices {
		if invoice.Legacy() || invoice.Status == domain.InvoiceStatusVoid {
			continue
		}

		var stage invoicingDal.ReminderStage

		switch {
		case now.Sub(invoice.IssuedAt) >= s.conf.EscalationAt && invoice.ReminderEscalatedSentAt == nil:
			stage = invoicingDal.ReminderStageEscalated
		// once the escalated reminder went out the first stage is moot
		case now.Sub(invoice.IssuedAt) >= s.conf.ReminderAt && invoice.ReminderSentAt == nil &&
			invoice.ReminderEscalatedSentAt == nil:
			stage = invoicingDal.ReminderStageFirst
		default:
			continue
		}

		if err := s.remind(ctx, invoice, stage); err != nil {
			if errors.Is(err, invoicingDal.ErrInvoiceLocked) || errors.Is(err, invoicingDal.ErrAlreadyReminded) {
				continue
			}

			log.Errorf("reminder for invoice %s: %v", invoice.ID, err)
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// remind holds the invoice lock across send-then-set so no two jobs attempt
// the same stage concurrently.
func (s *ChargeService) remind(ctx context.Context, invoice *domain.Invoice, stage invoicingDal.ReminderStage) error {
	if err := s.invoicesDAL.LockInvoice(ctx, invoice.ID); err != nil {
		return err
	}
	defer func() {
		_ = s.invoicesDAL.UnlockInvoice(ctx, invoice.ID)
	}()

	current, err := s.invoicesDAL.GetInvoice(ctx, invoice.ID)
	if err != nil {
		return err
	}

	if current.Paid() {
		return nil
	}

	if stage == invoicingDal.ReminderStageFirst &&
		(current.ReminderSentAt != nil || current.ReminderEscalatedSentAt != nil) {
		return nil
	}

	if stage == invoicingDal.ReminderStageEscalated && current.ReminderEscalatedSentAt != nil {
		return nil
	}

	project, err := s.projectsDAL.GetProject(ctx, current.ProjectID)
	if err != nil {
		return err
	}

	templateID := s.conf.Sendgrid.ReminderTpl
	subject := "Payment reminder for invoice " + current.Number

	if stage == invoicingDal.ReminderStageEscalated {
		templateID = s.conf.Sendgrid.EscalationTpl
		subject = "Overdue invoice " + current.Number
	}

	notification := &mailer.SimpleNotification{
		Subject:    subject,
		TemplateID: templateID,
		Categories: []string{mailer.CategoryInvoicesReminder},
	}

	params := map[string]interface{}{
		"invoice_number": current.Number,
		"total":          current.Total().StringFixed(2),
		"due_at":         current.DueAt.Format("2006-01-02"),
	}

	if err := s.mailer.SendNotification(notification, project.OwnerEmail, params); err != nil {
		return err
	}

	return s.invoicesDAL.SetReminderSent(ctx, current.ID, stage, s.now())
}
