package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/tungahq/payments/common"
	"github.com/tungahq/payments/framework/connection"
	invoicingDal "github.com/tungahq/payments/invoicing/dal"
	"github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/ledger"
	"github.com/tungahq/payments/ledger/dal"
	ledgerDomain "github.com/tungahq/payments/ledger/domain"
	"github.com/tungahq/payments/logger"
	"github.com/tungahq/payments/money"
	projectDal "github.com/tungahq/payments/project/dal"
	prjDomain "github.com/tungahq/payments/project/domain"
	"github.com/tungahq/payments/renderer"
)

var ErrUnknownParty = errors.New("no party resolvable for invoice")

// LedgerService books paid invoices into the accounting system. Every step
// is idempotent: the sync record, the YourRef lookup and the duplicate
// answer from the ledger each stop a second booking.
type LedgerService struct {
	loggerProvider logger.Provider
	conf           *common.Config
	invoicesDAL    invoicingDal.Invoices
	projectsDAL    projectDal.Projects
	syncsDAL       dal.Syncs
	client         ledger.Client
	renderer       renderer.Renderer
	now            func() time.Time
}

func NewLedgerService(
	loggerProvider logger.Provider,
	conn *connection.Connection,
	conf *common.Config,
	docRenderer renderer.Renderer,
) *LedgerService {
	return &LedgerService{
		loggerProvider: loggerProvider,
		conf:           conf,
		invoicesDAL:    invoicingDal.NewInvoicesFirestoreWithClient(conn.Firestore),
		projectsDAL:    projectDal.NewProjectsFirestoreWithClient(conn.Firestore),
		syncsDAL:       dal.NewSyncsFirestoreWithClient(conn.Firestore),
		client:         ledger.NewMoneybirdClient(conf.Ledger),
		renderer:       docRenderer,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// NewLedgerServiceWithDeps wires explicit dependencies, used by tests.
func NewLedgerServiceWithDeps(
	loggerProvider logger.Provider,
	conf *common.Config,
	invoicesDAL invoicingDal.Invoices,
	projectsDAL projectDal.Projects,
	syncsDAL dal.Syncs,
	client ledger.Client,
	docRenderer renderer.Renderer,
) *LedgerService {
	return &LedgerService{
		loggerProvider: loggerProvider,
		conf:           conf,
		invoicesDAL:    invoicesDAL,
		projectsDAL:    projectsDAL,
		syncsDAL:       syncsDAL,
		client:         client,
		renderer:       docRenderer,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// SyncInvoice books one paid invoice. Legacy invoices and internal admin
// parties are skipped without a record so they never retry either.
func (s *LedgerService) SyncInvoice(ctx context.Context, invoice *domain.Invoice) error {
	log := s.loggerProvider(ctx)

	if invoice.Legacy() || !invoice.Paid() {
		return nil
	}

	if _, err := s.syncsDAL.GetSync(ctx, invoice.ID); err == nil {
		return nil
	} else if !errors.Is(err, dal.ErrSyncNotFound) {
		return err
	}

	project, err := s.projectsDAL.GetProject(ctx, invoice.ProjectID)
	if err != nil {
		return err
	}

	party, role, err := s.resolveParty(ctx, invoice, project)
	if err != nil {
		return err
	}

	if common.IsInternalAdminEmail(party.Email) {
		log.Debugf("invoice %s belongs to internal admin %s, not booked", invoice.ID, party.Email)
		return nil
	}

	accountID, err := s.client.EnsureAccount(ctx, party, role)
	if err != nil {
		return err
	}

	record := &ledgerDomain.SyncRecord{
		InvoiceID: invoice.ID,
		AccountID: accountID,
		SyncedAt:  s.now(),
	}

	existing, err := s.client.FindEntry(ctx, accountID, invoice.Number)
	if err != nil {
		return err
	}

	if existing != nil {
		record.EntryID = existing.ID
		return s.createRecord(ctx, record)
	}

	pdf, err := s.renderer.InvoicePDF(ctx, invoice)
	if err != nil {
		return err
	}

	documentID, err := s.client.CreateDocument(ctx, pdf, fmt.Sprintf("invoice-%s.pdf", invoice.ID))
	if err != nil {
		return err
	}

	glAccount, vatCode := bookingFor(invoice, project)

	entryID, err := s.client.CreateEntry(ctx, accountID, documentID, invoice, glAccount, vatCode)
	if err != nil {
		return err
	}

	record.DocumentID = documentID
	record.EntryID = entryID

	return s.createRecord(ctx, record)
}

// Sweep retries every paid invoice the trigger path missed. Transient
// failures left no record, so re-running is safe.
func (s *LedgerService) Sweep(ctx context.Context) error {
	log := s.loggerProvider(ctx)

	invoices, err := s.invoicesDAL.ListPaidInvoices(ctx)
	if err != nil {
		return err
	}

	var result *multierror.Error

	for _, invoice := range invoices {
		if err := s.SyncInvoice(ctx, invoice); err != nil {
			log.Errorf("ledger sweep for invoice %s: %v", invoice.ID, err)
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

func (s *LedgerService) createRecord(ctx context.Context, record *ledgerDomain.SyncRecord) error {
	err := s.syncsDAL.CreateSync(ctx, record)
	if errors.Is(err, dal.ErrAlreadySynced) {
		return nil
	}

	return err
}

// resolveParty maps the invoice to its external counterparty: the project
// owner for sales, the developer participant for purchases.
func (s *LedgerService) resolveParty(ctx context.Context, invoice *domain.Invoice, project *prjDomain.Project) (ledger.Party, ledger.Role, error) {
	if invoice.Type == domain.InvoiceTypeSale {
		return ledger.Party{
			ID:    project.OwnerID,
			Name:  project.Title,
			Email: project.OwnerEmail,
		}, ledger.RoleCustomer, nil
	}

	participations, err := s.projectsDAL.ListParticipations(ctx, invoice.ProjectID)
	if err != nil {
		return ledger.Party{}, "", err
	}

	for _, participation := range participations {
		if participation.UserID == invoice.UserID {
			return ledger.Party{
				ID:    participation.UserID,
				Email: participation.Email,
			}, ledger.RoleSupplier, nil
		}
	}

	return ledger.Party{}, "", ErrUnknownParty
}

func bookingFor(invoice *domain.Invoice, project *prjDomain.Project) (ledger.GLAccount, money.Code) {
	if invoice.Type == domain.InvoiceTypePurchase {
		return ledger.GLDevFee, ""
	}

	location := project.TaxLocation
	if location == "" {
		location = money.TaxLocationFor(project.EffectiveBillingCountry())
	}

	return ledger.GLClientFee, money.VATCode(location)
}
