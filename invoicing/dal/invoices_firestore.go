package dal

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tungahq/payments/framework/connection"
	"github.com/tungahq/payments/invoicing/domain"
)

const (
	invoicesCollection = "invoices"

	fieldLocked                  = "locked"
	fieldStatus                  = "status"
	fieldPaidAt                  = "paidAt"
	fieldLastSentAt              = "lastSentAt"
	fieldReminderSentAt          = "reminderSentAt"
	fieldReminderEscalatedSentAt = "reminderEscalatedSentAt"
)

// InvoicesFirestore is used to interact with invoice data stored on Firestore.
type InvoicesFirestore struct {
	firestoreClientFun connection.FirestoreFromContextFun
}

// NewInvoicesFirestore returns a new InvoicesFirestore instance with given project id.
func NewInvoicesFirestore(ctx context.Context, projectID string) (*InvoicesFirestore, error) {
	fs, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return NewInvoicesFirestoreWithClient(
		func(ctx context.Context) *firestore.Client {
			return fs
		},
	), nil
}

// NewInvoicesFirestoreWithClient returns a new InvoicesFirestore using given client.
func NewInvoicesFirestoreWithClient(fun connection.FirestoreFromContextFun) *InvoicesFirestore {
	return &InvoicesFirestore{
		firestoreClientFun: fun,
	}
}

type invoiceDoc struct {
	ProjectID   string `firestore:"project"`
	MilestoneID string `firestore:"milestone"`
	UserID      string `firestore:"user"`
	CreatedBy   string `firestore:"createdBy"`

	Type   string `firestore:"type"`
	Status string `firestore:"status"`

	Amount        string `firestore:"amount"`
	Currency      string `firestore:"currency"`
	TaxRate       string `firestore:"taxRate"`
	ProcessingFee string `firestore:"processingFee"`

	Number   string `firestore:"number"`
	BatchRef string `firestore:"batchRef"`

	IssuedAt   time.Time  `firestore:"issuedAt"`
	DueAt      time.Time  `firestore:"dueAt"`
	PaidAt     *time.Time `firestore:"paidAt"`
	LastSentAt *time.Time `firestore:"lastSentAt"`

	ReminderSentAt          *time.Time `firestore:"reminderSentAt"`
	ReminderEscalatedSentAt *time.Time `firestore:"reminderEscalatedSentAt"`

	LegacyID string `firestore:"legacyId"`
	Locked   bool   `firestore:"locked"`
}

func (d *InvoicesFirestore) invoicesRef(ctx context.Context) *firestore.CollectionRef {
	return d.firestoreClientFun(ctx).Collection(invoicesCollection)
}

func (d *InvoicesFirestore) invoiceRef(ctx context.Context, invoiceID string) *firestore.DocumentRef {
	return d.invoicesRef(ctx).Doc(invoiceID)
}

// NewInvoiceID allocates a fresh document id so invoice numbers can embed it
// before the document is written.
func (d *InvoicesFirestore) NewInvoiceID(ctx context.Context) string {
	return d.invoicesRef(ctx).NewDoc().ID
}

func (d *InvoicesFirestore) GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	docSnap, err := d.invoiceRef(ctx, invoiceID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrInvoiceNotFound
		}

		return nil, err
	}

	return snapToInvoice(docSnap)
}

func (d *InvoicesFirestore) ListByBatchRef(ctx context.Context, batchRef string) ([]*domain.Invoice, error) {
	return d.list(ctx, d.invoicesRef(ctx).Where("batchRef", "==", batchRef))
}

func (d *InvoicesFirestore) ListByProject(ctx context.Context, projectID string) ([]*domain.Invoice, error) {
	return d.list(ctx, d.invoicesRef(ctx).Where("project", "==", projectID))
}

func (d *InvoicesFirestore) ListByNumber(ctx context.Context, number string) ([]*domain.Invoice, error) {
	return d.list(ctx, d.invoicesRef(ctx).Where("number", "==", number))
}

func (d *InvoicesFirestore) ListByUser(ctx context.Context, userID string) ([]*domain.Invoice, error) {
	return d.list(ctx, d.invoicesRef(ctx).Where("user", "==", userID))
}

// ApplyBatch creates, updates and deletes invoices atomically.
func (d *InvoicesFirestore) ApplyBatch(ctx context.Context, creates, updates []*domain.Invoice, deleteIDs []string) error {
	fs := d.firestoreClientFun(ctx)

	return fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, invoice := range creates {
			if err := tx.Create(d.invoiceRef(ctx, invoice.ID), invoiceToDoc(invoice)); err != nil {
				return err
			}
		}

		for _, invoice := range updates {
			if err := tx.Set(d.invoiceRef(ctx, invoice.ID), invoiceToDoc(invoice)); err != nil {
				return err
			}
		}

		for _, id := range deleteIDs {
			if err := tx.Delete(d.invoiceRef(ctx, id)); err != nil {
				return err
			}
		}

		return nil
	}, firestore.MaxAttempts(10))
}

// LockInvoice takes the per-invoice advisory lock used to linearize charge
// and payout transitions.
func (d *InvoicesFirestore) LockInvoice(ctx context.Context, invoiceID string) error {
	fs := d.firestoreClientFun(ctx)
	ref := d.invoiceRef(ctx, invoiceID)

	return fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docSnap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrInvoiceNotFound
			}

			return err
		}

		var doc invoiceDoc
		if err := docSnap.DataTo(&doc); err != nil {
			return err
		}

		if doc.Locked {
			return ErrInvoiceLocked
		}

		return tx.Update(ref, []firestore.Update{
			{FieldPath: []string{fieldLocked}, Value: true},
		})
	}, firestore.MaxAttempts(10))
}

func (d *InvoicesFirestore) UnlockInvoice(ctx context.Context, invoiceID string) error {
	fs := d.firestoreClientFun(ctx)
	ref := d.invoiceRef(ctx, invoiceID)

	return fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docSnap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}

			return err
		}

		return tx.Update(docSnap.Ref, []firestore.Update{
			{FieldPath: []string{fieldLocked}, Value: false},
		})
	}, firestore.MaxAttempts(10))
}

// MarkPaid transitions the invoice to PAID exactly once.
func (d *InvoicesFirestore) MarkPaid(ctx context.Context, invoiceID string, paidAt time.Time) error {
	fs := d.firestoreClientFun(ctx)
	ref := d.invoiceRef(ctx, invoiceID)

	return fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docSnap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrInvoiceNotFound
			}

			return err
		}

		var doc invoiceDoc
		if err := docSnap.DataTo(&doc); err != nil {
			return err
		}

		if doc.Status == string(domain.InvoiceStatusPaid) {
			return ErrAlreadyPaid
		}

		return tx.Update(ref, []firestore.Update{
			{FieldPath: []string{fieldStatus}, Value: string(domain.InvoiceStatusPaid)},
			{FieldPath: []string{fieldPaidAt}, Value: paidAt},
		})
	}, firestore.MaxAttempts(10))
}

func (d *InvoicesFirestore) MarkVoid(ctx context.Context, invoiceID string) error {
	_, err := d.invoiceRef(ctx, invoiceID).Update(ctx, []firestore.Update{
		{FieldPath: []string{fieldStatus}, Value: string(domain.InvoiceStatusVoid)},
	})
	if status.Code(err) == codes.NotFound {
		return ErrInvoiceNotFound
	}

	return err
}

func (d *InvoicesFirestore) SetLastSent(ctx context.Context, invoiceID string, sentAt time.Time) error {
	_, err := d.invoiceRef(ctx, invoiceID).Update(ctx, []firestore.Update{
		{FieldPath: []string{fieldLastSentAt}, Value: sentAt},
	})
	if status.Code(err) == codes.NotFound {
		return ErrInvoiceNotFound
	}

	return err
}

// SetReminderSent sets the stage guard with a compare-and-set; a job losing
// the race gets ErrAlreadyReminded.
func (d *InvoicesFirestore) SetReminderSent(ctx context.Context, invoiceID string, stage ReminderStage, sentAt time.Time) error {
	fs := d.firestoreClientFun(ctx)
	ref := d.invoiceRef(ctx, invoiceID)

	field := fieldReminderSentAt
	if stage == ReminderStageEscalated {
		field = fieldReminderEscalatedSentAt
	}

	return fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docSnap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrInvoiceNotFound
			}

			return err
		}

		var doc invoiceDoc
		if err := docSnap.DataTo(&doc); err != nil {
			return err
		}

		guard := doc.ReminderSentAt
		if stage == ReminderStageEscalated {
			guard = doc.ReminderEscalatedSentAt
		}

		if guard != nil {
			return ErrAlreadyReminded
		}

		return tx.Update(ref, []firestore.Update{
			{FieldPath: []string{field}, Value: sentAt},
		})
	}, firestore.MaxAttempts(10))
}

func (d *InvoicesFirestore) ListUnpaidSaleInvoices(ctx context.Context) ([]*domain.Invoice, error) {
	return d.list(ctx, d.invoicesRef(ctx).
		Where("type", "==", string(domain.InvoiceTypeSale)).
		Where("status", "==", string(domain.InvoiceStatusIssued)))
}

// ListEligiblePurchaseInvoices returns approved unpaid purchase invoices.
// The legacy and amount filters are applied by the caller since amounts are
// stored as strings.
func (d *InvoicesFirestore) ListEligiblePurchaseInvoices(ctx context.Context) ([]*domain.Invoice, error) {
	return d.list(ctx, d.invoicesRef(ctx).
		Where("type", "==", string(domain.InvoiceTypePurchase)).
		Where("status", "==", string(domain.InvoiceStatusApproved)))
}

func (d *InvoicesFirestore) ListSaleInvoicesIssuedBetween(ctx context.Context, from, to time.Time) ([]*domain.Invoice, error) {
	return d.list(ctx, d.invoicesRef(ctx).
		Where("type", "==", string(domain.InvoiceTypeSale)).
		Where("issuedAt", ">=", from).
		Where("issuedAt", "<=", to))
}

func (d *InvoicesFirestore) ListPurchaseInvoicesIssuedBetween(ctx context.Context, from, to time.Time) ([]*domain.Invoice, error) {
	return d.list(ctx, d.invoicesRef(ctx).
		Where("type", "==", string(domain.InvoiceTypePurchase)).
		Where("issuedAt", ">=", from).
		Where("issuedAt", "<=", to))
}

func (d *InvoicesFirestore) ListPaidSaleInvoicesPaidBetween(ctx context.Context, from, to time.Time) ([]*domain.Invoice, error) {
	return d.list(ctx, d.invoicesRef(ctx).
		Where("type", "==", string(domain.InvoiceTypeSale)).
		Where("status", "==", string(domain.InvoiceStatusPaid)).
		Where("paidAt", ">=", from).
		Where("paidAt", "<=", to))
}

func (d *InvoicesFirestore) ListPaidInvoices(ctx context.Context) ([]*domain.Invoice, error) {
	return d.list(ctx, d.invoicesRef(ctx).
		Where("status", "==", string(domain.InvoiceStatusPaid)))
}

func (d *InvoicesFirestore) list(ctx context.Context, query firestore.Query) ([]*domain.Invoice, error) {
	iter := query.Documents(ctx)

	var invoices []*domain.Invoice

	for {
		docSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}

		if err != nil {
			return nil, err
		}

		invoice, err := snapToInvoice(docSnap)
		if err != nil {
			return nil, err
		}

		invoices = append(invoices, invoice)
	}

	return invoices, nil
}

func invoiceToDoc(invoice *domain.Invoice) invoiceDoc {
	return invoiceDoc{
		ProjectID:               invoice.ProjectID,
		MilestoneID:             invoice.MilestoneID,
		UserID:                  invoice.UserID,
		CreatedBy:               invoice.CreatedBy,
		Type:                    string(invoice.Type),
		Status:                  string(invoice.Status),
		Amount:                  invoice.Amount.String(),
		Currency:                invoice.Currency,
		TaxRate:                 invoice.TaxRate.String(),
		ProcessingFee:           invoice.ProcessingFee.String(),
		Number:                  invoice.Number,
		BatchRef:                invoice.BatchRef,
		IssuedAt:                invoice.IssuedAt,
		DueAt:                   invoice.DueAt,
		PaidAt:                  invoice.PaidAt,
		LastSentAt:              invoice.LastSentAt,
		ReminderSentAt:          invoice.ReminderSentAt,
		ReminderEscalatedSentAt: invoice.ReminderEscalatedSentAt,
		LegacyID:                invoice.LegacyID,
		Locked:                  invoice.Locked,
	}
}

func snapToInvoice(docSnap *firestore.DocumentSnapshot) (*domain.Invoice, error) {
	var doc invoiceDoc
	if err := docSnap.DataTo(&doc); err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(doc.Amount)
	if err != nil {
		return nil, err
	}

	taxRate, err := decimal.NewFromString(doc.TaxRate)
	if err != nil {
		return nil, err
	}

	processingFee, err := decimal.NewFromString(doc.ProcessingFee)
	if err != nil {
		return nil, err
	}

	return &domain.Invoice{
		ID:                      docSnap.Ref.ID,
		ProjectID:               doc.ProjectID,
		MilestoneID:             doc.MilestoneID,
		UserID:                  doc.UserID,
		CreatedBy:               doc.CreatedBy,
		Type:                    domain.InvoiceType(doc.Type),
		Status:                  domain.InvoiceStatus(doc.Status),
		Amount:                  amount,
		Currency:                doc.Currency,
		TaxRate:                 taxRate,
		ProcessingFee:           processingFee,
		Number:                  doc.Number,
		BatchRef:                doc.BatchRef,
		IssuedAt:                doc.IssuedAt,
		DueAt:                   doc.DueAt,
		PaidAt:                  doc.PaidAt,
		LastSentAt:              doc.LastSentAt,
		ReminderSentAt:          doc.ReminderSentAt,
		ReminderEscalatedSentAt: doc.ReminderEscalatedSentAt,
		LegacyID:                doc.LegacyID,
		Locked:                  doc.Locked,
	}, nil
}
