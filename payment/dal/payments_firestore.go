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
	"github.com/tungahq/payments/payment/domain"
)

const (
	paymentsCollection = "payments"

	fieldStatus      = "status"
	fieldExternalRef = "externalRef"
	fieldPaidAt      = "paidAt"
)

// PaymentsFirestore is used to interact with payment data stored on Firestore.
type PaymentsFirestore struct {
	firestoreClientFun connection.FirestoreFromContextFun
}

// NewPaymentsFirestore returns a new PaymentsFirestore instance with given project id.
func NewPaymentsFirestore(ctx context.Context, projectID string) (*PaymentsFirestore, error) {
	fs, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return NewPaymentsFirestoreWithClient(
		func(ctx context.Context) *firestore.Client {
			return fs
		},
	), nil
}

// NewPaymentsFirestoreWithClient returns a new PaymentsFirestore using given client.
func NewPaymentsFirestoreWithClient(fun connection.FirestoreFromContextFun) *PaymentsFirestore {
	return &PaymentsFirestore{
		firestoreClientFun: fun,
	}
}

type paymentDoc struct {
	InvoiceID      string                 `firestore:"invoice"`
	Amount         string                 `firestore:"amount"`
	Currency       string                 `firestore:"currency"`
	Method         string                 `firestore:"method"`
	Status         string                 `firestore:"status"`
	ExternalRef    string                 `firestore:"externalRef"`
	IdempotencyKey string                 `firestore:"idempotencyKey"`
	PaidAt         *time.Time             `firestore:"paidAt"`
	CreatedBy      string                 `firestore:"createdBy"`
	Extra          map[string]interface{} `firestore:"extra"`
	CreatedAt      time.Time              `firestore:"createdAt"`
}

func (d *PaymentsFirestore) paymentsRef(ctx context.Context) *firestore.CollectionRef {
	return d.firestoreClientFun(ctx).Collection(paymentsCollection)
}

func (d *PaymentsFirestore) paymentRef(ctx context.Context, paymentID string) *firestore.DocumentRef {
	return d.paymentsRef(ctx).Doc(paymentID)
}

// GetOrCreate writes the payment under its idempotency key unless a document
// with that key already exists. The write-ahead discipline depends on this
// running before any rail call.
func (d *PaymentsFirestore) GetOrCreate(ctx context.Context, payment *domain.Payment) (*domain.Payment, bool, error) {
	fs := d.firestoreClientFun(ctx)
	ref := d.paymentRef(ctx, payment.IdempotencyKey)

	var (
		existing *domain.Payment
		created  bool
	)

	err := fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing = nil
		created = false

		docSnap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}

		if err == nil && docSnap.Exists() {
			existing, err = snapToPayment(docSnap)
			return err
		}

		created = true

		return tx.Create(ref, paymentToDoc(payment))
	}, firestore.MaxAttempts(10))
	if err != nil {
		return nil, false, err
	}

	if created {
		stored := *payment
		stored.ID = payment.IdempotencyKey

		return &stored, true, nil
	}

	return existing, false, nil
}

func (d *PaymentsFirestore) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	docSnap, err := d.paymentRef(ctx, paymentID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrPaymentNotFound
		}

		return nil, err
	}

	return snapToPayment(docSnap)
}

func (d *PaymentsFirestore) GetByExternalRef(ctx context.Context, externalRef string) (*domain.Payment, error) {
	payments, err := d.list(ctx, d.paymentsRef(ctx).Where(fieldExternalRef, "==", externalRef).Limit(1))
	if err != nil {
		return nil, err
	}

	if len(payments) == 0 {
		return nil, ErrPaymentNotFound
	}

	return payments[0], nil
}

func (d *PaymentsFirestore) ListByInvoice(ctx context.Context, invoiceID string) ([]*domain.Payment, error) {
	return d.list(ctx, d.paymentsRef(ctx).Where("invoice", "==", invoiceID))
}

func (d *PaymentsFirestore) ListPayments(ctx context.Context, filter PaymentFilter) ([]*domain.Payment, error) {
	query := d.paymentsRef(ctx).Query

	if filter.MinDate != nil {
		query = query.Where("createdAt", ">=", *filter.MinDate)
	}

	if filter.MaxDate != nil {
		query = query.Where("createdAt", "<=", *filter.MaxDate)
	}

	if filter.Method != "" {
		query = query.Where("method", "==", string(filter.Method))
	}

	if filter.Status != "" {
		query = query.Where("status", "==", string(filter.Status))
	}

	payments, err := d.list(ctx, query)
	if err != nil {
		return nil, err
	}

	if len(filter.InvoiceIDs) == 0 {
		return payments, nil
	}

	wanted := make(map[string]bool, len(filter.InvoiceIDs))
	for _, id := range filter.InvoiceIDs {
		wanted[id] = true
	}

	filtered := payments[:0]

	for _, payment := range payments {
		if wanted[payment.InvoiceID] {
			filtered = append(filtered, payment)
		}
	}

	return filtered, nil
}

func (d *PaymentsFirestore) HasNonFailedPayment(ctx context.Context, invoiceID string) (bool, error) {
	payments, err := d.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return false, err
	}

	for _, payment := range payments {
		if payment.Status != domain.StatusFailed && payment.Status != domain.StatusCanceled {
			return true, nil
		}
	}

	return false, nil
}

// UpdateStatus moves the payment from one of the expected statuses to the
// target status in a transaction.
func (d *PaymentsFirestore) UpdateStatus(ctx context.Context, paymentID string, expect []domain.Status, to domain.Status) error {
	fs := d.firestoreClientFun(ctx)
	ref := d.paymentRef(ctx, paymentID)

	return fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docSnap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrPaymentNotFound
			}

			return err
		}

		var doc paymentDoc
		if err := docSnap.DataTo(&doc); err != nil {
			return err
		}

		allowed := len(expect) == 0

		for _, s := range expect {
			if doc.Status == string(s) {
				allowed = true
				break
			}
		}

		if !allowed {
			return ErrInvalidTransition
		}

		return tx.Update(ref, []firestore.Update{
			{FieldPath: []string{fieldStatus}, Value: string(to)},
		})
	}, firestore.MaxAttempts(10))
}

func (d *PaymentsFirestore) SetProcessing(ctx context.Context, paymentID, externalRef string, paidAt time.Time) error {
	fs := d.firestoreClientFun(ctx)
	ref := d.paymentRef(ctx, paymentID)

	return fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docSnap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrPaymentNotFound
			}

			return err
		}

		var doc paymentDoc
		if err := docSnap.DataTo(&doc); err != nil {
			return err
		}

		// a settlement may arrive for a payment a crash left before
		// INITIATED; any pre-processing status moves forward
		switch domain.Status(doc.Status) {
		case domain.StatusPending, domain.StatusRetry, domain.StatusInitiated:
		default:
			return ErrInvalidTransition
		}

		return tx.Update(ref, []firestore.Update{
			{FieldPath: []string{fieldStatus}, Value: string(domain.StatusProcessing)},
			{FieldPath: []string{fieldExternalRef}, Value: externalRef},
			{FieldPath: []string{fieldPaidAt}, Value: paidAt},
		})
	}, firestore.MaxAttempts(10))
}

func (d *PaymentsFirestore) SetCompleted(ctx context.Context, paymentID string) error {
	return d.UpdateStatus(ctx, paymentID, []domain.Status{domain.StatusProcessing}, domain.StatusCompleted)
}

func (d *PaymentsFirestore) list(ctx context.Context, query firestore.Query) ([]*domain.Payment, error) {
	iter := query.Documents(ctx)

	var payments []*domain.Payment

	for {
		docSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}

		if err != nil {
			return nil, err
		}

		payment, err := snapToPayment(docSnap)
		if err != nil {
			return nil, err
		}

		payments = append(payments, payment)
	}

	return payments, nil
}

func paymentToDoc(payment *domain.Payment) paymentDoc {
	return paymentDoc{
		InvoiceID:      payment.InvoiceID,
		Amount:         payment.Amount.String(),
		Currency:       payment.Currency,
		Method:         string(payment.Method),
		Status:         string(payment.Status),
		ExternalRef:    payment.ExternalRef,
		IdempotencyKey: payment.IdempotencyKey,
		PaidAt:         payment.PaidAt,
		CreatedBy:      payment.CreatedBy,
		Extra:          payment.Extra,
		CreatedAt:      payment.CreatedAt,
	}
}

func snapToPayment(docSnap *firestore.DocumentSnapshot) (*domain.Payment, error) {
	var doc paymentDoc
	if err := docSnap.DataTo(&doc); err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(doc.Amount)
	if err != nil {
		return nil, err
	}

	return &domain.Payment{
		ID:             docSnap.Ref.ID,
		InvoiceID:      doc.InvoiceID,
		Amount:         amount,
		Currency:       doc.Currency,
		Method:         domain.Method(doc.Method),
		Status:         domain.Status(doc.Status),
		ExternalRef:    doc.ExternalRef,
		IdempotencyKey: doc.IdempotencyKey,
		PaidAt:         doc.PaidAt,
		CreatedBy:      doc.CreatedBy,
		Extra:          doc.Extra,
		CreatedAt:      doc.CreatedAt,
	}, nil
}
