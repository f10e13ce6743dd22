package dal

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tungahq/payments/framework/connection"
	"github.com/tungahq/payments/ledger/domain"
)

const syncsCollection = "ledgerSyncs"

// SyncsFirestore is used to interact with ledger sync records stored on
// Firestore. The document id is the invoice id, enforcing one record per
// invoice.
type SyncsFirestore struct {
	firestoreClientFun connection.FirestoreFromContextFun
}

// NewSyncsFirestore returns a new SyncsFirestore instance with given project id.
func NewSyncsFirestore(ctx context.Context, projectID string) (*SyncsFirestore, error) {
	fs, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return NewSyncsFirestoreWithClient(
		func(ctx context.Context) *firestore.Client {
			return fs
		},
	), nil
}

// NewSyncsFirestoreWithClient returns a new SyncsFirestore using given client.
func NewSyncsFirestoreWithClient(fun connection.FirestoreFromContextFun) *SyncsFirestore {
	return &SyncsFirestore{
		firestoreClientFun: fun,
	}
}

type syncDoc struct {
	AccountID  string    `firestore:"accountId"`
	DocumentID string    `firestore:"documentId"`
	EntryID    string    `firestore:"entryId"`
	SyncedAt   time.Time `firestore:"syncedAt"`
}

func (d *SyncsFirestore) syncRef(ctx context.Context, invoiceID string) *firestore.DocumentRef {
	return d.firestoreClientFun(ctx).Collection(syncsCollection).Doc(invoiceID)
}

func (d *SyncsFirestore) GetSync(ctx context.Context, invoiceID string) (*domain.SyncRecord, error) {
	docSnap, err := d.syncRef(ctx, invoiceID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrSyncNotFound
		}

		return nil, err
	}

	var doc syncDoc
	if err := docSnap.DataTo(&doc); err != nil {
		return nil, err
	}

	return &domain.SyncRecord{
		InvoiceID:  docSnap.Ref.ID,
		AccountID:  doc.AccountID,
		DocumentID: doc.DocumentID,
		EntryID:    doc.EntryID,
		SyncedAt:   doc.SyncedAt,
	}, nil
}

func (d *SyncsFirestore) CreateSync(ctx context.Context, record *domain.SyncRecord) error {
	_, err := d.syncRef(ctx, record.InvoiceID).Create(ctx, syncDoc{
		AccountID:  record.AccountID,
		DocumentID: record.DocumentID,
		EntryID:    record.EntryID,
		SyncedAt:   record.SyncedAt,
	})
	if status.Code(err) == codes.AlreadyExists {
		return ErrAlreadySynced
	}

	return err
}
