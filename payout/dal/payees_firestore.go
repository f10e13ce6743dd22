package dal

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tungahq/payments/framework/connection"
	"github.com/tungahq/payments/payout/domain"
)

const payeesCollection = "payees"

// PayeesFirestore is used to interact with payee data stored on Firestore.
// The document id is the user id.
type PayeesFirestore struct {
	firestoreClientFun connection.FirestoreFromContextFun
}

// NewPayeesFirestore returns a new PayeesFirestore instance with given project id.
func NewPayeesFirestore(ctx context.Context, projectID string) (*PayeesFirestore, error) {
	fs, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return NewPayeesFirestoreWithClient(
		func(ctx context.Context) *firestore.Client {
			return fs
		},
	), nil
}

// NewPayeesFirestoreWithClient returns a new PayeesFirestore using given client.
func NewPayeesFirestoreWithClient(fun connection.FirestoreFromContextFun) *PayeesFirestore {
	return &PayeesFirestore{
		firestoreClientFun: fun,
	}
}

type payeeDoc struct {
	PayoneerID string    `firestore:"payoneerId"`
	Status     string    `firestore:"status"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

func (d *PayeesFirestore) payeeRef(ctx context.Context, userID string) *firestore.DocumentRef {
	return d.firestoreClientFun(ctx).Collection(payeesCollection).Doc(userID)
}

func (d *PayeesFirestore) GetPayee(ctx context.Context, userID string) (*domain.Payee, error) {
	docSnap, err := d.payeeRef(ctx, userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrPayeeNotFound
		}

		return nil, err
	}

	var doc payeeDoc
	if err := docSnap.DataTo(&doc); err != nil {
		return nil, err
	}

	return &domain.Payee{
		UserID:     docSnap.Ref.ID,
		PayoneerID: doc.PayoneerID,
		Status:     domain.PayeeStatus(doc.Status),
		UpdatedAt:  doc.UpdatedAt,
	}, nil
}

func (d *PayeesFirestore) SavePayee(ctx context.Context, payee *domain.Payee) error {
	_, err := d.payeeRef(ctx, payee.UserID).Set(ctx, payeeDoc{
		PayoneerID: payee.PayoneerID,
		Status:     string(payee.Status),
		UpdatedAt:  payee.UpdatedAt,
	})

	return err
}
