package dal

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tungahq/payments/framework/connection"
)

const leasesCollection = "schedulerLeases"

// LeasesFirestore implements named advisory leases on Firestore documents.
// The payout dispatcher uses one to keep a single leader per cadence.
type LeasesFirestore struct {
	firestoreClientFun connection.FirestoreFromContextFun
	now                func() time.Time
}

// NewLeasesFirestore returns a new LeasesFirestore instance with given project id.
func NewLeasesFirestore(ctx context.Context, projectID string) (*LeasesFirestore, error) {
	fs, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return NewLeasesFirestoreWithClient(
		func(ctx context.Context) *firestore.Client {
			return fs
		},
	), nil
}

// NewLeasesFirestoreWithClient returns a new LeasesFirestore using given client.
func NewLeasesFirestoreWithClient(fun connection.FirestoreFromContextFun) *LeasesFirestore {
	return &LeasesFirestore{
		firestoreClientFun: fun,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

type leaseDoc struct {
	Holder    string    `firestore:"holder"`
	ExpiresAt time.Time `firestore:"expiresAt"`
}

func (d *LeasesFirestore) leaseRef(ctx context.Context, name string) *firestore.DocumentRef {
	return d.firestoreClientFun(ctx).Collection(leasesCollection).Doc(name)
}

func (d *LeasesFirestore) Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	fs := d.firestoreClientFun(ctx)
	ref := d.leaseRef(ctx, name)

	var acquired bool

	err := fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		acquired = false

		docSnap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}

		now := d.now()

		if err == nil && docSnap.Exists() {
			var doc leaseDoc
			if err := docSnap.DataTo(&doc); err != nil {
				return err
			}

			if doc.Holder != holder && doc.ExpiresAt.After(now) {
				return nil
			}
		}

		acquired = true

		return tx.Set(ref, leaseDoc{
			Holder:    holder,
			ExpiresAt: now.Add(ttl),
		})
	}, firestore.MaxAttempts(10))
	if err != nil {
		return false, err
	}

	return acquired, nil
}

func (d *LeasesFirestore) Release(ctx context.Context, name, holder string) error {
	fs := d.firestoreClientFun(ctx)
	ref := d.leaseRef(ctx, name)

	return fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docSnap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}

			return err
		}

		var doc leaseDoc
		if err := docSnap.DataTo(&doc); err != nil {
			return err
		}

		// never release a lease someone else took over
		if doc.Holder != holder {
			return nil
		}

		return tx.Delete(ref)
	}, firestore.MaxAttempts(10))
}
