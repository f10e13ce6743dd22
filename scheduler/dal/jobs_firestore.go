package dal

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tungahq/payments/framework/connection"
	"github.com/tungahq/payments/scheduler/domain"
)

const (
	jobsCollection = "jobs"

	fieldJobStatus  = "status"
	fieldJobAttempt = "attempt"
	fieldLeaseUntil = "leaseUntil"
	fieldLeasedBy   = "leasedBy"
)

// JobsFirestore is used to interact with job data stored on Firestore. The
// document id is the job's idempotency key.
type JobsFirestore struct {
	firestoreClientFun connection.FirestoreFromContextFun
	now                func() time.Time
}

// NewJobsFirestore returns a new JobsFirestore instance with given project id.
func NewJobsFirestore(ctx context.Context, projectID string) (*JobsFirestore, error) {
	fs, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return NewJobsFirestoreWithClient(
		func(ctx context.Context) *firestore.Client {
			return fs
		},
	), nil
}

// NewJobsFirestoreWithClient returns a new JobsFirestore using given client.
func NewJobsFirestoreWithClient(fun connection.FirestoreFromContextFun) *JobsFirestore {
	return &JobsFirestore{
		firestoreClientFun: fun,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

type jobDoc struct {
	Kind           string     `firestore:"kind"`
	Payload        []byte     `firestore:"payload"`
	Attempt        int        `firestore:"attempt"`
	IdempotencyKey string     `firestore:"idempotencyKey"`
	Status         string     `firestore:"status"`
	LeaseUntil     *time.Time `firestore:"leaseUntil"`
	LeasedBy       string     `firestore:"leasedBy"`
	CreatedAt      time.Time  `firestore:"createdAt"`
}

func (d *JobsFirestore) jobsRef(ctx context.Context) *firestore.CollectionRef {
	return d.firestoreClientFun(ctx).Collection(jobsCollection)
}

func (d *JobsFirestore) Enqueue(ctx context.Context, job *domain.Job) (bool, error) {
	fs := d.firestoreClientFun(ctx)
	ref := d.jobsRef(ctx).Doc(job.IdempotencyKey)

	var created bool

	err := fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created = false

		docSnap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}

		if err == nil && docSnap.Exists() {
			return nil
		}

		created = true

		return tx.Create(ref, jobDoc{
			Kind:           string(job.Kind),
			Payload:        job.Payload,
			IdempotencyKey: job.IdempotencyKey,
			Status:         string(domain.JobStatusPending),
			CreatedAt:      d.now(),
		})
	}, firestore.MaxAttempts(10))
	if err != nil {
		return false, err
	}

	return created, nil
}

// LeasePending leases runnable jobs one document transaction at a time so
// competing workers never grab the same job.
func (d *JobsFirestore) LeasePending(ctx context.Context, worker string, limit int, leaseFor time.Duration) ([]*domain.Job, error) {
	fs := d.firestoreClientFun(ctx)

	iter := d.jobsRef(ctx).
		Where(fieldJobStatus, "in", []string{string(domain.JobStatusPending), string(domain.JobStatusLeased)}).
		Limit(limit * 4).
		Documents(ctx)

	var leased []*domain.Job

	for {
		docSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}

		if err != nil {
			return nil, err
		}

		if len(leased) >= limit {
			break
		}

		ref := docSnap.Ref

		var job *domain.Job

		err = fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			job = nil

			fresh, err := tx.Get(ref)
			if err != nil {
				return err
			}

			var doc jobDoc
			if err := fresh.DataTo(&doc); err != nil {
				return err
			}

			now := d.now()

			if doc.Status == string(domain.JobStatusLeased) &&
				doc.LeaseUntil != nil && doc.LeaseUntil.After(now) {
				return nil
			}

			if doc.Status != string(domain.JobStatusPending) && doc.Status != string(domain.JobStatusLeased) {
				return nil
			}

			until := now.Add(leaseFor)

			if err := tx.Update(ref, []firestore.Update{
				{FieldPath: []string{fieldJobStatus}, Value: string(domain.JobStatusLeased)},
				{FieldPath: []string{fieldLeaseUntil}, Value: until},
				{FieldPath: []string{fieldLeasedBy}, Value: worker},
			}); err != nil {
				return err
			}

			job = toJob(ref.ID, &doc)
			job.Status = domain.JobStatusLeased
			job.LeaseUntil = &until
			job.LeasedBy = worker

			return nil
		}, firestore.MaxAttempts(10))
		if err != nil {
			return nil, err
		}

		if job != nil {
			leased = append(leased, job)
		}
	}

	return leased, nil
}

func (d *JobsFirestore) Complete(ctx context.Context, jobID string) error {
	_, err := d.jobsRef(ctx).Doc(jobID).Update(ctx, []firestore.Update{
		{FieldPath: []string{fieldJobStatus}, Value: string(domain.JobStatusDone)},
		{FieldPath: []string{fieldLeaseUntil}, Value: nil},
	})

	return err
}

func (d *JobsFirestore) Fail(ctx context.Context, jobID string, permanent bool) error {
	fs := d.firestoreClientFun(ctx)
	ref := d.jobsRef(ctx).Doc(jobID)

	return fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docSnap, err := tx.Get(ref)
		if err != nil {
			return err
		}

		var doc jobDoc
		if err := docSnap.DataTo(&doc); err != nil {
			return err
		}

		next := string(domain.JobStatusPending)
		if permanent || doc.Attempt+1 >= domain.MaxAttempts {
			next = string(domain.JobStatusDead)
		}

		return tx.Update(ref, []firestore.Update{
			{FieldPath: []string{fieldJobStatus}, Value: next},
			{FieldPath: []string{fieldJobAttempt}, Value: doc.Attempt + 1},
			{FieldPath: []string{fieldLeaseUntil}, Value: nil},
		})
	}, firestore.MaxAttempts(10))
}

func toJob(id string, doc *jobDoc) *domain.Job {
	return &domain.Job{
		ID:             id,
		Kind:           domain.JobKind(doc.Kind),
		Payload:        doc.Payload,
		Attempt:        doc.Attempt,
		IdempotencyKey: doc.IdempotencyKey,
		Status:         domain.JobStatus(doc.Status),
		LeaseUntil:     doc.LeaseUntil,
		LeasedBy:       doc.LeasedBy,
		CreatedAt:      doc.CreatedAt,
	}
}
