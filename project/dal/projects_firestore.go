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
	"github.com/tungahq/payments/money"
	"github.com/tungahq/payments/project/domain"
)

const (
	projectsCollection       = "projects"
	participationsCollection = "participations"
	milestonesCollection     = "milestones"
)

// ProjectsFirestore is used to interact with project data stored on Firestore.
type ProjectsFirestore struct {
	firestoreClientFun connection.FirestoreFromContextFun
}

// NewProjectsFirestore returns a new ProjectsFirestore instance with given project id.
func NewProjectsFirestore(ctx context.Context, projectID string) (*ProjectsFirestore, error) {
	fs, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return NewProjectsFirestoreWithClient(
		func(ctx context.Context) *firestore.Client {
			return fs
		},
	), nil
}

// NewProjectsFirestoreWithClient returns a new ProjectsFirestore using given client.
func NewProjectsFirestoreWithClient(fun connection.FirestoreFromContextFun) *ProjectsFirestore {
	return &ProjectsFirestore{
		firestoreClientFun: fun,
	}
}

type projectDoc struct {
	Title               string     `firestore:"title"`
	OwnerID             string     `firestore:"owner"`
	OwnerEmail          string     `firestore:"ownerEmail"`
	PMID                string     `firestore:"pm"`
	OwnerCompanyCountry string     `firestore:"ownerCompanyCountry"`
	OwnerProfileCountry string     `firestore:"ownerProfileCountry"`
	Budget              string     `firestore:"budget"`
	Currency            string     `firestore:"currency"`
	TaxLocation         string     `firestore:"taxLocation"`
	State               string     `firestore:"state"`
	Archived            bool       `firestore:"archived"`
	CreatedAt           time.Time  `firestore:"createdAt"`
	ArchivedAt          *time.Time `firestore:"archivedAt"`
}

type milestoneDoc struct {
	ProjectID string    `firestore:"project"`
	Title     string    `firestore:"title"`
	DueAt     time.Time `firestore:"dueAt"`
}

type participationDoc struct {
	ProjectID   string     `firestore:"project"`
	UserID      string     `firestore:"user"`
	Email       string     `firestore:"email"`
	Status      string     `firestore:"status"`
	ShareWeight string     `firestore:"shareWeight"`
	Prepaid     string     `firestore:"prepaid"`
	Internal    bool       `firestore:"internal"`
	RespondedAt *time.Time `firestore:"respondedAt"`
}

func (d *ProjectsFirestore) projectRef(ctx context.Context, projectID string) *firestore.DocumentRef {
	return d.firestoreClientFun(ctx).Collection(projectsCollection).Doc(projectID)
}

func (d *ProjectsFirestore) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	docSnap, err := d.projectRef(ctx, projectID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrProjectNotFound
		}

		return nil, err
	}

	var doc projectDoc
	if err := docSnap.DataTo(&doc); err != nil {
		return nil, err
	}

	return toProject(docSnap.Ref.ID, &doc)
}

func (d *ProjectsFirestore) ListActiveProjects(ctx context.Context) ([]*domain.Project, error) {
	iter := d.firestoreClientFun(ctx).
		Collection(projectsCollection).
		Where("state", "==", string(domain.ProjectStateActive)).
		Where("archived", "==", false).
		Documents(ctx)

	var projects []*domain.Project

	for {
		docSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}

		if err != nil {
			return nil, err
		}

		var doc projectDoc
		if err := docSnap.DataTo(&doc); err != nil {
			return nil, err
		}

		project, err := toProject(docSnap.Ref.ID, &doc)
		if err != nil {
			return nil, err
		}

		projects = append(projects, project)
	}

	return projects, nil
}

func (d *ProjectsFirestore) ListParticipations(ctx context.Context, projectID string) ([]*domain.Participation, error) {
	iter := d.projectRef(ctx, projectID).
		Collection(participationsCollection).
		Documents(ctx)

	var participations []*domain.Participation

	for {
		docSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}

		if err != nil {
			return nil, err
		}

		var doc participationDoc
		if err := docSnap.DataTo(&doc); err != nil {
			return nil, err
		}

		participation, err := toParticipation(docSnap.Ref.ID, &doc)
		if err != nil {
			return nil, err
		}

		participations = append(participations, participation)
	}

	return participations, nil
}

// ListMilestonesDueBetween returns the milestones with a due date inside the
// inclusive range, across all projects.
func (d *ProjectsFirestore) ListMilestonesDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Milestone, error) {
	iter := d.firestoreClientFun(ctx).
		Collection(milestonesCollection).
		Where("dueAt", ">=", from).
		Where("dueAt", "<=", to).
		Documents(ctx)

	var milestones []*domain.Milestone

	for {
		docSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}

		if err != nil {
			return nil, err
		}

		var doc milestoneDoc
		if err := docSnap.DataTo(&doc); err != nil {
			return nil, err
		}

		milestones = append(milestones, &domain.Milestone{
			ID:        docSnap.Ref.ID,
			ProjectID: doc.ProjectID,
			Title:     doc.Title,
			DueAt:     doc.DueAt,
		})
	}

	return milestones, nil
}

// SaveParticipation upserts the participation. The document id is the user id
// so at most one participation exists per (project, user).
func (d *ProjectsFirestore) SaveParticipation(ctx context.Context, participation *domain.Participation) error {
	if participation.ShareWeight.IsNegative() {
		return ErrNegativeShareWeight
	}

	ref := d.projectRef(ctx, participation.ProjectID).
		Collection(participationsCollection).
		Doc(participation.UserID)

	_, err := ref.Set(ctx, participationDoc{
		ProjectID:   participation.ProjectID,
		UserID:      participation.UserID,
		Email:       participation.Email,
		Status:      string(participation.Status),
		ShareWeight: participation.ShareWeight.String(),
		Prepaid:     string(participation.Prepaid),
		Internal:    participation.Internal,
		RespondedAt: participation.RespondedAt,
	})

	return err
}

func toProject(id string, doc *projectDoc) (*domain.Project, error) {
	budget, err := decimal.NewFromString(doc.Budget)
	if err != nil {
		return nil, err
	}

	return &domain.Project{
		ID:                  id,
		Title:               doc.Title,
		OwnerID:             doc.OwnerID,
		OwnerEmail:          doc.OwnerEmail,
		PMID:                doc.PMID,
		OwnerCompanyCountry: doc.OwnerCompanyCountry,
		OwnerProfileCountry: doc.OwnerProfileCountry,
		Budget:              budget,
		Currency:            doc.Currency,
		TaxLocation:         money.TaxLocation(doc.TaxLocation),
		State:               domain.ProjectState(doc.State),
		Archived:            doc.Archived,
		CreatedAt:           doc.CreatedAt,
		ArchivedAt:          doc.ArchivedAt,
	}, nil
}

func toParticipation(id string, doc *participationDoc) (*domain.Participation, error) {
	weight, err := decimal.NewFromString(doc.ShareWeight)
	if err != nil {
		return nil, err
	}

	return &domain.Participation{
		ID:          id,
		ProjectID:   doc.ProjectID,
		UserID:      doc.UserID,
		Email:       doc.Email,
		Status:      domain.ParticipationStatus(doc.Status),
		ShareWeight: weight,
		Prepaid:     domain.Prepaid(doc.Prepaid),
		Internal:    doc.Internal,
		RespondedAt: doc.RespondedAt,
	}, nil
}
