package dal

import (
	"context"
	"time"

	"github.com/tungahq/payments/project/domain"
)

//go:generate mockery --name Projects --output ./mocks
type Projects interface {
	GetProject(ctx context.Context, projectID string) (*domain.Project, error)
	ListActiveProjects(ctx context.Context) ([]*domain.Project, error)
	ListMilestonesDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Milestone, error)
	ListParticipations(ctx context.Context, projectID string) ([]*domain.Participation, error)
	SaveParticipation(ctx context.Context, participation *domain.Participation) error
}
