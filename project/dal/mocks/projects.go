package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tungahq/payments/project/domain"
)

type Projects struct {
	mock.Mock
}

func (m *Projects) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *Projects) ListActiveProjects(ctx context.Context) ([]*domain.Project, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*domain.Project), args.Error(1)
}

func (m *Projects) ListMilestonesDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Milestone, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*domain.Milestone), args.Error(1)
}

func (m *Projects) ListParticipations(ctx context.Context, projectID string) ([]*domain.Participation, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*domain.Participation), args.Error(1)
}

func (m *Projects) SaveParticipation(ctx context.Context, participation *domain.Participation) error {
	args := m.Called(ctx, participation)
	return args.Error(0)
}
