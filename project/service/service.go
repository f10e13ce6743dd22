package service

import (
	"context"

	"github.com/tungahq/payments/framework/connection"
	"github.com/tungahq/payments/logger"
	"github.com/tungahq/payments/project/dal"
	"github.com/tungahq/payments/project/domain"
)

type ProjectService struct {
	loggerProvider logger.Provider
	projectsDAL    dal.Projects
}

func NewProjectService(loggerProvider logger.Provider, conn *connection.Connection) *ProjectService {
	return &ProjectService{
		loggerProvider: loggerProvider,
		projectsDAL:    dal.NewProjectsFirestoreWithClient(conn.Firestore),
	}
}

func NewProjectServiceWithDAL(loggerProvider logger.Provider, projectsDAL dal.Projects) *ProjectService {
	return &ProjectService{
		loggerProvider: loggerProvider,
		projectsDAL:    projectsDAL,
	}
}

func (s *ProjectService) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	return s.projectsDAL.GetProject(ctx, projectID)
}

// SharesForProject loads the project's participations and computes the share
// list used by invoice generation and payout dispatch.
func (s *ProjectService) SharesForProject(ctx context.Context, projectID string) ([]domain.Share, error) {
	participations, err := s.projectsDAL.ListParticipations(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return Shares(participations)
}
