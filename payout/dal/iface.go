package dal

import (
	"context"

	"github.com/tungahq/payments/payout/domain"
)

//go:generate mockery --name Payees --output ./mocks
type Payees interface {
	GetPayee(ctx context.Context, userID string) (*domain.Payee, error)
	SavePayee(ctx context.Context, payee *domain.Payee) error
}
