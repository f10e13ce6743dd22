package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/ledger"
	"github.com/tungahq/payments/money"
)

type Client struct {
	mock.Mock
}

func (m *Client) EnsureAccount(ctx context.Context, party ledger.Party, role ledger.Role) (string, error) {
	args := m.Called(ctx, party, role)
	return args.String(0), args.Error(1)
}

func (m *Client) FindEntry(ctx context.Context, accountID, yourRef string) (*ledger.Entry, error) {
	args := m.Called(ctx, accountID, yourRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *Client) CreateDocument(ctx context.Context, attachment []byte, filename string) (string, error) {
	args := m.Called(ctx, attachment, filename)
	return args.String(0), args.Error(1)
}

func (m *Client) CreateEntry(ctx context.Context, accountID, documentID string, invoice *domain.Invoice, glAccount ledger.GLAccount, vatCode money.Code) (string, error) {
	args := m.Called(ctx, accountID, documentID, invoice, glAccount, vatCode)
	return args.String(0), args.Error(1)
}
