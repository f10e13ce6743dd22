package ledger

import (
	"context"

	"github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/money"
)

// Role is the side of the books a party sits on.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleSupplier Role = "SUPPLIER"
)

// GLAccount selects the general ledger account an entry books against.
type GLAccount string

const (
	GLClientFee GLAccount = "CLIENT_FEE"
	GLDevFee    GLAccount = "DEV_FEE"
)

// Party is the external side of an invoice: the client for a sale, the
// developer for a purchase.
type Party struct {
	ID    string
	Name  string
	Email string
}

// Entry is an existing booking in the accounting system. YourRef carries the
// invoice number and is what makes the sync idempotent server-side.
type Entry struct {
	ID      string
	YourRef string
}

//go:generate mockery --name Client --output ./mocks
type Client interface {
	// EnsureAccount finds or creates the party's contact account.
	EnsureAccount(ctx context.Context, party Party, role Role) (string, error)

	// FindEntry returns nil when no entry with the reference exists.
	FindEntry(ctx context.Context, accountID, yourRef string) (*Entry, error)

	// CreateDocument uploads the rendered invoice and returns its id.
	CreateDocument(ctx context.Context, attachment []byte, filename string) (string, error)

	// CreateEntry books the invoice. The VAT code is empty for purchases.
	CreateEntry(ctx context.Context, accountID, documentID string, invoice *domain.Invoice, glAccount GLAccount, vatCode money.Code) (string, error)
}
