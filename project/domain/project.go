package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tungahq/payments/money"
)

type ProjectState string

const (
	ProjectStateOpportunity ProjectState = "OPPORTUNITY"
	ProjectStateActive      ProjectState = "ACTIVE"
	ProjectStateClosed      ProjectState = "CLOSED"
	ProjectStateArchived    ProjectState = "ARCHIVED"
)

// Project is the billable engagement. One client, one PM, N developers.
type Project struct {
	ID         string
	Title      string
	OwnerID    string
	OwnerEmail string
	PMID       string

	// Billing country of the owning client. Company country wins over the
	// profile country when both are present.
	OwnerCompanyCountry string
	OwnerProfileCountry string

	Budget      decimal.Decimal
	Currency    string
	TaxLocation money.TaxLocation
	State       ProjectState
	Archived    bool
	CreatedAt   time.Time
	ArchivedAt  *time.Time
}

// EffectiveBillingCountry is the country the tax rate is derived from.
func (p *Project) EffectiveBillingCountry() string {
	if p.OwnerCompanyCountry != "" {
		return p.OwnerCompanyCountry
	}

	return p.OwnerProfileCountry
}

// TaxRate returns the VAT percentage applied to the project's sale invoice.
func (p *Project) TaxRate() decimal.Decimal {
	return money.TaxRateFor(p.OwnerCompanyCountry, p.OwnerProfileCountry)
}
