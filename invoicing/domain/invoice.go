package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tungahq/payments/money"
)

type InvoiceType string

const (
	InvoiceTypeSale     InvoiceType = "SALE"     // Tunga -> client
	InvoiceTypePurchase InvoiceType = "PURCHASE" // developer -> Tunga
)

type InvoiceStatus string

const (
	InvoiceStatusDraft    InvoiceStatus = "DRAFT"
	InvoiceStatusIssued   InvoiceStatus = "ISSUED"
	InvoiceStatusApproved InvoiceStatus = "APPROVED"
	InvoiceStatusPaid     InvoiceStatus = "PAID"
	InvoiceStatusVoid     InvoiceStatus = "VOID"
)

// Invoice is an immutable billing document. Once PAID the amount, tax and
// currency never change. A non-empty LegacyID marks imported read-only data
// that every outbound path must skip.
type Invoice struct {
	ID          string
	ProjectID   string
	MilestoneID string
	UserID      string
	CreatedBy   string

	Type   InvoiceType
	Status InvoiceStatus

	Amount        decimal.Decimal
	Currency      string
	TaxRate       decimal.Decimal
	ProcessingFee decimal.Decimal

	Number   string
	BatchRef string

	IssuedAt   time.Time
	DueAt      time.Time
	PaidAt     *time.Time
	LastSentAt *time.Time

	// Reminder guards, set only after the mail gateway confirms send.
	ReminderSentAt          *time.Time
	ReminderEscalatedSentAt *time.Time

	LegacyID string
	Locked   bool
}

// TaxAmount is round2(amount * tax_rate / 100).
func (i *Invoice) TaxAmount() decimal.Decimal {
	return money.Round2(i.Amount.Mul(i.TaxRate).Div(decimal.NewFromInt(100)))
}

// Total is amount + tax + processing fee.
func (i *Invoice) Total() decimal.Decimal {
	return i.Amount.Add(i.TaxAmount()).Add(i.ProcessingFee)
}

func (i *Invoice) Paid() bool {
	return i.Status == InvoiceStatusPaid
}

func (i *Invoice) Legacy() bool {
	return i.LegacyID != ""
}

// SaleNumber builds the sale invoice number: YYYY/{clientId}/{projectId}/{invoiceId}.
func SaleNumber(year int, clientID, projectID, invoiceID string) string {
	return fmt.Sprintf("%d/%s/%s/%s", year, clientID, projectID, invoiceID)
}

// PurchaseNumber extends the sale number with the payee's user id, keeping
// the sale number as a strict prefix.
func PurchaseNumber(year int, clientID, projectID, invoiceID, userID string) string {
	return fmt.Sprintf("%s/%s", SaleNumber(year, clientID, projectID, invoiceID), userID)
}
