package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tungahq/payments/invoicing/domain"
)

// clientLeadTime shifts issue windows by the 14-day payment term: a sale
// invoice issued two weeks ago falls due this week.
const clientLeadTime = 14 * 24 * time.Hour

// PaymentBuckets partitions sale invoices for one reporting window. Every
// invoice lands in at most one bucket.
type PaymentBuckets struct {
	PaidLastWeek []*domain.Invoice
	Upcoming     []*domain.Invoice
	Overdue      []*domain.Invoice
}

func (b *PaymentBuckets) PaidTotal() decimal.Decimal {
	return total(b.PaidLastWeek)
}

func (b *PaymentBuckets) UpcomingTotal() decimal.Decimal {
	return total(b.Upcoming)
}

func (b *PaymentBuckets) OverdueTotal() decimal.Decimal {
	return total(b.Overdue)
}

func total(invoices []*domain.Invoice) decimal.Decimal {
	sum := decimal.Zero
	for _, invoice := range invoices {
		sum = sum.Add(invoice.Total())
	}

	return sum
}

// bucketUnpaid assigns an unpaid sale invoice to upcoming or overdue for the
// window starting at weekStart. Invoices issued after the shifted window are
// not due yet and stay out of the report.
func bucketUnpaid(buckets *PaymentBuckets, invoice *domain.Invoice, weekStart, weekEnd time.Time) {
	dueFrom := weekStart.Add(-clientLeadTime)
	dueTo := weekEnd.Add(-clientLeadTime)

	switch {
	case invoice.IssuedAt.Before(dueFrom):
		buckets.Overdue = append(buckets.Overdue, invoice)
	case !invoice.IssuedAt.After(dueTo):
		buckets.Upcoming = append(buckets.Upcoming, invoice)
	}
}
