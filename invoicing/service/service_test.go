package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/tungahq/payments/common"
	invoiceMocks "github.com/tungahq/payments/invoicing/dal/mocks"
	"github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/logger"
	paymentMocks "github.com/tungahq/payments/payment/dal/mocks"
	projectMocks "github.com/tungahq/payments/project/dal/mocks"
	prjDomain "github.com/tungahq/payments/project/domain"
)

var testTime = time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)

type fields struct {
	invoices *invoiceMocks.Invoices
	payments *paymentMocks.Payments
	projects *projectMocks.Projects
}

func newTestService(f *fields) *InvoicingService {
	margin, _ := decimal.NewFromString("0.375")

	conf := &common.Config{
		TungaMargin: margin,
		MinPayout:   decimal.NewFromInt(20),
		PaymentTerm: 14 * 24 * time.Hour,
	}

	s := NewInvoicingServiceWithDALs(
		logger.FromContext,
		conf,
		f.invoices,
		f.payments,
		f.projects,
		nil,
	)
	s.now = func() time.Time { return testTime }

	return s
}

func nlProject(budget string) *prjDomain.Project {
	b, _ := decimal.NewFromString(budget)

	return &prjDomain.Project{
		ID:                  "9",
		OwnerID:             "101",
		OwnerProfileCountry: "NL",
		Budget:              b,
		Currency:            "EUR",
		State:               prjDomain.ProjectStateActive,
	}
}

func accepted(userID string, weight int64) *prjDomain.Participation {
	return &prjDomain.Participation{
		ID:          userID,
		ProjectID:   "9",
		UserID:      userID,
		Status:      prjDomain.ParticipationAccepted,
		ShareWeight: decimal.NewFromInt(weight),
		Prepaid:     prjDomain.PrepaidFalse,
	}
}

func setupGenerate(f *fields, project *prjDomain.Project, participations []*prjDomain.Participation, ids ...string) *[]*domain.Invoice {
	ctx := mock.Anything

	f.projects.On("GetProject", ctx, "9").Return(project, nil)
	f.projects.On("ListParticipations", ctx, "9").Return(participations, nil)
	f.invoices.On("ListByProject", ctx, "9").Return([]*domain.Invoice(nil), nil)

	for _, id := range ids {
		f.invoices.On("NewInvoiceID", ctx).Return(id).Once()
	}

	var created []*domain.Invoice

	f.invoices.On("ApplyBatch", ctx, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			created = args.Get(1).([]*domain.Invoice)
		}).
		Return(nil)

	return &created
}

func TestGenerateBatch_SingleDeveloper(t *testing.T) {
	// budget 1500, NL, one accepted dev, margin 0.375
	f := fields{
		invoices: &invoiceMocks.Invoices{},
		payments: &paymentMocks.Payments{},
		projects: &projectMocks.Projects{},
	}

	created := setupGenerate(&f, nlProject("1500"),
		[]*prjDomain.Participation{accepted("77", 1)}, "42", "43")

	s := newTestService(&f)

	invoices, err := s.GenerateBatch(context.Background(), "9", "admin@tunga.io")
	assert.NoError(t, err)
	assert.Len(t, invoices, 2)
	assert.Len(t, *created, 2)

	sale := invoices[0]
	assert.Equal(t, domain.InvoiceTypeSale, sale.Type)
	assert.Equal(t, domain.InvoiceStatusIssued, sale.Status)
	assert.Equal(t, "2024/101/9/42", sale.Number)
	assert.Equal(t, "1500", sale.Amount.String())
	assert.Equal(t, "21", sale.TaxRate.String())
	assert.Equal(t, "1815", sale.Total().String())
	assert.Equal(t, testTime.Add(14*24*time.Hour), sale.DueAt)

	purchase := invoices[1]
	assert.Equal(t, domain.InvoiceTypePurchase, purchase.Type)
	assert.Equal(t, domain.InvoiceStatusApproved, purchase.Status)
	assert.Equal(t, "2024/101/9/42/77", purchase.Number)
	assert.Equal(t, "937.5", purchase.Amount.String())
	assert.Equal(t, "0", purchase.TaxRate.String())
	assert.Equal(t, sale.BatchRef, purchase.BatchRef)
	assert.True(t, strings.HasPrefix(purchase.Number, sale.Number+"/"))
}

func TestGenerateBatch_WeightedSplit(t *testing.T) {
	// weights {2, 1} on 1500 => 625.00 + 312.50, residual 0
	f := fields{
		invoices: &invoiceMocks.Invoices{},
		payments: &paymentMocks.Payments{},
		projects: &projectMocks.Projects{},
	}

	setupGenerate(&f, nlProject("1500"),
		[]*prjDomain.Participation{accepted("77", 2), accepted("78", 1)},
		"42", "43", "44")

	s := newTestService(&f)

	invoices, err := s.GenerateBatch(context.Background(), "9", "admin@tunga.io")
	assert.NoError(t, err)
	assert.Len(t, invoices, 3)

	assert.Equal(t, "625", invoices[1].Amount.String())
	assert.Equal(t, "77", invoices[1].UserID)
	assert.Equal(t, "312.5", invoices[2].Amount.String())
	assert.Equal(t, "78", invoices[2].UserID)
}

func TestGenerateBatch_EqualThirds(t *testing.T) {
	// weights {1,1,1} on 1500 => 312.50 each, exact
	f := fields{
		invoices: &invoiceMocks.Invoices{},
		payments: &paymentMocks.Payments{},
		projects: &projectMocks.Projects{},
	}

	setupGenerate(&f, nlProject("1500"),
		[]*prjDomain.Participation{accepted("77", 1), accepted("78", 1), accepted("79", 1)},
		"42", "43", "44", "45")

	s := newTestService(&f)

	invoices, err := s.GenerateBatch(context.Background(), "9", "admin@tunga.io")
	assert.NoError(t, err)
	assert.Len(t, invoices, 4)

	for _, invoice := range invoices[1:] {
		assert.Equal(t, "312.5", invoice.Amount.String())
	}
}

func TestGenerateBatch_ResidualAbsorption(t *testing.T) {
	// budget 1000, three equal weights => 208.33 each, residual 0.01
	// absorbed by the participant sorted first
	f := fields{
		invoices: &invoiceMocks.Invoices{},
		payments: &paymentMocks.Payments{},
		projects: &projectMocks.Projects{},
	}

	setupGenerate(&f, nlProject("1000"),
		[]*prjDomain.Participation{accepted("77", 1), accepted("78", 1), accepted("79", 1)},
		"42", "43", "44", "45")

	s := newTestService(&f)

	invoices, err := s.GenerateBatch(context.Background(), "9", "admin@tunga.io")
	assert.NoError(t, err)

	purchases := invoices[1:]
	assert.Len(t, purchases, 3)

	assert.Equal(t, "77", purchases[0].UserID)
	assert.Equal(t, "208.34", purchases[0].Amount.String())
	assert.Equal(t, "208.33", purchases[1].Amount.String())
	assert.Equal(t, "208.33", purchases[2].Amount.String())

	sum := decimal.Zero
	for _, p := range purchases {
		sum = sum.Add(p.Amount)
	}

	assert.Equal(t, "625", sum.String())
}

func TestGenerateBatch_PrepaidExcludedFromPayout(t *testing.T) {
	f := fields{
		invoices: &invoiceMocks.Invoices{},
		payments: &paymentMocks.Payments{},
		projects: &projectMocks.Projects{},
	}

	internal := accepted("50", 1)
	internal.Internal = true
	internal.Prepaid = prjDomain.PrepaidUnset

	setupGenerate(&f, nlProject("1500"),
		[]*prjDomain.Participation{internal, accepted("77", 1)},
		"42", "43")

	s := newTestService(&f)

	invoices, err := s.GenerateBatch(context.Background(), "9", "admin@tunga.io")
	assert.NoError(t, err)

	// one sale, one purchase; the internal prepaid user gets no invoice but
	// keeps its share mass in the denominator
	assert.Len(t, invoices, 2)
	assert.Equal(t, "77", invoices[1].UserID)
	assert.Equal(t, "468.75", invoices[1].Amount.String())
}

func TestGenerateBatch_Failures(t *testing.T) {
	tests := []struct {
		name    string
		on      func(f *fields)
		wantErr error
	}{
		{
			name: "existing paid invoice conflicts",
			on: func(f *fields) {
				f.projects.On("GetProject", mock.Anything, "9").Return(nlProject("1500"), nil)
				f.invoices.On("ListByProject", mock.Anything, "9").Return([]*domain.Invoice{
					{ID: "1", Status: domain.InvoiceStatusPaid},
				}, nil)
			},
			wantErr: ErrStateConflict,
		},
		{
			name: "no accepted participations",
			on: func(f *fields) {
				f.projects.On("GetProject", mock.Anything, "9").Return(nlProject("1500"), nil)
				f.invoices.On("ListByProject", mock.Anything, "9").Return([]*domain.Invoice(nil), nil)
				f.projects.On("ListParticipations", mock.Anything, "9").
					Return([]*prjDomain.Participation(nil), nil)
			},
			wantErr: ErrMissingShares,
		},
		{
			name: "unknown currency",
			on: func(f *fields) {
				project := nlProject("1500")
				project.Currency = "USD"
				f.projects.On("GetProject", mock.Anything, "9").Return(project, nil)
			},
			wantErr: ErrUnknownCurrency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fields{
				invoices: &invoiceMocks.Invoices{},
				payments: &paymentMocks.Payments{},
				projects: &projectMocks.Projects{},
			}
			tt.on(&f)

			s := newTestService(&f)

			_, err := s.GenerateBatch(context.Background(), "9", "admin@tunga.io")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGenerateBatch_NumberingUnique(t *testing.T) {
	f := fields{
		invoices: &invoiceMocks.Invoices{},
		payments: &paymentMocks.Payments{},
		projects: &projectMocks.Projects{},
	}

	setupGenerate(&f, nlProject("1500"),
		[]*prjDomain.Participation{accepted("77", 1), accepted("78", 1)},
		"42", "43", "44")

	s := newTestService(&f)

	invoices, err := s.GenerateBatch(context.Background(), "9", "admin@tunga.io")
	assert.NoError(t, err)

	seen := map[string]bool{}

	for _, invoice := range invoices {
		key := fmt.Sprintf("%s|%s", invoice.Type, invoice.Number)
		assert.False(t, seen[key], "duplicate number %s", key)
		seen[key] = true
	}
}

func TestDeleteBatch_ForbiddenWithPayments(t *testing.T) {
	f := fields{
		invoices: &invoiceMocks.Invoices{},
		payments: &paymentMocks.Payments{},
		projects: &projectMocks.Projects{},
	}

	f.invoices.On("ListByBatchRef", mock.Anything, "batch-1").Return([]*domain.Invoice{
		{ID: "42", BatchRef: "batch-1"},
	}, nil)
	f.payments.On("HasNonFailedPayment", mock.Anything, "42").Return(true, nil)

	s := newTestService(&f)

	err := s.DeleteBatch(context.Background(), "batch-1")
	assert.ErrorIs(t, err, ErrBatchHasPayments)
}

func TestReplaceBatch_ProjectMismatch(t *testing.T) {
	f := fields{
		invoices: &invoiceMocks.Invoices{},
		payments: &paymentMocks.Payments{},
		projects: &projectMocks.Projects{},
	}

	f.invoices.On("ListByBatchRef", mock.Anything, "batch-1").Return([]*domain.Invoice{
		{ID: "42", BatchRef: "batch-1", ProjectID: "9"},
	}, nil)
	f.payments.On("HasNonFailedPayment", mock.Anything, "42").Return(false, nil)

	s := newTestService(&f)

	_, err := s.ReplaceBatch(context.Background(), "batch-1", []InvoiceInput{
		{ID: "42", ProjectID: "8"},
	}, "admin@tunga.io")
	assert.ErrorIs(t, err, ErrBatchMismatch)
}

func TestReplaceBatch_MilestoneMismatch(t *testing.T) {
	f := fields{
		invoices: &invoiceMocks.Invoices{},
		payments: &paymentMocks.Payments{},
		projects: &projectMocks.Projects{},
	}

	f.invoices.On("ListByBatchRef", mock.Anything, "batch-1").Return([]*domain.Invoice{
		{ID: "42", BatchRef: "batch-1", ProjectID: "9", MilestoneID: "m-1"},
	}, nil)
	f.payments.On("HasNonFailedPayment", mock.Anything, "42").Return(false, nil)

	s := newTestService(&f)

	_, err := s.ReplaceBatch(context.Background(), "batch-1", []InvoiceInput{
		{ID: "42", ProjectID: "9", MilestoneID: "m-2"},
	}, "admin@tunga.io")
	assert.ErrorIs(t, err, ErrBatchMismatch)

	f.invoices.AssertNotCalled(t, "ApplyBatch",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReplaceBatch_UpsertAndDelete(t *testing.T) {
	f := fields{
		invoices: &invoiceMocks.Invoices{},
		payments: &paymentMocks.Payments{},
		projects: &projectMocks.Projects{},
	}

	amount := decimal.NewFromInt(100)

	f.invoices.On("ListByBatchRef", mock.Anything, "batch-1").Return([]*domain.Invoice{
		{ID: "42", BatchRef: "batch-1", ProjectID: "9", MilestoneID: "m-1", Type: domain.InvoiceTypeSale, Amount: amount},
		{ID: "43", BatchRef: "batch-1", ProjectID: "9", MilestoneID: "m-1", Type: domain.InvoiceTypePurchase, Amount: amount},
	}, nil)
	f.payments.On("HasNonFailedPayment", mock.Anything, "42").Return(false, nil)
	f.payments.On("HasNonFailedPayment", mock.Anything, "43").Return(false, nil)
	f.projects.On("GetProject", mock.Anything, "9").Return(nlProject("1500"), nil)
	f.invoices.On("NewInvoiceID", mock.Anything).Return("44").Once()

	var (
		gotCreates []*domain.Invoice
		gotUpdates []*domain.Invoice
		gotDeletes []string
	)

	f.invoices.On("ApplyBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			gotCreates = args.Get(1).([]*domain.Invoice)
			gotUpdates = args.Get(2).([]*domain.Invoice)
			gotDeletes = args.Get(3).([]string)
		}).
		Return(nil)

	s := newTestService(&f)

	newAmount := decimal.NewFromInt(200)

	_, err := s.ReplaceBatch(context.Background(), "batch-1", []InvoiceInput{
		{ID: "42", ProjectID: "9", UserID: "101", Amount: newAmount},
		{Type: domain.InvoiceTypePurchase, UserID: "79", Amount: amount},
	}, "admin@tunga.io")

	assert.NoError(t, err)
	assert.Len(t, gotCreates, 1)
	assert.Equal(t, "79", gotCreates[0].UserID)
	assert.Equal(t, "m-1", gotCreates[0].MilestoneID)
	assert.Len(t, gotUpdates, 1)
	assert.Equal(t, "200", gotUpdates[0].Amount.String())
	assert.Equal(t, []string{"43"}, gotDeletes)
}

func TestInvoiceTotals(t *testing.T) {
	// total = amount + round2(amount * rate / 100) + fee
	amount, _ := decimal.NewFromString("1234.56")
	fee, _ := decimal.NewFromString("12.30")

	invoice := &domain.Invoice{
		Amount:        amount,
		TaxRate:       decimal.NewFromInt(21),
		ProcessingFee: fee,
	}

	assert.Equal(t, "259.26", invoice.TaxAmount().String())
	assert.Equal(t, "1506.12", invoice.Total().String())
}
