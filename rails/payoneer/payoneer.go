package payoneer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/tungahq/payments/common"
	"github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/rails"
)

const railName = "payoneer"

// PayeeStatus is the payee's onboarding state on the Payoneer program.
// Payouts are only dispatched to ACTIVE payees.
type PayeeStatus string

const (
	PayeeStatusActive   PayeeStatus = "ACTIVE"
	PayeeStatusPending  PayeeStatus = "PENDING"
	PayeeStatusDeclined PayeeStatus = "DECLINED"
)

// Rail disburses purchase invoices through the Payoneer mass payout API.
type Rail struct {
	client    *resty.Client
	programID string
}

func NewRail(conf common.PayoneerConfig) *Rail {
	client := resty.New().
		SetBaseURL(conf.BaseURL).
		SetBasicAuth(conf.Username, conf.Password).
		SetTimeout(conf.Timeout)

	return &Rail{
		client:    client,
		programID: conf.ProgramID,
	}
}

type payoutRequest struct {
	PayeeID         string `json:"payee_id"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	ClientReference string `json:"client_reference_id"`
	Description     string `json:"description"`
}

type payoutResponse struct {
	PayoutID    string `json:"payout_id"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

type balanceResponse struct {
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

type payeeResponse struct {
	PayeeID string `json:"payee_id"`
	Status  string `json:"status"`
}

func (r *Rail) Charge(_ context.Context, _ *domain.Invoice, _ rails.Instrument, _ string) (*rails.ChargeResult, error) {
	return nil, rails.NewPermanent(railName, rails.ErrUnsupported)
}

// Payout submits a mass payout item keyed by the payment's idempotency key;
// resubmitting the same key is a no-op on Payoneer's side.
func (r *Rail) Payout(ctx context.Context, invoice *domain.Invoice, destination rails.Destination, idempotencyKey string) (*rails.PayoutResult, error) {
	var out payoutResponse

	response, err := r.client.R().
		SetContext(ctx).
		SetBody(payoutRequest{
			PayeeID:         destination.PayeeID,
			Amount:          invoice.Amount.StringFixed(2),
			Currency:        invoice.Currency,
			ClientReference: idempotencyKey,
			Description:     invoice.Number,
		}).
		SetResult(&out).
		Post(fmt.Sprintf("/v2/programs/%s/masspayouts", r.programID))
	if err != nil {
		return nil, rails.NewTransient(railName, err)
	}

	if err := classifyStatus(response.StatusCode()); err != nil {
		return nil, err
	}

	result := &rails.PayoutResult{ExternalRef: out.PayoutID}

	if out.Status == "accepted" || out.Status == "pending" {
		result.Status = rails.PayoutAccepted
	} else {
		result.Status = rails.PayoutFailed
	}

	return result, nil
}

func (r *Rail) Balance(ctx context.Context) (decimal.Decimal, error) {
	var out balanceResponse

	response, err := r.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/v2/programs/%s/balance", r.programID))
	if err != nil {
		return decimal.Zero, rails.NewTransient(railName, err)
	}

	if err := classifyStatus(response.StatusCode()); err != nil {
		return decimal.Zero, err
	}

	balance, err := decimal.NewFromString(out.Balance)
	if err != nil {
		return decimal.Zero, rails.NewPermanent(railName, err)
	}

	return balance, nil
}

// PayeeStatus fetches the payee's onboarding state.
func (r *Rail) PayeeStatus(ctx context.Context, payeeID string) (PayeeStatus, error) {
	var out payeeResponse

	response, err := r.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/v2/programs/%s/payees/%s/status", r.programID, payeeID))
	if err != nil {
		return "", rails.NewTransient(railName, err)
	}

	if err := classifyStatus(response.StatusCode()); err != nil {
		return "", err
	}

	return PayeeStatus(out.Status), nil
}

func classifyStatus(code int) error {
	switch {
	case code < http.StatusBadRequest:
		return nil
	case code >= http.StatusInternalServerError || code == http.StatusTooManyRequests:
		return rails.NewTransient(railName, fmt.Errorf("status %d", code))
	default:
		return rails.NewPermanent(railName, fmt.Errorf("status %d", code))
	}
}
