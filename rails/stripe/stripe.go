package stripe

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/tungahq/payments/common"
	"github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/rails"
)

const railName = "stripe"

// Rail charges client invoices by card. Stripe is charge-only: payouts and
// balance queries go through Payoneer.
type Rail struct {
	api            *client.API
	webhookSignKey string
}

func NewRail(conf common.StripeConfig) *Rail {
	var api client.API

	api.Init(conf.APIKey, nil)

	return &Rail{
		api:            &api,
		webhookSignKey: conf.WebhookSignKey,
	}
}

func (r *Rail) Charge(ctx context.Context, invoice *domain.Invoice, instrument rails.Instrument, idempotencyKey string) (*rails.ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context:        ctx,
			IdempotencyKey: stripe.String(idempotencyKey),
		},
		Amount:             stripe.Int64(amountCents(invoice)),
		Currency:           stripe.String(string(stripe.CurrencyEUR)),
		PaymentMethod:      stripe.String(instrument.Token),
		Confirm:            stripe.Bool(true),
		ReceiptEmail:       receiptEmail(instrument),
		Description:        stripe.String(invoice.Number),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	// webhook deliveries resolve the payment through this key
	params.AddMetadata("payment_id", idempotencyKey)

	intent, err := r.api.PaymentIntents.New(params)
	if err != nil {
		return nil, classify(err)
	}

	result := &rails.ChargeResult{ExternalRef: intent.ID}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		result.Status = rails.ChargeCaptured
	case stripe.PaymentIntentStatusRequiresCapture:
		result.Status = rails.ChargeAuthorized
	default:
		result.Status = rails.ChargeFailed
	}

	return result, nil
}

func (r *Rail) Payout(_ context.Context, _ *domain.Invoice, _ rails.Destination, _ string) (*rails.PayoutResult, error) {
	return nil, rails.NewPermanent(railName, rails.ErrUnsupported)
}

func (r *Rail) Balance(_ context.Context) (decimal.Decimal, error) {
	return decimal.Zero, rails.NewPermanent(railName, rails.ErrUnsupported)
}

// VerifyEvent validates the webhook signature and decodes the event.
func (r *Rail) VerifyEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, signatureHeader, r.webhookSignKey)
}

// amountCents converts the invoice total to the minor unit Stripe expects.
func amountCents(invoice *domain.Invoice) int64 {
	return invoice.Total().Mul(decimal.NewFromInt(100)).IntPart()
}

func receiptEmail(instrument rails.Instrument) *string {
	if instrument.Email == "" {
		return nil
	}

	return stripe.String(instrument.Email)
}

func classify(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError ||
			stripeErr.HTTPStatusCode == http.StatusTooManyRequests {
			return rails.NewTransient(railName, err)
		}

		return rails.NewPermanent(railName, err)
	}

	// network level failures are retryable
	return rails.NewTransient(railName, err)
}
