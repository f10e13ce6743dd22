package common

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config carries every credential and tunable the orchestrator needs.
// It is constructed once in cmd/main and handed to services and the
// scheduler; nothing in the core reads feature flags from globals.
type Config struct {
	// Invoicing
	TungaMargin  decimal.Decimal // portion of the developer share retained by Tunga
	MinPayout    decimal.Decimal // minimum purchase invoice amount dispatched, EUR
	PaymentTerm  time.Duration   // client invoices fall due this long after issue
	ReminderAt   time.Duration   // first unpaid reminder after issue
	EscalationAt time.Duration   // escalated reminder after issue

	// Rails
	Stripe   StripeConfig
	Payoneer PayoneerConfig

	// Collaborators
	Ledger   LedgerConfig
	Renderer RendererConfig

	// Notifications
	Sendgrid        SendgridConfig
	SlackToken      string
	OperatorChannel string

	// Scheduler
	PayoutCadence time.Duration
	SweepCadence  time.Duration
	Workers       int
}

type StripeConfig struct {
	APIKey         string `json:"api_key"`
	WebhookSignKey string `json:"webhook_sign_key"`
}

type PayoneerConfig struct {
	BaseURL   string `json:"base_url"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	ProgramID string `json:"program_id"`
	Timeout   time.Duration
}

type LedgerConfig struct {
	BaseURL        string `json:"base_url"`
	Token          string `json:"token"`
	Administration string `json:"administration"`
	Timeout        time.Duration
}

type RendererConfig struct {
	BaseURL string `json:"base_url"`
	Timeout time.Duration
}

type SendgridConfig struct {
	APIKey        string `json:"api_key"`
	FromEmail     string `json:"from_email"`
	FromName      string `json:"from_name"`
	InvoiceTpl    string `json:"invoice_template"`
	ReminderTpl   string `json:"reminder_template"`
	EscalationTpl string `json:"escalation_template"`
	PaidTpl       string `json:"paid_template"`
	CreditNoteTpl string `json:"credit_note_template"`
}

// NewConfig loads configuration from the environment. On developer machines
// a .env file is honored; in production rail secrets come from Secret
// Manager (see secrets.go).
func NewConfig(ctx context.Context) (*Config, error) {
	if IsLocalhost {
		_ = godotenv.Load()
	}

	cfg := &Config{
		TungaMargin:  envDecimal("TUNGA_MARGIN", "0.375"),
		MinPayout:    envDecimal("MIN_PAYOUT_EUR", "20"),
		PaymentTerm:  14 * 24 * time.Hour,
		ReminderAt:   14 * 24 * time.Hour,
		EscalationAt: 21 * 24 * time.Hour,

		SlackToken:      GetEnv("SLACK_TOKEN", ""),
		OperatorChannel: GetEnv("SLACK_OPERATOR_CHANNEL", "#payments-ops"),

		PayoutCadence: 5 * time.Minute,
		SweepCadence:  time.Hour,
		Workers:       envInt("SCHEDULER_WORKERS", 4),
	}

	cfg.Payoneer.Timeout = 30 * time.Second
	cfg.Ledger.Timeout = 60 * time.Second
	cfg.Renderer.Timeout = 120 * time.Second

	if Production {
		if err := loadSecrets(ctx, cfg); err != nil {
			return nil, err
		}

		return cfg, nil
	}

	cfg.Stripe = StripeConfig{
		APIKey:         GetEnv("STRIPE_API_KEY", ""),
		WebhookSignKey: GetEnv("STRIPE_WEBHOOK_SIGN_KEY", ""),
	}
	cfg.Payoneer.BaseURL = GetEnv("PAYONEER_BASE_URL", "https://api.sandbox.payoneer.com")
	cfg.Payoneer.Username = GetEnv("PAYONEER_USERNAME", "")
	cfg.Payoneer.Password = GetEnv("PAYONEER_PASSWORD", "")
	cfg.Payoneer.ProgramID = GetEnv("PAYONEER_PROGRAM_ID", "")
	cfg.Ledger.BaseURL = GetEnv("LEDGER_BASE_URL", "https://moneybird.com/api/v2")
	cfg.Ledger.Token = GetEnv("LEDGER_TOKEN", "")
	cfg.Ledger.Administration = GetEnv("LEDGER_ADMINISTRATION", "")
	cfg.Renderer.BaseURL = GetEnv("RENDERER_BASE_URL", "http://localhost:8090")
	cfg.Sendgrid = SendgridConfig{
		APIKey:        GetEnv("SENDGRID_API_KEY", ""),
		FromEmail:     GetEnv("SENDGRID_FROM_EMAIL", "billing@tunga.io"),
		FromName:      GetEnv("SENDGRID_FROM_NAME", "Tunga"),
		InvoiceTpl:    GetEnv("SENDGRID_INVOICE_TEMPLATE", ""),
		ReminderTpl:   GetEnv("SENDGRID_REMINDER_TEMPLATE", ""),
		EscalationTpl: GetEnv("SENDGRID_ESCALATION_TEMPLATE", ""),
		PaidTpl:       GetEnv("SENDGRID_PAID_TEMPLATE", ""),
		CreditNoteTpl: GetEnv("SENDGRID_CREDIT_NOTE_TEMPLATE", ""),
	}

	return cfg, nil
}

func envDecimal(key, fallback string) decimal.Decimal {
	d, err := decimal.NewFromString(GetEnv(key, fallback))
	if err != nil {
		d, _ = decimal.NewFromString(fallback)
	}

	return d
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(GetEnv(key, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}

	return n
}

func unmarshalSecret(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
