package mailer

import (
	"encoding/json"
	"fmt"

	sendgrid "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	mailSendPath = "/v3/mail/send"
	baseURL      = "https://api.sendgrid.com"
)

const (
	CategoryInvoices         = "invoices"
	CategoryInvoicesReminder = "invoices-reminder"
	CategoryPayouts          = "payouts"
	CategoryReports          = "reports"
)

// SendGridConfig holds the sendgrid credentials and the dynamic template ids
// used by the billing notifications.
type SendGridConfig struct {
	APIKey string `json:"api_key"`

	// <payments@tunga.io>
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name"`

	DynamicTemplates DynamicTemplates `json:"dynamic_templates"`
}

type DynamicTemplates struct {
	NewInvoiceNotification string `json:"new_invoice_notification"`
	InvoiceReminder        string `json:"invoice_reminder"`
	InvoiceEscalation      string `json:"invoice_escalation"`
	PaymentReceived        string `json:"payment_received"`
	CreditNote             string `json:"credit_note"`
}

// Attachment is a base64-encoded file attached to a notification.
type Attachment struct {
	Content  string
	Filename string
}

// SimpleNotification is the payload for a templated notification.
type SimpleNotification struct {
	Subject     string
	Body        string
	CCs         []string
	TemplateID  string
	Categories  []string
	Attachments []Attachment
}

// ISender sends templated notifications. Implemented by Mailer and by
// CowardMailer for local runs.
type ISender interface {
	SendNotification(sn *SimpleNotification, to string, params map[string]interface{}) error
}

type Mailer struct {
	config SendGridConfig
}

func NewMailer(config SendGridConfig) Mailer {
	return Mailer{config: config}
}

func (m Mailer) SendNotification(sn *SimpleNotification, to string, params map[string]interface{}) error {
	v3 := mail.NewV3Mail()
	v3.SetTemplateID(sn.TemplateID)
	v3.SetFrom(mail.NewEmail(m.config.FromName, m.config.FromEmail))

	enable := false
	v3.SetTrackingSettings(&mail.TrackingSettings{SubscriptionTracking: &mail.SubscriptionTrackingSetting{Enable: &enable}})
	v3.AddCategories(sn.Categories...)

	personalization := mail.NewPersonalization()
	personalization.AddTos(mail.NewEmail("", to))

	if len(sn.CCs) > 0 {
		ccs := make([]*mail.Email, 0)

		for _, cc := range sn.CCs {
			if cc != to {
				ccs = append(ccs, mail.NewEmail("", cc))
			}
		}

		if len(ccs) > 0 {
			personalization.AddCCs(ccs...)
		}
	}

	personalization.SetDynamicTemplateData("subject", sn.Subject)
	personalization.SetDynamicTemplateData("body", sn.Body)

	for key, param := range params {
		personalization.SetDynamicTemplateData(key, param)
	}

	v3.AddPersonalizations(personalization)

	for _, attachment := range sn.Attachments {
		a := mail.NewAttachment()
		a.SetContent(attachment.Content)
		a.SetType("application/pdf")
		a.SetFilename(attachment.Filename)
		a.SetDisposition("attachment")
		a.SetContentID(attachment.Filename)
		v3.AddAttachment(a)
	}

	request := sendgrid.GetRequest(m.config.APIKey, mailSendPath, baseURL)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(v3)

	if _, err := sendgrid.MakeRequestRetry(request); err != nil {
		return err
	}

	return nil
}

// CowardMailer logs the notification instead of sending it.
type CowardMailer struct{}

func (CowardMailer) SendNotification(sn *SimpleNotification, to string, params map[string]interface{}) error {
	marshaledNotification, err := json.Marshal(sn)
	if err != nil {
		return err
	}

	marshaledParams, err := json.Marshal(params)
	if err != nil {
		return err
	}

	fmt.Printf("Coward mailer not sending to %s, %s, with params: %s\n", to, string(marshaledNotification), string(marshaledParams))

	return nil
}
