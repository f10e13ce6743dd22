package ledger

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/tungahq/payments/common"
	"github.com/tungahq/payments/invoicing/domain"
	"github.com/tungahq/payments/money"
)

var (
	ErrLedgerUnavailable = errors.New("accounting system unavailable")
	ErrLedgerRejected    = errors.New("accounting system rejected the request")
)

// MoneybirdClient talks to a Moneybird-style accounting REST API. A 4xx
// duplicate answer counts as success: a concurrent sweep already booked it.
type MoneybirdClient struct {
	client         *resty.Client
	administration string
}

func NewMoneybirdClient(conf common.LedgerConfig) *MoneybirdClient {
	client := resty.New().
		SetBaseURL(conf.BaseURL).
		SetAuthToken(conf.Token).
		SetTimeout(conf.Timeout)

	return &MoneybirdClient{
		client:         client,
		administration: conf.Administration,
	}
}

type contactPayload struct {
	Contact struct {
		CompanyName string `json:"company_name"`
		Email       string `json:"send_invoices_to_email"`
		CustomerID  string `json:"customer_id"`
	} `json:"contact"`
}

type contactResponse struct {
	ID string `json:"id"`
}

type entryResponse struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
}

type documentResponse struct {
	ID string `json:"id"`
}

type entryPayload struct {
	Entry struct {
		ContactID  string `json:"contact_id"`
		DocumentID string `json:"document_id"`
		Reference  string `json:"reference"`
		Date       string `json:"date"`
		Amount     string `json:"amount"`
		Currency   string `json:"currency"`
		GLAccount  string `json:"ledger_account"`
		VATCode    string `json:"tax_rate_code,omitempty"`
	} `json:"entry"`
}

func (c *MoneybirdClient) path(resource string) string {
	return fmt.Sprintf("/%s/%s", c.administration, resource)
}

func (c *MoneybirdClient) EnsureAccount(ctx context.Context, party Party, role Role) (string, error) {
	var found []contactResponse

	response, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("query", party.Email).
		SetResult(&found).
		Get(c.path("contacts"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	if response.StatusCode() == http.StatusOK && len(found) > 0 {
		return found[0].ID, nil
	}

	payload := contactPayload{}
	payload.Contact.CompanyName = party.Name
	payload.Contact.Email = party.Email
	payload.Contact.CustomerID = string(role) + "-" + party.ID

	var created contactResponse

	response, err = c.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&created).
		Post(c.path("contacts"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	if err := classifyStatus(response.StatusCode(), response.String()); err != nil {
		return "", err
	}

	return created.ID, nil
}

func (c *MoneybirdClient) FindEntry(ctx context.Context, accountID, yourRef string) (*Entry, error) {
	var entries []entryResponse

	response, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("contact_id", accountID).
		SetQueryParam("reference", yourRef).
		SetResult(&entries).
		Get(c.path("entries"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	if err := classifyStatus(response.StatusCode(), response.String()); err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.Reference == yourRef {
			return &Entry{ID: entry.ID, YourRef: entry.Reference}, nil
		}
	}

	return nil, nil
}

func (c *MoneybirdClient) CreateDocument(ctx context.Context, attachment []byte, filename string) (string, error) {
	var created documentResponse

	response, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"document": map[string]string{
				"filename":   filename,
				"attachment": base64.StdEncoding.EncodeToString(attachment),
			},
		}).
		SetResult(&created).
		Post(c.path("documents"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	if err := classifyStatus(response.StatusCode(), response.String()); err != nil {
		return "", err
	}

	return created.ID, nil
}

func (c *MoneybirdClient) CreateEntry(ctx context.Context, accountID, documentID string, invoice *domain.Invoice, glAccount GLAccount, vatCode money.Code) (string, error) {
	payload := entryPayload{}
	payload.Entry.ContactID = accountID
	payload.Entry.DocumentID = documentID
	payload.Entry.Reference = invoice.Number
	payload.Entry.Date = invoice.IssuedAt.Format("2006-01-02")
	payload.Entry.Amount = invoice.Total().StringFixed(2)
	payload.Entry.Currency = invoice.Currency
	payload.Entry.GLAccount = string(glAccount)
	payload.Entry.VATCode = string(vatCode)

	var created entryResponse

	response, err := c.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&created).
		Post(c.path("entries"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	// a duplicate answer means a concurrent sweep won the race
	if isDuplicate(response.StatusCode(), response.String()) {
		return "", nil
	}

	if err := classifyStatus(response.StatusCode(), response.String()); err != nil {
		return "", err
	}

	return created.ID, nil
}

func isDuplicate(code int, body string) bool {
	return code >= http.StatusBadRequest && code < http.StatusInternalServerError &&
		strings.Contains(strings.ToLower(body), "duplicate")
}

func classifyStatus(code int, body string) error {
	switch {
	case code < http.StatusBadRequest:
		return nil
	case code >= http.StatusInternalServerError || code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrLedgerUnavailable, code)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrLedgerRejected, code, body)
	}
}
