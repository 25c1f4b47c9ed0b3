// Package gateway creates payment intents at DOKU and Xendit. Each gateway product is its own
// Client variant, selected by configuration; response parsing walks a fixed, per-variant list
// of JSON paths instead of guessing at the shape.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/markjakearzadon/paygate-gobackend/internal/apperr"
)

const (
	NameDokuCheckout       = "doku-checkout"
	NameDokuVirtualAccount = "doku-va"
	NameXenditInvoice      = "xendit-invoice"

	maxResponseBytes = 1 << 20
	defaultTimeout   = 15 * time.Second
)

type Customer struct {
	Name  string
	Email string
	Phone string
}

type Item struct {
	ID       string
	Name     string
	Price    int64
	Quantity int64
}

type IntentRequest struct {
	// Amount is in the smallest currency unit (IDR has no minor unit).
	Amount        int64
	InvoiceNumber string
	OrderRef      string
	CallbackURL   string
	Customer      Customer
	Items         []Item
	DueMinutes    int
}

func (r IntentRequest) Validate() error {
	if r.Amount <= 0 {
		return apperr.New(apperr.KindValidation, "amount must be a positive integer")
	}
	if strings.TrimSpace(r.InvoiceNumber) == "" {
		return apperr.New(apperr.KindValidation, "invoice number is required")
	}
	if strings.TrimSpace(r.Customer.Name) == "" {
		return apperr.New(apperr.KindValidation, "customer name is required")
	}
	if strings.TrimSpace(r.Customer.Email) == "" && strings.TrimSpace(r.Customer.Phone) == "" {
		return apperr.New(apperr.KindValidation, "customer email or phone is required")
	}
	return nil
}

// PaymentIntent is the normalized result of a create call. Exactly one of CheckoutURL and
// VirtualAccountNumber is guaranteed to be set; VA variants may also carry a how-to-pay URL.
type PaymentIntent struct {
	Gateway              string          `json:"gateway"`
	CheckoutURL          string          `json:"checkoutUrl,omitempty"`
	VirtualAccountNumber string          `json:"virtualAccountNumber,omitempty"`
	GatewayReferenceID   string          `json:"gatewayReferenceId"`
	RawPayload           json.RawMessage `json:"-"`
}

// Client is one gateway product.
type Client interface {
	Name() string
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*PaymentIntent, error)
}

func newHTTPClient(hc *http.Client, timeout time.Duration) *http.Client {
	if hc != nil {
		return hc
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// post sends one request and classifies the outcome. There is no retry: a request whose
// outcome is unknown must not be blindly submitted again.
func post(ctx context.Context, hc *http.Client, gateway, url string, body []byte, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to build %s request", gateway)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debug().Str("gateway", gateway).Str("url", url).RawJSON("body", maskSensitiveFields(body)).Msg("gateway request")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindGatewayUnreachable, err, "%s did not respond", gateway)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindGatewayUnreachable, err, "failed reading %s response", gateway)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Str("gateway", gateway).Int("status", resp.StatusCode).Bytes("payload", payload).Msg("gateway rejected request")
		e := apperr.Rejected(resp.StatusCode, payload)
		e.Msg = fmt.Sprintf("%s rejected the payment request", gateway)
		return nil, e
	}
	if !gjson.ValidBytes(payload) {
		return nil, &apperr.Error{
			Kind:       apperr.KindGatewayResponseUnrecognized,
			Msg:        fmt.Sprintf("%s returned a non-JSON response", gateway),
			StatusCode: resp.StatusCode,
			Payload:    payload,
		}
	}
	return payload, nil
}

// lookup returns the first non-empty string found at paths, in order.
func lookup(payload []byte, paths ...string) (string, bool) {
	for _, p := range paths {
		r := gjson.GetBytes(payload, p)
		if r.Exists() && r.Type != gjson.Null && r.String() != "" {
			return r.String(), true
		}
	}
	return "", false
}

func unrecognized(gateway string, payload []byte, what string) error {
	return &apperr.Error{
		Kind:    apperr.KindGatewayResponseUnrecognized,
		Msg:     fmt.Sprintf("%s response has no %s", gateway, what),
		Payload: payload,
	}
}

// maskSensitiveFields hides customer contact data before a request body is logged.
func maskSensitiveFields(body []byte) []byte {
	var req map[string]interface{}
	if err := json.Unmarshal(body, &req); err != nil {
		return []byte(`"<unparseable>"`)
	}
	maskContact(req)
	if customer, ok := req["customer"].(map[string]interface{}); ok {
		maskContact(customer)
	}
	masked, _ := json.Marshal(req)
	return masked
}

func maskContact(m map[string]interface{}) {
	for _, key := range []string{"email", "payer_email"} {
		if email, ok := m[key].(string); ok {
			parts := strings.SplitN(email, "@", 2)
			if len(parts) == 2 && len(parts[0]) > 3 {
				m[key] = parts[0][:3] + "****@" + parts[1]
			}
		}
	}
	for _, key := range []string{"phone", "mobile_number"} {
		if phone, ok := m[key].(string); ok && len(phone) > 4 {
			m[key] = "****" + phone[len(phone)-4:]
		}
	}
}

// New returns the variant registered under name.
func New(name string, dokuOpts DokuOptions, xenditOpts XenditOptions) (Client, error) {
	switch name {
	case NameDokuCheckout:
		return NewDokuCheckout(dokuOpts), nil
	case NameDokuVirtualAccount:
		return NewDokuVirtualAccount(dokuOpts), nil
	case NameXenditInvoice:
		return NewXenditInvoice(xenditOpts), nil
	default:
		return nil, apperr.New(apperr.KindValidation, "unknown payment gateway %q", name)
	}
}
