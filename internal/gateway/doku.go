package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/markjakearzadon/paygate-gobackend/internal/apperr"
	"github.com/markjakearzadon/paygate-gobackend/internal/signature"
)

const (
	DokuCheckoutPath       = "/checkout/v2/payment"
	DokuVirtualAccountPath = "/virtual-account/v2/payment-code"

	defaultDueMinutes = 60
	fallbackEmail     = "noemail@example.com"
)

var (
	dokuCheckoutURLPaths = []string{"response.payment.url", "checkout_url", "payment.url"}
	dokuReferencePaths   = []string{"response.order.session_id", "response.uuid"}

	dokuVANumberPaths = []string{
		"virtual_account_info.virtual_account_number",
		"payment.virtual_account_info.virtual_account_number",
		"data.virtual_account_info.virtual_account_number",
	}
	dokuVAHowToPayPaths = []string{
		"virtual_account_info.how_to_pay_page",
		"payment.virtual_account_info.how_to_pay_page",
		"data.virtual_account_info.how_to_pay_page",
	}
)

type DokuOptions struct {
	BaseURL    string
	ClientID   string
	Secret     string
	Scheme     signature.Scheme
	Timeout    time.Duration
	// BankCode selects the issuing bank for virtual accounts.
	BankCode   string
	HTTPClient *http.Client
}

type dokuOrder struct {
	Amount        int64          `json:"amount"`
	InvoiceNumber string         `json:"invoice_number"`
	CallbackURL   string         `json:"callback_url,omitempty"`
	LineItems     []dokuLineItem `json:"line_items,omitempty"`
}

type dokuLineItem struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

type dokuCustomer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type dokuCheckoutBody struct {
	Order   dokuOrder `json:"order"`
	Payment struct {
		PaymentDueDate int `json:"payment_due_date"`
	} `json:"payment"`
	Customer dokuCustomer `json:"customer"`
}

type dokuVAInfo struct {
	BankCode                string `json:"bank_code,omitempty"`
	MerchantUniqueReference string `json:"merchant_unique_reference"`
	ExpiredTime             int    `json:"expired_time"`
	ReusableStatus          bool   `json:"reusable_status"`
}

type dokuVABody struct {
	Order              dokuOrder    `json:"order"`
	VirtualAccountInfo dokuVAInfo   `json:"virtual_account_info"`
	Customer           dokuCustomer `json:"customer"`
}

// doku holds what both DOKU products share: the base URL, the signer and the HTTP client.
type doku struct {
	baseURL string
	signer  *signature.Signer
	http    *http.Client
}

func newDoku(opts DokuOptions) doku {
	return doku{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		signer:  signature.NewSigner(opts.ClientID, opts.Secret, opts.Scheme),
		http:    newHTTPClient(opts.HTTPClient, opts.Timeout),
	}
}

// send marshals body once; the signed bytes are exactly the bytes sent.
func (d doku) send(ctx context.Context, name, target string, body any) ([]byte, string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindInternal, err, "failed to encode %s request", name)
	}
	header, err := d.signer.Headers(target, raw)
	if err != nil {
		return nil, "", err
	}
	payload, err := post(ctx, d.http, name, d.baseURL+target, raw, header)
	if err != nil {
		return nil, "", err
	}
	return payload, header.Get(signature.HeaderRequestID), nil
}

func dokuOrderOf(req IntentRequest) dokuOrder {
	o := dokuOrder{
		Amount:        req.Amount,
		InvoiceNumber: req.InvoiceNumber,
		CallbackURL:   req.CallbackURL,
	}
	for _, it := range req.Items {
		o.LineItems = append(o.LineItems, dokuLineItem{ID: it.ID, Name: it.Name, Price: it.Price, Quantity: it.Quantity})
	}
	return o
}

func dokuCustomerOf(c Customer) dokuCustomer {
	email := c.Email
	if email == "" {
		email = fallbackEmail
	}
	return dokuCustomer{Name: c.Name, Email: email, Phone: c.Phone}
}

func dueMinutes(req IntentRequest) int {
	if req.DueMinutes > 0 {
		return req.DueMinutes
	}
	return defaultDueMinutes
}

// DokuCheckout creates hosted checkout pages.
type DokuCheckout struct {
	doku
}

func NewDokuCheckout(opts DokuOptions) *DokuCheckout {
	return &DokuCheckout{doku: newDoku(opts)}
}

func (c *DokuCheckout) Name() string { return NameDokuCheckout }

func (c *DokuCheckout) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*PaymentIntent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body := dokuCheckoutBody{Order: dokuOrderOf(req), Customer: dokuCustomerOf(req.Customer)}
	body.Payment.PaymentDueDate = dueMinutes(req)

	payload, requestID, err := c.send(ctx, NameDokuCheckout, DokuCheckoutPath, body)
	if err != nil {
		return nil, err
	}

	url, ok := lookup(payload, dokuCheckoutURLPaths...)
	if !ok {
		log.Error().Str("gateway", NameDokuCheckout).Str("externalId", req.InvoiceNumber).Bytes("payload", payload).Msg("checkout url missing from response")
		return nil, unrecognized(NameDokuCheckout, payload, "checkout url")
	}
	ref, ok := lookup(payload, dokuReferencePaths...)
	if !ok {
		ref = requestID
	}

	log.Info().Str("gateway", NameDokuCheckout).Str("externalId", req.InvoiceNumber).Str("reference", ref).Msg("checkout created")
	return &PaymentIntent{
		Gateway:            NameDokuCheckout,
		CheckoutURL:        url,
		GatewayReferenceID: ref,
		RawPayload:         payload,
	}, nil
}

// DokuVirtualAccount issues bank virtual account numbers.
type DokuVirtualAccount struct {
	doku
	bankCode string
}

func NewDokuVirtualAccount(opts DokuOptions) *DokuVirtualAccount {
	return &DokuVirtualAccount{doku: newDoku(opts), bankCode: opts.BankCode}
}

func (c *DokuVirtualAccount) Name() string { return NameDokuVirtualAccount }

func (c *DokuVirtualAccount) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*PaymentIntent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ref := req.OrderRef
	if ref == "" {
		ref = req.InvoiceNumber
	}
	order := dokuOrderOf(req)
	order.LineItems = nil
	body := dokuVABody{
		Order: order,
		VirtualAccountInfo: dokuVAInfo{
			BankCode:                c.bankCode,
			MerchantUniqueReference: ref,
			ExpiredTime:             dueMinutes(req),
		},
		Customer: dokuCustomerOf(req.Customer),
	}

	payload, requestID, err := c.send(ctx, NameDokuVirtualAccount, DokuVirtualAccountPath, body)
	if err != nil {
		return nil, err
	}

	va, ok := lookup(payload, dokuVANumberPaths...)
	if !ok {
		log.Error().Str("gateway", NameDokuVirtualAccount).Str("externalId", req.InvoiceNumber).Bytes("payload", payload).Msg("virtual account number missing from response")
		return nil, unrecognized(NameDokuVirtualAccount, payload, "virtual account number")
	}
	howTo, _ := lookup(payload, dokuVAHowToPayPaths...)

	log.Info().Str("gateway", NameDokuVirtualAccount).Str("externalId", req.InvoiceNumber).Msg("virtual account issued")
	return &PaymentIntent{
		Gateway:              NameDokuVirtualAccount,
		CheckoutURL:          howTo,
		VirtualAccountNumber: va,
		GatewayReferenceID:   requestID,
		RawPayload:           payload,
	}, nil
}
