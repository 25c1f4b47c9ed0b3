package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/markjakearzadon/paygate-gobackend/internal/apperr"
)

const (
	XenditInvoicePath    = "/v2/invoices"
	DefaultXenditBaseURL = "https://api.xendit.co"
	xenditCurrency       = "IDR"
)

type XenditOptions struct {
	BaseURL     string
	SecretKey   string
	// RedirectURL is where the hosted invoice sends the payer afterwards.
	RedirectURL string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

type xenditCustomer struct {
	GivenNames   string `json:"given_names"`
	Email        string `json:"email,omitempty"`
	MobileNumber string `json:"mobile_number,omitempty"`
}

type xenditItem struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

type xenditInvoiceBody struct {
	ExternalID         string         `json:"external_id"`
	Amount             int64          `json:"amount"`
	Currency           string         `json:"currency"`
	Description        string         `json:"description"`
	PayerEmail         string         `json:"payer_email,omitempty"`
	SuccessRedirectURL string         `json:"success_redirect_url,omitempty"`
	FailureRedirectURL string         `json:"failure_redirect_url,omitempty"`
	InvoiceDuration    int            `json:"invoice_duration"`
	Customer           xenditCustomer `json:"customer"`
	Items              []xenditItem   `json:"items,omitempty"`
}

// XenditInvoice creates hosted invoices authenticated with the secret key as basic-auth user.
type XenditInvoice struct {
	baseURL     string
	secretKey   string
	redirectURL string
	http        *http.Client
}

func NewXenditInvoice(opts XenditOptions) *XenditInvoice {
	base := opts.BaseURL
	if base == "" {
		base = DefaultXenditBaseURL
	}
	return &XenditInvoice{
		baseURL:     strings.TrimRight(base, "/"),
		secretKey:   opts.SecretKey,
		redirectURL: opts.RedirectURL,
		http:        newHTTPClient(opts.HTTPClient, opts.Timeout),
	}
}

func (x *XenditInvoice) Name() string { return NameXenditInvoice }

func (x *XenditInvoice) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*PaymentIntent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if x.secretKey == "" {
		return nil, apperr.New(apperr.KindValidation, "xendit secret key is not configured")
	}

	body := xenditInvoiceBody{
		ExternalID:      req.InvoiceNumber,
		Amount:          req.Amount,
		Currency:        xenditCurrency,
		Description:     "Order " + req.OrderRef,
		PayerEmail:      req.Customer.Email,
		InvoiceDuration: dueMinutes(req) * 60,
		Customer: xenditCustomer{
			GivenNames:   req.Customer.Name,
			Email:        req.Customer.Email,
			MobileNumber: req.Customer.Phone,
		},
	}
	if x.redirectURL != "" {
		body.SuccessRedirectURL = x.redirectURL + "?invoice=" + req.InvoiceNumber
		body.FailureRedirectURL = x.redirectURL + "?invoice=" + req.InvoiceNumber + "&failed=1"
	}
	for _, it := range req.Items {
		body.Items = append(body.Items, xenditItem{Name: it.Name, Price: it.Price, Quantity: it.Quantity})
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to encode invoice request")
	}

	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(x.secretKey+":")))

	payload, err := post(ctx, x.http, NameXenditInvoice, x.baseURL+XenditInvoicePath, raw, header)
	if err != nil {
		return nil, err
	}

	url, ok := lookup(payload, "invoice_url")
	if !ok {
		log.Error().Str("gateway", NameXenditInvoice).Str("externalId", req.InvoiceNumber).Bytes("payload", payload).Msg("invoice url missing from response")
		return nil, unrecognized(NameXenditInvoice, payload, "invoice url")
	}
	id, _ := lookup(payload, "id")

	log.Info().Str("gateway", NameXenditInvoice).Str("externalId", req.InvoiceNumber).Str("reference", id).Msg("invoice created")
	return &PaymentIntent{
		Gateway:            NameXenditInvoice,
		CheckoutURL:        url,
		GatewayReferenceID: id,
		RawPayload:         payload,
	}, nil
}
