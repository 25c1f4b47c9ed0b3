// Package notify sends customer-facing WhatsApp messages.
package notify

import (
	"context"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/markjakearzadon/paygate-gobackend/internal/apperr"
)

const countryCode = "62"

type Receipt struct {
	MessageID string `json:"messageSid"`
	Status    string `json:"status"`
}

type Notifier interface {
	Send(ctx context.Context, to, templateID string, vars map[string]string) (*Receipt, error)
}

// NormalizePhone turns local and international Indonesian numbers into whatsapp:+62...
func NormalizePhone(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return "", apperr.New(apperr.KindValidation, "phone number %q has no digits", raw)
	}
	if !strings.HasPrefix(digits, countryCode) {
		digits = countryCode + strings.TrimPrefix(digits, "0")
	}
	return "whatsapp:+" + digits, nil
}

// FormatRupiah renders 50000 as Rp50.000.
func FormatRupiah(amount int64) string {
	return "Rp" + strings.ReplaceAll(humanize.Comma(amount), ",", ".")
}

// PaymentTemplateVars fills the payment-received template.
func PaymentTemplateVars(customerName string, amount int64, orderNumber string) map[string]string {
	return map[string]string{
		"customer_name": customerName,
		"amount":        FormatRupiah(amount),
		"order_number":  orderNumber,
	}
}

// Nop logs instead of sending. Used when no messaging credentials are configured.
type Nop struct{}

func (Nop) Send(_ context.Context, to, templateID string, vars map[string]string) (*Receipt, error) {
	log.Info().Str("to", to).Str("template", templateID).Interface("vars", vars).Msg("notification skipped, no sender configured")
	return &Receipt{}, nil
}
