package signature

import (
	"crypto/hmac"
	"net/http"
	"strings"

	"github.com/markjakearzadon/paygate-gobackend/internal/apperr"
)

var requiredHeaders = []string{
	HeaderClientID,
	HeaderRequestID,
	HeaderRequestTimestamp,
	HeaderRequestTarget,
	HeaderSignature,
}

// Verifier checks inbound webhook signatures. It works on the raw body only and never parses
// it, because a re-serialized object need not reproduce the signed bytes.
type Verifier struct {
	SecretKey string
	Scheme    Scheme
	// ClientID, when set, must match the Client-Id header.
	ClientID string
}

// MissingHeaders lists the required signature headers absent from h.
func MissingHeaders(h http.Header) []string {
	var missing []string
	for _, name := range requiredHeaders {
		if strings.TrimSpace(h.Get(name)) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// ComponentsFromHeaders reads the canonical components of a webhook and digests rawBody.
func ComponentsFromHeaders(h http.Header, rawBody []byte) Components {
	return Components{
		ClientID:  h.Get(HeaderClientID),
		RequestID: h.Get(HeaderRequestID),
		Timestamp: h.Get(HeaderRequestTimestamp),
		Target:    h.Get(HeaderRequestTarget),
		Digest:    Digest(rawBody),
	}
}

func (v *Verifier) Verify(h http.Header, rawBody []byte) error {
	if missing := MissingHeaders(h); len(missing) > 0 {
		return apperr.New(apperr.KindMissingHeaders, "missing signature headers: %s", strings.Join(missing, ", "))
	}
	if v.SecretKey == "" {
		return apperr.New(apperr.KindInternal, "webhook secret key not configured")
	}

	c := ComponentsFromHeaders(h, rawBody)
	if v.ClientID != "" && !hmac.Equal([]byte(c.ClientID), []byte(v.ClientID)) {
		return apperr.New(apperr.KindSignatureInvalid, "unexpected client id")
	}

	got, ok := strings.CutPrefix(strings.TrimSpace(h.Get(HeaderSignature)), SignaturePrefix)
	if !ok {
		return apperr.New(apperr.KindSignatureInvalid, "signature header lacks %s prefix", SignaturePrefix)
	}

	want := Sign(v.SecretKey, CanonicalString(c, v.Scheme))
	if !hmac.Equal([]byte(got), []byte(want)) {
		return apperr.New(apperr.KindSignatureInvalid, "signature mismatch")
	}
	return nil
}

// WebhookHeaders signs rawBody the way the gateway signs its notifications. Used by tests and
// by the operator CLI to replay webhooks against a local server.
func WebhookHeaders(clientID, secretKey, requestID, timestamp, target string, rawBody []byte, scheme Scheme) http.Header {
	c := Components{
		ClientID:  clientID,
		RequestID: requestID,
		Timestamp: timestamp,
		Target:    target,
		Digest:    Digest(rawBody),
	}
	h := http.Header{}
	h.Set(HeaderClientID, clientID)
	h.Set(HeaderRequestID, requestID)
	h.Set(HeaderRequestTimestamp, timestamp)
	h.Set(HeaderRequestTarget, target)
	h.Set(HeaderSignature, SignaturePrefix+Sign(secretKey, CanonicalString(c, scheme)))
	return h
}
