// Package signature builds the canonical strings DOKU hashes for request signing and webhook
// verification, and computes the HMAC-SHA256 signatures over them.
//
// The canonical string is newline-joined "Name:value" lines in a fixed order. Gateways
// recompute it byte-for-byte, so field order and the colon-no-space separator matter.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/markjakearzadon/paygate-gobackend/internal/apperr"
)

const (
	HeaderClientID         = "Client-Id"
	HeaderRequestID        = "Request-Id"
	HeaderRequestTimestamp = "Request-Timestamp"
	HeaderRequestTarget    = "Request-Target"
	HeaderSignature        = "Signature"

	// SignaturePrefix precedes the base64 HMAC in the Signature header.
	SignaturePrefix = "HMACSHA256="

	TimestampLayout = "2006-01-02T15:04:05Z"
)

// Scheme selects the canonical string variant. A signer and its paired verifier must share
// the same Scheme.
type Scheme struct {
	IncludeDigest bool
}

// DefaultScheme signs the Digest line, matching DOKU checkout v2 and its notifications.
var DefaultScheme = Scheme{IncludeDigest: true}

// Components are the per-request values that go into the canonical string.
type Components struct {
	ClientID  string
	RequestID string
	Timestamp string
	Target    string
	Digest    string
}

// Digest returns base64(SHA-256(body)).
func Digest(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// CanonicalString joins the components as "Name:value" lines, adding the Digest line when the
// scheme includes it.
func CanonicalString(c Components, scheme Scheme) string {
	lines := []string{
		HeaderClientID + ":" + c.ClientID,
		HeaderRequestID + ":" + c.RequestID,
		HeaderRequestTimestamp + ":" + c.Timestamp,
		HeaderRequestTarget + ":" + c.Target,
	}
	if scheme.IncludeDigest {
		lines = append(lines, "Digest:"+c.Digest)
	}
	return strings.Join(lines, "\n")
}

// Sign returns base64(HMAC-SHA256(secret, canonical)).
func Sign(secret, canonical string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Signer produces the header set for outbound gateway requests.
type Signer struct {
	ClientID  string
	SecretKey string
	Scheme    Scheme

	Now   func() time.Time
	NewID func() string
}

func NewSigner(clientID, secretKey string, scheme Scheme) *Signer {
	return &Signer{
		ClientID:  clientID,
		SecretKey: secretKey,
		Scheme:    scheme,
		Now:       time.Now,
		NewID:     uuid.NewString,
	}
}

// Headers signs body for the given request target path.
func (s *Signer) Headers(target string, body []byte) (http.Header, error) {
	if s.ClientID == "" || s.SecretKey == "" {
		return nil, apperr.New(apperr.KindValidation, "signer requires client id and secret key")
	}
	if !strings.HasPrefix(target, "/") {
		return nil, apperr.New(apperr.KindValidation, "request target %q must be an absolute path", target)
	}

	c := Components{
		ClientID:  s.ClientID,
		RequestID: s.NewID(),
		Timestamp: s.Now().UTC().Format(TimestampLayout),
		Target:    target,
		Digest:    Digest(body),
	}

	h := http.Header{}
	h.Set(HeaderClientID, c.ClientID)
	h.Set(HeaderRequestID, c.RequestID)
	h.Set(HeaderRequestTimestamp, c.Timestamp)
	h.Set(HeaderSignature, SignaturePrefix+Sign(s.SecretKey, CanonicalString(c, s.Scheme)))
	return h, nil
}
