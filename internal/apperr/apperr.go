// Package apperr holds the typed error kinds shared by the gateway client, the webhook
// verifier and the reconciliation engine, so callers can switch on a kind instead of matching
// error strings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation                  Kind = "validation"
	KindGatewayRejected             Kind = "gateway_rejected"
	KindGatewayUnreachable          Kind = "gateway_unreachable"
	KindGatewayResponseUnrecognized Kind = "gateway_response_unrecognized"
	KindMissingHeaders              Kind = "missing_headers"
	KindSignatureInvalid            Kind = "signature_invalid"
	KindMalformedPayload            Kind = "malformed_payload"
	KindRecordNotFound              Kind = "record_not_found"
	KindConflict                    Kind = "conflict"
	KindNotificationFailed          Kind = "notification_failed"
	KindUnauthorized                Kind = "unauthorized"
	KindForbidden                   Kind = "forbidden"
	KindMethodNotAllowed            Kind = "method_not_allowed"
	KindRateLimited                 Kind = "rate_limited"
	KindInternal                    Kind = "internal"
)

// Error is the concrete error carried across package boundaries.
type Error struct {
	Kind Kind
	Msg  string
	// StatusCode and Payload are set for gateway errors; Payload is for server logs only.
	StatusCode int
	Payload    []byte
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Rejected builds a gateway_rejected error holding the gateway's raw response.
func Rejected(statusCode int, payload []byte) *Error {
	return &Error{
		Kind:       KindGatewayRejected,
		Msg:        fmt.Sprintf("gateway responded with status %d", statusCode),
		StatusCode: statusCode,
		Payload:    payload,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns a message safe to show to an end user.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal server error"
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindMissingHeaders, KindMalformedPayload:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindSignatureInvalid, KindForbidden:
		return http.StatusForbidden
	case KindRecordNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindGatewayRejected, KindGatewayResponseUnrecognized:
		return http.StatusBadGateway
	case KindGatewayUnreachable:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
