package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_Wrapped(t *testing.T) {
	base := New(KindRecordNotFound, "checkout %s not found", "INV-1")
	err := fmt.Errorf("reconcile: %w", base)

	assert.Equal(t, KindRecordNotFound, KindOf(err))
	assert.True(t, Is(err, KindRecordNotFound))
	assert.False(t, Is(err, KindValidation))
	assert.Equal(t, "checkout INV-1 not found", Message(err))
}

func TestKindOf_PlainError(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal server error", Message(err))
	assert.False(t, Is(nil, KindInternal))
}

func TestRejectedKeepsPayload(t *testing.T) {
	err := Rejected(http.StatusUnprocessableEntity, []byte(`{"error":"bad"}`))
	assert.Equal(t, KindGatewayRejected, err.Kind)
	assert.Equal(t, http.StatusUnprocessableEntity, err.StatusCode)
	assert.JSONEq(t, `{"error":"bad"}`, string(err.Payload))
	assert.NotContains(t, Message(err), "bad")
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:                  http.StatusBadRequest,
		KindMissingHeaders:              http.StatusBadRequest,
		KindMalformedPayload:            http.StatusBadRequest,
		KindSignatureInvalid:            http.StatusForbidden,
		KindMethodNotAllowed:            http.StatusMethodNotAllowed,
		KindGatewayRejected:             http.StatusBadGateway,
		KindGatewayResponseUnrecognized: http.StatusBadGateway,
		KindGatewayUnreachable:          http.StatusGatewayTimeout,
		KindRecordNotFound:              http.StatusNotFound,
		KindConflict:                    http.StatusConflict,
		KindInternal:                    http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), kind)
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrap(KindGatewayUnreachable, cause, "calling %s", "doku")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "gateway_unreachable")
}
