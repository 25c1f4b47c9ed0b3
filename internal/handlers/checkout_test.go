package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markjakearzadon/paygate-gobackend/internal/apperr"
	"github.com/markjakearzadon/paygate-gobackend/internal/models"
	"github.com/markjakearzadon/paygate-gobackend/internal/services"
	"github.com/markjakearzadon/paygate-gobackend/internal/store"
)

func newCheckoutHandler(t *testing.T, rps float64, burst int) (*CheckoutHandler, *store.MemoryStore, *stubGateway, models.Product) {
	t.Helper()
	st := store.NewMemoryStore()
	kopi := st.PutProduct(models.Product{Name: "Kopi", Price: 25000})
	gw := &stubGateway{}
	svc := services.NewCheckoutService(st, gw, "https://shop.example/api/webhook", 60)
	return NewCheckoutHandler(svc, rps, burst), st, gw, kopi
}

func checkoutRequest(productID string) *http.Request {
	body := fmt.Sprintf(`{"items":[{"productId":%q,"quantity":2}],"totalPrice":1,"customerName":"Budi","customerPhone":"081234567890"}`, productID)
	return httptest.NewRequest(http.MethodPost, "/api/checkout", bytes.NewReader([]byte(body)))
}

func TestCheckoutHandler_Create(t *testing.T) {
	h, st, gw, kopi := newCheckoutHandler(t, 0, 0)
	rec := httptest.NewRecorder()
	h.Create(rec, checkoutRequest(kopi.ID.Hex()))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res services.CheckoutResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, int64(50000), res.Amount)
	assert.Equal(t, "https://pay.doku/"+res.InvoiceNumber, res.CheckoutURL)
	assert.Equal(t, 1, gw.calls)

	checkout, err := st.FindCheckoutByExternalID(context.Background(), res.InvoiceNumber)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutPending, checkout.Status)
}

func TestCheckoutHandler_Rejects(t *testing.T) {
	h, st, gw, _ := newCheckoutHandler(t, 0, 0)

	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/checkout", bytes.NewReader([]byte(`{"items":`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.KindMalformedPayload, decodeError(t, rec).Kind)

	rec = httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/checkout", bytes.NewReader([]byte(`{"items":[],"customerName":"Budi","customerPhone":"0812"}`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.KindValidation, decodeError(t, rec).Kind)

	rec = httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodGet, "/api/checkout", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	assert.Zero(t, gw.calls)
	assert.Zero(t, st.WriteCount())
}

func TestCheckoutHandler_RateLimited(t *testing.T) {
	h, _, gw, kopi := newCheckoutHandler(t, 0.001, 1)

	rec := httptest.NewRecorder()
	h.Create(rec, checkoutRequest(kopi.ID.Hex()))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Create(rec, checkoutRequest(kopi.ID.Hex()))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, apperr.KindRateLimited, decodeError(t, rec).Kind)
	assert.Equal(t, 1, gw.calls)
}
