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
	"github.com/markjakearzadon/paygate-gobackend/internal/events"
	"github.com/markjakearzadon/paygate-gobackend/internal/models"
	"github.com/markjakearzadon/paygate-gobackend/internal/services"
	"github.com/markjakearzadon/paygate-gobackend/internal/signature"
	"github.com/markjakearzadon/paygate-gobackend/internal/store"
)

const (
	testClientID    = "BRN-0001"
	testSecret      = "SK-test-secret"
	testXenditToken = "xnd-callback-token"
	webhookTarget   = "/api/webhook"
)

type webhookFixture struct {
	st       *store.MemoryStore
	notifier *mockNotifier
	events   *events.Recorder
	handler  *WebhookHandler
	order    *models.Order
	checkout *models.Checkout
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	ctx := context.Background()
	f := &webhookFixture{st: store.NewMemoryStore(), notifier: &mockNotifier{}, events: &events.Recorder{}}
	reconciler := services.NewReconciler(f.st, f.notifier, f.events, "HX-template")

	verifier := &signature.Verifier{SecretKey: testSecret, Scheme: signature.DefaultScheme}
	h, err := NewWebhookHandler(reconciler, verifier, testXenditToken, 16)
	require.NoError(t, err)
	f.handler = h

	f.order = &models.Order{OrderNumber: "ORD2401020001", CustomerName: "Budi", CustomerPhone: "081234567890", TotalAmount: 50000, Status: models.OrderWaitingPayment}
	require.NoError(t, f.st.CreateOrder(ctx, f.order))
	f.checkout = &models.Checkout{ExternalID: "INV-1000", OrderID: f.order.ID, TotalPrice: 50000, Status: models.CheckoutPending, CustomerName: "Budi", CustomerWhatsapp: "081234567890"}
	require.NoError(t, f.st.CreateCheckout(ctx, f.checkout))
	require.NoError(t, f.st.CreatePayment(ctx, &models.Payment{CheckoutID: f.checkout.ID, OrderID: f.order.ID, Amount: 50000, Status: models.PaymentPending}))
	return f
}

func dokuBody(invoice, status string) []byte {
	body, _ := json.Marshal(map[string]any{
		"order":       map[string]any{"invoice_number": invoice, "amount": 50000},
		"transaction": map[string]any{"status": status, "original_request_id": "trx-1"},
	})
	return body
}

func signedDokuRequest(body []byte, requestID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, webhookTarget, bytes.NewReader(body))
	h := signature.WebhookHeaders(testClientID, testSecret, requestID, "2024-01-02T03:04:05Z", webhookTarget, body, signature.DefaultScheme)
	for k, v := range h {
		req.Header[k] = v
	}
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestDokuWebhook_Success(t *testing.T) {
	f := newWebhookFixture(t)
	rec := httptest.NewRecorder()
	f.handler.Doku(rec, signedDokuRequest(dokuBody("INV-1000", "SUCCESS"), "req-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	ctx := context.Background()
	checkout, err := f.st.FindCheckoutByExternalID(ctx, "INV-1000")
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutPaid, checkout.Status)
	payment, err := f.st.FindPaymentByCheckout(ctx, checkout.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, payment.Status)
	assert.Equal(t, "trx-1", payment.GatewayTransactionID)
	order, err := f.st.FindOrderByID(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, order.Status)

	assert.Equal(t, 1, f.notifier.calls())
	assert.Equal(t, "whatsapp:+6281234567890", f.notifier.lastTo)
	assert.Equal(t, []string{events.KeyPaymentPaid}, f.events.Keys())
}

func TestDokuWebhook_ForgedSignature(t *testing.T) {
	f := newWebhookFixture(t)
	before := f.st.WriteCount()

	req := signedDokuRequest(dokuBody("INV-1000", "SUCCESS"), "req-1")
	req.Header.Set(signature.HeaderSignature, signature.SignaturePrefix+"Zm9yZ2Vk")
	rec := httptest.NewRecorder()
	f.handler.Doku(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperr.KindSignatureInvalid, decodeError(t, rec).Kind)
	assert.Equal(t, before, f.st.WriteCount())
	assert.Zero(t, f.notifier.calls())
}

func TestDokuWebhook_TamperedBody(t *testing.T) {
	f := newWebhookFixture(t)
	before := f.st.WriteCount()

	signed := signedDokuRequest(dokuBody("INV-1000", "EXPIRED"), "req-1")
	req := httptest.NewRequest(http.MethodPost, webhookTarget, bytes.NewReader(dokuBody("INV-1000", "SUCCESS")))
	req.Header = signed.Header
	rec := httptest.NewRecorder()
	f.handler.Doku(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, before, f.st.WriteCount())
}

func TestDokuWebhook_MissingHeaders(t *testing.T) {
	f := newWebhookFixture(t)
	req := httptest.NewRequest(http.MethodPost, webhookTarget, bytes.NewReader(dokuBody("INV-1000", "SUCCESS")))
	rec := httptest.NewRecorder()
	f.handler.Doku(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, apperr.KindMissingHeaders, body.Kind)
	assert.Contains(t, body.Error, signature.HeaderSignature)
}

func TestDokuWebhook_MalformedJSON(t *testing.T) {
	f := newWebhookFixture(t)
	rec := httptest.NewRecorder()
	f.handler.Doku(rec, signedDokuRequest([]byte(`{"order":`), "req-1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.KindMalformedPayload, decodeError(t, rec).Kind)
}

func TestDokuWebhook_MissingInvoice(t *testing.T) {
	f := newWebhookFixture(t)
	before := f.st.WriteCount()

	for i, body := range []string{
		`{"service":{"id":"VIRTUAL_ACCOUNT"},"transaction":{"status":"PENDING"}}`,
		`{"transaction":{"status":"SUCCESS"}}`,
	} {
		rec := httptest.NewRecorder()
		f.handler.Doku(rec, signedDokuRequest([]byte(body), fmt.Sprintf("req-%d", i)))
		assert.Equal(t, http.StatusOK, rec.Code, body)
		assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	}
	assert.Equal(t, before, f.st.WriteCount())
	assert.Zero(t, f.notifier.calls())
}

func TestDokuWebhook_MethodNotAllowed(t *testing.T) {
	f := newWebhookFixture(t)
	rec := httptest.NewRecorder()
	f.handler.Doku(rec, httptest.NewRequest(http.MethodGet, webhookTarget, nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, apperr.KindMethodNotAllowed, decodeError(t, rec).Kind)
}

func TestDokuWebhook_DuplicateDelivery(t *testing.T) {
	f := newWebhookFixture(t)
	body := dokuBody("INV-1000", "SUCCESS")

	for _, id := range []string{"req-1", "req-1", "req-2"} {
		rec := httptest.NewRecorder()
		f.handler.Doku(rec, signedDokuRequest(body, id))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 1, f.notifier.calls())
	assert.Len(t, f.events.Events, 1)
}

func TestDokuWebhook_UnknownInvoice(t *testing.T) {
	f := newWebhookFixture(t)
	before := f.st.WriteCount()
	rec := httptest.NewRecorder()
	f.handler.Doku(rec, signedDokuRequest(dokuBody("INV-404", "SUCCESS"), "req-1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, before, f.st.WriteCount())
	assert.Zero(t, f.notifier.calls())
}

func TestDokuWebhook_UnhandledStatus(t *testing.T) {
	f := newWebhookFixture(t)
	before := f.st.WriteCount()
	rec := httptest.NewRecorder()
	f.handler.Doku(rec, signedDokuRequest(dokuBody("INV-1000", "PENDING"), "req-1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, before, f.st.WriteCount())
}

func TestDokuWebhook_StoreFailureIsRetryable(t *testing.T) {
	applier := &mockApplier{ApplyFunc: func(context.Context, services.Event) (services.Outcome, error) {
		return "", apperr.Wrap(apperr.KindInternal, errMockStore, "failed to update checkout")
	}}
	h, err := NewWebhookHandler(applier, &signature.Verifier{SecretKey: testSecret, Scheme: signature.DefaultScheme}, "", 16)
	require.NoError(t, err)

	body := dokuBody("INV-1000", "SUCCESS")
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.Doku(rec, signedDokuRequest(body, "req-1"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), errMockStore.Error())
	}
	// A failed delivery is not remembered, so the retry reaches the applier again.
	assert.Len(t, applier.Events, 2)
}

func TestParseDokuEvent(t *testing.T) {
	ev, err := parseDokuEvent([]byte(`{"order":{"invoice_number":"INV-9","amount":12000,"order_id":"ORD2401020009"},"transaction":{"status":"SUCCESS","id":"t-9"}}`))
	require.NoError(t, err)
	assert.Equal(t, GatewayDoku, ev.Gateway)
	assert.Equal(t, "INV-9", ev.ExternalID)
	assert.Equal(t, "SUCCESS", ev.Status)
	assert.Equal(t, "t-9", ev.TransactionID)
	assert.Equal(t, "ORD2401020009", ev.OrderRef)
	assert.Equal(t, int64(12000), ev.Amount)
	assert.NotNil(t, ev.Raw)

	_, err = parseDokuEvent([]byte(`[1,2]`))
	assert.True(t, apperr.Is(err, apperr.KindMalformedPayload))
}

func xenditRequest(body, token, webhookID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/xendit", bytes.NewReader([]byte(body)))
	if token != "" {
		req.Header.Set(HeaderXenditCallbackToken, token)
	}
	if webhookID != "" {
		req.Header.Set(HeaderXenditWebhookID, webhookID)
	}
	return req
}

func TestXenditWebhook(t *testing.T) {
	paid := `{"id":"inv-x1","external_id":"INV-1000","status":"PAID","paid_amount":50000}`

	t.Run("missing token", func(t *testing.T) {
		f := newWebhookFixture(t)
		rec := httptest.NewRecorder()
		f.handler.Xendit(rec, xenditRequest(paid, "", ""))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apperr.KindMissingHeaders, decodeError(t, rec).Kind)
	})

	t.Run("wrong token", func(t *testing.T) {
		f := newWebhookFixture(t)
		before := f.st.WriteCount()
		rec := httptest.NewRecorder()
		f.handler.Xendit(rec, xenditRequest(paid, "nope", ""))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, before, f.st.WriteCount())
	})

	t.Run("paid", func(t *testing.T) {
		f := newWebhookFixture(t)
		rec := httptest.NewRecorder()
		f.handler.Xendit(rec, xenditRequest(paid, testXenditToken, "wh-1"))
		require.Equal(t, http.StatusOK, rec.Code)

		checkout, err := f.st.FindCheckoutByExternalID(context.Background(), "INV-1000")
		require.NoError(t, err)
		assert.Equal(t, models.CheckoutPaid, checkout.Status)
		assert.Equal(t, 1, f.notifier.calls())

		rec = httptest.NewRecorder()
		f.handler.Xendit(rec, xenditRequest(paid, testXenditToken, "wh-1"))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, f.notifier.calls())
	})

	t.Run("envelope", func(t *testing.T) {
		f := newWebhookFixture(t)
		rec := httptest.NewRecorder()
		f.handler.Xendit(rec, xenditRequest(`{"event":"invoice.expired","data":{"id":"inv-x1","external_id":"INV-1000","status":"EXPIRED"}}`, testXenditToken, ""))
		require.Equal(t, http.StatusOK, rec.Code)

		checkout, err := f.st.FindCheckoutByExternalID(context.Background(), "INV-1000")
		require.NoError(t, err)
		assert.Equal(t, models.CheckoutExpired, checkout.Status)
		assert.Zero(t, f.notifier.calls())
	})
}
