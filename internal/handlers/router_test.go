package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markjakearzadon/paygate-gobackend/internal/models"
	"github.com/markjakearzadon/paygate-gobackend/internal/services"
	"github.com/markjakearzadon/paygate-gobackend/internal/signature"
)

const testJWTSecret = "jwt-test-secret"

type routerFixture struct {
	*webhookFixture
	router http.Handler
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := newWebhookFixture(t)
	users := services.NewUserService(f.st, testJWTSecret)
	_, err := users.CreateAdmin(context.Background(), "Admin", "admin@example.com", "correct-horse")
	require.NoError(t, err)

	reconciler := services.NewReconciler(f.st, f.notifier, f.events, "HX-template")
	checkout := NewCheckoutHandler(services.NewCheckoutService(f.st, &stubGateway{}, "https://shop.example/api/webhook", 60), 0, 0)
	admin := NewAdminHandler(users, reconciler, services.NewOrderService(f.st))
	return &routerFixture{webhookFixture: f, router: NewRouter(f.handler, checkout, admin, users)}
}

func (f *routerFixture) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *routerFixture) login(t *testing.T) string {
	t.Helper()
	rec := f.do(http.MethodPost, "/api/admin/login", `{"email":"Admin@Example.com","password":"correct-horse"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		Token string       `json:"token"`
		User  *models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotEmpty(t, res.Token)
	assert.Equal(t, "admin@example.com", res.User.Email)
	assert.NotContains(t, rec.Body.String(), "password")
	return res.Token
}

func TestRouter_Health(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.do(http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRouter_WebhookRoutes(t *testing.T) {
	f := newRouterFixture(t)
	for _, path := range []string{"/api/webhook", "/api/webhook/doku", "/api/webhook/xendit"} {
		rec := f.do(http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
	}

	body := dokuBody("INV-1000", "SUCCESS")
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/doku", bytes.NewReader(body))
	req.Header = signature.WebhookHeaders(testClientID, testSecret, "req-1", "2024-01-02T03:04:05Z", "/api/webhook/doku", body, signature.DefaultScheme)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_LoginRejectsBadPassword(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.do(http.MethodPost, "/api/admin/login", `{"email":"admin@example.com","password":"wrong-password"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_AdminAuth(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(http.MethodGet, "/api/admin/orders", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/api/admin/orders", "", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	customer := jwt.NewWithClaims(jwt.SigningMethodHS256, services.Claims{
		Email: "budi@example.com",
		Role:  "customer",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := customer.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	rec = f.do(http.MethodGet, "/api/admin/orders", "", signed)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_AdminOrders(t *testing.T) {
	f := newRouterFixture(t)
	token := f.login(t)

	rec := f.do(http.MethodGet, "/api/admin/orders?status=waiting_payment", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var orders []models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, "ORD2401020001", orders[0].OrderNumber)

	rec = f.do(http.MethodGet, "/api/admin/orders?status=bogus", "", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/admin/orders/"+f.order.ID.Hex(), "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, f.order.ID, order.ID)

	rec = f.do(http.MethodGet, "/api/admin/orders/not-hex", "", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_MarkPaid(t *testing.T) {
	f := newRouterFixture(t)
	token := f.login(t)

	rec := f.do(http.MethodPost, "/api/admin/mark-paid", `{}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/admin/mark-paid", `{"invoice":"INV-404"}`, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/api/admin/mark-paid", `{"invoice":"INV-1000"}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res markPaidResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, services.OutcomeApplied, res.Outcome)
	assert.Equal(t, 1, f.notifier.calls())

	rec = f.do(http.MethodPost, "/api/admin/mark-paid", `{"invoice":"INV-1000"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, services.OutcomeDuplicate, res.Outcome)
	assert.Equal(t, 1, f.notifier.calls())

	order, err := f.st.FindOrderByID(context.Background(), f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, order.Status)
}
