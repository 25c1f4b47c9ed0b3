package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires every route. Webhook and mutation routes accept any method so the handlers
// can answer 405 with a JSON body.
func NewRouter(webhook *WebhookHandler, checkout *CheckoutHandler, admin *AdminHandler, auth TokenParser) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet, http.MethodHead)

	router.HandleFunc("/api/webhook/doku", webhook.Doku)
	router.HandleFunc("/api/webhook", webhook.Doku)
	router.HandleFunc("/api/webhook/xendit", webhook.Xendit)

	router.HandleFunc("/api/checkout", checkout.Create)

	router.HandleFunc("/api/admin/login", admin.Login)
	protected := router.PathPrefix("/api/admin").Subrouter()
	protected.Use(RequireAdmin(auth))
	protected.HandleFunc("/mark-paid", admin.MarkPaid)
	protected.HandleFunc("/orders", admin.ListOrders)
	protected.HandleFunc("/orders/{orderID}", admin.GetOrder)

	return router
}
