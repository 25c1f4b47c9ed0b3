package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/markjakearzadon/paygate-gobackend/internal/apperr"
	"github.com/markjakearzadon/paygate-gobackend/internal/models"
	"github.com/markjakearzadon/paygate-gobackend/internal/services"
)

type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, *models.User, error)
}

type ManualSettler interface {
	MarkPaid(ctx context.Context, invoice string) (services.Outcome, error)
}

type OrderReader interface {
	List(ctx context.Context, status string) ([]models.Order, error)
	Get(ctx context.Context, id string) (*models.Order, error)
}

// AdminHandler serves the back-office endpoints.
type AdminHandler struct {
	auth    Authenticator
	settler ManualSettler
	orders  OrderReader
}

func NewAdminHandler(auth Authenticator, settler ManualSettler, orders OrderReader) *AdminHandler {
	return &AdminHandler{auth: auth, settler: settler, orders: orders}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, apperr.New(apperr.KindValidation, "email and password are required"))
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

type markPaidRequest struct {
	Invoice string `json:"invoice"`
}

type markPaidResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Invoice string           `json:"invoice"`
	Outcome services.Outcome `json:"outcome"`
}

func (h *AdminHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req markPaidRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Invoice) == "" {
		writeError(w, apperr.New(apperr.KindValidation, "missing invoice"))
		return
	}

	outcome, err := h.settler.MarkPaid(r.Context(), strings.TrimSpace(req.Invoice))
	if err != nil {
		writeError(w, err)
		return
	}
	if c, ok := ClaimsFrom(r.Context()); ok {
		log.Info().Str("admin", c.Email).Str("externalId", req.Invoice).Str("outcome", string(outcome)).Msg("invoice marked paid by hand")
	}
	writeJSON(w, http.StatusOK, markPaidResponse{Success: true, Message: "order marked as paid", Invoice: req.Invoice, Outcome: outcome})
}

func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	orders, err := h.orders.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *AdminHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	order, err := h.orders.Get(r.Context(), mux.Vars(r)["orderID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
