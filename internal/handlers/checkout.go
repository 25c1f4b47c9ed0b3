package handlers

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/markjakearzadon/paygate-gobackend/internal/apperr"
	"github.com/markjakearzadon/paygate-gobackend/internal/services"
)

type CheckoutSubmitter interface {
	Submit(ctx context.Context, in services.CheckoutInput) (*services.CheckoutResult, error)
}

type CheckoutHandler struct {
	service CheckoutSubmitter
	limiter *rate.Limiter
}

// NewCheckoutHandler limits submissions process-wide; rps <= 0 disables the limit.
func NewCheckoutHandler(service CheckoutSubmitter, rps float64, burst int) *CheckoutHandler {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &CheckoutHandler{service: service, limiter: rate.NewLimiter(limit, burst)}
}

func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !h.limiter.Allow() {
		writeError(w, apperr.New(apperr.KindRateLimited, "too many checkout requests, try again shortly"))
		return
	}

	var in services.CheckoutInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.service.Submit(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
