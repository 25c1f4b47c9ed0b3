package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/markjakearzadon/paygate-gobackend/internal/apperr"
	"github.com/markjakearzadon/paygate-gobackend/internal/services"
	"github.com/markjakearzadon/paygate-gobackend/internal/signature"
)

const (
	maxBodyBytes = 1 << 20

	HeaderXenditCallbackToken = "X-Callback-Token"
	HeaderXenditWebhookID     = "Webhook-Id"

	GatewayDoku   = "doku"
	GatewayXendit = "xendit"
)

// EventApplier is the reconciliation entry point.
type EventApplier interface {
	Apply(ctx context.Context, ev services.Event) (services.Outcome, error)
}

type WebhookHandler struct {
	applier     EventApplier
	verifier    *signature.Verifier
	xenditToken string
	// replay holds delivery ids whose processing finished; a hit is acknowledged without
	// touching the store.
	replay *lru.Cache[string, struct{}]
}

func NewWebhookHandler(applier EventApplier, verifier *signature.Verifier, xenditToken string, replaySize int) (*WebhookHandler, error) {
	if replaySize <= 0 {
		replaySize = 1024
	}
	cache, err := lru.New[string, struct{}](replaySize)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to create replay cache")
	}
	return &WebhookHandler{applier: applier, verifier: verifier, xenditToken: xenditToken, replay: cache}, nil
}

type received struct {
	Received bool `json:"received"`
}

func readRaw(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindMalformedPayload, err, "unreadable request body")
	}
	return raw, nil
}

// Doku handles DOKU payment notifications. The signature is checked over the raw bytes
// before the body is parsed.
func (h *WebhookHandler) Doku(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	raw, err := readRaw(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	requestID := r.Header.Get(signature.HeaderRequestID)
	if err := h.verifier.Verify(r.Header, raw); err != nil {
		log.Warn().Err(err).Str("requestId", requestID).Str("remote", r.RemoteAddr).Msg("doku webhook rejected")
		writeError(w, err)
		return
	}

	if h.replay.Contains(requestID) {
		log.Debug().Str("requestId", requestID).Msg("doku webhook replay acknowledged")
		writeJSON(w, http.StatusOK, received{Received: true})
		return
	}

	ev, err := parseDokuEvent(raw)
	if err != nil {
		writeError(w, err)
		return
	}
	h.apply(w, r, requestID, ev)
}

// Xendit handles invoice callbacks authenticated by the shared callback token.
func (h *WebhookHandler) Xendit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token := r.Header.Get(HeaderXenditCallbackToken)
	if token == "" {
		writeError(w, apperr.New(apperr.KindMissingHeaders, "missing signature headers: %s", HeaderXenditCallbackToken))
		return
	}
	if h.xenditToken == "" {
		writeError(w, apperr.New(apperr.KindInternal, "webhook token not configured"))
		return
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.xenditToken)) != 1 {
		log.Warn().Str("remote", r.RemoteAddr).Msg("xendit webhook rejected")
		writeError(w, apperr.New(apperr.KindSignatureInvalid, "invalid callback token"))
		return
	}

	raw, err := readRaw(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	deliveryID := r.Header.Get(HeaderXenditWebhookID)
	if deliveryID != "" && h.replay.Contains(deliveryID) {
		writeJSON(w, http.StatusOK, received{Received: true})
		return
	}

	ev, err := parseXenditEvent(raw)
	if err != nil {
		writeError(w, err)
		return
	}
	h.apply(w, r, deliveryID, ev)
}

func (h *WebhookHandler) apply(w http.ResponseWriter, r *http.Request, deliveryID string, ev services.Event) {
	outcome, err := h.applier.Apply(r.Context(), ev)
	if err != nil {
		writeError(w, err)
		return
	}
	if deliveryID != "" {
		h.replay.Add(deliveryID, struct{}{})
	}
	log.Debug().Str("externalId", ev.ExternalID).Str("outcome", string(outcome)).Msg("webhook acknowledged")
	writeJSON(w, http.StatusOK, received{Received: true})
}

func decodeRawMap(raw []byte) (map[string]interface{}, error) {
	if !gjson.ValidBytes(raw) {
		return nil, apperr.New(apperr.KindMalformedPayload, "webhook body is not valid JSON")
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, apperr.Wrap(apperr.KindMalformedPayload, err, "webhook body is not a JSON object")
	}
	return m, nil
}

func firstString(raw []byte, paths ...string) string {
	for _, p := range paths {
		if v := gjson.GetBytes(raw, p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func firstInt(raw []byte, paths ...string) int64 {
	for _, p := range paths {
		if v := gjson.GetBytes(raw, p); v.Exists() && v.Type == gjson.Number {
			return v.Int()
		}
	}
	return 0
}

func parseDokuEvent(raw []byte) (services.Event, error) {
	m, err := decodeRawMap(raw)
	if err != nil {
		return services.Event{}, err
	}
	return services.Event{
		Gateway:       GatewayDoku,
		ExternalID:    firstString(raw, "order.invoice_number"),
		Status:        firstString(raw, "transaction.status"),
		TransactionID: firstString(raw, "transaction.original_request_id", "transaction.id"),
		OrderRef:      firstString(raw, "order.order_id", "metadata.order_id"),
		Amount:        firstInt(raw, "order.amount"),
		Raw:           m,
	}, nil
}

// parseXenditEvent accepts both the flat invoice callback and the event envelope.
func parseXenditEvent(raw []byte) (services.Event, error) {
	m, err := decodeRawMap(raw)
	if err != nil {
		return services.Event{}, err
	}
	return services.Event{
		Gateway:       GatewayXendit,
		ExternalID:    firstString(raw, "external_id", "data.external_id"),
		Status:        firstString(raw, "status", "data.status"),
		TransactionID: firstString(raw, "id", "data.id"),
		OrderRef:      firstString(raw, "metadata.order_id", "data.metadata.order_id"),
		Amount:        firstInt(raw, "paid_amount", "amount", "data.paid_amount", "data.amount"),
		Raw:           m,
	}, nil
}
