package handlers

import (
	"context"
	"errors"
	"sync"

	"github.com/markjakearzadon/paygate-gobackend/internal/gateway"
	"github.com/markjakearzadon/paygate-gobackend/internal/notify"
	"github.com/markjakearzadon/paygate-gobackend/internal/services"
)

var errMockStore = errors.New("mock store error")

type mockNotifier struct {
	mu        sync.Mutex
	callCount int
	lastTo    string
}

func (m *mockNotifier) Send(_ context.Context, to, _ string, _ map[string]string) (*notify.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.lastTo = to
	return &notify.Receipt{MessageID: "SM-test", Status: "queued"}, nil
}

func (m *mockNotifier) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// mockApplier records events without reconciling them.
type mockApplier struct {
	ApplyFunc func(ctx context.Context, ev services.Event) (services.Outcome, error)
	Events    []services.Event
}

func (m *mockApplier) Apply(ctx context.Context, ev services.Event) (services.Outcome, error) {
	m.Events = append(m.Events, ev)
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, ev)
	}
	return services.OutcomeApplied, nil
}

type stubGateway struct{ calls int }

func (g *stubGateway) Name() string { return gateway.NameDokuCheckout }

func (g *stubGateway) CreatePaymentIntent(_ context.Context, req gateway.IntentRequest) (*gateway.PaymentIntent, error) {
	g.calls++
	return &gateway.PaymentIntent{
		Gateway:            gateway.NameDokuCheckout,
		CheckoutURL:        "https://pay.doku/" + req.InvoiceNumber,
		GatewayReferenceID: "sess-" + req.InvoiceNumber,
		RawPayload:         []byte(`{"response":{"payment":{"url":"https://pay.doku/x"}}}`),
	}, nil
}
