package services

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/paygate-gobackend/internal/gateway"
	"github.com/markjakearzadon/paygate-gobackend/internal/models"
	"github.com/markjakearzadon/paygate-gobackend/internal/notify"
	"github.com/markjakearzadon/paygate-gobackend/internal/store"
)

var ErrMockStore = errors.New("mock store error")

// MockNotifier records every send.
type MockNotifier struct {
	mu        sync.Mutex
	SendFunc  func(ctx context.Context, to, templateID string, vars map[string]string) (*notify.Receipt, error)
	CallCount int
	LastTo    string
	LastVars  map[string]string
}

func (m *MockNotifier) Send(ctx context.Context, to, templateID string, vars map[string]string) (*notify.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount++
	m.LastTo, m.LastVars = to, vars
	if m.SendFunc != nil {
		return m.SendFunc(ctx, to, templateID, vars)
	}
	return &notify.Receipt{MessageID: "SM-test"}, nil
}

func (m *MockNotifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// MockGateway implements gateway.Client.
type MockGateway struct {
	CreateFunc func(ctx context.Context, req gateway.IntentRequest) (*gateway.PaymentIntent, error)
	LastReq    gateway.IntentRequest
	Calls      int
}

func (m *MockGateway) Name() string { return gateway.NameDokuCheckout }

func (m *MockGateway) CreatePaymentIntent(ctx context.Context, req gateway.IntentRequest) (*gateway.PaymentIntent, error) {
	m.Calls++
	m.LastReq = req
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	return &gateway.PaymentIntent{
		Gateway:            gateway.NameDokuCheckout,
		CheckoutURL:        "https://pay.doku/" + req.InvoiceNumber,
		GatewayReferenceID: "sess-" + req.InvoiceNumber,
		RawPayload:         []byte(`{"response":{"payment":{"url":"https://pay.doku"}}}`),
	}, nil
}

// faultyStore fails selected operations on top of a working store.
type faultyStore struct {
	store.Store
	FailTransitionOrder bool
	FailCreateCheckout  bool
}

func (f *faultyStore) TransitionOrder(ctx context.Context, id primitive.ObjectID, from []models.OrderStatus, to models.OrderStatus) (*models.Order, bool, error) {
	if f.FailTransitionOrder {
		return nil, false, ErrMockStore
	}
	return f.Store.TransitionOrder(ctx, id, from, to)
}

func (f *faultyStore) CreateCheckout(ctx context.Context, c *models.Checkout) error {
	if f.FailCreateCheckout {
		return ErrMockStore
	}
	return f.Store.CreateCheckout(ctx, c)
}
