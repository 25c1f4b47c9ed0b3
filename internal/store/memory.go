package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/paygate-gobackend/internal/apperr"
	"github.com/markjakearzadon/paygate-gobackend/internal/models"
)

// MemoryStore keeps documents in process. A single mutex makes every conditional transition
// atomic, mirroring Mongo's document-level guarantees.
type MemoryStore struct {
	mu        sync.Mutex
	checkouts map[primitive.ObjectID]models.Checkout
	orders    map[primitive.ObjectID]models.Order
	payments  map[primitive.ObjectID]models.Payment
	products  map[string]models.Product
	users     map[string]models.User

	// Writes counts successful mutations; tests use it to assert that nothing was touched.
	Writes int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		checkouts: map[primitive.ObjectID]models.Checkout{},
		orders:    map[primitive.ObjectID]models.Order{},
		payments:  map[primitive.ObjectID]models.Payment{},
		products:  map[string]models.Product{},
		users:     map[string]models.User{},
	}
}

// PutProduct seeds the catalog.
func (m *MemoryStore) PutProduct(p models.Product) models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	m.products[p.ID.Hex()] = p
	return p
}

func (m *MemoryStore) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Writes
}

func cloneOrder(o models.Order) *models.Order {
	o.Items = slices.Clone(o.Items)
	return &o
}

func cloneCheckout(c models.Checkout) *models.Checkout {
	c.Items = slices.Clone(c.Items)
	return &c
}

func clonePayment(p models.Payment) *models.Payment { return &p }

func (m *MemoryStore) CreateOrder(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders {
		if o.OrderNumber == order.OrderNumber {
			return apperr.New(apperr.KindConflict, "order %s already exists", order.OrderNumber)
		}
	}
	now := time.Now().UTC()
	order.ID = primitive.NewObjectID()
	order.CreatedAt, order.UpdatedAt = now, now
	m.orders[order.ID] = *cloneOrder(*order)
	m.Writes++
	return nil
}

func (m *MemoryStore) DeleteOrder(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders, id)
	m.Writes++
	return nil
}

func (m *MemoryStore) FindOrderByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, apperr.New(apperr.KindRecordNotFound, "order %s not found", id.Hex())
	}
	return cloneOrder(o), nil
}

func (m *MemoryStore) FindOrderByNumber(_ context.Context, orderNumber string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderNumber == orderNumber {
			return cloneOrder(o), nil
		}
	}
	return nil, apperr.New(apperr.KindRecordNotFound, "order %s not found", orderNumber)
}

func (m *MemoryStore) ListOrders(_ context.Context, status models.OrderStatus) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if status == "" || o.Status == status {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) TransitionOrder(_ context.Context, id primitive.ObjectID, from []models.OrderStatus, to models.OrderStatus) (*models.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, false, apperr.New(apperr.KindRecordNotFound, "order %s not found", id.Hex())
	}
	if !slices.Contains(from, o.Status) {
		return cloneOrder(o), false, nil
	}
	now := time.Now().UTC()
	o.Status, o.UpdatedAt = to, now
	if to == models.OrderPaid {
		o.PaidAt = &now
	}
	m.orders[id] = o
	m.Writes++
	return cloneOrder(o), true, nil
}

func (m *MemoryStore) CreateCheckout(_ context.Context, checkout *models.Checkout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.checkouts {
		if c.ExternalID == checkout.ExternalID {
			return apperr.New(apperr.KindConflict, "checkout %s already exists", checkout.ExternalID)
		}
	}
	now := time.Now().UTC()
	checkout.ID = primitive.NewObjectID()
	checkout.CreatedAt, checkout.UpdatedAt = now, now
	m.checkouts[checkout.ID] = *cloneCheckout(*checkout)
	m.Writes++
	return nil
}

func (m *MemoryStore) AttachIntent(_ context.Context, checkoutID primitive.ObjectID, invoiceID, invoiceURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.checkouts[checkoutID]
	if !ok {
		return apperr.New(apperr.KindRecordNotFound, "checkout %s not found", checkoutID.Hex())
	}
	c.GatewayInvoiceID, c.InvoiceURL, c.UpdatedAt = invoiceID, invoiceURL, time.Now().UTC()
	m.checkouts[checkoutID] = c
	m.Writes++
	return nil
}

func (m *MemoryStore) checkoutByExternalID(externalID string) (models.Checkout, bool) {
	for _, c := range m.checkouts {
		if c.ExternalID == externalID {
			return c, true
		}
	}
	return models.Checkout{}, false
}

func (m *MemoryStore) FindCheckoutByExternalID(_ context.Context, externalID string) (*models.Checkout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.checkoutByExternalID(externalID)
	if !ok {
		return nil, apperr.New(apperr.KindRecordNotFound, "checkout %s not found", externalID)
	}
	return cloneCheckout(c), nil
}

func (m *MemoryStore) TransitionCheckout(_ context.Context, externalID string, from []models.CheckoutStatus, to models.CheckoutStatus) (*models.Checkout, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.checkoutByExternalID(externalID)
	if !ok {
		return nil, false, apperr.New(apperr.KindRecordNotFound, "checkout %s not found", externalID)
	}
	if !slices.Contains(from, c.Status) {
		return cloneCheckout(c), false, nil
	}
	c.Status, c.UpdatedAt = to, time.Now().UTC()
	m.checkouts[c.ID] = c
	m.Writes++
	return cloneCheckout(c), true, nil
}

func (m *MemoryStore) paymentByCheckout(checkoutID primitive.ObjectID) (models.Payment, bool) {
	for _, p := range m.payments {
		if p.CheckoutID == checkoutID {
			return p, true
		}
	}
	return models.Payment{}, false
}

func (m *MemoryStore) CreatePayment(_ context.Context, payment *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.paymentByCheckout(payment.CheckoutID); ok {
		return apperr.New(apperr.KindConflict, "payment for checkout %s already exists", payment.CheckoutID.Hex())
	}
	now := time.Now().UTC()
	payment.ID = primitive.NewObjectID()
	payment.CreatedAt, payment.UpdatedAt = now, now
	m.payments[payment.ID] = *payment
	m.Writes++
	return nil
}

func (m *MemoryStore) FindPaymentByCheckout(_ context.Context, checkoutID primitive.ObjectID) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.paymentByCheckout(checkoutID)
	if !ok {
		return nil, apperr.New(apperr.KindRecordNotFound, "payment for checkout %s not found", checkoutID.Hex())
	}
	return clonePayment(p), nil
}

func (m *MemoryStore) MarkPaymentPaid(_ context.Context, pp PaidPayment) (*models.Payment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	at := pp.At
	p, ok := m.paymentByCheckout(pp.CheckoutID)
	if ok && p.Status == models.PaymentPaid {
		return clonePayment(p), false, nil
	}
	if !ok {
		p = models.Payment{
			ID:         primitive.NewObjectID(),
			CheckoutID: pp.CheckoutID,
			Amount:     pp.Amount,
			Gateway:    pp.Gateway,
			CreatedAt:  at,
		}
	}
	if !pp.OrderID.IsZero() {
		p.OrderID = pp.OrderID
	}
	p.Status = models.PaymentPaid
	p.GatewayTransactionID = pp.TransactionID
	p.RawPayload = pp.RawPayload
	p.PaidAt = &at
	p.UpdatedAt = at
	m.payments[p.ID] = p
	m.Writes++
	return clonePayment(p), true, nil
}

func (m *MemoryStore) TransitionPayment(_ context.Context, checkoutID primitive.ObjectID, from []models.PaymentStatus, to models.PaymentStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.paymentByCheckout(checkoutID)
	if !ok || !slices.Contains(from, p.Status) {
		return false, nil
	}
	p.Status, p.UpdatedAt = to, time.Now().UTC()
	m.payments[p.ID] = p
	m.Writes++
	return true, nil
}

func (m *MemoryStore) FindProducts(_ context.Context, ids []string) (map[string]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]models.Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *MemoryStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, apperr.New(apperr.KindRecordNotFound, "user %s not found", email)
	}
	return &u, nil
}

func (m *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Email]; ok {
		return apperr.New(apperr.KindConflict, "user %s already exists", user.Email)
	}
	user.ID = primitive.NewObjectID()
	m.users[user.Email] = *user
	m.Writes++
	return nil
}
