// Package store is the document store adapter for checkouts, orders, payments and the
// read-only catalog. Status changes go through conditional transitions so two handlers
// racing on the same record cannot both observe the old status and both win.
package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/paygate-gobackend/internal/models"
)

const (
	CollectionCheckouts = "checkouts"
	CollectionOrders    = "orders"
	CollectionPayments  = "payments"
	CollectionProducts  = "products"
	CollectionUsers     = "user"
)

// PaidPayment describes a payment settling. Amount and OrderID are only used when the
// payment row has to be created.
type PaidPayment struct {
	CheckoutID    primitive.ObjectID
	OrderID       primitive.ObjectID
	Amount        int64
	Gateway       string
	TransactionID string
	RawPayload    map[string]interface{}
	At            time.Time
}

type Store interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	DeleteOrder(ctx context.Context, id primitive.ObjectID) error
	FindOrderByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	ListOrders(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
	// TransitionOrder moves the order to `to` only when its status is one of from. It returns
	// the current document and whether this call changed it.
	TransitionOrder(ctx context.Context, id primitive.ObjectID, from []models.OrderStatus, to models.OrderStatus) (*models.Order, bool, error)

	CreateCheckout(ctx context.Context, checkout *models.Checkout) error
	AttachIntent(ctx context.Context, checkoutID primitive.ObjectID, invoiceID, invoiceURL string) error
	FindCheckoutByExternalID(ctx context.Context, externalID string) (*models.Checkout, error)
	TransitionCheckout(ctx context.Context, externalID string, from []models.CheckoutStatus, to models.CheckoutStatus) (*models.Checkout, bool, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindPaymentByCheckout(ctx context.Context, checkoutID primitive.ObjectID) (*models.Payment, error)
	// MarkPaymentPaid is an upsert keyed by checkout: a missing row is created as PAID, a
	// PENDING or FAILED row is moved to PAID, a PAID row is left untouched.
	MarkPaymentPaid(ctx context.Context, p PaidPayment) (*models.Payment, bool, error)
	TransitionPayment(ctx context.Context, checkoutID primitive.ObjectID, from []models.PaymentStatus, to models.PaymentStatus) (bool, error)

	FindProducts(ctx context.Context, ids []string) (map[string]models.Product, error)

	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}
