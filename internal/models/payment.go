package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Payment is the gateway ledger entry linking a Checkout to its Order. There is at most one
// per Checkout, and a PAID payment is never moved back.
type Payment struct {
	ID                   primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	CheckoutID           primitive.ObjectID     `bson:"checkout" json:"checkout"`
	OrderID              primitive.ObjectID     `bson:"order,omitempty" json:"order,omitempty"`
	Amount               int64                  `bson:"amount" json:"amount"`
	Status               PaymentStatus          `bson:"status" json:"status"`
	Gateway              string                 `bson:"gateway" json:"gateway"`
	GatewayTransactionID string                 `bson:"gatewayTransactionId,omitempty" json:"gatewayTransactionId,omitempty"`
	VirtualAccount       string                 `bson:"virtualAccount,omitempty" json:"virtualAccount,omitempty"`
	RawPayload           map[string]interface{} `bson:"rawPayload,omitempty" json:"-"`
	PaidAt               *time.Time             `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	CreatedAt            time.Time              `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time              `bson:"updatedAt" json:"updatedAt"`
}
