package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CheckoutStatus string

const (
	CheckoutPending CheckoutStatus = "PENDING"
	CheckoutPaid    CheckoutStatus = "PAID"
	CheckoutExpired CheckoutStatus = "EXPIRED"
)

type CheckoutItem struct {
	ProductID string `bson:"product" json:"product"`
	Quantity  int64  `bson:"qty" json:"qty"`
	UnitPrice int64  `bson:"price" json:"price"`
}

// Checkout is a cart snapshot submitted for payment. ExternalID is the only identifier a
// gateway reports back, so it is unique and never changes after creation.
type Checkout struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ExternalID       string             `bson:"externalId" json:"externalId"`
	OrderID          primitive.ObjectID `bson:"order,omitempty" json:"order,omitempty"`
	Items            []CheckoutItem     `bson:"items" json:"items"`
	TotalPrice       int64              `bson:"totalPrice" json:"totalPrice"`
	Status           CheckoutStatus     `bson:"status" json:"status"`
	Gateway          string             `bson:"gateway" json:"gateway"`
	GatewayInvoiceID string             `bson:"gatewayInvoiceId,omitempty" json:"gatewayInvoiceId,omitempty"`
	InvoiceURL       string             `bson:"invoiceUrl,omitempty" json:"invoiceUrl,omitempty"`
	CustomerName     string             `bson:"customerName" json:"customerName"`
	CustomerEmail    string             `bson:"customerEmail" json:"customerEmail"`
	CustomerWhatsapp string             `bson:"customerWhatsapp" json:"customerWhatsapp"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}
