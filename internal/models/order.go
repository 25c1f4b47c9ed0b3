package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderWaitingPayment OrderStatus = "waiting_payment"
	OrderPaid           OrderStatus = "paid"
	OrderCancelled      OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderWaitingPayment, OrderPaid, OrderCancelled:
		return true
	}
	return false
}

// OrderItem is a product snapshot taken at order time, not a live reference.
type OrderItem struct {
	ProductID string `bson:"productId" json:"productId"`
	Name      string `bson:"name" json:"name"`
	Category  string `bson:"category" json:"category"`
	Price     int64  `bson:"price" json:"price"`
	Quantity  int64  `bson:"quantity" json:"quantity"`
	ImageURL  string `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
}

type Order struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderNumber   string             `bson:"orderNumber" json:"orderNumber"`
	CustomerName  string             `bson:"customerName" json:"customerName"`
	CustomerPhone string             `bson:"customerPhone" json:"customerPhone"`
	CustomerEmail string             `bson:"customerEmail,omitempty" json:"customerEmail,omitempty"`
	Items         []OrderItem        `bson:"items" json:"items"`
	TotalAmount   int64              `bson:"totalAmount" json:"totalAmount"`
	Status        OrderStatus        `bson:"status" json:"status"`
	PaymentMethod string             `bson:"paymentMethod,omitempty" json:"paymentMethod,omitempty"`
	Notes         string             `bson:"notes" json:"notes"`
	PaidAt        *time.Time         `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ItemsTotal is the sum of price*quantity over the item snapshot. ok is false when a price or
// quantity is negative or the total does not fit in an int64.
func ItemsTotal(items []OrderItem) (total int64, ok bool) {
	for _, it := range items {
		if it.Price < 0 || it.Quantity < 0 {
			return 0, false
		}
		if it.Quantity > 0 && it.Price > math.MaxInt64/it.Quantity {
			return 0, false
		}
		line := it.Price * it.Quantity
		if total > math.MaxInt64-line {
			return 0, false
		}
		total += line
	}
	return total, true
}
