package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/paygate-gobackend/internal/apperr"
	"github.com/markjakearzadon/paygate-gobackend/internal/models"
	"github.com/markjakearzadon/paygate-gobackend/internal/store"
)

type OrderService struct {
	store store.Store
}

func NewOrderService(st store.Store) *OrderService {
	return &OrderService{store: st}
}

// List returns orders newest first, optionally filtered by status.
func (s *OrderService) List(ctx context.Context, status string) ([]models.Order, error) {
	st := models.OrderStatus(status)
	if st != "" && !st.Valid() {
		return nil, apperr.New(apperr.KindValidation, "unknown order status %q", status)
	}
	return s.store.ListOrders(ctx, st)
}

func (s *OrderService) Get(ctx context.Context, id string) (*models.Order, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid order id %q", id)
	}
	return s.store.FindOrderByID(ctx, objID)
}
