package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/markjakearzadon/paygate-gobackend/internal/apperr"
	"github.com/markjakearzadon/paygate-gobackend/internal/gateway"
	"github.com/markjakearzadon/paygate-gobackend/internal/models"
	"github.com/markjakearzadon/paygate-gobackend/internal/store"
)

const (
	createAttempts = 3

	// MaxItemQuantity bounds a single cart line.
	MaxItemQuantity = 10000
)

type CheckoutItemInput struct {
	ProductID string `json:"productId"`
	ID        string `json:"id,omitempty"`
	Quantity  int64  `json:"quantity"`
	Qty       int64  `json:"qty,omitempty"`
}

func (i CheckoutItemInput) productKey() string {
	if i.ProductID != "" {
		return strings.TrimSpace(i.ProductID)
	}
	return strings.TrimSpace(i.ID)
}

func (i CheckoutItemInput) quantity() int64 {
	if i.Quantity != 0 {
		return i.Quantity
	}
	return i.Qty
}

type CheckoutInput struct {
	Items []CheckoutItemInput `json:"items"`
	// TotalPrice is what the client computed. It is compared and logged, never trusted.
	TotalPrice    *int64 `json:"totalPrice,omitempty"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone"`
	Notes         string `json:"notes"`
}

func (in CheckoutInput) Validate() error {
	if len(in.Items) == 0 {
		return apperr.New(apperr.KindValidation, "items must not be empty")
	}
	for i, it := range in.Items {
		if it.productKey() == "" {
			return apperr.New(apperr.KindValidation, "item %d has no product id", i)
		}
		if q := it.quantity(); q < 1 || q > MaxItemQuantity {
			return apperr.New(apperr.KindValidation, "item %d quantity must be between 1 and %d", i, MaxItemQuantity)
		}
	}
	if strings.TrimSpace(in.CustomerName) == "" {
		return apperr.New(apperr.KindValidation, "customer name is required")
	}
	if strings.TrimSpace(in.CustomerEmail) == "" && strings.TrimSpace(in.CustomerPhone) == "" {
		return apperr.New(apperr.KindValidation, "customer email or phone is required")
	}
	return nil
}

type CheckoutResult struct {
	Success              bool   `json:"success"`
	Gateway              string `json:"gateway"`
	CheckoutURL          string `json:"checkoutUrl,omitempty"`
	VirtualAccountNumber string `json:"virtualAccountNumber,omitempty"`
	OrderID              string `json:"orderId"`
	OrderNumber          string `json:"orderNumber"`
	InvoiceNumber        string `json:"invoiceNumber"`
	Amount               int64  `json:"amount"`
}

type CheckoutService struct {
	store       store.Store
	gateway     gateway.Client
	callbackURL string
	dueMinutes  int

	now  func() time.Time
	rand func(n int) int
}

func NewCheckoutService(st store.Store, gw gateway.Client, callbackURL string, dueMinutes int) *CheckoutService {
	return &CheckoutService{
		store:       st,
		gateway:     gw,
		callbackURL: callbackURL,
		dueMinutes:  dueMinutes,
		now:         time.Now,
		rand:        rand.Intn,
	}
}

// NewOrderNumber formats ORD<yyMMdd><4 digits>.
func NewOrderNumber(now time.Time, suffix int) string {
	return fmt.Sprintf("ORD%s%04d", now.Format("060102"), suffix%10000)
}

// NewInvoiceNumber formats INV-<unix millis>-<up to 4 digits>.
func NewInvoiceNumber(now time.Time, suffix int) string {
	return fmt.Sprintf("INV-%d-%d", now.UnixMilli(), suffix%10000)
}

// Submit prices the cart from the catalog, records the Order and its Checkout, and asks the
// gateway for a payment intent. A gateway failure leaves the Checkout PENDING.
func (s *CheckoutService) Submit(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	orderItems, checkoutItems, total, err := s.price(ctx, in.Items)
	if err != nil {
		return nil, err
	}
	if in.TotalPrice != nil && *in.TotalPrice != total {
		log.Warn().Int64("client", *in.TotalPrice).Int64("computed", total).Msg("client total ignored, using catalog prices")
	}

	order := &models.Order{
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerPhone: strings.TrimSpace(in.CustomerPhone),
		CustomerEmail: strings.TrimSpace(in.CustomerEmail),
		Items:         orderItems,
		TotalAmount:   total,
		Status:        models.OrderWaitingPayment,
		PaymentMethod: s.gateway.Name(),
		Notes:         in.Notes,
	}
	if err := s.createOrder(ctx, order); err != nil {
		return nil, err
	}

	checkout := &models.Checkout{
		OrderID:          order.ID,
		Items:            checkoutItems,
		TotalPrice:       total,
		Status:           models.CheckoutPending,
		Gateway:          s.gateway.Name(),
		CustomerName:     order.CustomerName,
		CustomerEmail:    order.CustomerEmail,
		CustomerWhatsapp: order.CustomerPhone,
	}
	if err := s.createCheckout(ctx, checkout); err != nil {
		if derr := s.store.DeleteOrder(ctx, order.ID); derr != nil {
			log.Error().Err(derr).Str("orderNumber", order.OrderNumber).Msg("failed to remove order after checkout insert failed")
		}
		return nil, err
	}

	logger := log.With().Str("externalId", checkout.ExternalID).Str("gateway", s.gateway.Name()).Logger()

	req := gateway.IntentRequest{
		Amount:        total,
		InvoiceNumber: checkout.ExternalID,
		OrderRef:      order.OrderNumber,
		CallbackURL:   s.callbackURL,
		Customer:      gateway.Customer{Name: order.CustomerName, Email: order.CustomerEmail, Phone: order.CustomerPhone},
		DueMinutes:    s.dueMinutes,
	}
	for _, it := range orderItems {
		req.Items = append(req.Items, gateway.Item{ID: it.ProductID, Name: it.Name, Price: it.Price, Quantity: it.Quantity})
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, req)
	if err != nil {
		logger.Error().Err(err).Str("kind", string(apperr.KindOf(err))).Msg("payment intent failed, checkout left pending")
		return nil, err
	}

	if err := s.store.AttachIntent(ctx, checkout.ID, intent.GatewayReferenceID, intent.CheckoutURL); err != nil {
		logger.Error().Err(err).Msg("failed to attach intent to checkout")
	}

	payment := &models.Payment{
		CheckoutID:     checkout.ID,
		OrderID:        order.ID,
		Amount:         total,
		Status:         models.PaymentPending,
		Gateway:        intent.Gateway,
		VirtualAccount: intent.VirtualAccountNumber,
		RawPayload:     decodeRaw(intent.RawPayload),
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		// The webhook upsert creates the row if this one is missing.
		logger.Error().Err(err).Msg("failed to record pending payment")
	}

	logger.Info().Str("orderNumber", order.OrderNumber).Int64("amount", total).Msg("checkout created")
	return &CheckoutResult{
		Success:              true,
		Gateway:              intent.Gateway,
		CheckoutURL:          intent.CheckoutURL,
		VirtualAccountNumber: intent.VirtualAccountNumber,
		OrderID:              order.ID.Hex(),
		OrderNumber:          order.OrderNumber,
		InvoiceNumber:        checkout.ExternalID,
		Amount:               total,
	}, nil
}

func (s *CheckoutService) price(ctx context.Context, items []CheckoutItemInput) ([]models.OrderItem, []models.CheckoutItem, int64, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.productKey())
	}
	catalog, err := s.store.FindProducts(ctx, ids)
	if err != nil {
		return nil, nil, 0, err
	}

	orderItems := make([]models.OrderItem, 0, len(items))
	checkoutItems := make([]models.CheckoutItem, 0, len(items))
	for _, it := range items {
		p, ok := catalog[it.productKey()]
		if !ok {
			return nil, nil, 0, apperr.New(apperr.KindValidation, "product %s not found", it.productKey())
		}
		if p.Price <= 0 {
			return nil, nil, 0, apperr.New(apperr.KindValidation, "product %s has no price", it.productKey())
		}
		qty := it.quantity()
		orderItems = append(orderItems, models.OrderItem{
			ProductID: it.productKey(),
			Name:      p.Name,
			Category:  p.Category,
			Price:     p.Price,
			Quantity:  qty,
			ImageURL:  p.ImageURL,
		})
		checkoutItems = append(checkoutItems, models.CheckoutItem{ProductID: it.productKey(), Quantity: qty, UnitPrice: p.Price})
	}
	total, ok := models.ItemsTotal(orderItems)
	if !ok {
		return nil, nil, 0, apperr.New(apperr.KindValidation, "order total is too large")
	}
	return orderItems, checkoutItems, total, nil
}

// createOrder retries on order number collisions.
func (s *CheckoutService) createOrder(ctx context.Context, order *models.Order) error {
	var err error
	for i := 0; i < createAttempts; i++ {
		order.OrderNumber = NewOrderNumber(s.now(), s.rand(10000))
		if err = s.store.CreateOrder(ctx, order); !apperr.Is(err, apperr.KindConflict) {
			return err
		}
	}
	return err
}

func (s *CheckoutService) createCheckout(ctx context.Context, checkout *models.Checkout) error {
	var err error
	for i := 0; i < createAttempts; i++ {
		checkout.ExternalID = NewInvoiceNumber(s.now(), s.rand(10000))
		if err = s.store.CreateCheckout(ctx, checkout); !apperr.Is(err, apperr.KindConflict) {
			return err
		}
	}
	return err
}

func decodeRaw(raw []byte) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]interface{}{"raw": string(raw)}
	}
	return m
}
