package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/paygate-gobackend/internal/apperr"
	"github.com/markjakearzadon/paygate-gobackend/internal/events"
	"github.com/markjakearzadon/paygate-gobackend/internal/models"
	"github.com/markjakearzadon/paygate-gobackend/internal/notify"
	"github.com/markjakearzadon/paygate-gobackend/internal/store"
)

const (
	GatewayManual = "manual"

	sideEffectTimeout = 10 * time.Second
)

// Event is a verified gateway notification reduced to what reconciliation needs.
type Event struct {
	Gateway       string
	ExternalID    string
	Status        string
	TransactionID string
	// OrderRef is an order id or order number carried in the payload, if any.
	OrderRef string
	// Amount is zero when the payload did not carry one.
	Amount int64
	Raw    map[string]interface{}
}

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeStale     Outcome = "stale"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeUnhandled Outcome = "unhandled"
)

type disposition int

const (
	dispositionUnhandled disposition = iota
	dispositionPaid
	dispositionExpired
)

func classify(status string) disposition {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "SUCCESS", "COMPLETED", "PAID", "SETTLED":
		return dispositionPaid
	case "EXPIRED":
		return dispositionExpired
	}
	return dispositionUnhandled
}

// Reconciler applies payment events to Checkout, Payment and Order. Every write is a
// conditional transition so replays and concurrent deliveries converge on the same state.
type Reconciler struct {
	store      store.Store
	notifier   notify.Notifier
	publisher  events.Publisher
	templateID string
	now        func() time.Time
}

func NewReconciler(st store.Store, n notify.Notifier, p events.Publisher, templateID string) *Reconciler {
	if n == nil {
		n = notify.Nop{}
	}
	if p == nil {
		p = events.Nop{}
	}
	return &Reconciler{store: st, notifier: n, publisher: p, templateID: templateID, now: time.Now}
}

// Apply reconciles one event. Events it cannot act on, including paid or expired events
// without an invoice number, are reported as outcomes rather than errors so the gateway stops
// redelivering them.
func (r *Reconciler) Apply(ctx context.Context, ev Event) (Outcome, error) {
	var (
		outcome Outcome
		err     error
	)
	disp := classify(ev.Status)
	switch {
	case disp != dispositionUnhandled && strings.TrimSpace(ev.ExternalID) == "":
		log.Warn().Str("gateway", ev.Gateway).Str("status", ev.Status).Msg("payment event without invoice number acknowledged")
		outcome = OutcomeNotFound
	case disp == dispositionPaid:
		outcome, err = r.applyPaid(ctx, ev)
	case disp == dispositionExpired:
		outcome, err = r.applyExpired(ctx, ev)
	default:
		outcome = OutcomeUnhandled
	}

	logger := log.With().Str("externalId", ev.ExternalID).Str("gateway", ev.Gateway).Str("status", ev.Status).Logger()
	if err != nil {
		logger.Error().Err(err).Str("kind", string(apperr.KindOf(err))).Msg("reconciliation failed")
		return "", err
	}
	logger.Info().Str("outcome", string(outcome)).Msg("payment event reconciled")
	return outcome, nil
}

// MarkPaid settles an invoice by hand through the same path as a gateway success.
func (r *Reconciler) MarkPaid(ctx context.Context, invoice string) (Outcome, error) {
	if strings.TrimSpace(invoice) == "" {
		return "", apperr.New(apperr.KindValidation, "missing invoice")
	}
	outcome, err := r.Apply(ctx, Event{
		Gateway:       GatewayManual,
		ExternalID:    invoice,
		Status:        "PAID",
		TransactionID: GatewayManual + "-" + r.now().UTC().Format("20060102150405"),
	})
	if err != nil {
		return "", err
	}
	if outcome == OutcomeNotFound {
		return "", apperr.New(apperr.KindRecordNotFound, "checkout %s not found", invoice)
	}
	return outcome, nil
}

func (r *Reconciler) findCheckout(ctx context.Context, externalID string) (*models.Checkout, error) {
	checkout, err := r.store.FindCheckoutByExternalID(ctx, externalID)
	if err != nil {
		if apperr.Is(err, apperr.KindRecordNotFound) {
			log.Warn().Str("externalId", externalID).Msg("event for unknown checkout acknowledged")
		}
		return nil, err
	}
	return checkout, nil
}

func (r *Reconciler) applyPaid(ctx context.Context, ev Event) (Outcome, error) {
	checkout, err := r.findCheckout(ctx, ev.ExternalID)
	if apperr.Is(err, apperr.KindRecordNotFound) {
		return OutcomeNotFound, nil
	}
	if err != nil {
		return "", err
	}
	if ev.Amount > 0 && ev.Amount != checkout.TotalPrice {
		log.Warn().Str("externalId", ev.ExternalID).Int64("reported", ev.Amount).Int64("expected", checkout.TotalPrice).Msg("gateway amount differs from checkout total")
	}

	checkout, checkoutMoved, err := r.store.TransitionCheckout(ctx, ev.ExternalID,
		[]models.CheckoutStatus{models.CheckoutPending, models.CheckoutExpired}, models.CheckoutPaid)
	if err != nil {
		return "", err
	}

	order, err := r.resolveOrder(ctx, checkout, ev.OrderRef)
	if err != nil {
		return "", err
	}
	var orderID primitive.ObjectID
	if order != nil {
		orderID = order.ID
	}

	_, paymentMoved, err := r.store.MarkPaymentPaid(ctx, store.PaidPayment{
		CheckoutID:    checkout.ID,
		OrderID:       orderID,
		Amount:        checkout.TotalPrice,
		Gateway:       ev.Gateway,
		TransactionID: ev.TransactionID,
		RawPayload:    ev.Raw,
		At:            r.now().UTC(),
	})
	if err != nil {
		return "", err
	}

	orderMoved := false
	if order != nil {
		order, orderMoved, err = r.store.TransitionOrder(ctx, order.ID,
			[]models.OrderStatus{models.OrderWaitingPayment, models.OrderCancelled}, models.OrderPaid)
		if err != nil {
			return "", err
		}
	}

	if !checkoutMoved && !paymentMoved && !orderMoved {
		return OutcomeDuplicate, nil
	}
	if orderMoved || (order == nil && checkoutMoved) {
		r.announce(ctx, events.KeyPaymentPaid, ev.Gateway, checkout, order, true)
	}
	return OutcomeApplied, nil
}

func (r *Reconciler) applyExpired(ctx context.Context, ev Event) (Outcome, error) {
	checkout, err := r.findCheckout(ctx, ev.ExternalID)
	if apperr.Is(err, apperr.KindRecordNotFound) {
		return OutcomeNotFound, nil
	}
	if err != nil {
		return "", err
	}
	if checkout.Status == models.CheckoutPaid {
		return OutcomeStale, nil
	}

	order, err := r.resolveOrder(ctx, checkout, ev.OrderRef)
	if err != nil {
		return "", err
	}
	if order != nil && order.Status == models.OrderPaid {
		return OutcomeStale, nil
	}

	checkout, checkoutMoved, err := r.store.TransitionCheckout(ctx, ev.ExternalID,
		[]models.CheckoutStatus{models.CheckoutPending}, models.CheckoutExpired)
	if err != nil {
		return "", err
	}
	if checkout.Status == models.CheckoutPaid {
		// A success landed between the read and the transition.
		return OutcomeStale, nil
	}

	paymentMoved, err := r.store.TransitionPayment(ctx, checkout.ID,
		[]models.PaymentStatus{models.PaymentPending}, models.PaymentFailed)
	if err != nil {
		return "", err
	}

	orderMoved := false
	if order != nil {
		order, orderMoved, err = r.store.TransitionOrder(ctx, order.ID,
			[]models.OrderStatus{models.OrderWaitingPayment}, models.OrderCancelled)
		if err != nil {
			return "", err
		}
	}

	if !checkoutMoved && !paymentMoved && !orderMoved {
		return OutcomeDuplicate, nil
	}
	if checkoutMoved {
		r.announce(ctx, events.KeyPaymentExpired, ev.Gateway, checkout, order, false)
	}
	return OutcomeApplied, nil
}

// resolveOrder finds the order a checkout pays for: the payment's link first, then the
// checkout's, then whatever the gateway payload carried. A nil order is not an error.
func (r *Reconciler) resolveOrder(ctx context.Context, checkout *models.Checkout, payloadRef string) (*models.Order, error) {
	var candidates []primitive.ObjectID

	payment, err := r.store.FindPaymentByCheckout(ctx, checkout.ID)
	switch {
	case err == nil:
		if !payment.OrderID.IsZero() {
			candidates = append(candidates, payment.OrderID)
		}
	case !apperr.Is(err, apperr.KindRecordNotFound):
		return nil, err
	}
	if !checkout.OrderID.IsZero() {
		candidates = append(candidates, checkout.OrderID)
	}

	for _, id := range candidates {
		order, err := r.store.FindOrderByID(ctx, id)
		if err == nil {
			return order, nil
		}
		if !apperr.Is(err, apperr.KindRecordNotFound) {
			return nil, err
		}
	}

	return r.orderFromPayload(ctx, payloadRef)
}

func (r *Reconciler) orderFromPayload(ctx context.Context, ref string) (*models.Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}

	var (
		order *models.Order
		err   error
	)
	if id, perr := primitive.ObjectIDFromHex(ref); perr == nil {
		order, err = r.store.FindOrderByID(ctx, id)
	} else {
		order, err = r.store.FindOrderByNumber(ctx, ref)
	}
	if apperr.Is(err, apperr.KindRecordNotFound) {
		return nil, nil
	}
	return order, err
}

// announce runs the best-effort side effects of a first transition. Failures are logged and
// never change the reconciliation result.
func (r *Reconciler) announce(ctx context.Context, key, gateway string, checkout *models.Checkout, order *models.Order, notifyCustomer bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	name, phone, amount, number := checkout.CustomerName, checkout.CustomerWhatsapp, checkout.TotalPrice, checkout.ExternalID
	if order != nil {
		number = order.OrderNumber
		if order.CustomerName != "" {
			name = order.CustomerName
		}
		if order.CustomerPhone != "" {
			phone = order.CustomerPhone
		}
		if order.TotalAmount > 0 {
			amount = order.TotalAmount
		}
	}

	ev := events.PaymentEvent{ExternalID: checkout.ExternalID, OrderNumber: number, Amount: amount, Gateway: gateway, At: r.now().UTC()}
	if order == nil {
		ev.OrderNumber = ""
	}
	if err := r.publisher.Publish(ctx, key, ev); err != nil {
		log.Warn().Err(err).Str("kind", string(apperr.KindNotificationFailed)).Str("externalId", checkout.ExternalID).Msg("event publish failed")
	}

	if !notifyCustomer {
		return
	}
	if phone == "" {
		log.Info().Str("externalId", checkout.ExternalID).Msg("no customer phone, skipping notification")
		return
	}
	receipt, err := r.notifier.Send(ctx, phone, r.templateID, notify.PaymentTemplateVars(name, amount, number))
	if err != nil {
		log.Warn().Err(err).Str("kind", string(apperr.KindNotificationFailed)).Str("externalId", checkout.ExternalID).Msg("payment notification failed")
		return
	}
	log.Info().Str("externalId", checkout.ExternalID).Str("sid", receipt.MessageID).Msg("payment notification sent")
}
