// Package events publishes reconciled payment transitions to a message broker.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/markjakearzadon/paygate-gobackend/internal/apperr"
)

const (
	KeyPaymentPaid    = "payment.paid"
	KeyPaymentExpired = "payment.expired"

	DefaultExchange = "payments"
)

// PaymentEvent is the body published for every payment transition.
type PaymentEvent struct {
	ExternalID  string    `json:"externalId"`
	OrderNumber string    `json:"orderNumber,omitempty"`
	Amount      int64     `json:"amount"`
	Gateway     string    `json:"gateway"`
	At          time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, v any) error
}

// Rabbit publishes JSON messages to a durable topic exchange.
type Rabbit struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewRabbit(url, exchange string) (*Rabbit, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "rabbitmq dial failed")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, apperr.Wrap(apperr.KindInternal, err, "rabbitmq channel failed")
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, apperr.Wrap(apperr.KindInternal, err, "rabbitmq exchange declare failed")
	}
	log.Info().Str("exchange", exchange).Msg("rabbitmq publisher ready")
	return &Rabbit{conn: conn, ch: ch, exchange: exchange}, nil
}

// Publish is safe for concurrent use; amqp channels are not.
func (r *Rabbit) Publish(ctx context.Context, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "failed to encode event %s", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	err = r.ch.PublishWithContext(ctx, r.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return apperr.Wrap(apperr.KindNotificationFailed, err, "publish %s failed", key)
	}
	return nil
}

func (r *Rabbit) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.ch.Close()
	return r.conn.Close()
}

type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Recorded
}

type Recorded struct {
	Key  string
	Body any
}

func (r *Recorder) Publish(_ context.Context, key string, v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Recorded{Key: key, Body: v})
	return nil
}

func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		keys = append(keys, e.Key)
	}
	return keys
}
