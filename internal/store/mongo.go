package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/markjakearzadon/paygate-gobackend/internal/apperr"
	"github.com/markjakearzadon/paygate-gobackend/internal/models"
)

type MongoStore struct {
	db      *mongo.Database
	timeout time.Duration
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db, timeout: 5 * time.Second}
}

func (s *MongoStore) c(name string) *mongo.Collection { return s.db.Collection(name) }

// EnsureIndexes creates the unique join keys the reconciliation relies on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	specs := map[string][]mongo.IndexModel{
		CollectionCheckouts: {
			{Keys: bson.D{{Key: "externalId", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		CollectionOrders: {
			{Keys: bson.D{{Key: "orderNumber", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		CollectionPayments: {
			{Keys: bson.D{{Key: "checkout", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "order", Value: 1}}},
		},
		CollectionUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		},
	}
	for coll, idx := range specs {
		if _, err := s.c(coll).Indexes().CreateMany(ctx, idx); err != nil {
			log.Error().Err(err).Str("collection", coll).Msg("failed to create indexes")
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.Wrap(apperr.KindRecordNotFound, err, format, args...)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func (s *MongoStore) CreateOrder(ctx context.Context, order *models.Order) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now().UTC()
	order.ID = primitive.NewObjectID()
	order.CreatedAt, order.UpdatedAt = now, now
	if _, err := s.c(CollectionOrders).InsertOne(ctx, order); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Wrap(apperr.KindConflict, err, "order %s already exists", order.OrderNumber)
		}
		return fmt.Errorf("failed to save order %s: %w", order.OrderNumber, err)
	}
	return nil
}

func (s *MongoStore) DeleteOrder(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.c(CollectionOrders).DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *MongoStore) FindOrderByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var order models.Order
	if err := s.c(CollectionOrders).FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		return nil, notFound(err, "order %s not found", id.Hex())
	}
	return &order, nil
}

func (s *MongoStore) FindOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var order models.Order
	if err := s.c(CollectionOrders).FindOne(ctx, bson.M{"orderNumber": orderNumber}).Decode(&order); err != nil {
		return nil, notFound(err, "order %s not found", orderNumber)
	}
	return &order, nil
}

func (s *MongoStore) ListOrders(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := bson.M{}
	if status != "" {
		query["status"] = status
	}
	cur, err := s.c(CollectionOrders).Find(ctx, query, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch orders: %w", err)
	}
	defer cur.Close(ctx)

	orders := []models.Order{}
	if err := cur.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

func (s *MongoStore) TransitionOrder(ctx context.Context, id primitive.ObjectID, from []models.OrderStatus, to models.OrderStatus) (*models.Order, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now().UTC()
	set := bson.M{"status": to, "updatedAt": now}
	if to == models.OrderPaid {
		set["paidAt"] = now
	}

	var order models.Order
	err := s.c(CollectionOrders).FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&order)
	if err == nil {
		return &order, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("failed to update order %s: %w", id.Hex(), err)
	}

	current, err := s.FindOrderByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (s *MongoStore) CreateCheckout(ctx context.Context, checkout *models.Checkout) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now().UTC()
	checkout.ID = primitive.NewObjectID()
	checkout.CreatedAt, checkout.UpdatedAt = now, now
	if _, err := s.c(CollectionCheckouts).InsertOne(ctx, checkout); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Wrap(apperr.KindConflict, err, "checkout %s already exists", checkout.ExternalID)
		}
		return fmt.Errorf("failed to save checkout %s: %w", checkout.ExternalID, err)
	}
	return nil
}

func (s *MongoStore) AttachIntent(ctx context.Context, checkoutID primitive.ObjectID, invoiceID, invoiceURL string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.c(CollectionCheckouts).UpdateOne(ctx, bson.M{"_id": checkoutID}, bson.M{"$set": bson.M{
		"gatewayInvoiceId": invoiceID,
		"invoiceUrl":       invoiceURL,
		"updatedAt":        time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("failed to attach invoice to checkout %s: %w", checkoutID.Hex(), err)
	}
	return nil
}

func (s *MongoStore) FindCheckoutByExternalID(ctx context.Context, externalID string) (*models.Checkout, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var checkout models.Checkout
	if err := s.c(CollectionCheckouts).FindOne(ctx, bson.M{"externalId": externalID}).Decode(&checkout); err != nil {
		return nil, notFound(err, "checkout %s not found", externalID)
	}
	return &checkout, nil
}

func (s *MongoStore) TransitionCheckout(ctx context.Context, externalID string, from []models.CheckoutStatus, to models.CheckoutStatus) (*models.Checkout, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var checkout models.Checkout
	err := s.c(CollectionCheckouts).FindOneAndUpdate(ctx,
		bson.M{"externalId": externalID, "status": bson.M{"$in": from}},
		bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&checkout)
	if err == nil {
		return &checkout, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("failed to update checkout %s: %w", externalID, err)
	}

	current, err := s.FindCheckoutByExternalID(ctx, externalID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (s *MongoStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now().UTC()
	payment.ID = primitive.NewObjectID()
	payment.CreatedAt, payment.UpdatedAt = now, now
	if _, err := s.c(CollectionPayments).InsertOne(ctx, payment); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Wrap(apperr.KindConflict, err, "payment for checkout %s already exists", payment.CheckoutID.Hex())
		}
		return fmt.Errorf("failed to save payment for checkout %s: %w", payment.CheckoutID.Hex(), err)
	}
	return nil
}

func (s *MongoStore) FindPaymentByCheckout(ctx context.Context, checkoutID primitive.ObjectID) (*models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var payment models.Payment
	if err := s.c(CollectionPayments).FindOne(ctx, bson.M{"checkout": checkoutID}).Decode(&payment); err != nil {
		return nil, notFound(err, "payment for checkout %s not found", checkoutID.Hex())
	}
	return &payment, nil
}

func (s *MongoStore) MarkPaymentPaid(ctx context.Context, p PaidPayment) (*models.Payment, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	set := bson.M{
		"status":               models.PaymentPaid,
		"gatewayTransactionId": p.TransactionID,
		"rawPayload":           p.RawPayload,
		"paidAt":               p.At,
		"updatedAt":            p.At,
	}
	if !p.OrderID.IsZero() {
		set["order"] = p.OrderID
	}

	var payment models.Payment
	err := s.c(CollectionPayments).FindOneAndUpdate(ctx,
		bson.M{"checkout": p.CheckoutID, "status": bson.M{"$ne": models.PaymentPaid}},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&payment)
	if err == nil {
		return &payment, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("failed to update payment for checkout %s: %w", p.CheckoutID.Hex(), err)
	}

	// Either no row exists yet, or it is already PAID. $setOnInsert leaves a PAID row alone.
	insert := bson.M{
		"checkout":             p.CheckoutID,
		"amount":               p.Amount,
		"status":               models.PaymentPaid,
		"gateway":              p.Gateway,
		"gatewayTransactionId": p.TransactionID,
		"rawPayload":           p.RawPayload,
		"paidAt":               p.At,
		"createdAt":            p.At,
		"updatedAt":            p.At,
	}
	if !p.OrderID.IsZero() {
		insert["order"] = p.OrderID
	}
	res, err := s.c(CollectionPayments).UpdateOne(ctx,
		bson.M{"checkout": p.CheckoutID},
		bson.M{"$setOnInsert": insert},
		options.Update().SetUpsert(true),
	)
	changed := false
	switch {
	case err == nil:
		changed = res.UpsertedCount == 1
	case mongo.IsDuplicateKeyError(err):
		// a concurrent delivery inserted it first
	default:
		return nil, false, fmt.Errorf("failed to upsert payment for checkout %s: %w", p.CheckoutID.Hex(), err)
	}

	current, err := s.FindPaymentByCheckout(ctx, p.CheckoutID)
	if err != nil {
		return nil, false, err
	}
	return current, changed, nil
}

func (s *MongoStore) TransitionPayment(ctx context.Context, checkoutID primitive.ObjectID, from []models.PaymentStatus, to models.PaymentStatus) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.c(CollectionPayments).UpdateOne(ctx,
		bson.M{"checkout": checkoutID, "status": bson.M{"$in": from}},
		bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update payment for checkout %s: %w", checkoutID.Hex(), err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *MongoStore) FindProducts(ctx context.Context, ids []string) (map[string]models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
		if err != nil {
			return nil, apperr.New(apperr.KindValidation, "invalid product id %q", id)
		}
		oids = append(oids, oid)
	}

	cur, err := s.c(CollectionProducts).Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	defer cur.Close(ctx)

	var products []models.Product
	if err := cur.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	out := make(map[string]models.Product, len(products))
	for _, p := range products {
		out[p.ID.Hex()] = p
	}
	return out, nil
}

func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var user models.User
	if err := s.c(CollectionUsers).FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, notFound(err, "user %s not found", email)
	}
	return &user, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user.ID = primitive.NewObjectID()
	if _, err := s.c(CollectionUsers).InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Wrap(apperr.KindConflict, err, "user %s already exists", user.Email)
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}
