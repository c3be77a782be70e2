package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/allisson/orders/internal/database"
	apperrors "github.com/allisson/orders/internal/errors"
	"github.com/allisson/orders/internal/order/domain"
)

// OrdersCollection is the MongoDB collection holding orders.
const OrdersCollection = "orders"

type orderDocument struct {
	ID         string       `bson:"_id"`
	CustomerID string       `bson:"customerId"`
	Items      []itemRecord `bson:"items"`
	Status     string       `bson:"status"`
	CreatedAt  time.Time    `bson:"createdAt"`
	UpdatedAt  time.Time    `bson:"updatedAt"`
}

func toOrderDocument(order *domain.Order) orderDocument {
	return orderDocument{
		ID:         order.ID.String(),
		CustomerID: order.CustomerID.String(),
		Items:      toItemRecords(order.Items),
		Status:     string(order.Status),
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
}

func (d orderDocument) toDomain() (*domain.Order, error) {
	items, err := fromItemRecords(d.Items)
	if err != nil {
		return nil, err
	}
	return domain.RestoreOrder(
		domain.OrderID(d.ID),
		domain.CustomerID(d.CustomerID),
		items,
		domain.OrderStatus(d.Status),
		d.CreatedAt.UTC(),
		d.UpdatedAt.UTC(),
	), nil
}

// MongoDBOrderRepository implements Order persistence for MongoDB.
type MongoDBOrderRepository struct {
	collection *mongo.Collection
}

// NewMongoDBOrderRepository creates a new MongoDB Order repository instance.
func NewMongoDBOrderRepository(db *mongo.Database) *MongoDBOrderRepository {
	return &MongoDBOrderRepository{collection: db.Collection(OrdersCollection)}
}

// EnsureIndexes creates the secondary indexes used by the repository.
func (r *MongoDBOrderRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "customerId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to create orders indexes")
	}
	return nil
}

func (r *MongoDBOrderRepository) Save(ctx context.Context, tx database.Tx, order *domain.Order) error {
	ctx = database.MongoContext(ctx, tx)

	if _, err := r.collection.InsertOne(ctx, toOrderDocument(order)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "order already exists")
		}
		return apperrors.Wrap(err, "failed to create order")
	}
	return nil
}

func (r *MongoDBOrderRepository) FindByID(
	ctx context.Context,
	tx database.Tx,
	id domain.OrderID,
) (*domain.Order, error) {
	ctx = database.MongoContext(ctx, tx)

	var doc orderDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get order by id")
	}
	return doc.toDomain()
}

func (r *MongoDBOrderRepository) FindByCustomerID(
	ctx context.Context,
	tx database.Tx,
	customerID domain.CustomerID,
) ([]*domain.Order, error) {
	ctx = database.MongoContext(ctx, tx)

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"customerId": customerID.String()}, opts)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list orders by customer")
	}

	var docs []orderDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode orders")
	}

	orders := make([]*domain.Order, 0, len(docs))
	for _, doc := range docs {
		order, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (r *MongoDBOrderRepository) Update(ctx context.Context, tx database.Tx, order *domain.Order) error {
	ctx = database.MongoContext(ctx, tx)

	update := bson.M{"$set": bson.M{
		"items":     toItemRecords(order.Items),
		"status":    string(order.Status),
		"updatedAt": order.UpdatedAt,
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": order.ID.String()}, update)
	if err != nil {
		return apperrors.Wrap(err, "failed to update order")
	}
	if result.MatchedCount == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *MongoDBOrderRepository) Delete(ctx context.Context, tx database.Tx, id domain.OrderID) error {
	ctx = database.MongoContext(ctx, tx)

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return apperrors.Wrap(err, "failed to delete order")
	}
	if result.DeletedCount == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
