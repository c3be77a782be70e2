package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/allisson/orders/internal/database"
	apperrors "github.com/allisson/orders/internal/errors"
	"github.com/allisson/orders/internal/outbox/domain"
)

// OutboxCollection is the MongoDB collection holding outbox events.
const OutboxCollection = "outbox_events"

// outboxDocument keeps the payload as the original JSON text so it round-trips byte for byte.
type outboxDocument struct {
	ID            string     `bson:"_id"`
	AggregateID   string     `bson:"aggregateId"`
	EventType     string     `bson:"eventType"`
	Payload       string     `bson:"payload"`
	Status        string     `bson:"status"`
	RetryCount    int        `bson:"retryCount"`
	FailureReason *string    `bson:"failureReason"`
	ProcessedAt   *time.Time `bson:"processedAt"`
	CreatedAt     time.Time  `bson:"createdAt"`
	UpdatedAt     time.Time  `bson:"updatedAt"`
}

func toOutboxDocument(event *domain.OutboxEvent) outboxDocument {
	return outboxDocument{
		ID:            event.ID.String(),
		AggregateID:   event.AggregateID,
		EventType:     string(event.EventType),
		Payload:       string(event.Payload),
		Status:        string(event.Status),
		RetryCount:    event.RetryCount,
		FailureReason: event.FailureReason,
		ProcessedAt:   event.ProcessedAt,
		CreatedAt:     event.CreatedAt,
		UpdatedAt:     event.UpdatedAt,
	}
}

func (d outboxDocument) toDomain() (*domain.OutboxEvent, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, "invalid outbox event id")
	}

	event := &domain.OutboxEvent{
		ID:            id,
		AggregateID:   d.AggregateID,
		EventType:     domain.EventType(d.EventType),
		Payload:       []byte(d.Payload),
		Status:        domain.OutboxEventStatus(d.Status),
		RetryCount:    d.RetryCount,
		FailureReason: d.FailureReason,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
	if d.ProcessedAt != nil {
		processedAt := d.ProcessedAt.UTC()
		event.ProcessedAt = &processedAt
	}
	return event, nil
}

// MongoDBOutboxEventRepository handles outbox event persistence for MongoDB.
type MongoDBOutboxEventRepository struct {
	collection *mongo.Collection
}

// NewMongoDBOutboxEventRepository creates a new MongoDBOutboxEventRepository
func NewMongoDBOutboxEventRepository(db *mongo.Database) *MongoDBOutboxEventRepository {
	return &MongoDBOutboxEventRepository{collection: db.Collection(OutboxCollection)}
}

// EnsureIndexes creates the indexes used by the dispatcher and the admin queries.
func (r *MongoDBOutboxEventRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "aggregateId", Value: 1}, {Key: "createdAt", Value: 1}}},
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to create outbox indexes")
	}
	return nil
}

func (r *MongoDBOutboxEventRepository) Save(ctx context.Context, tx database.Tx, event *domain.OutboxEvent) error {
	ctx = database.MongoContext(ctx, tx)

	if _, err := r.collection.InsertOne(ctx, toOutboxDocument(event)); err != nil {
		return apperrors.Wrap(err, "failed to create outbox event")
	}
	return nil
}

func (r *MongoDBOutboxEventRepository) FindByID(
	ctx context.Context,
	tx database.Tx,
	id uuid.UUID,
) (*domain.OutboxEvent, error) {
	ctx = database.MongoContext(ctx, tx)

	var doc outboxDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrOutboxEventNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get outbox event by id")
	}
	return doc.toDomain()
}

func (r *MongoDBOutboxEventRepository) FindPending(
	ctx context.Context,
	tx database.Tx,
	limit int,
) ([]*domain.OutboxEvent, error) {
	return r.FindByStatus(ctx, tx, domain.OutboxEventStatusPending, limit)
}

func (r *MongoDBOutboxEventRepository) FindByStatus(
	ctx context.Context,
	tx database.Tx,
	status domain.OutboxEventStatus,
	limit int,
) ([]*domain.OutboxEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	return r.find(ctx, tx, bson.M{"status": string(status)}, opts)
}

// FindRetryable retrieves up to limit FAILED events of a known type whose retryCount is below
// maxRetries, oldest first.
func (r *MongoDBOutboxEventRepository) FindRetryable(
	ctx context.Context,
	tx database.Tx,
	maxRetries int,
	limit int,
) ([]*domain.OutboxEvent, error) {
	eventTypes := make([]string, 0, len(domain.EventTypes()))
	for _, eventType := range domain.EventTypes() {
		eventTypes = append(eventTypes, string(eventType))
	}

	filter := bson.M{
		"status":     string(domain.OutboxEventStatusFailed),
		"retryCount": bson.M{"$lt": maxRetries},
		"eventType":  bson.M{"$in": eventTypes},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	return r.find(ctx, tx, filter, opts)
}

func (r *MongoDBOutboxEventRepository) FindByAggregateID(
	ctx context.Context,
	tx database.Tx,
	aggregateID string,
) ([]*domain.OutboxEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, tx, bson.M{"aggregateId": aggregateID}, opts)
}

func (r *MongoDBOutboxEventRepository) Update(ctx context.Context, tx database.Tx, event *domain.OutboxEvent) error {
	update := bson.M{"$set": bson.M{
		"status":        string(event.Status),
		"retryCount":    event.RetryCount,
		"failureReason": event.FailureReason,
		"processedAt":   event.ProcessedAt,
		"updatedAt":     event.UpdatedAt,
	}}
	return r.updateOne(ctx, tx, event.ID, update, "failed to update outbox event")
}

func (r *MongoDBOutboxEventRepository) Delete(ctx context.Context, tx database.Tx, id uuid.UUID) error {
	ctx = database.MongoContext(ctx, tx)

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return apperrors.Wrap(err, "failed to delete outbox event")
	}
	if result.DeletedCount == 0 {
		return domain.ErrOutboxEventNotFound
	}
	return nil
}

func (r *MongoDBOutboxEventRepository) MarkAsProcessed(ctx context.Context, tx database.Tx, id uuid.UUID) error {
	now := domain.Now()
	update := bson.M{"$set": bson.M{
		"status":        string(domain.OutboxEventStatusProcessed),
		"processedAt":   now,
		"failureReason": nil,
		"updatedAt":     now,
	}}
	return r.updateOne(ctx, tx, id, update, "failed to mark outbox event as processed")
}

func (r *MongoDBOutboxEventRepository) MarkAsFailed(
	ctx context.Context,
	tx database.Tx,
	id uuid.UUID,
	reason string,
) error {
	update := bson.M{
		"$set": bson.M{
			"status":        string(domain.OutboxEventStatusFailed),
			"failureReason": reason,
			"updatedAt":     domain.Now(),
		},
		"$inc": bson.M{"retryCount": 1},
	}
	return r.updateOne(ctx, tx, id, update, "failed to mark outbox event as failed")
}

func (r *MongoDBOutboxEventRepository) CountByStatus(
	ctx context.Context,
	tx database.Tx,
) (map[domain.OutboxEventStatus]int64, error) {
	ctx = database.MongoContext(ctx, tx)

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count outbox events")
	}

	var groups []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode outbox event counts")
	}

	counts := emptyCounts()
	for _, group := range groups {
		counts[domain.OutboxEventStatus(group.Status)] = group.Count
	}
	return counts, nil
}

func (r *MongoDBOutboxEventRepository) updateOne(
	ctx context.Context,
	tx database.Tx,
	id uuid.UUID,
	update bson.M,
	failure string,
) error {
	ctx = database.MongoContext(ctx, tx)

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id.String()}, update)
	if err != nil {
		return apperrors.Wrap(err, failure)
	}
	if result.MatchedCount == 0 {
		return domain.ErrOutboxEventNotFound
	}
	return nil
}

func (r *MongoDBOutboxEventRepository) find(
	ctx context.Context,
	tx database.Tx,
	filter bson.M,
	opts *options.FindOptionsBuilder,
) ([]*domain.OutboxEvent, error) {
	ctx = database.MongoContext(ctx, tx)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query outbox events")
	}

	var docs []outboxDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode outbox events")
	}

	events := make([]*domain.OutboxEvent, 0, len(docs))
	for _, doc := range docs {
		event, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}
