// Package audit records order lifecycle events and operational alerts.
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityCritical Severity = "critical"
)

// Actions.
const (
	ActionOrderCreated       = "order.created"
	ActionOrderStatusChanged = "order.status_changed"
	ActionProductDeleted     = "product.deleted"
	ActionUserDeleted        = "user.deleted"
	ActionSettingsUpdated    = "settings.updated"
	// ActionPaymentWithoutOrder means money was captured but no order exists.
	// Support reconciles these by hand.
	ActionPaymentWithoutOrder = "payment.captured_without_order"
)

type Event struct {
	Action   string
	EntityID string
	UserID   string
	Severity Severity
	Data     map[string]interface{}
}

type Sink interface {
	Record(ctx context.Context, e Event) error
}

// LogSink writes events to the process log only.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(_ context.Context, e Event) error {
	fields := []zap.Field{
		zap.String("action", e.Action),
		zap.String("entity_id", e.EntityID),
		zap.String("user_id", e.UserID),
		zap.Any("data", e.Data),
	}
	if e.Severity == SeverityCritical {
		s.logger.Error("audit alert", fields...)
		return nil
	}
	s.logger.Info("audit event", fields...)
	return nil
}

// AuditLog is the stored document.
type AuditLog struct {
	ID        string    `bson:"_id,omitempty"`
	Service   string    `bson:"service"`
	Action    string    `bson:"action"`
	EntityID  string    `bson:"entity_id"`
	UserID    string    `bson:"user_id,omitempty"`
	Severity  string    `bson:"severity"`
	Data      bson.M    `bson:"data"`
	CreatedAt time.Time `bson:"created_at"`
}

// MongoSink persists events to a collection. Failed writes are still logged
// so an alert is never lost silently.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
	fallback   *LogSink
}

func NewMongoSink(ctx context.Context, uri, database, collection string, logger *zap.Logger) (*MongoSink, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return newMongoSink(client, client.Database(database).Collection(collection), logger), nil
}

func newMongoSink(client *mongo.Client, collection *mongo.Collection, logger *zap.Logger) *MongoSink {
	return &MongoSink{
		client:     client,
		collection: collection,
		fallback:   NewLogSink(logger),
	}
}

func (s *MongoSink) Record(ctx context.Context, e Event) error {
	doc := toDocument(e, time.Now().UTC())
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		_ = s.fallback.Record(ctx, e)
		return err
	}
	if e.Severity == SeverityCritical {
		_ = s.fallback.Record(ctx, e)
	}
	return nil
}

// Recent returns the latest events for an entity, newest first.
func (s *MongoSink) Recent(ctx context.Context, entityID string, limit int64) ([]*AuditLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cursor, err := s.collection.Find(ctx, bson.M{"entity_id": entityID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []*AuditLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func toDocument(e Event, now time.Time) *AuditLog {
	severity := e.Severity
	if severity == "" {
		severity = SeverityInfo
	}
	data := bson.M{}
	for k, v := range e.Data {
		data[k] = v
	}
	return &AuditLog{
		Service:   "storefront",
		Action:    e.Action,
		EntityID:  e.EntityID,
		UserID:    e.UserID,
		Severity:  string(severity),
		Data:      data,
		CreatedAt: now,
	}
}
