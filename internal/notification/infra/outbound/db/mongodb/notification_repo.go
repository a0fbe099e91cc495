package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	notificationDomain "github.com/davicafu/passport-notifier/internal/notification/domain"
	sharedDomain "github.com/davicafu/passport-notifier/internal/shared/domain"
	sharedEvents "github.com/davicafu/passport-notifier/internal/shared/events"
	sharedQuery "github.com/davicafu/passport-notifier/internal/shared/infra/platform/query"
)

const collectionName = "notifications"

// Nombres neutrales de campo -> claves BSON.
var fieldKeys = map[string]string{
	notificationDomain.FieldIsActive:        "isActive",
	notificationDomain.FieldStatus:          "status",
	notificationDomain.FieldChannel:         "type",
	notificationDomain.FieldRecipientUserID: "recipientId",
	notificationDomain.FieldCreatedAt:       "createdAt",
	"updated_at":                            "updatedAt",
	"priority":                              "priority",
}

// NotificationRepoMongoDB implementa NotificationRepository para MongoDB.
type NotificationRepoMongoDB struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Verificación estática
var _ notificationDomain.NotificationRepository = (*NotificationRepoMongoDB)(nil)

// Connect abre el cliente a partir de la URI.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("could not connect to mongoDB: %w", err)
	}
	return client, nil
}

// NewNotificationRepoMongoDB es el constructor del repositorio.
func NewNotificationRepoMongoDB(ctx context.Context, client *mongo.Client, dbName string) (*NotificationRepoMongoDB, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}

	return &NotificationRepoMongoDB{
		client: client,
		coll:   client.Database(dbName).Collection(collectionName),
	}, nil
}

// EnsureIndexes crea los índices de los listados habituales.
func (r *NotificationRepoMongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "type", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create notification indexes: %w", err)
	}
	return nil
}

// --- Structs de BSON para el mapeo ---
// Se definen localmente para no "contaminar" el dominio con tags de BSON.

type mongoNotification struct {
	ID              string                 `bson:"_id"`
	Channel         string                 `bson:"type"`
	EventType       string                 `bson:"eventType"`
	Title           string                 `bson:"title"`
	Message         string                 `bson:"message"`
	RecipientUserID string                 `bson:"recipientId"`
	RecipientEmail  string                 `bson:"recipientEmail"`
	Priority        string                 `bson:"priority"`
	Status          string                 `bson:"status"`
	Metadata        map[string]interface{} `bson:"metadata"`
	RetryCount      int                    `bson:"retryCount"`
	MaxRetries      int                    `bson:"maxRetries"`
	SentAt          *time.Time             `bson:"sentAt"`
	ReadAt          *time.Time             `bson:"readAt"`
	IsActive        bool                   `bson:"isActive"`
	CreatedAt       time.Time              `bson:"createdAt"`
	UpdatedAt       time.Time              `bson:"updatedAt"`
}

// --- CRUD ---

func (r *NotificationRepoMongoDB) Create(ctx context.Context, n *notificationDomain.Notification) error {
	if _, err := r.coll.InsertOne(ctx, toMongoNotification(n)); err != nil {
		return fmt.Errorf("mongo insert error: %w", err)
	}
	return nil
}

func (r *NotificationRepoMongoDB) Update(ctx context.Context, n *notificationDomain.Notification) error {
	mn := toMongoNotification(n)
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": mn.ID}, mn)
	if err != nil {
		return fmt.Errorf("mongo update error: %w", err)
	}
	if res.MatchedCount == 0 {
		return notificationDomain.ErrNotFound
	}
	return nil
}

// --- Lectura ---

func (r *NotificationRepoMongoDB) GetByID(ctx context.Context, id uuid.UUID) (*notificationDomain.Notification, error) {
	var mn mongoNotification
	err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&mn)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notificationDomain.ErrNotFound
		}
		return nil, err
	}
	return fromMongoNotification(&mn)
}

func (r *NotificationRepoMongoDB) List(
	ctx context.Context,
	criteria sharedDomain.Criteria,
	pagination sharedQuery.OffsetPagination,
	sort sharedQuery.Sort,
) ([]*notificationDomain.Notification, int, error) {
	filter, err := criteriaToMongoFilter(criteria)
	if err != nil {
		return nil, 0, err
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	key, ok := fieldKeys[sort.Field]
	if !ok {
		key, sort = "createdAt", sharedQuery.NewestFirst
	}
	sortDir := 1 // Ascendente por defecto
	if sort.Desc {
		sortDir = -1 // Descendente
	}

	limit := pagination.Limit
	if limit <= 0 {
		limit = sharedQuery.DefaultLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: key, Value: sortDir}, {Key: "_id", Value: sortDir}}).
		SetSkip(int64(pagination.Offset)).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var list []*notificationDomain.Notification
	for cursor.Next(ctx) {
		var mn mongoNotification
		if err := cursor.Decode(&mn); err != nil {
			return nil, 0, err
		}
		n, err := fromMongoNotification(&mn)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, n)
	}
	return list, int(total), cursor.Err()
}

func (r *NotificationRepoMongoDB) CountByStatus(ctx context.Context, criteria sharedDomain.Criteria) (map[notificationDomain.Status]int, error) {
	filter, err := criteriaToMongoFilter(criteria)
	if err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := make(map[notificationDomain.Status]int)
	for cursor.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			Count  int    `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		counts[notificationDomain.Status(row.Status)] = row.Count
	}
	return counts, cursor.Err()
}

// --- Helpers de Mapeo y Conversión ---

func toMongoNotification(n *notificationDomain.Notification) *mongoNotification {
	meta := n.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	return &mongoNotification{
		ID: n.ID.String(), Channel: string(n.Channel), EventType: string(n.EventType),
		Title: n.Title, Message: n.Body, RecipientUserID: n.RecipientUserID, RecipientEmail: n.RecipientEmail,
		Priority: string(n.Priority), Status: string(n.Status), Metadata: meta,
		RetryCount: n.RetryCount, MaxRetries: n.MaxRetries, SentAt: n.SentAt, ReadAt: n.ReadAt,
		IsActive: n.IsActive, CreatedAt: n.CreatedAt, UpdatedAt: n.UpdatedAt,
	}
}

func fromMongoNotification(mn *mongoNotification) (*notificationDomain.Notification, error) {
	id, err := uuid.Parse(mn.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID in document: %w", err)
	}
	meta := mn.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	return &notificationDomain.Notification{
		ID: id, Channel: notificationDomain.Channel(mn.Channel), EventType: sharedEvents.EventType(mn.EventType),
		Title: mn.Title, Body: mn.Message, RecipientUserID: mn.RecipientUserID, RecipientEmail: mn.RecipientEmail,
		Priority: notificationDomain.Priority(mn.Priority), Status: notificationDomain.Status(mn.Status), Metadata: meta,
		RetryCount: mn.RetryCount, MaxRetries: mn.MaxRetries, SentAt: utcPtr(mn.SentAt), ReadAt: utcPtr(mn.ReadAt),
		IsActive: mn.IsActive, CreatedAt: mn.CreatedAt.UTC(), UpdatedAt: mn.UpdatedAt.UTC(),
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

// criteriaToMongoFilter combina las condiciones con $and; los grupos AnyOf pasan a $or.
func criteriaToMongoFilter(criteria sharedDomain.Criteria) (bson.M, error) {
	if criteria == nil {
		return bson.M{}, nil
	}
	conds := criteria.ToConditions()
	if len(conds) == 0 {
		return bson.M{}, nil
	}

	parts := make(bson.A, 0, len(conds))
	for _, c := range conds {
		part, err := conditionToMongo(c)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	if len(parts) == 1 {
		return parts[0].(bson.M), nil
	}
	return bson.M{"$and": parts}, nil
}

func conditionToMongo(c sharedDomain.Criterion) (bson.M, error) {
	if c.Op == sharedDomain.OpAnyOf {
		alts := make(bson.A, 0, len(c.Any))
		for _, alt := range c.Any {
			part, err := conditionToMongo(alt)
			if err != nil {
				return nil, err
			}
			alts = append(alts, part)
		}
		return bson.M{"$or": alts}, nil
	}

	key, ok := fieldKeys[c.Field]
	if !ok {
		return nil, fmt.Errorf("unsupported filter field %q", c.Field)
	}

	// Mapeo de operadores genéricos a operadores de MongoDB
	var mongoOp string
	switch c.Op {
	case sharedDomain.OpEq:
		mongoOp = "$eq"
	case sharedDomain.OpNe:
		mongoOp = "$ne"
	case sharedDomain.OpGt:
		mongoOp = "$gt"
	case sharedDomain.OpGte:
		mongoOp = "$gte"
	case sharedDomain.OpLt:
		mongoOp = "$lt"
	case sharedDomain.OpLte:
		mongoOp = "$lte"
	default:
		return nil, fmt.Errorf("unsupported filter operator %q", c.Op)
	}
	return bson.M{key: bson.M{mongoOp: c.Value}}, nil
}
