// Package mongo implements backend.Adapter on MongoDB. All fields live
// in one collection with a unique (group, field) index; SetField is an
// upserting replace.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/bikramjeet/queue-service/backend"
)

// Compile-time interface check.
var _ backend.Adapter = (*Adapter)(nil)

const (
	defaultDatabase   = "queueservice"
	defaultCollection = "queue_fields"
)

func init() {
	backend.Register(backend.KindMongo, func(ctx context.Context, params backend.Params) (backend.Adapter, error) {
		client, err := mongod.Connect(options.Client().ApplyURI(params["uri"]))
		if err != nil {
			return nil, fmt.Errorf("queueservice/mongo: connect: %w", err)
		}

		dbName := params["database"]
		if dbName == "" {
			dbName = defaultDatabase
		}

		a := New(client.Database(dbName))
		a.client = client
		if err := a.Migrate(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return a, nil
	})
}

// fieldDoc is the stored shape of one field.
type fieldDoc struct {
	Group     string    `bson:"group"`
	Field     string    `bson:"field"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithCollection overrides the collection name (default "queue_fields").
func WithCollection(name string) Option {
	return func(a *Adapter) { a.collection = name }
}

// Adapter implements backend.Adapter backed by MongoDB.
type Adapter struct {
	db         *mongod.Database
	collection string
	logger     *slog.Logger

	// client is set only when the adapter opened the connection itself;
	// Close disconnects it in that case.
	client *mongod.Client
}

// New creates a MongoDB adapter on the given database. The caller owns
// the client lifecycle unless the adapter was opened through
// backend.Open.
func New(db *mongod.Database, opts ...Option) *Adapter {
	a := &Adapter{
		db:         db,
		collection: defaultCollection,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Adapter) col() *mongod.Collection {
	return a.db.Collection(a.collection)
}

// Migrate creates the unique (group, field) index.
func (a *Adapter) Migrate(ctx context.Context) error {
	_, err := a.col().Indexes().CreateOne(ctx, mongod.IndexModel{
		Keys: bson.D{
			{Key: "group", Value: 1},
			{Key: "field", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("queueservice/mongo: create index: %w", err)
	}
	return nil
}

// GetField reads one document. A missing document is absent, not an
// error.
func (a *Adapter) GetField(ctx context.Context, group, field string) ([]byte, bool, error) {
	var doc fieldDoc
	err := a.col().FindOne(ctx, bson.M{"group": group, "field": field}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongod.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("queueservice/mongo: get field: %w", err)
	}
	return doc.Value, true, nil
}

// SetField upserts one document.
func (a *Adapter) SetField(ctx context.Context, group, field string, value []byte) error {
	doc := fieldDoc{
		Group:     group,
		Field:     field,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := a.col().ReplaceOne(ctx,
		bson.M{"group": group, "field": field},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("queueservice/mongo: set field: %w", err)
	}
	return nil
}

// DeleteField removes one document and reports whether it existed.
func (a *Adapter) DeleteField(ctx context.Context, group, field string) (bool, error) {
	res, err := a.col().DeleteOne(ctx, bson.M{"group": group, "field": field})
	if err != nil {
		return false, fmt.Errorf("queueservice/mongo: delete field: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// ListFields returns the group's field names in lexical order.
func (a *Adapter) ListFields(ctx context.Context, group string) ([]string, error) {
	cur, err := a.col().Find(ctx,
		bson.M{"group": group},
		options.Find().
			SetSort(bson.D{{Key: "field", Value: 1}}).
			SetProjection(bson.M{"field": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("queueservice/mongo: list fields: %w", err)
	}

	var docs []fieldDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("queueservice/mongo: decode fields: %w", err)
	}

	fields := make([]string, 0, len(docs))
	for _, d := range docs {
		fields = append(fields, d.Field)
	}
	return fields, nil
}

// Ping checks server connectivity.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.Client().Ping(ctx, nil)
}

// Close disconnects the client only when the adapter opened it itself.
func (a *Adapter) Close(ctx context.Context) error {
	if a.client != nil {
		return a.client.Disconnect(ctx)
	}
	return nil
}
