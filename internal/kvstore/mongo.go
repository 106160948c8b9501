package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoEntry struct {
	Key       string     `bson:"_id"`
	Value     []byte     `bson:"value"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
	UpdatedAt time.Time  `bson:"updated_at"`
}

const defaultMongoCollection = "kv_entries"

// MongoConfig selects where a MongoBackend keeps its entries.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string // kv_entries when empty
	PoolSize   uint64 // 20 when zero
}

// MongoBackend keeps one document per key. A TTL index on expires_at lets
// MongoDB reap expired entries in the background.
type MongoBackend struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// DialMongo connects to cfg.URI and prepares the entry collection and its
// TTL index. Close releases the connection.
func DialMongo(ctx context.Context, cfg MongoConfig) (*MongoBackend, error) {
	if cfg.Collection == "" {
		cfg.Collection = defaultMongoCollection
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 20
	}

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URI).
		SetAppName("storefront-kv").
		SetServerSelectionTimeout(5*time.Second).
		SetMaxPoolSize(cfg.PoolSize))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	m := &MongoBackend{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}
	if err := client.Ping(ctx, nil); err != nil {
		m.Close(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	if err := m.CreateIndexes(ctx); err != nil {
		m.Close(context.Background())
		return nil, err
	}
	return m, nil
}

// Close disconnects the client, waiting at most five seconds.
func (m *MongoBackend) Close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = m.client.Disconnect(ctx)
}

func (m *MongoBackend) CreateIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("create kv ttl index: %w", err)
	}
	return nil
}

func (m *MongoBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var entry mongoEntry
	err := m.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry.Value, nil
}

func (m *MongoBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now()
	set := bson.M{"value": value, "updated_at": now}
	update := bson.M{"$set": set}
	if ttl > 0 {
		set["expires_at"] = now.Add(ttl)
	} else {
		update["$unset"] = bson.M{"expires_at": ""}
	}

	_, err := m.collection.UpdateOne(ctx, bson.M{"_id": key}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert entry: %w", err)
	}
	return nil
}

func (m *MongoBackend) Delete(ctx context.Context, key string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}
