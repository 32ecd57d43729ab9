package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/datatalk-ai/datatalk/memory"
	"github.com/datatalk-ai/datatalk/message"
)

// MongoStore persists thread histories in a MongoDB collection, one
// document per thread.
type MongoStore struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// DefaultMongoConfig returns settings for a local MongoDB.
func DefaultMongoConfig() *MongoConfig {
	return &MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "datatalk",
		Collection: "threads",
	}
}

// mongoThread is the internal representation for MongoDB. Messages are kept
// as raw JSON so the document schema follows the message wire format exactly.
type mongoThread struct {
	ID        string    `bson:"_id"`
	Messages  string    `bson:"messages"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoStore connects to MongoDB, verifies the connection, and ensures
// the updated_at index used by List exists.
func NewMongoStore(config *MongoConfig) (*MongoStore, error) {
	if config == nil {
		config = DefaultMongoConfig()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(config.Database)
	store := &MongoStore{
		client:     client,
		db:         db,
		collection: db.Collection(config.Collection),
	}

	if err := store.ensureIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return store, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updated_at", Value: -1}},
	})
	return err
}

// Load returns the history for a thread, or an empty history when unknown.
func (s *MongoStore) Load(ctx context.Context, threadID string) (*memory.History, error) {
	if threadID == "" {
		return nil, fmt.Errorf("thread id cannot be empty")
	}

	var doc mongoThread
	err := s.collection.FindOne(ctx, bson.M{"_id": threadID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return memory.NewHistory(), nil
		}
		return nil, fmt.Errorf("failed to load thread history: %w", err)
	}

	var msgs []*message.Message
	if err := json.Unmarshal([]byte(doc.Messages), &msgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thread history: %w", err)
	}
	return memory.NewHistory(msgs...), nil
}

// Save upserts the history for a thread.
func (s *MongoStore) Save(ctx context.Context, threadID string, h *memory.History) error {
	if threadID == "" {
		return fmt.Errorf("thread id cannot be empty")
	}
	if h == nil {
		return fmt.Errorf("history cannot be nil")
	}

	data, err := json.Marshal(h.Messages)
	if err != nil {
		return fmt.Errorf("failed to marshal thread history: %w", err)
	}

	doc := mongoThread{
		ID:        threadID,
		Messages:  string(data),
		UpdatedAt: time.Now(),
	}

	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"_id": threadID}

	if _, err := s.collection.ReplaceOne(ctx, filter, doc, opts); err != nil {
		return fmt.Errorf("failed to save thread history: %w", err)
	}

	return nil
}

// Delete removes a thread's history.
func (s *MongoStore) Delete(ctx context.Context, threadID string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": threadID}); err != nil {
		return fmt.Errorf("failed to delete thread history: %w", err)
	}
	return nil
}

// List returns all stored thread identifiers, most recently updated first.
func (s *MongoStore) List(ctx context.Context) ([]string, error) {
	cursor, err := s.collection.Find(ctx, bson.M{},
		options.Find().SetSort(bson.M{"updated_at": -1}).SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoThread
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode thread ids: %w", err)
	}

	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	return ids, nil
}

// Count returns the number of stored threads.
func (s *MongoStore) Count(ctx context.Context) (int, error) {
	count, err := s.collection.EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count threads: %w", err)
	}
	return int(count), nil
}

// Exists reports whether a thread has persisted history.
func (s *MongoStore) Exists(ctx context.Context, threadID string) (bool, error) {
	count, err := s.collection.CountDocuments(ctx, bson.M{"_id": threadID})
	if err != nil {
		return false, fmt.Errorf("failed to check thread existence: %w", err)
	}
	return count > 0, nil
}

// Clear removes every stored thread history.
func (s *MongoStore) Clear(ctx context.Context) error {
	_, err := s.collection.DeleteMany(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to clear threads: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.client.Disconnect(ctx)
}

// Ping verifies the connection is alive.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}
