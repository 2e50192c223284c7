package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultDatabase  = "whatsapp-bot"
	memoryCollection = "conversation_memory"
	connectTimeout   = 10 * time.Second
)

// conversationDoc is the persisted shape, one document per conversation id.
type conversationDoc struct {
	UserID    string    `bson:"userId"`
	Messages  []Message `bson:"messages"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// MongoStore persists conversation history in MongoDB. Writes are atomic
// read-modify-write per conversation id; concurrent writers to the same id
// resolve last-write-wins on the full message array.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger

	now func() time.Time
}

// MongoConfig configures the Mongo-backed store.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// NewMongoStore connects to MongoDB and returns a ready store.
func NewMongoStore(ctx context.Context, cfg MongoConfig, logger *slog.Logger) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, errors.New("memory: mongodb uri is required")
	}
	if cfg.Database == "" {
		cfg.Database = defaultDatabase
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("memory: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("memory: ping: %w", err)
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(memoryCollection),
		logger:     logger.With("component", "memory"),
		now:        time.Now,
	}, nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) History(ctx context.Context, id string, maxPairs int) ([]Message, error) {
	purged, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return capPairs(purged, maxPairs), nil
}

// load fetches the full purged history for id, persisting the purge result
// so repeated reads amortize the filter cost. No cap is applied.
func (s *MongoStore) load(ctx context.Context, id string) ([]Message, error) {
	var doc conversationDoc
	err := s.collection.FindOne(ctx, bson.M{"userId": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: find %s: %w", id, err)
	}

	purged := purgeExpired(doc.Messages, s.now())
	if len(purged) != len(doc.Messages) {
		if err := s.persist(ctx, id, purged); err != nil {
			s.logger.Warn("failed to persist purge", "conversation", id, "error", err)
		}
	}
	return purged, nil
}

func (s *MongoStore) AppendExchange(ctx context.Context, id, userText, assistantText string, maxPairs int) error {
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	now := s.now()
	next := capPairs(append(current,
		Message{Role: RoleUser, Content: userText, CreatedAt: now},
		Message{Role: RoleAssistant, Content: assistantText, CreatedAt: now},
	), maxPairs)
	if err := s.persist(ctx, id, next); err != nil {
		return err
	}

	s.logger.Debug("memory updated", "conversation", id, "messages", len(next))
	return nil
}

func (s *MongoStore) Clear(ctx context.Context, id string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"userId": id}); err != nil {
		return fmt.Errorf("memory: clear %s: %w", id, err)
	}
	return nil
}

func (s *MongoStore) persist(ctx context.Context, id string, messages []Message) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"userId": id},
		bson.M{"$set": bson.M{
			"userId":    id,
			"messages":  messages,
			"updatedAt": s.now(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("memory: persist %s: %w", id, err)
	}
	return nil
}
