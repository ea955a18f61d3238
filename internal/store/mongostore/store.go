// Package mongostore implements store.Store on MongoDB. Each entity is one
// document; chat membership is an array on the chat document.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/4xmen/gapchat/internal/models"
	"github.com/4xmen/gapchat/internal/store"
)

type MongoStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	chats    *mongo.Collection
	messages *mongo.Collection
}

var _ store.Store = (*MongoStore)(nil)

func New(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		users:    db.Collection("users"),
		chats:    db.Collection("chats"),
		messages: db.Collection("messages"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}

	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	_, err = s.chats.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "members", Value: 1}, {Key: "updated_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create chats index: %w", err)
	}

	_, err = s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chat_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create messages index: %w", err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func insertErr(what string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	return fmt.Errorf("failed to insert %s: %w", what, err)
}

func findErr(what string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return fmt.Errorf("failed to query %s: %w", what, err)
}

func replaceErr(what string, res *mongo.UpdateResult, err error) error {
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("failed to update %s: %w", what, err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	if _, err := s.users.InsertOne(ctx, u); err != nil {
		return insertErr("user", err)
	}
	return nil
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, findErr("user", err)
	}
	return &u, nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return nil, findErr("user", err)
	}
	return &u, nil
}

func (s *MongoStore) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

func (s *MongoStore) UpdateUser(ctx context.Context, u *models.User) error {
	res, err := s.users.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	return replaceErr("user", res, err)
}

func (s *MongoStore) CreateChat(ctx context.Context, c *models.Chat) error {
	if c.Members == nil {
		c.Members = []string{}
	}
	if _, err := s.chats.InsertOne(ctx, c); err != nil {
		return insertErr("chat", err)
	}
	return nil
}

func (s *MongoStore) GetChatByID(ctx context.Context, id string) (*models.Chat, error) {
	var c models.Chat
	if err := s.chats.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, findErr("chat", err)
	}
	return &c, nil
}

func (s *MongoStore) ListChatsByMember(ctx context.Context, userID string) ([]models.Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := s.chats.Find(ctx, bson.M{"members": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	var chats []models.Chat
	if err := cur.All(ctx, &chats); err != nil {
		return nil, fmt.Errorf("failed to decode chats: %w", err)
	}
	return chats, nil
}

func (s *MongoStore) UpdateChat(ctx context.Context, c *models.Chat) error {
	if c.Members == nil {
		c.Members = []string{}
	}
	res, err := s.chats.ReplaceOne(ctx, bson.M{"_id": c.ID}, c)
	return replaceErr("chat", res, err)
}

func (s *MongoStore) CreateMessage(ctx context.Context, m *models.Message) error {
	if _, err := s.messages.InsertOne(ctx, m); err != nil {
		return insertErr("message", err)
	}
	return nil
}

func (s *MongoStore) GetMessageByID(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	if err := s.messages.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, findErr("message", err)
	}
	return &m, nil
}

// ListMessagesByChat returns messages in natural (insertion) order.
func (s *MongoStore) ListMessagesByChat(ctx context.Context, chatID string) ([]models.Message, error) {
	cur, err := s.messages.Find(ctx, bson.M{"chat_id": chatID})
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	var messages []models.Message
	if err := cur.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return messages, nil
}

func (s *MongoStore) UpdateMessage(ctx context.Context, m *models.Message) error {
	res, err := s.messages.ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	return replaceErr("message", res, err)
}

func (s *MongoStore) DeleteMessage(ctx context.Context, id string) error {
	res, err := s.messages.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *MongoStore) Stats(ctx context.Context) (store.Stats, error) {
	var st store.Stats
	var err error

	if st.Users, err = s.users.CountDocuments(ctx, bson.M{}); err != nil {
		return st, fmt.Errorf("could not read database stats: %w", err)
	}
	if st.Chats, err = s.chats.CountDocuments(ctx, bson.M{}); err != nil {
		return st, fmt.Errorf("could not read database stats: %w", err)
	}
	if st.GroupChats, err = s.chats.CountDocuments(ctx, bson.M{"is_group": true}); err != nil {
		return st, fmt.Errorf("could not read database stats: %w", err)
	}
	if st.Messages, err = s.messages.CountDocuments(ctx, bson.M{}); err != nil {
		return st, fmt.Errorf("could not read database stats: %w", err)
	}
	since := time.Now().Add(-24 * time.Hour)
	if st.MessagesLast24h, err = s.messages.CountDocuments(ctx, bson.M{"created_at": bson.M{"$gte": since}}); err != nil {
		return st, fmt.Errorf("could not read database stats: %w", err)
	}

	var latest models.Message
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	err = s.messages.FindOne(ctx, bson.M{}, opts).Decode(&latest)
	switch {
	case err == nil:
		st.LatestMessageAt = &latest.CreatedAt
	case errors.Is(err, mongo.ErrNoDocuments):
	default:
		return st, fmt.Errorf("could not read database stats: %w", err)
	}

	return st, nil
}
