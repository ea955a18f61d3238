// Package store describes the persistence boundary. Implementations behave as
// a document store: get, put and query by filter. They never join across
// collections; callers expand references themselves.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/4xmen/gapchat/internal/models"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")
)

type Store interface {
	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error

	// Chats
	CreateChat(ctx context.Context, chat *models.Chat) error
	GetChatByID(ctx context.Context, id string) (*models.Chat, error)
	ListChatsByMember(ctx context.Context, userID string) ([]models.Chat, error)
	UpdateChat(ctx context.Context, chat *models.Chat) error

	// Messages
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessageByID(ctx context.Context, id string) (*models.Message, error)
	ListMessagesByChat(ctx context.Context, chatID string) ([]models.Message, error)
	UpdateMessage(ctx context.Context, msg *models.Message) error
	DeleteMessage(ctx context.Context, id string) error

	Stats(ctx context.Context) (Stats, error)
	Close() error
}

type Stats struct {
	Users           int64
	Chats           int64
	GroupChats      int64
	Messages        int64
	MessagesLast24h int64
	LatestMessageAt *time.Time
}
