// Package message implements sending, listing, editing and deleting chat
// messages. Only a message's sender may change or remove it.
package message

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/4xmen/gapchat/internal/apperr"
	"github.com/4xmen/gapchat/internal/models"
	"github.com/4xmen/gapchat/internal/store"
)

type ImageUploader interface {
	Upload(ctx context.Context, image string) (string, error)
	Remove(ctx context.Context, url string) error
}

// MembershipChecker reports whether a user belongs to a chat. It returns a
// not-found error for unknown chats.
type MembershipChecker interface {
	IsMember(ctx context.Context, userID, chatID string) (bool, error)
}

type Service struct {
	store  store.Store
	images ImageUploader

	// members is nil unless membership is enforced on send and list.
	members MembershipChecker
}

type Option func(*Service)

// WithMembership makes Send and List reject requesters outside the chat.
func WithMembership(m MembershipChecker) Option {
	return func(s *Service) { s.members = m }
}

func New(s store.Store, images ImageUploader, opts ...Option) *Service {
	svc := &Service{store: s, images: images}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *Service) Send(ctx context.Context, senderID, chatID, text, image string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	image = strings.TrimSpace(image)
	if text == "" && image == "" {
		return nil, apperr.Validation("Message must contain text or an image")
	}

	if err := s.checkMember(ctx, senderID, chatID); err != nil {
		return nil, err
	}

	var imageURL string
	if image != "" {
		url, err := s.images.Upload(ctx, image)
		if err != nil {
			return nil, err
		}
		imageURL = url
	}

	now := time.Now()
	msg := &models.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		SenderID:  senderID,
		Text:      text,
		Image:     imageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, apperr.Internal("failed to save message", err)
	}
	return msg, nil
}

func (s *Service) List(ctx context.Context, requesterID, chatID string) ([]models.Message, error) {
	if err := s.checkMember(ctx, requesterID, chatID); err != nil {
		return nil, err
	}

	msgs, err := s.store.ListMessagesByChat(ctx, chatID)
	if err != nil {
		return nil, apperr.Internal("failed to fetch messages", err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// Edit replaces the text of a message. A nil text is rejected; an empty one
// is allowed only when the message keeps an image.
func (s *Service) Edit(ctx context.Context, requesterID, messageID string, text *string) (*models.Message, error) {
	msg, err := s.loadOwned(ctx, requesterID, messageID)
	if err != nil {
		return nil, err
	}

	if text == nil {
		return nil, apperr.Validation("Text is required")
	}
	newText := strings.TrimSpace(*text)
	if newText == "" && msg.Image == "" {
		return nil, apperr.Validation("Message must contain text or an image")
	}

	msg.Text = newText
	msg.UpdatedAt = time.Now()
	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Message not found")
		}
		return nil, apperr.Internal("failed to update message", err)
	}
	return msg, nil
}

func (s *Service) Delete(ctx context.Context, requesterID, messageID string) error {
	msg, err := s.loadOwned(ctx, requesterID, messageID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteMessage(ctx, msg.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Message not found")
		}
		return apperr.Internal("failed to delete message", err)
	}

	if msg.Image != "" {
		if err := s.images.Remove(ctx, msg.Image); err != nil {
			slog.WarnContext(ctx, "failed to remove message image", "message_id", msg.ID, "error", err)
		}
	}
	return nil
}

func (s *Service) loadOwned(ctx context.Context, requesterID, messageID string) (*models.Message, error) {
	msg, err := s.store.GetMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Message not found")
		}
		return nil, apperr.Internal("failed to fetch message", err)
	}
	if msg.SenderID != requesterID {
		return nil, apperr.Forbidden("You can only modify your own messages")
	}
	return msg, nil
}

func (s *Service) checkMember(ctx context.Context, userID, chatID string) error {
	if s.members == nil {
		return nil
	}
	ok, err := s.members.IsMember(ctx, userID, chatID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("You are not a member of this chat")
	}
	return nil
}
