// Package chat holds the membership rules for direct and group chats.
//
// A direct chat has exactly two distinct members and no name. A group chat
// starts with at least three members and a non-empty name; afterwards it can
// grow, shrink and be renamed by its members. Every read returns the chat
// with member IDs expanded to user views.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/4xmen/gapchat/internal/apperr"
	"github.com/4xmen/gapchat/internal/models"
	"github.com/4xmen/gapchat/internal/store"
)

const minGroupMembers = 3

type Service struct {
	store store.Store
}

func New(s store.Store) *Service {
	return &Service{store: s}
}

type CreateInput struct {
	MemberIDs []string
	IsGroup   bool
	Name      string
}

func (s *Service) Create(ctx context.Context, requesterID string, in CreateInput) (*models.ChatView, error) {
	members := uniqueIDs(append([]string{requesterID}, in.MemberIDs...))
	name := strings.TrimSpace(in.Name)

	if in.IsGroup {
		if name == "" {
			return nil, apperr.Validation("Group name is required")
		}
		if len(members) < minGroupMembers {
			return nil, apperr.Validation("Group chat must have at least 3 members")
		}
	} else {
		if len(members) != 2 {
			return nil, apperr.Validation("Direct chat must have exactly 2 members")
		}
		if name != "" {
			return nil, apperr.Validation("Direct chats cannot have a name")
		}
	}

	now := time.Now()
	c := &models.Chat{
		ID:        uuid.NewString(),
		Name:      name,
		IsGroup:   in.IsGroup,
		Members:   members,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateChat(ctx, c); err != nil {
		return nil, apperr.Internal("failed to create chat", err)
	}

	return s.expand(ctx, c)
}

func (s *Service) Get(ctx context.Context, requesterID, chatID string) (*models.ChatView, error) {
	c, err := s.load(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !c.HasMember(requesterID) {
		return nil, apperr.Forbidden("You are not a member of this chat")
	}
	return s.expand(ctx, c)
}

// List returns the requester's chats, most recently updated first.
func (s *Service) List(ctx context.Context, requesterID string) ([]models.ChatView, error) {
	chats, err := s.store.ListChatsByMember(ctx, requesterID)
	if err != nil {
		return nil, apperr.Internal("failed to fetch chats", err)
	}

	var ids []string
	for i := range chats {
		ids = append(ids, chats[i].Members...)
	}
	users, err := s.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]models.ChatView, 0, len(chats))
	for i := range chats {
		views = append(views, view(&chats[i], users))
	}
	return views, nil
}

func (s *Service) AddMembers(ctx context.Context, requesterID, chatID string, memberIDs []string) (*models.ChatView, error) {
	newIDs := uniqueIDs(memberIDs)
	if len(newIDs) == 0 {
		return nil, apperr.Validation("Member IDs are required")
	}

	c, err := s.loadGroup(ctx, requesterID, chatID)
	if err != nil {
		return nil, err
	}

	c.Members = uniqueIDs(append(c.Members, newIDs...))
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return s.expand(ctx, c)
}

// Leave removes the requester from a group chat. The chat is kept even when
// it drops below the creation minimum.
func (s *Service) Leave(ctx context.Context, requesterID, chatID string) error {
	c, err := s.loadGroup(ctx, requesterID, chatID)
	if err != nil {
		return err
	}

	remaining := c.Members[:0:0]
	for _, id := range c.Members {
		if id != requesterID {
			remaining = append(remaining, id)
		}
	}
	c.Members = remaining
	return s.save(ctx, c)
}

func (s *Service) Rename(ctx context.Context, requesterID, chatID, newName string) (*models.ChatView, error) {
	name := strings.TrimSpace(newName)
	if name == "" {
		return nil, apperr.Validation("Group name is required")
	}

	c, err := s.loadGroup(ctx, requesterID, chatID)
	if err != nil {
		return nil, err
	}

	c.Name = name
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return s.expand(ctx, c)
}

// IsMember reports whether userID belongs to chatID.
func (s *Service) IsMember(ctx context.Context, userID, chatID string) (bool, error) {
	c, err := s.load(ctx, chatID)
	if err != nil {
		return false, err
	}
	return c.HasMember(userID), nil
}

func (s *Service) load(ctx context.Context, chatID string) (*models.Chat, error) {
	c, err := s.store.GetChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Chat not found")
		}
		return nil, apperr.Internal("failed to fetch chat", err)
	}
	return c, nil
}

// loadGroup applies the checks shared by every group mutation, in order:
// existence, chat type, membership.
func (s *Service) loadGroup(ctx context.Context, requesterID, chatID string) (*models.Chat, error) {
	c, err := s.load(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !c.IsGroup {
		return nil, apperr.Validation("This operation is only allowed for group chats")
	}
	if !c.HasMember(requesterID) {
		return nil, apperr.Forbidden("You are not a member of this chat")
	}
	return c, nil
}

func (s *Service) save(ctx context.Context, c *models.Chat) error {
	c.UpdatedAt = time.Now()
	if err := s.store.UpdateChat(ctx, c); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Chat not found")
		}
		return apperr.Internal("failed to update chat", err)
	}
	return nil
}

func (s *Service) expand(ctx context.Context, c *models.Chat) (*models.ChatView, error) {
	users, err := s.usersByID(ctx, c.Members)
	if err != nil {
		return nil, err
	}
	v := view(c, users)
	return &v, nil
}

func (s *Service) usersByID(ctx context.Context, ids []string) (map[string]models.User, error) {
	users, err := s.store.GetUsersByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, apperr.Internal("failed to fetch chat members", err)
	}
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

// view expands member IDs in order. IDs without a stored user are dropped.
func view(c *models.Chat, users map[string]models.User) models.ChatView {
	members := make([]models.UserView, 0, len(c.Members))
	for _, id := range c.Members {
		if u, ok := users[id]; ok {
			members = append(members, u.View())
		}
	}
	return models.ChatView{
		ID:        c.ID,
		Name:      c.Name,
		IsGroup:   c.IsGroup,
		Members:   members,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// uniqueIDs trims, drops blanks and removes duplicates, keeping first-seen
// order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
