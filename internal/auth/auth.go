package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/4xmen/gapchat/internal/apperr"
	"github.com/4xmen/gapchat/internal/models"
	"github.com/4xmen/gapchat/internal/store"
)

const DefaultTokenTTL = 7 * 24 * time.Hour

// ImageUploader stores profile pictures on the asset host.
type ImageUploader interface {
	Upload(ctx context.Context, image string) (string, error)
	Remove(ctx context.Context, url string) error
}

type Service struct {
	store     store.Store
	images    ImageUploader
	jwtSecret string
	tokenTTL  time.Duration
}

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Session is the result of a successful signup or login.
type Session struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

func New(s store.Store, images ImageUploader, jwtSecret string) *Service {
	return NewWithTokenTTL(s, images, jwtSecret, DefaultTokenTTL)
}

func NewWithTokenTTL(s store.Store, images ImageUploader, jwtSecret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}

	return &Service{
		store:     s,
		images:    images,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}

func (s *Service) Register(ctx context.Context, name, email, password string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, apperr.Validation("All fields are required")
	}

	if len(password) < 6 {
		return nil, apperr.Validation("Password must be at least 6 characters")
	}

	_, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, apperr.Conflict("Email already exists")
	case !errors.Is(err, store.ErrNotFound):
		return nil, apperr.Internal("failed to look up email", err)
	}

	// bcrypt.DefaultCost is 10 rounds.
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}

	now := time.Now()
	user := &models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("Email already exists")
		}
		return nil, apperr.Internal("failed to register user", err)
	}

	return s.newSession(user)
}

// Authenticate verifies an email/password pair. An unknown email and a wrong
// password produce the same error.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("Email and password are required")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Auth("Invalid credentials")
		}
		return nil, apperr.Internal("failed to query user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Auth("Invalid credentials")
	}

	return s.newSession(user)
}

func (s *Service) newSession(user *models.User) (*Session, error) {
	token, expiresAt, err := s.GenerateToken(user.ID)
	if err != nil {
		return nil, apperr.Internal("failed to generate token", err)
	}
	return &Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *Service) GenerateToken(userID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, expiresAt, nil
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

func (s *Service) UserByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal("failed to query user", err)
	}
	return user, nil
}

// ProfilePatch lists the profile fields a user may change. Unset fields are
// left alone; null clears aboutMe and profilePic.
type ProfilePatch struct {
	Name       models.Optional[string] `json:"name"`
	AboutMe    models.Optional[string] `json:"aboutMe"`
	ProfilePic models.Optional[string] `json:"profilePic"`
}

func (p ProfilePatch) Empty() bool {
	return !p.Name.Set && !p.AboutMe.Set && !p.ProfilePic.Set
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (*models.User, error) {
	if patch.Empty() {
		return nil, apperr.Validation("Nothing to update")
	}

	var name string
	if patch.Name.Set {
		v, ok := patch.Name.Get()
		name = strings.TrimSpace(v)
		if !ok || name == "" {
			return nil, apperr.Validation("Name cannot be empty")
		}
	}

	user, err := s.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if patch.Name.Set {
		user.Name = name
	}
	if patch.AboutMe.Set {
		v, _ := patch.AboutMe.Get()
		user.AboutMe = strings.TrimSpace(v)
	}

	oldPic := user.ProfilePic
	var uploaded string
	if patch.ProfilePic.Set {
		v, _ := patch.ProfilePic.Get()
		if strings.TrimSpace(v) == "" {
			user.ProfilePic = ""
		} else {
			url, err := s.images.Upload(ctx, v)
			if err != nil {
				return nil, err
			}
			user.ProfilePic = url
			uploaded = url
		}
	}

	user.UpdatedAt = time.Now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		if uploaded != "" {
			s.removeImage(ctx, user.ID, uploaded)
		}
		return nil, apperr.Internal("failed to update profile", err)
	}

	if oldPic != "" && oldPic != user.ProfilePic {
		s.removeImage(ctx, user.ID, oldPic)
	}

	return user, nil
}

// removeImage deletes a profile picture without failing the caller.
func (s *Service) removeImage(ctx context.Context, userID, url string) {
	if err := s.images.Remove(ctx, url); err != nil {
		slog.WarnContext(ctx, "failed to remove profile picture", "user_id", userID, "url", url, "error", err)
	}
}
