package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/4xmen/gapchat/internal/apperr"
	"github.com/4xmen/gapchat/internal/auth"
)

const sessionCookie = "jwt"

type AuthHandler struct {
	authSvc      *auth.Service
	secureCookie bool
}

// NewAuthHandler builds the auth endpoints. secureCookie should be false
// only for local development over plain HTTP.
func NewAuthHandler(authSvc *auth.Service, secureCookie bool) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, secureCookie: secureCookie}
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(sessionCookie, token, maxAge, "/", "", h.secureCookie, true)
}

// Signup creates a new account and starts a session for it
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := bindJSON(c, &req); err != nil {
		badRequest(c)
		return
	}

	sess, err := h.authSvc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.setSessionCookie(c, sess.Token, int(h.authSvc.TokenTTL().Seconds()))
	c.JSON(http.StatusCreated, sess.User.View())
}

// Login verifies credentials and starts a session. Bad credentials are
// reported as 400 with a single message whether or not the email exists.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := bindJSON(c, &req); err != nil {
		badRequest(c)
		return
	}

	sess, err := h.authSvc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) && appErr.Kind == apperr.KindAuth {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": appErr.Message})
			return
		}
		abortWithError(c, err)
		return
	}

	h.setSessionCookie(c, sess.Token, int(h.authSvc.TokenTTL().Seconds()))
	c.JSON(http.StatusOK, sess.User.View())
}

// Logout replaces the session cookie with an expired one.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var patch auth.ProfilePatch
	if err := bindJSON(c, &patch); err != nil {
		badRequest(c)
		return
	}

	updated, err := h.authSvc.UpdateProfile(c.Request.Context(), user.ID, patch)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated.View())
}

// Check returns the user behind the current session
func (h *AuthHandler) Check(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user.View())
}

func sessionToken(c *gin.Context) string {
	if token, err := c.Cookie(sessionCookie); err == nil && token != "" {
		return token
	}

	// Non-browser clients may send the same token as a bearer header.
	authHeader := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// AuthMiddleware resolves the session token to a user and stores it on the
// context. Any failure aborts the chain.
func (h *AuthHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			abortWithError(c, apperr.Auth("No Token Provided"))
			return
		}

		claims, err := h.authSvc.ValidateToken(token)
		if err != nil {
			abortWithError(c, apperr.Auth("Invalid Token"))
			return
		}

		user, err := h.authSvc.UserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}
