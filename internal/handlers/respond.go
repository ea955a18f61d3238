package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/4xmen/gapchat/internal/apperr"
	"github.com/4xmen/gapchat/internal/models"
)

const currentUserKey = "current_user"

// abortWithError writes the client-safe form of err and stops the chain.
// Internal and upstream failures are recorded on the context and logged;
// their details never reach the response body.
func abortWithError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal || kind == apperr.KindUpstream {
		_ = c.Error(err)
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"kind", kind.String(),
			"error", err,
		)
	}
	c.AbortWithStatusJSON(kind.Status(), gin.H{"error": apperr.PublicMessage(err)})
}

// bindJSON decodes the request body into obj. A missing or empty body leaves
// obj at its zero value so the services can apply their own check order;
// only malformed JSON is an error.
func bindJSON(c *gin.Context, obj any) error {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func badRequest(c *gin.Context) {
	abortWithError(c, apperr.Validation("Invalid request body"))
}

// requireUser returns the identity stored by AuthMiddleware, aborting with
// 401 when the route was mounted without it.
func requireUser(c *gin.Context) (*models.User, bool) {
	if v, ok := c.Get(currentUserKey); ok {
		if u, ok := v.(*models.User); ok && u != nil {
			return u, true
		}
	}
	abortWithError(c, apperr.Auth("No Token Provided"))
	return nil, false
}
