package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/4xmen/gapchat/internal/message"
)

type MessageHandler struct {
	msgSvc *message.Service
}

func NewMessageHandler(msgSvc *message.Service) *MessageHandler {
	return &MessageHandler{msgSvc: msgSvc}
}

// SendMessageRequest carries optional text and an optional image, either as
// a data URL or raw base64.
type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// EditMessageRequest keeps Text as a pointer so a missing field can be told
// apart from an empty one.
type EditMessageRequest struct {
	Text *string `json:"text"`
}

// List returns a chat's messages in the order they were stored
func (h *MessageHandler) List(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	msgs, err := h.msgSvc.List(c.Request.Context(), user.ID, c.Param("chatId"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, msgs)
}

func (h *MessageHandler) Send(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := bindJSON(c, &req); err != nil {
		badRequest(c)
		return
	}

	msg, err := h.msgSvc.Send(c.Request.Context(), user.ID, c.Param("chatId"), req.Text, req.Image)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) Edit(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req EditMessageRequest
	if err := bindJSON(c, &req); err != nil {
		badRequest(c)
		return
	}

	msg, err := h.msgSvc.Edit(c.Request.Context(), user.ID, c.Param("messageId"), req.Text)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) Delete(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.msgSvc.Delete(c.Request.Context(), user.ID, c.Param("messageId")); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message deleted successfully"})
}
