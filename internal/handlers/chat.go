package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/4xmen/gapchat/internal/chat"
)

type ChatHandler struct {
	chatSvc *chat.Service
}

func NewChatHandler(chatSvc *chat.Service) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc}
}

type CreateChatRequest struct {
	MemberIDs []string `json:"memberIds"`
	IsGroup   bool     `json:"isGroup"`
	Name      string   `json:"name"`
}

type MembersRequest struct {
	MemberIDs []string `json:"memberIds"`
}

type RenameRequest struct {
	Name string `json:"name"`
}

func (h *ChatHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req CreateChatRequest
	if err := bindJSON(c, &req); err != nil {
		badRequest(c)
		return
	}

	view, err := h.chatSvc.Create(c.Request.Context(), user.ID, chat.CreateInput{
		MemberIDs: req.MemberIDs,
		IsGroup:   req.IsGroup,
		Name:      req.Name,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

func (h *ChatHandler) Get(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	view, err := h.chatSvc.Get(c.Request.Context(), user.ID, c.Param("chatId"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// List returns the caller's chats, most recently active first
func (h *ChatHandler) List(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	chats, err := h.chatSvc.List(c.Request.Context(), user.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, chats)
}

func (h *ChatHandler) AddMembers(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req MembersRequest
	if err := bindJSON(c, &req); err != nil {
		badRequest(c)
		return
	}

	view, err := h.chatSvc.AddMembers(c.Request.Context(), user.ID, c.Param("chatId"), req.MemberIDs)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *ChatHandler) Leave(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.chatSvc.Leave(c.Request.Context(), user.ID, c.Param("chatId")); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left chat successfully"})
}

func (h *ChatHandler) Rename(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req RenameRequest
	if err := bindJSON(c, &req); err != nil {
		badRequest(c)
		return
	}

	view, err := h.chatSvc.Rename(c.Request.Context(), user.ID, c.Param("chatId"), req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}
