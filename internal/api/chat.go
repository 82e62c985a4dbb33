package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alumlink/alumlink/internal/chat"
	"github.com/alumlink/alumlink/internal/database"
	"github.com/alumlink/alumlink/internal/models"
)

// ChatHandler exposes the messaging service over HTTP
type ChatHandler struct {
	Service *chat.Service
}

// NewChatHandler creates a new chat handler
func NewChatHandler(service *chat.Service) *ChatHandler {
	return &ChatHandler{Service: service}
}

// SendMessage handles POST /api/chat
func (h *ChatHandler) SendMessage(c *gin.Context) {
	senderID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.Service.SendMessage(senderID, req.RecipientID, req.Content)
	if err != nil {
		respondChatError(c, err)
		return
	}

	c.JSON(http.StatusCreated, message)
}

// GetConversations handles GET /api/chat
func (h *ChatHandler) GetConversations(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conversations, err := h.Service.ListConversations(userID)
	if err != nil {
		respondChatError(c, err)
		return
	}

	if conversations == nil {
		conversations = []*models.ConversationResponse{}
	}

	c.JSON(http.StatusOK, conversations)
}

// GetMessages handles GET /api/chat/:conversationID/messages
func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conversationID, err := uuid.Parse(c.Param("conversationID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation ID"})
		return
	}

	messages, err := h.Service.ListMessages(userID, conversationID)
	if err != nil {
		respondChatError(c, err)
		return
	}

	if messages == nil {
		messages = []*models.Message{}
	}

	c.JSON(http.StatusOK, messages)
}

// EditMessage handles PUT /api/chat/:messageID
func (h *ChatHandler) EditMessage(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	messageID, err := uuid.Parse(c.Param("messageID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message ID"})
		return
	}

	var req models.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.Service.EditMessage(userID, messageID, req.Content)
	if err != nil {
		respondChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, message)
}

// DeleteMessage handles DELETE /api/chat/:messageID
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	messageID, err := uuid.Parse(c.Param("messageID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message ID"})
		return
	}

	if err := h.Service.DeleteMessage(userID, messageID); err != nil {
		respondChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message deleted"})
}

// respondChatError maps service and store errors onto HTTP statuses:
// validation failures are 400, ownership violations 403, missing
// records 404, everything else a 500.
func respondChatError(c *gin.Context, err error) {
	switch err {
	case chat.ErrEmptyContent:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case chat.ErrNotParticipant, database.ErrNotMessageSender:
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case database.ErrMessageNotFound, database.ErrConversationNotFound, database.ErrUserNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
