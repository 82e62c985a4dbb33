package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a single chat message inside a conversation.
// Edits mutate Content in place and flip IsEdited; deletes remove the
// row entirely, so recipients are notified with the id alone.
type Message struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	SenderID       uuid.UUID   `json:"sender_id"`
	Content        string      `json:"content"`
	IsEdited       bool        `json:"is_edited"`
	ReadBy         []uuid.UUID `json:"read_by"`
	CreatedAt      time.Time   `json:"created_at"`
}

// SendMessageRequest is the structure for message creation requests
type SendMessageRequest struct {
	RecipientID uuid.UUID `json:"recipient_id" binding:"required"`
	Content     string    `json:"content" binding:"required"`
}

// EditMessageRequest carries the replacement content for an edit
type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}
