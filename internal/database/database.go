package database

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/alumlink/alumlink/internal/models"
)

// Store is the persistence surface the rest of the app talks to.
// Handlers and the chat service depend on this interface so tests can
// substitute mocks.
type Store interface {
	// User methods
	CreateUser(name, email, passwordHash string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id uuid.UUID) (*models.User, error)
	UpdateLastSeen(userID uuid.UUID) error
	GetAllUsers(excludeUserID uuid.UUID) ([]*models.User, error)

	// Conversation methods
	FindOrCreateConversation(a, b uuid.UUID) (*models.Conversation, error)
	GetConversationByID(id uuid.UUID) (*models.Conversation, error)
	GetConversationsForUser(userID uuid.UUID) ([]*models.ConversationResponse, error)
	TouchConversation(conversationID, messageID uuid.UUID) error

	// Message methods
	CreateMessage(conversationID, senderID uuid.UUID, content string) (*models.Message, error)
	GetMessageByID(messageID uuid.UUID) (*models.Message, error)
	GetMessagesByConversation(conversationID uuid.UUID) ([]*models.Message, error)
	UpdateMessageContent(messageID, editorID uuid.UUID, content string) (*models.Message, error)
	DeleteMessage(messageID, requesterID uuid.UUID) error

	Close() error
}

type DatabaseType string

const (
	PostgreSQL DatabaseType = "postgres"
)

// NewStore opens a store of the given type. Only PostgreSQL is
// implemented today; the switch keeps the call site stable if another
// engine is added.
func NewStore(dbType DatabaseType, connStr string) (Store, error) {
	switch dbType {
	case PostgreSQL:
		return NewPostgresDB(connStr)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}
