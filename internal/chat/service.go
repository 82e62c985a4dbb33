package chat

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/alumlink/alumlink/internal/database"
	"github.com/alumlink/alumlink/internal/logger"
	"github.com/alumlink/alumlink/internal/models"
)

var (
	ErrEmptyContent   = errors.New("message content cannot be empty")
	ErrNotParticipant = errors.New("not a participant of this conversation")
)

var log = logger.New("chat")

// Notifier is the delivery hub surface the service fans events out
// through. The websocket.Hub satisfies it; tests substitute a fake.
type Notifier interface {
	MessageCreated(recipient uuid.UUID, msg *models.Message)
	MessageUpdated(participants [2]uuid.UUID, msg *models.Message)
	MessageDeleted(participants [2]uuid.UUID, messageID uuid.UUID)
}

// Service orchestrates the messaging core: it validates requests, runs
// the store operations, and triggers fan-out. Fan-out is fire-and-
// forget; only store failures surface to the caller.
type Service struct {
	store    database.Store
	notifier Notifier
}

func NewService(store database.Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// SendMessage appends a message for the (sender, recipient) pair,
// creating their conversation on first contact. The created message is
// returned synchronously to the sender; only the recipient is notified
// over the push channel.
func (s *Service) SendMessage(sender, recipient uuid.UUID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	if _, err := s.store.GetUserByID(recipient); err != nil {
		return nil, err
	}

	conv, err := s.store.FindOrCreateConversation(sender, recipient)
	if err != nil {
		return nil, err
	}

	msg, err := s.store.CreateMessage(conv.ID, sender, content)
	if err != nil {
		return nil, err
	}

	// Append and pointer update are separate statements; a failure here
	// leaves last_message stale until the next send, which the list
	// query tolerates.
	if err := s.store.TouchConversation(conv.ID, msg.ID); err != nil {
		log.Warn("Failed to update conversation %s last message: %v", conv.ID, err)
	}

	s.notifier.MessageCreated(recipient, msg)

	return msg, nil
}

// EditMessage replaces a message's content. Ownership is enforced by
// the store; on success both participants are notified, including the
// editor's other open sessions.
func (s *Service) EditMessage(editor, messageID uuid.UUID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	msg, err := s.store.UpdateMessageContent(messageID, editor, content)
	if err != nil {
		return nil, err
	}

	conv, err := s.store.GetConversationByID(msg.ConversationID)
	if err != nil {
		log.Error("Edited message %s belongs to unknown conversation %s: %v", msg.ID, msg.ConversationID, err)
		return msg, nil
	}

	s.notifier.MessageUpdated(conv.Participants(), msg)

	return msg, nil
}

// DeleteMessage removes a message permanently and notifies both
// participants with the id alone, since the record no longer exists by
// the time the event is consumed.
func (s *Service) DeleteMessage(requester, messageID uuid.UUID) error {
	msg, err := s.store.GetMessageByID(messageID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteMessage(messageID, requester); err != nil {
		return err
	}

	conv, err := s.store.GetConversationByID(msg.ConversationID)
	if err != nil {
		log.Error("Deleted message %s belonged to unknown conversation %s: %v", messageID, msg.ConversationID, err)
		return nil
	}

	s.notifier.MessageDeleted(conv.Participants(), messageID)

	return nil
}

// ListConversations returns the caller's conversations, most recently
// active first.
func (s *Service) ListConversations(caller uuid.UUID) ([]*models.ConversationResponse, error) {
	return s.store.GetConversationsForUser(caller)
}

// ListMessages returns a conversation's messages oldest first. Callers
// may only read conversations they participate in.
func (s *Service) ListMessages(caller, conversationID uuid.UUID) ([]*models.Message, error) {
	conv, err := s.store.GetConversationByID(conversationID)
	if err != nil {
		return nil, err
	}

	if !conv.HasParticipant(caller) {
		return nil, ErrNotParticipant
	}

	return s.store.GetMessagesByConversation(conversationID)
}
