package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/alumlink/alumlink/internal/models"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotMessageSender     = errors.New("not the sender of this message")
)

type PostgresDB struct {
	*sql.DB
}

func NewPostgresDB(connStr string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PostgresDB{db}, nil
}

func (db *PostgresDB) CreateUser(name, email, passwordHash string) (*models.User, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM users WHERE email = $1", email).Scan(&count)
	if err != nil {
		return nil, err
	}

	if count > 0 {
		return nil, ErrUserAlreadyExists
	}

	user := &models.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
		LastSeen:     time.Now().UTC(),
	}

	_, err = db.Exec(
		"INSERT INTO users (id, name, email, password_hash, created_at, last_seen) VALUES ($1, $2, $3, $4, $5, $6)",
		user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt, user.LastSeen,
	)
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (db *PostgresDB) GetUserByEmail(email string) (*models.User, error) {
	user := &models.User{}

	err := db.QueryRow(`
		SELECT id, name, email, password_hash, COALESCE(avatar_url, ''),
		       created_at, last_seen
		FROM users WHERE email = $1`, email).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.AvatarURL, &user.CreatedAt, &user.LastSeen)

	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}

	if err != nil {
		return nil, err
	}

	return user, nil
}

func (db *PostgresDB) GetUserByID(id uuid.UUID) (*models.User, error) {
	var user models.User
	err := db.QueryRow(`
		SELECT id, name, email, password_hash, COALESCE(avatar_url, ''),
		       created_at, last_seen
		FROM users WHERE id = $1`,
		id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.CreatedAt,
		&user.LastSeen,
	)

	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (db *PostgresDB) UpdateLastSeen(userID uuid.UUID) error {
	result, err := db.Exec("UPDATE users SET last_seen = $1 WHERE id = $2",
		time.Now().UTC(), userID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (db *PostgresDB) GetAllUsers(excludeUserID uuid.UUID) ([]*models.User, error) {
	rows, err := db.Query(`
		SELECT id, name, email, password_hash, COALESCE(avatar_url, ''),
		       created_at, last_seen
		FROM users
		WHERE id != $1
		ORDER BY name`, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID,
			&user.Name,
			&user.Email,
			&user.PasswordHash,
			&user.AvatarURL,
			&user.CreatedAt,
			&user.LastSeen,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}

		users = append(users, &user)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	return users, nil
}

// FindOrCreateConversation returns the one conversation for the given
// pair, creating it if absent. The pair is normalized before lookup so
// both call directions hit the same row, and the table's unique
// constraint on (participant_low, participant_high) makes two racing
// first-senders converge: the losing insert is a no-op and the follow-up
// select sees the winner's row.
func (db *PostgresDB) FindOrCreateConversation(a, b uuid.UUID) (*models.Conversation, error) {
	low, high := models.NormalizePair(a, b)
	now := time.Now().UTC()

	_, err := db.Exec(`
		INSERT INTO conversations (id, participant_low, participant_high, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (participant_low, participant_high) DO NOTHING`,
		uuid.New(), low, high, now, now,
	)
	if err != nil {
		return nil, err
	}

	var conv models.Conversation
	var lastMessageID sql.NullString
	err = db.QueryRow(`
		SELECT id, participant_low, participant_high, last_message_id, created_at, updated_at
		FROM conversations
		WHERE participant_low = $1 AND participant_high = $2`,
		low, high).Scan(
		&conv.ID, &conv.ParticipantLow, &conv.ParticipantHi,
		&lastMessageID, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lastMessageID.Valid {
		conv.LastMessageID, _ = uuid.Parse(lastMessageID.String)
	}

	return &conv, nil
}

func (db *PostgresDB) GetConversationByID(id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	var lastMessageID sql.NullString

	err := db.QueryRow(`
		SELECT id, participant_low, participant_high, last_message_id, created_at, updated_at
		FROM conversations
		WHERE id = $1`,
		id).Scan(
		&conv.ID, &conv.ParticipantLow, &conv.ParticipantHi,
		&lastMessageID, &conv.CreatedAt, &conv.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}

	if lastMessageID.Valid {
		conv.LastMessageID, _ = uuid.Parse(lastMessageID.String)
	}

	return &conv, nil
}

// GetConversationsForUser returns the caller's conversations ordered by
// most recent activity, with both participants resolved to display info
// and the last message inlined. A last_message_id left dangling by a
// hard delete joins to nothing and the last message is simply omitted.
func (db *PostgresDB) GetConversationsForUser(userID uuid.UUID) ([]*models.ConversationResponse, error) {
	rows, err := db.Query(`
		SELECT c.id, c.updated_at,
		       ul.id, ul.name, ul.email, COALESCE(ul.avatar_url, ''), ul.created_at,
		       uh.id, uh.name, uh.email, COALESCE(uh.avatar_url, ''), uh.created_at,
		       m.id, m.conversation_id, m.sender_id, m.content, m.is_edited,
		       COALESCE(m.read_by, '{}'::uuid[]), m.created_at
		FROM conversations c
		JOIN users ul ON ul.id = c.participant_low
		JOIN users uh ON uh.id = c.participant_high
		LEFT JOIN messages m ON m.id = c.last_message_id
		WHERE c.participant_low = $1 OR c.participant_high = $1
		ORDER BY c.updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*models.ConversationResponse
	for rows.Next() {
		var resp models.ConversationResponse
		var low, high models.UserResponse
		var msgID, msgConvID, msgSenderID, msgContent sql.NullString
		var msgEdited sql.NullBool
		var msgCreatedAt sql.NullTime
		var readBy []uuid.UUID

		err := rows.Scan(
			&resp.ID, &resp.UpdatedAt,
			&low.ID, &low.Name, &low.Email, &low.AvatarURL, &low.CreatedAt,
			&high.ID, &high.Name, &high.Email, &high.AvatarURL, &high.CreatedAt,
			&msgID, &msgConvID, &msgSenderID, &msgContent, &msgEdited,
			pq.Array(&readBy), &msgCreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}

		resp.Participants = []models.UserResponse{low, high}

		if msgID.Valid {
			id, _ := uuid.Parse(msgID.String)
			convID, _ := uuid.Parse(msgConvID.String)
			senderID, _ := uuid.Parse(msgSenderID.String)
			resp.LastMessage = &models.Message{
				ID:             id,
				ConversationID: convID,
				SenderID:       senderID,
				Content:        msgContent.String,
				IsEdited:       msgEdited.Bool,
				ReadBy:         readBy,
				CreatedAt:      msgCreatedAt.Time,
			}
		}

		conversations = append(conversations, &resp)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation rows: %w", err)
	}

	return conversations, nil
}

func (db *PostgresDB) TouchConversation(conversationID, messageID uuid.UUID) error {
	result, err := db.Exec(
		"UPDATE conversations SET last_message_id = $1, updated_at = $2 WHERE id = $3",
		messageID, time.Now().UTC(), conversationID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrConversationNotFound
	}

	return nil
}

func (db *PostgresDB) CreateMessage(conversationID, senderID uuid.UUID, content string) (*models.Message, error) {
	message := &models.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		IsEdited:       false,
		ReadBy:         []uuid.UUID{senderID},
		CreatedAt:      time.Now().UTC(),
	}

	_, err := db.Exec(
		"INSERT INTO messages (id, conversation_id, sender_id, content, is_edited, read_by, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		message.ID, message.ConversationID, message.SenderID, message.Content,
		message.IsEdited, pq.Array(message.ReadBy), message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return message, nil
}

func (db *PostgresDB) GetMessageByID(messageID uuid.UUID) (*models.Message, error) {
	var msg models.Message

	err := db.QueryRow(`
		SELECT id, conversation_id, sender_id, content, is_edited, read_by, created_at
		FROM messages
		WHERE id = $1`,
		messageID).Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content,
		&msg.IsEdited, pq.Array(&msg.ReadBy), &msg.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}

	return &msg, nil
}

// GetMessagesByConversation returns the conversation's messages oldest
// first. Chronological ascending order is the contract the chat window
// relies on.
func (db *PostgresDB) GetMessagesByConversation(conversationID uuid.UUID) ([]*models.Message, error) {
	rows, err := db.Query(`
		SELECT id, conversation_id, sender_id, content, is_edited, read_by, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var msg models.Message

		err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content,
			&msg.IsEdited, pq.Array(&msg.ReadBy), &msg.CreatedAt)
		if err != nil {
			return nil, err
		}

		messages = append(messages, &msg)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// UpdateMessageContent replaces a message's content. Only the original
// sender may edit; the edit is last-writer-wins, no version token is
// checked.
func (db *PostgresDB) UpdateMessageContent(messageID, editorID uuid.UUID, content string) (*models.Message, error) {
	msg, err := db.GetMessageByID(messageID)
	if err != nil {
		return nil, err
	}

	if msg.SenderID != editorID {
		return nil, ErrNotMessageSender
	}

	_, err = db.Exec(
		"UPDATE messages SET content = $1, is_edited = true WHERE id = $2",
		content, messageID,
	)
	if err != nil {
		return nil, err
	}

	msg.Content = content
	msg.IsEdited = true

	return msg, nil
}

// DeleteMessage removes the row permanently. The conversation's
// last_message_id is intentionally left alone; a dangling pointer is
// tolerated and the list query simply omits the last message.
func (db *PostgresDB) DeleteMessage(messageID, requesterID uuid.UUID) error {
	msg, err := db.GetMessageByID(messageID)
	if err != nil {
		return err
	}

	if msg.SenderID != requesterID {
		return ErrNotMessageSender
	}

	_, err = db.Exec("DELETE FROM messages WHERE id = $1", messageID)
	return err
}

func (db *PostgresDB) Close() error {
	return db.DB.Close()
}
