package database

import (
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB connects to the database named by TEST_DATABASE_URL and
// wipes it. Tests are skipped when no test database is configured.
func setupTestDB(t *testing.T) *PostgresDB {
	connStr := os.Getenv("TEST_DATABASE_URL")
	if connStr == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}

	db, err := NewPostgresDB(connStr)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	for _, table := range []string{"messages", "conversations", "users"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("Failed to clean up table %s: %v", table, err)
		}
	}

	return db
}

func createTestUser(t *testing.T, db *PostgresDB, name string) uuid.UUID {
	user, err := db.CreateUser(name, fmt.Sprintf("%s@example.com", name), "hash")
	require.NoError(t, err)
	return user.ID
}

func TestFindOrCreateConversationBothDirections(t *testing.T) {
	db := setupTestDB(t)

	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")

	first, err := db.FindOrCreateConversation(a, b)
	require.NoError(t, err)

	second, err := db.FindOrCreateConversation(b, a)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.HasParticipant(a))
	assert.True(t, first.HasParticipant(b))
}

func TestFindOrCreateConversationDistinctPairs(t *testing.T) {
	db := setupTestDB(t)

	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")
	c := createTestUser(t, db, "carol")

	ab, err := db.FindOrCreateConversation(a, b)
	require.NoError(t, err)
	ac, err := db.FindOrCreateConversation(a, c)
	require.NoError(t, err)

	assert.NotEqual(t, ab.ID, ac.ID)
}

func TestCreateMessageDefaults(t *testing.T) {
	db := setupTestDB(t)

	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")
	conv, err := db.FindOrCreateConversation(a, b)
	require.NoError(t, err)

	msg, err := db.CreateMessage(conv.ID, a, "hi")
	require.NoError(t, err)

	assert.False(t, msg.IsEdited)
	assert.Equal(t, []uuid.UUID{a}, msg.ReadBy)

	got, err := db.GetMessageByID(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Content)
	assert.Equal(t, []uuid.UUID{a}, got.ReadBy)
}

func TestGetMessagesByConversationOrdering(t *testing.T) {
	db := setupTestDB(t)

	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")
	conv, err := db.FindOrCreateConversation(a, b)
	require.NoError(t, err)

	for _, content := range []string{"one", "two", "three"} {
		_, err := db.CreateMessage(conv.ID, a, content)
		require.NoError(t, err)
	}

	msgs, err := db.GetMessagesByConversation(conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "three", msgs[2].Content)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt))
	}

	// Re-listing without writes returns the identical sequence
	again, err := db.GetMessagesByConversation(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, msgs, again)
}

func TestTouchConversationInlinesLastMessage(t *testing.T) {
	db := setupTestDB(t)

	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")
	conv, err := db.FindOrCreateConversation(a, b)
	require.NoError(t, err)

	msg, err := db.CreateMessage(conv.ID, a, "latest")
	require.NoError(t, err)
	require.NoError(t, db.TouchConversation(conv.ID, msg.ID))

	convs, err := db.GetConversationsForUser(b)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	require.NotNil(t, convs[0].LastMessage)
	assert.Equal(t, msg.ID, convs[0].LastMessage.ID)
	assert.Len(t, convs[0].Participants, 2)
}

func TestGetConversationsForUserOrdering(t *testing.T) {
	db := setupTestDB(t)

	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")
	c := createTestUser(t, db, "carol")

	older, err := db.FindOrCreateConversation(a, b)
	require.NoError(t, err)
	newer, err := db.FindOrCreateConversation(a, c)
	require.NoError(t, err)

	msg1, err := db.CreateMessage(older.ID, a, "first")
	require.NoError(t, err)
	require.NoError(t, db.TouchConversation(older.ID, msg1.ID))

	msg2, err := db.CreateMessage(newer.ID, a, "second")
	require.NoError(t, err)
	require.NoError(t, db.TouchConversation(newer.ID, msg2.ID))

	convs, err := db.GetConversationsForUser(a)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, newer.ID, convs[0].ID)
	assert.Equal(t, older.ID, convs[1].ID)
}

func TestUpdateMessageContentOwnership(t *testing.T) {
	db := setupTestDB(t)

	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")
	conv, err := db.FindOrCreateConversation(a, b)
	require.NoError(t, err)

	msg, err := db.CreateMessage(conv.ID, a, "hi")
	require.NoError(t, err)

	// Non-sender edit fails and leaves content unchanged
	_, err = db.UpdateMessageContent(msg.ID, b, "tampered")
	assert.ErrorIs(t, err, ErrNotMessageSender)

	unchanged, err := db.GetMessageByID(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", unchanged.Content)
	assert.False(t, unchanged.IsEdited)

	// Sender edit succeeds and flips is_edited
	edited, err := db.UpdateMessageContent(msg.ID, a, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", edited.Content)
	assert.True(t, edited.IsEdited)
}

func TestUpdateMessageContentNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.UpdateMessageContent(uuid.New(), uuid.New(), "hello")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestDeleteMessage(t *testing.T) {
	db := setupTestDB(t)

	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")
	conv, err := db.FindOrCreateConversation(a, b)
	require.NoError(t, err)

	msg, err := db.CreateMessage(conv.ID, a, "doomed")
	require.NoError(t, err)
	require.NoError(t, db.TouchConversation(conv.ID, msg.ID))

	// Non-sender delete is rejected
	assert.ErrorIs(t, db.DeleteMessage(msg.ID, b), ErrNotMessageSender)

	require.NoError(t, db.DeleteMessage(msg.ID, a))

	msgs, err := db.GetMessagesByConversation(conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = db.GetMessageByID(msg.ID)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	// The dangling last_message_id is tolerated: the list query simply
	// omits the last message
	convs, err := db.GetConversationsForUser(a)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Nil(t, convs[0].LastMessage)
}

func TestDeleteMessageNotFound(t *testing.T) {
	db := setupTestDB(t)

	err := db.DeleteMessage(uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrMessageNotFound)
}
