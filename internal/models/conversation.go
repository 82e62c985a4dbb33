package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation pairs exactly two participants. The pair is stored
// normalized (smaller uuid first) so the unordered pair is unique.
type Conversation struct {
	ID             uuid.UUID `json:"id"`
	ParticipantLow uuid.UUID `json:"-"`
	ParticipantHi  uuid.UUID `json:"-"`
	LastMessageID  uuid.UUID `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Participants returns the stored pair.
func (c *Conversation) Participants() [2]uuid.UUID {
	return [2]uuid.UUID{c.ParticipantLow, c.ParticipantHi}
}

// HasParticipant reports whether u is one of the two members.
func (c *Conversation) HasParticipant(u uuid.UUID) bool {
	return c.ParticipantLow == u || c.ParticipantHi == u
}

// OtherParticipant returns the member that is not u.
func (c *Conversation) OtherParticipant(u uuid.UUID) uuid.UUID {
	if c.ParticipantLow == u {
		return c.ParticipantHi
	}
	return c.ParticipantLow
}

// ConversationResponse is the list-view form: participants resolved to
// display info and the last message inlined.
type ConversationResponse struct {
	ID           uuid.UUID      `json:"id"`
	Participants []UserResponse `json:"participants"`
	LastMessage  *Message       `json:"last_message,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NormalizePair orders two participant ids into the stored (low, high)
// form. Both directions of a pair map to the same key.
func NormalizePair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}
