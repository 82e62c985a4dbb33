package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePair(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	low1, high1 := NormalizePair(a, b)
	low2, high2 := NormalizePair(b, a)

	assert.Equal(t, low1, low2)
	assert.Equal(t, high1, high2)
	assert.True(t, low1.String() <= high1.String())
}

func TestConversationParticipants(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	low, high := NormalizePair(a, b)
	conv := &Conversation{ID: uuid.New(), ParticipantLow: low, ParticipantHi: high}

	assert.True(t, conv.HasParticipant(a))
	assert.True(t, conv.HasParticipant(b))
	assert.False(t, conv.HasParticipant(uuid.New()))

	assert.Equal(t, b, conv.OtherParticipant(a))
	assert.Equal(t, a, conv.OtherParticipant(b))
}
