// Package chatview is the client-side reconciliation layer: it merges
// synchronous API results and asynchronous hub events into one
// consistent ordered view of the chat screen. Both feeds can describe
// the same logical change, so every merge is keyed by id and tolerates
// duplicates and late arrivals.
package chatview

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alumlink/alumlink/internal/models"
)

// DeletedPreview replaces a conversation summary's last-message text
// when that message was deleted. The true new last message is not
// recomputed; the next full fetch repairs it.
const DeletedPreview = "Message deleted"

// Entry is one row of the open conversation. A pending entry is the
// optimistic placeholder for an in-flight send, matched to the server
// result by LocalID rather than content.
type Entry struct {
	Message models.Message
	Pending bool
	LocalID uuid.UUID
}

// Summary is one row of the conversation list.
type Summary struct {
	ID           uuid.UUID
	Participants []models.UserResponse
	LastMessage  *models.Message
	UpdatedAt    time.Time
}

// View holds the state of a single chat screen: the conversation list
// and at most one open conversation's message log. Safe for use from
// the network goroutine and the event goroutine concurrently.
type View struct {
	mu        sync.Mutex
	open      uuid.UUID // uuid.Nil when no conversation is open
	entries   []Entry
	summaries []Summary
}

func NewView() *View {
	return &View{}
}

// SetConversations replaces the conversation list from a full fetch.
func (v *View) SetConversations(convs []*models.ConversationResponse) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.summaries = v.summaries[:0]
	for _, c := range convs {
		v.summaries = append(v.summaries, Summary{
			ID:           c.ID,
			Participants: c.Participants,
			LastMessage:  c.LastMessage,
			UpdatedAt:    c.UpdatedAt,
		})
	}
	v.resortLocked()
}

// OpenConversation switches the open view to the given conversation,
// replacing local state with the freshly fetched message list. This
// full re-fetch is the authoritative remedy for any events missed or
// reordered while the view was elsewhere; pending placeholders from
// the previous view are dropped, and their late results will be
// discarded by correlation id.
func (v *View) OpenConversation(conversationID uuid.UUID, msgs []*models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.open = conversationID
	v.entries = v.entries[:0]
	for _, m := range msgs {
		v.entries = append(v.entries, Entry{Message: *m})
	}
}

// Close clears the open conversation without touching the summaries.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.open = uuid.Nil
	v.entries = nil
}

// BeginSend appends an optimistic placeholder before the network call
// resolves and returns the correlation id the caller hands to
// ResolveSend or FailSend.
func (v *View) BeginSend(sender uuid.UUID, content string) uuid.UUID {
	v.mu.Lock()
	defer v.mu.Unlock()

	localID := uuid.New()
	v.entries = append(v.entries, Entry{
		Message: models.Message{
			ConversationID: v.open,
			SenderID:       sender,
			Content:        content,
			CreatedAt:      time.Now(),
		},
		Pending: true,
		LocalID: localID,
	})
	return localID
}

// ResolveSend replaces the matching placeholder with the authoritative
// message from the synchronous response. If the view has moved on and
// the placeholder is gone, the result still refreshes the conversation
// summary but is otherwise discarded.
func (v *View) ResolveSend(localID uuid.UUID, msg *models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range v.entries {
		if v.entries[i].Pending && v.entries[i].LocalID == localID {
			v.entries[i] = Entry{Message: *msg}
			break
		}
	}

	v.bumpSummaryLocked(msg)
}

// FailSend removes the placeholder for a failed send. The caller
// surfaces the error next to the input; nothing is retried here.
func (v *View) FailSend(localID uuid.UUID) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range v.entries {
		if v.entries[i].Pending && v.entries[i].LocalID == localID {
			v.entries = append(v.entries[:i], v.entries[i+1:]...)
			return
		}
	}
}

// ApplyCreated merges a message_created event. The message is appended
// only when its conversation is the open one; for any other
// conversation just the summary and its ordering change, so inactive
// conversations never accumulate message lists.
func (v *View) ApplyCreated(msg *models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if msg.ConversationID == v.open && !v.containsLocked(msg.ID) {
		v.entries = append(v.entries, Entry{Message: *msg})
	}

	v.bumpSummaryLocked(msg)
}

// ApplyUpdated merges a message_updated event: the message is replaced
// in place wherever it currently appears. Unknown ids are a no-op,
// which also makes the editor's duplicate event harmless.
func (v *View) ApplyUpdated(msg *models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range v.entries {
		if !v.entries[i].Pending && v.entries[i].Message.ID == msg.ID {
			v.entries[i].Message = *msg
		}
	}

	for i := range v.summaries {
		s := &v.summaries[i]
		if s.LastMessage != nil && s.LastMessage.ID == msg.ID {
			m := *msg
			s.LastMessage = &m
		}
	}
}

// ApplyDeleted merges a message_deleted event. Only the id is carried;
// if the deleted message was a summary's displayed last message, the
// preview degrades to a generic placeholder rather than recomputing.
func (v *View) ApplyDeleted(messageID uuid.UUID) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range v.entries {
		if !v.entries[i].Pending && v.entries[i].Message.ID == messageID {
			v.entries = append(v.entries[:i], v.entries[i+1:]...)
			break
		}
	}

	for i := range v.summaries {
		s := &v.summaries[i]
		if s.LastMessage != nil && s.LastMessage.ID == messageID {
			degraded := *s.LastMessage
			degraded.Content = DeletedPreview
			s.LastMessage = &degraded
		}
	}
}

// Open returns the id of the open conversation, uuid.Nil if none.
func (v *View) Open() uuid.UUID {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.open
}

// Messages returns a copy of the open conversation's rows in order,
// pending placeholders included.
func (v *View) Messages() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

// Conversations returns a copy of the summaries, most recently active
// first.
func (v *View) Conversations() []Summary {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]Summary, len(v.summaries))
	copy(out, v.summaries)
	return out
}

func (v *View) containsLocked(id uuid.UUID) bool {
	for i := range v.entries {
		if !v.entries[i].Pending && v.entries[i].Message.ID == id {
			return true
		}
	}
	return false
}

// bumpSummaryLocked makes msg the summary's last message and reorders
// the list. A message for a conversation the list has never seen is
// ignored; the next conversation fetch picks it up.
func (v *View) bumpSummaryLocked(msg *models.Message) {
	for i := range v.summaries {
		s := &v.summaries[i]
		if s.ID == msg.ConversationID {
			m := *msg
			s.LastMessage = &m
			s.UpdatedAt = msg.CreatedAt
			v.resortLocked()
			return
		}
	}
}

func (v *View) resortLocked() {
	sort.SliceStable(v.summaries, func(i, j int) bool {
		return v.summaries[i].UpdatedAt.After(v.summaries[j].UpdatedAt)
	})
}
