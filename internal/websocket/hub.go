package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alumlink/alumlink/internal/logger"
	"github.com/alumlink/alumlink/internal/models"
)

// Event types pushed to clients
const (
	EventMessageCreated = "message_created"
	EventMessageUpdated = "message_updated"
	EventMessageDeleted = "message_deleted"
)

// MessageTypeJoin is the one client-to-server frame the protocol
// defines: the connection declares which participant's channel it
// subscribes to.
const MessageTypeJoin = "join"

var log = logger.New("websocket")

// Event is the wire form of a push notification. message_created and
// message_updated carry the full message; message_deleted carries only
// the id, because the row is already gone.
type Event struct {
	Type      string          `json:"type"`
	Message   *models.Message `json:"message,omitempty"`
	MessageID uuid.UUID       `json:"message_id,omitempty"`
}

// clientFrame is what we accept from the socket. Anything other than a
// join declaration is rejected.
type clientFrame struct {
	Type          string    `json:"type"`
	ParticipantID uuid.UUID `json:"participant_id"`
}

// session is a single open websocket connection. A participant with
// several open tabs has several sessions subscribed to the same
// logical channel.
type session struct {
	participant uuid.UUID
	socket      *websocket.Conn
	send        chan []byte
}

// Hub maintains one logical channel per declared participant identity
// and fans lifecycle events out to every session subscribed to it.
// It is constructed explicitly and passed by reference so tests can
// swap in a fake notifier instead.
type Hub struct {
	sessions   map[uuid.UUID]map[*session]struct{}
	register   chan *session
	unregister chan *session
	mutex      sync.Mutex
}

// NewHub creates a hub. Run must be started before any fan-out.
func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[uuid.UUID]map[*session]struct{}),
		register:   make(chan *session),
		unregister: make(chan *session),
	}
}

// Run processes session registration. Call in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case s := <-h.register:
			h.mutex.Lock()
			if h.sessions[s.participant] == nil {
				h.sessions[s.participant] = make(map[*session]struct{})
			}
			h.sessions[s.participant][s] = struct{}{}
			log.Info("Participant %s joined (%d open sessions)", s.participant, len(h.sessions[s.participant]))
			h.mutex.Unlock()
		case s := <-h.unregister:
			h.mutex.Lock()
			if set, ok := h.sessions[s.participant]; ok {
				if _, joined := set[s]; joined {
					delete(set, s)
					close(s.send)
					if len(set) == 0 {
						delete(h.sessions, s.participant)
					}
					log.Info("Participant %s session closed", s.participant)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// MessageCreated pushes a new message to the recipient's channel. The
// sender gets its copy as the synchronous API response instead.
func (h *Hub) MessageCreated(recipient uuid.UUID, msg *models.Message) {
	h.push(Event{Type: EventMessageCreated, Message: msg}, recipient)
}

// MessageUpdated pushes the edited message to both participants,
// including the editor's other open sessions.
func (h *Hub) MessageUpdated(participants [2]uuid.UUID, msg *models.Message) {
	h.push(Event{Type: EventMessageUpdated, Message: msg}, participants[0], participants[1])
}

// MessageDeleted pushes a deletion notice, id only, to both
// participants.
func (h *Hub) MessageDeleted(participants [2]uuid.UUID, messageID uuid.UUID) {
	h.push(Event{Type: EventMessageDeleted, MessageID: messageID}, participants[0], participants[1])
}

// push is fire-and-forget: delivery failures are logged, never
// propagated to the request that triggered the event. A client that
// misses an event recovers by re-fetching on its next conversation
// switch.
func (h *Hub) push(event Event, participants ...uuid.UUID) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error("Failed to marshal %s event: %v", event.Type, err)
		return
	}

	for _, p := range participants {
		h.sendToParticipant(p, payload)
	}
}

func (h *Hub) sendToParticipant(participant uuid.UUID, payload []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	set, ok := h.sessions[participant]
	if !ok {
		log.Debug("Participant %s not connected", participant)
		return
	}

	for s := range set {
		select {
		case s.send <- payload:
		default:
			close(s.send)
			delete(set, s)
			log.Warn("Dropped slow session for participant %s", participant)
		}
	}
	if len(set) == 0 {
		delete(h.sessions, participant)
	}
}

// HandleWebSocket upgrades the request and waits for the connection's
// join declaration. The declared identity is the sole fan-out key; the
// auth layer upstream owns verifying it belongs to the session.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Origin restrictions are enforced by the CORS layer
			return true
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade connection: %v", err)
		return
	}

	s := &session{
		socket: conn,
		send:   make(chan []byte, 256),
	}

	go s.readPump(h)
	go s.writePump()
}

// readPump waits for the join frame, registers the session under the
// declared identity, then only services control frames until close.
func (s *session) readPump(h *Hub) {
	joined := false
	defer func() {
		if joined {
			h.unregister <- s
		}
		s.socket.Close()
	}()

	s.socket.SetReadLimit(4 * 1024)
	s.socket.SetReadDeadline(time.Now().Add(60 * time.Second))
	s.socket.SetPongHandler(func(string) error {
		s.socket.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := s.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error("Error reading from session: %v", err)
			}
			break
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Debug("Ignoring malformed frame: %v", err)
			continue
		}

		switch frame.Type {
		case MessageTypeJoin:
			if joined {
				log.Debug("Duplicate join from participant %s ignored", s.participant)
				continue
			}
			if frame.ParticipantID == uuid.Nil {
				log.Warn("Join frame without participant id, closing")
				return
			}
			s.participant = frame.ParticipantID
			joined = true
			h.register <- s
		default:
			log.Debug("Ignoring client frame type %q", frame.Type)
		}
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings.
func (s *session) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		s.socket.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			s.socket.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				s.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := s.socket.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(payload)

			// Flush any events queued behind this one
			n := len(s.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-s.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			s.socket.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
