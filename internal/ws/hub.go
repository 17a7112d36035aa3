package ws

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Message types pushed to live monitors and student sessions.
const (
	MessageTypeAttemptEvent   = "attempt_event"
	MessageTypeExamTerminated = "exam_terminated"
	MessageTypeJoined         = "joined"
)

// RoomAllAttempts is the staff-wide room receiving every attempt's events.
const RoomAllAttempts = "all_attempts"

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// AttemptEventData is the payload of an attempt_event message.
type AttemptEventData struct {
	AttemptID uint        `json:"attempt_id"`
	Record    interface{} `json:"record"`
}

// TerminationData is the payload of an exam_terminated message.
type TerminationData struct {
	AttemptID uint   `json:"attempt_id"`
	Message   string `json:"message"`
}

// Publisher is the outbound live-transport boundary. Delivery is
// at-least-once and best-effort; subscribers must tolerate duplicates.
type Publisher interface {
	PublishAttempt(attemptID uint, msg Message)
	PublishAll(msg Message)
}

// Hub tracks connected clients per room. Rooms are keyed by attempt
// ("attempt_<id>") plus one global staff room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]bool)}
}

// AttemptRoom returns the room name scoped to one attempt.
func AttemptRoom(attemptID uint) string {
	return fmt.Sprintf("attempt_%d", attemptID)
}

func (h *Hub) Subscribe(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	client.rooms[room] = true
	log.Debug().Str("room", room).Int("clients", len(h.rooms[room])).Msg("ws client subscribed")
}

// Remove detaches the client from every room and closes its send channel.
// Idempotent; typically called from the read pump on disconnect.
func (h *Hub) Remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detach(client)
	h.closeSend(client)
}

// closeSend closes the client's send channel exactly once; caller holds h.mu.
func (h *Hub) closeSend(client *Client) {
	if !client.closed {
		client.closed = true
		close(client.send)
	}
}

// detach removes the client from its rooms; caller holds h.mu.
func (h *Hub) detach(client *Client) {
	for room := range client.rooms {
		if clients := h.rooms[room]; clients != nil {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.rooms, room)
			}
		}
		delete(client.rooms, room)
	}
}

func (h *Hub) PublishAttempt(attemptID uint, msg Message) {
	h.publish(AttemptRoom(attemptID), msg)
}

func (h *Hub) PublishAll(msg Message) {
	h.publish(RoomAllAttempts, msg)
}

func (h *Hub) publish(room string, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.rooms[room] {
		select {
		case client.send <- msg:
		default:
			// Slow consumer; drop it rather than block the pipeline.
			log.Warn().Str("room", room).Msg("ws client send buffer full, dropping client")
			h.detach(client)
			h.closeSend(client)
		}
	}
}

// ClientCount reports the number of subscribers in a room.
func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
