// Package ws pushes server events to connected clients over websockets.
// Delivery is best effort; the HTTP API remains the source of truth and a
// client that misses an event simply refetches.
package ws

import (
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Event is one push notification. Payload must be JSON-marshalable.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Event types pushed by the API.
const (
	EventFriendRequest  = "friend_request"
	EventFriendAccepted = "friend_accepted"
	EventChatCreated    = "chat_created"
	EventMessagePosted  = "message_posted"
)

// EventSender is the minimal interface the hub needs from a connection: the
// ability to push one event to the connected client.
type EventSender interface {
	Send(Event) error
}

// Hub manages active connections for logged-in users. It maps user ids to one
// or more connections so the server can push events to all currently-connected
// endpoints for a user.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]map[int64]EventSender
	nextID int64
}

// NewHub creates a new hub instance.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[int64]EventSender)}
}

// Register registers a connection for the given user and returns a connection
// id which should be used later to unregister the connection when it closes.
func (h *Hub) Register(userID bson.ObjectID, s EventSender) int64 {
	key := userID.Hex()

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[key]; !ok {
		h.conns[key] = make(map[int64]EventSender)
	}

	h.nextID++
	id := h.nextID
	h.conns[key][id] = s
	return id
}

// Unregister removes a previously-registered connection for the given user.
func (h *Hub) Unregister(userID bson.ObjectID, id int64) {
	key := userID.Hex()

	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.conns[key]; ok {
		delete(conns, id)
		if len(conns) == 0 {
			delete(h.conns, key)
		}
	}
}

// SendToUser attempts to send the event to all currently-connected endpoints
// for the given user. If the user is not connected, returns an error. The hub
// does best-effort delivery: it tries every connection and returns the first
// error encountered (if any).
func (h *Hub) SendToUser(userID bson.ObjectID, ev Event) error {
	key := userID.Hex()

	// Copy the connection set under the read lock; Register/Unregister mutate
	// the inner map, so iterating it after the lock is released would race.
	type endpoint struct {
		id   int64
		conn EventSender
	}

	h.mu.RLock()
	conns := make([]endpoint, 0, len(h.conns[key]))
	for id, conn := range h.conns[key] {
		conns = append(conns, endpoint{id: id, conn: conn})
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return fmt.Errorf("user %s not connected", key)
	}

	var firstErr error
	// Track connection ids which failed so we can unregister them and avoid
	// keeping stale/broken connections in the hub.
	var failedIDs []int64

	for _, ep := range conns {
		if err := ep.conn.Send(ev); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failedIDs = append(failedIDs, ep.id)
		}
	}

	for _, id := range failedIDs {
		h.Unregister(userID, id)
	}

	return firstErr
}

// Notify pushes the event to every listed user, skipping the ones who are
// offline. Errors are swallowed; push is advisory.
func (h *Hub) Notify(ev Event, userIDs ...bson.ObjectID) {
	for _, id := range userIDs {
		_ = h.SendToUser(id, ev)
	}
}
