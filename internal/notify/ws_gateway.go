package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// envelope is the wire shape of every server-sent event.
type envelope struct {
	Event     string    `json:"event"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// session wraps one websocket connection. gorilla/websocket allows a single
// concurrent writer, so every write goes through the session mutex.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *session) send(event string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(envelope{Event: event, Payload: payload, Timestamp: time.Now()})
}

// WSGateway holds the live websocket sessions and named broadcast groups.
type WSGateway struct {
	mu       sync.RWMutex
	sessions map[string]*session
	groups   map[string]map[string]bool // group -> set of connection ids

	logger *slog.Logger
}

func NewWSGateway(logger *slog.Logger) *WSGateway {
	return &WSGateway{
		sessions: make(map[string]*session),
		groups:   make(map[string]map[string]bool),
		logger:   logger,
	}
}

// Add registers a connection under the given id.
func (g *WSGateway) Add(connectionID string, conn *websocket.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[connectionID] = &session{conn: conn}
}

// Remove drops the connection and its group memberships.
func (g *WSGateway) Remove(connectionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, connectionID)
	for _, members := range g.groups {
		delete(members, connectionID)
	}
}

// JoinGroup adds the connection to a named broadcast group.
func (g *WSGateway) JoinGroup(group, connectionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.groups[group] == nil {
		g.groups[group] = make(map[string]bool)
	}
	g.groups[group][connectionID] = true
}

// SendToConnection delivers one event to one connection.
func (g *WSGateway) SendToConnection(connectionID, event string, payload any) error {
	g.mu.RLock()
	s, ok := g.sessions[connectionID]
	g.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.send(event, payload); err != nil {
		g.logger.Warn("ws send failed", "connection_id", connectionID, "event", event, "error", err)
		return err
	}
	return nil
}

// SendToGroup delivers one event to every member of a group. Individual
// failures are logged and skipped; the broadcast always runs to completion.
func (g *WSGateway) SendToGroup(group, event string, payload any) error {
	g.mu.RLock()
	members := make([]string, 0, len(g.groups[group]))
	for connID := range g.groups[group] {
		members = append(members, connID)
	}
	g.mu.RUnlock()

	for _, connID := range members {
		_ = g.SendToConnection(connID, event, payload)
	}
	return nil
}

// SendToConnections fans one event out to an explicit connection list.
func (g *WSGateway) SendToConnections(connectionIDs []string, event string, payload any) {
	for _, connID := range connectionIDs {
		_ = g.SendToConnection(connID, event, payload)
	}
}
