// Package hub tracks realtime connections and the conversation rooms they
// have joined.
package hub

import (
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/xiaot623/roadchat/internal/domain"
)

// Connection represents a single WebSocket connection bound to a session.
type Connection struct {
	ID      string
	Session domain.ClientSession
	Conn    *websocket.Conn
	Send    chan []byte

	// rooms is guarded by the owning hub's mutex.
	rooms map[domain.ConversationID]struct{}
	mu    sync.Mutex
}

// Hub manages connections and room membership. All maps are guarded by mu,
// and a connection's Send channel is only closed while holding it.
type Hub struct {
	connections map[string]*Connection
	users       map[string]map[string]*Connection
	rooms       map[domain.ConversationID]map[string]*Connection

	log *slog.Logger
	mu  sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		users:       make(map[string]map[string]*Connection),
		rooms:       make(map[domain.ConversationID]map[string]*Connection),
		log:         log,
	}
}

// NewConnection creates a connection for an admitted session. It is not
// registered yet.
func (h *Hub) NewConnection(ws *websocket.Conn, sess domain.ClientSession, bufferSize int) *Connection {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Connection{
		ID:      uuid.New().String(),
		Session: sess,
		Conn:    ws,
		Send:    make(chan []byte, bufferSize),
		rooms:   make(map[domain.ConversationID]struct{}),
	}
}

// Register adds conn to the hub.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[conn.ID] = conn
	email := conn.Session.UserEmail
	if h.users[email] == nil {
		h.users[email] = make(map[string]*Connection)
	}
	h.users[email][conn.ID] = conn
	h.log.Debug("connection registered", "conn_id", conn.ID, "user", email)
}

// Unregister releases every room of conn and closes its Send channel. It is
// safe to call more than once.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(conn)
}

func (h *Hub) unregisterLocked(conn *Connection) {
	if _, ok := h.connections[conn.ID]; !ok {
		return
	}
	delete(h.connections, conn.ID)

	email := conn.Session.UserEmail
	if conns := h.users[email]; conns != nil {
		delete(conns, conn.ID)
		if len(conns) == 0 {
			delete(h.users, email)
		}
	}
	for room := range conn.rooms {
		if members := h.rooms[room]; members != nil {
			delete(members, conn.ID)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	conn.rooms = make(map[domain.ConversationID]struct{})
	close(conn.Send)
	h.log.Debug("connection unregistered", "conn_id", conn.ID, "user", email)
}

// Join subscribes conn to room. It reports false if conn is no longer
// registered.
func (h *Hub) Join(conn *Connection, room domain.ConversationID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.joinLocked(conn, room)
}

func (h *Hub) joinLocked(conn *Connection, room domain.ConversationID) bool {
	if _, ok := h.connections[conn.ID]; !ok {
		return false
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Connection)
	}
	h.rooms[room][conn.ID] = conn
	conn.rooms[room] = struct{}{}
	return true
}

// JoinUser subscribes every live connection of userEmail to room.
func (h *Hub) JoinUser(userEmail string, room domain.ConversationID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range h.users[userEmail] {
		h.joinLocked(conn, room)
	}
}

// IsMember reports whether conn is registered and joined to room.
func (h *Hub) IsMember(conn *Connection, room domain.ConversationID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][conn.ID]
	return ok
}

// Rooms returns the rooms conn has joined, sorted.
func (h *Hub) Rooms(conn *Connection) []domain.ConversationID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := lo.Keys(conn.rooms)
	slices.Sort(rooms)
	return rooms
}

// Broadcast sends data to every member of room except exclude, which may be
// nil. It returns the number of connections the frame was queued for.
func (h *Hub) Broadcast(room domain.ConversationID, data []byte, exclude *Connection) int {
	return h.broadcast(room, data, func(conn *Connection) bool {
		return exclude != nil && conn.ID == exclude.ID
	})
}

// BroadcastExceptUser sends data to every member of room not owned by
// userEmail.
func (h *Hub) BroadcastExceptUser(room domain.ConversationID, data []byte, userEmail string) int {
	return h.broadcast(room, data, func(conn *Connection) bool {
		return conn.Session.UserEmail == userEmail
	})
}

// BroadcastJSON marshals v and broadcasts it to room except exclude.
func (h *Hub) BroadcastJSON(room domain.ConversationID, v any, exclude *Connection) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return h.Broadcast(room, data, exclude), nil
}

func (h *Hub) broadcast(room domain.ConversationID, data []byte, skip func(*Connection) bool) int {
	var (
		sent int
		slow []*Connection
	)
	h.mu.RLock()
	for _, conn := range h.rooms[room] {
		if skip(conn) {
			continue
		}
		select {
		case conn.Send <- data:
			sent++
		default:
			slow = append(slow, conn)
		}
	}
	h.mu.RUnlock()

	if len(slow) > 0 {
		h.mu.Lock()
		for _, conn := range slow {
			h.log.Warn("connection buffer full, closing", "conn_id", conn.ID, "user", conn.Session.UserEmail)
			h.unregisterLocked(conn)
		}
		h.mu.Unlock()
	}
	return sent
}

// SendToConnection queues data for a single connection.
func (h *Hub) SendToConnection(conn *Connection, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return ErrNotRegistered
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// SendJSONToConnection marshals v and queues it for conn.
func (h *Hub) SendJSONToConnection(conn *Connection, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.SendToConnection(conn, data)
}

// Shutdown unregisters every connection. Their write pumps then send a
// close frame and exit.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range h.connections {
		h.unregisterLocked(conn)
	}
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// RoomSize returns the number of connections joined to room.
func (h *Hub) RoomSize(room domain.ConversationID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// RoomCount returns the number of rooms with at least one member.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the underlying socket.
func (c *Connection) Close() error {
	return c.Conn.Close()
}
