package inmemory

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/repository/connection"
)

type frame struct {
	data      []byte
	closeCode int
}

// Conn is a registered websocket with its own write pump. All writes to the socket go through it.
type Conn struct {
	ID     string
	RoomID string
	UserID string

	ws        *websocket.Conn
	send      chan frame
	done      chan struct{}
	closeOnce sync.Once
}

// Done is closed once the connection stops writing.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

type repo struct {
	rooms  map[string]map[string]*Conn
	mu     sync.RWMutex
	config connection.Config
	logger *slog.Logger
}

func NewRepo(config connection.Config, logger *slog.Logger) *repo {
	return &repo{
		rooms:  make(map[string]map[string]*Conn),
		config: config,
		logger: logger,
	}
}

// Add registers ws as the connection of userID in roomID. An older connection of the same user is
// closed with CloseReplaced.
func (r *repo) Add(ctx context.Context, roomID, userID string, ws *websocket.Conn) *Conn {
	c := &Conn{
		ID:     uuid.NewString(),
		RoomID: roomID,
		UserID: userID,
		ws:     ws,
		send:   make(chan frame, r.config.SendBuffer),
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	users, ok := r.rooms[roomID]
	if !ok {
		users = make(map[string]*Conn)
		r.rooms[roomID] = users
	}
	old := users[userID]
	users[userID] = c
	r.mu.Unlock()

	if old != nil {
		r.logger.InfoContext(ctx, "connection replaced", "room_id", roomID, "user_id", userID, "old_connection_id", old.ID)
		r.closeConn(old, connection.CloseReplaced, "replaced by a new connection")
	}

	go r.writePump(c)

	r.logger.DebugContext(ctx, "connection registered", "room_id", roomID, "user_id", userID, "connection_id", c.ID)
	return c
}

// Remove unregisters c and stops its pump. It reports whether the user is left without any
// connection in the room.
func (r *repo) Remove(ctx context.Context, c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.shutdown()

	users := r.rooms[c.RoomID]
	current, ok := users[c.UserID]
	if !ok {
		return true
	}

	if current != c {
		return false
	}

	delete(users, c.UserID)
	if len(users) == 0 {
		delete(r.rooms, c.RoomID)
	}

	r.logger.DebugContext(ctx, "connection unregistered", "room_id", c.RoomID, "user_id", c.UserID, "connection_id", c.ID)
	return true
}

func (r *repo) HasConn(roomID, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[roomID][userID]
	return ok
}

func (r *repo) Count(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[roomID])
}

func (r *repo) conns(roomID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Conn, 0, len(r.rooms[roomID]))
	for _, c := range r.rooms[roomID] {
		conns = append(conns, c)
	}

	return conns
}

// Broadcast enqueues msg on every connection of the room without blocking. Connections whose queue
// is full are dropped.
func (r *repo) Broadcast(roomID string, msg *domain.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("failed to marshal message", "error", err, "type", msg.Type)
		return
	}

	conns := r.conns(roomID)
	for _, c := range conns {
		r.enqueue(c, frame{data: data})
	}

	r.logger.Debug("message broadcasted", "room_id", roomID, "type", msg.Type, "connections", len(conns))
}

func (r *repo) SendToUser(roomID, userID string, msg *domain.Message) error {
	r.mu.RLock()
	c, ok := r.rooms[roomID][userID]
	r.mu.RUnlock()
	if !ok {
		return connection.ErrNotFound
	}

	return r.Send(c, msg)
}

// Send enqueues msg on c even if c is no longer registered.
func (r *repo) Send(c *Conn, msg *domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	if !r.enqueue(c, frame{data: data}) {
		return connection.ErrClosed
	}

	return nil
}

func (r *repo) enqueue(c *Conn, f frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- f:
		return true
	default:
		r.logger.Warn("connection send buffer full, dropping connection", "connection_id", c.ID, "user_id", c.UserID)
		r.drop(c)
		return false
	}
}

func (r *repo) drop(c *Conn) {
	r.mu.Lock()
	if users := r.rooms[c.RoomID]; users[c.UserID] == c {
		delete(users, c.UserID)
		if len(users) == 0 {
			delete(r.rooms, c.RoomID)
		}
	}
	r.mu.Unlock()

	c.shutdown()
	c.ws.Close()
}

// closeConn sends a close frame after the queued messages and stops the pump.
func (r *repo) closeConn(c *Conn, code int, reason string) {
	data := websocket.FormatCloseMessage(code, reason)
	select {
	case c.send <- frame{data: data, closeCode: code}:
	default:
		c.shutdown()
		c.ws.Close()
	}
}

// CloseUser unregisters the user's connection and closes it with code.
func (r *repo) CloseUser(roomID, userID string, code int, reason string) {
	r.mu.Lock()
	c, ok := r.rooms[roomID][userID]
	if ok {
		delete(r.rooms[roomID], userID)
	}
	r.mu.Unlock()

	if ok {
		r.closeConn(c, code, reason)
	}
}

// CloseRoom unregisters every connection of the room and closes them with code.
func (r *repo) CloseRoom(roomID string, code int, reason string) {
	r.mu.Lock()
	users := r.rooms[roomID]
	delete(r.rooms, roomID)
	r.mu.Unlock()

	for _, c := range users {
		r.closeConn(c, code, reason)
	}
}

func (r *repo) CloseAll(code int, reason string) {
	r.mu.RLock()
	roomIDs := make([]string, 0, len(r.rooms))
	for roomID := range r.rooms {
		roomIDs = append(roomIDs, roomID)
	}
	r.mu.RUnlock()

	for _, roomID := range roomIDs {
		r.CloseRoom(roomID, code, reason)
	}
}

func (r *repo) writePump(c *Conn) {
	ticker := time.NewTicker(r.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.shutdown()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case f := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(r.config.WriteTimeout))
			if f.closeCode != 0 {
				c.ws.WriteMessage(websocket.CloseMessage, f.data)
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, f.data); err != nil {
				r.logger.Info("failed to write message", "error", err, "connection_id", c.ID)
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(r.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				r.logger.Info("failed to send ping", "error", err, "connection_id", c.ID)
				return
			}
		}
	}
}
