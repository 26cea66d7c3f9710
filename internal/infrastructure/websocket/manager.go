package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"neighborly/internal/infrastructure/ratelimit"
	"neighborly/pkg/logger"
	"neighborly/pkg/realtime"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 256
)

// Client is one websocket session. A user may hold several.
type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	mu     sync.Mutex
	state  realtime.ConnectionState
	outbox []roomIntent
	rooms  map[string]bool
}

type roomIntent struct {
	join bool
	room string
}

func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		state:  realtime.Connecting,
		rooms:  make(map[string]bool),
	}
}

func (c *Client) State() realtime.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RoomAuthorizer decides whether a user may subscribe to a room.
type RoomAuthorizer interface {
	CanJoinRoom(ctx context.Context, userID, room string) bool
}

// ReceiptHandler advances message statuses for a thread room.
type ReceiptHandler interface {
	MarkDelivered(ctx context.Context, userID, threadID string) error
	MarkSeen(ctx context.Context, readerID, threadID string) error
}

// Manager tracks sessions, per-user channels and rooms. Publishing is
// synchronous into each session's buffered Send channel, so frames reach a
// session in the order they were published.
type Manager struct {
	mutex    sync.RWMutex
	sessions map[string]*Client
	users    map[string]map[string]*Client
	rooms    map[string]map[string]*Client

	relay      Relay
	instanceID string

	authorizer RoomAuthorizer
	receipts   ReceiptHandler
	limiter    *ratelimit.RateLimiter
}

func NewManager(relay Relay) *Manager {
	return &Manager{
		sessions:   make(map[string]*Client),
		users:      make(map[string]map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		relay:      relay,
		instanceID: uuid.New().String(),
	}
}

// Bind attaches the command dependencies. It is separate from NewManager
// because the usecases publish through the manager.
func (m *Manager) Bind(authorizer RoomAuthorizer, receipts ReceiptHandler, limiter *ratelimit.RateLimiter) {
	m.authorizer = authorizer
	m.receipts = receipts
	m.limiter = limiter
}

// Start consumes relayed frames from other instances until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	if m.relay == nil {
		return
	}
	go func() {
		err := m.relay.Subscribe(ctx, func(msg RelayMessage) {
			if msg.Origin == m.instanceID {
				return
			}
			switch msg.Kind {
			case relayRoom:
				m.deliverToRoom(msg.Target, msg.Frame)
			case relayUser:
				m.deliverToUser(msg.Target, msg.Frame)
			}
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("WebSocket: relay subscription ended: %v", err)
		}
	}()
	logger.Info("WebSocket: relay started for instance %s", m.instanceID)
}

// Register marks the session Connected and flushes the room intents it
// queued while connecting.
// A session whose connection already failed stays Disconnected.
func (m *Manager) Register(client *Client) {
	client.mu.Lock()
	if client.state == realtime.Disconnected {
		client.mu.Unlock()
		return
	}

	m.mutex.Lock()
	m.sessions[client.ID] = client
	if m.users[client.UserID] == nil {
		m.users[client.UserID] = make(map[string]*Client)
	}
	m.users[client.UserID][client.ID] = client
	m.mutex.Unlock()

	client.state = realtime.Connected
	pending := client.outbox
	client.outbox = nil
	client.mu.Unlock()

	logger.Info("WebSocket: session %s registered for user %s", client.ID, client.UserID)

	for _, intent := range pending {
		if intent.join {
			m.Join(client, intent.room)
		} else {
			m.Leave(client, intent.room)
		}
	}
}

// Unregister drops the session from every room and closes its Send channel.
func (m *Manager) Unregister(client *Client) {
	client.mu.Lock()
	if client.state == realtime.Disconnected {
		client.mu.Unlock()
		return
	}
	client.state = realtime.Disconnected
	rooms := make([]string, 0, len(client.rooms))
	for room := range client.rooms {
		rooms = append(rooms, room)
	}
	client.rooms = make(map[string]bool)
	client.outbox = nil
	client.mu.Unlock()

	m.mutex.Lock()
	delete(m.sessions, client.ID)
	if sessions, ok := m.users[client.UserID]; ok {
		delete(sessions, client.ID)
		if len(sessions) == 0 {
			delete(m.users, client.UserID)
		}
	}
	for _, room := range rooms {
		m.removeFromRoomLocked(room, client)
	}
	m.mutex.Unlock()

	for _, room := range rooms {
		m.trackPresence(room, client.UserID, -1)
	}
	close(client.Send)
	logger.Info("WebSocket: session %s unregistered for user %s", client.ID, client.UserID)
}

// Join subscribes the session to a room. Before the session is Connected the
// intent is queued and Join reports false.
func (m *Manager) Join(client *Client, room string) bool {
	client.mu.Lock()
	switch client.state {
	case realtime.Connecting:
		client.outbox = append(client.outbox, roomIntent{join: true, room: room})
		client.mu.Unlock()
		return false
	case realtime.Disconnected:
		client.mu.Unlock()
		return false
	}
	if client.rooms[room] {
		client.mu.Unlock()
		return true
	}
	client.rooms[room] = true
	client.mu.Unlock()

	m.mutex.Lock()
	if m.rooms[room] == nil {
		m.rooms[room] = make(map[string]*Client)
	}
	m.rooms[room][client.ID] = client
	m.mutex.Unlock()

	m.trackPresence(room, client.UserID, 1)
	m.afterJoin(client, room)
	return true
}

func (m *Manager) Leave(client *Client, room string) {
	client.mu.Lock()
	if client.state == realtime.Connecting {
		client.outbox = append(client.outbox, roomIntent{join: false, room: room})
		client.mu.Unlock()
		return
	}
	if !client.rooms[room] {
		client.mu.Unlock()
		return
	}
	delete(client.rooms, room)
	client.mu.Unlock()

	m.mutex.Lock()
	m.removeFromRoomLocked(room, client)
	m.mutex.Unlock()

	m.trackPresence(room, client.UserID, -1)
}

func (m *Manager) removeFromRoomLocked(room string, client *Client) {
	members, ok := m.rooms[room]
	if !ok {
		return
	}
	delete(members, client.ID)
	if len(members) == 0 {
		delete(m.rooms, room)
	}
}

// IsInRoom reports whether any session of the user is subscribed to the
// room, on this instance or, with a relay, on another one.
func (m *Manager) IsInRoom(room, userID string) bool {
	m.mutex.RLock()
	for _, client := range m.rooms[room] {
		if client.UserID == userID {
			m.mutex.RUnlock()
			return true
		}
	}
	m.mutex.RUnlock()

	if m.relay == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return m.relay.Present(ctx, room, userID)
}

func (m *Manager) PublishToRoom(room, eventType string, payload interface{}) {
	frame, ok := m.encode(eventType, room, payload)
	if !ok {
		return
	}
	m.deliverToRoom(room, frame)
	m.relayFrame(relayRoom, room, frame)
}

func (m *Manager) PublishToUser(userID, eventType string, payload interface{}) {
	frame, ok := m.encode(eventType, "", payload)
	if !ok {
		return
	}
	m.deliverToUser(userID, frame)
	m.relayFrame(relayUser, userID, frame)
}

// PublishToRoomExcept skips the sessions of one user. Used for typing indicators.
func (m *Manager) PublishToRoomExcept(room, exceptUserID, eventType string, payload interface{}) {
	frame, ok := m.encode(eventType, room, payload)
	if !ok {
		return
	}
	for _, client := range m.roomMembers(room) {
		if client.UserID != exceptUserID {
			m.deliver(client, frame)
		}
	}
}

func (m *Manager) encode(eventType, room string, payload interface{}) ([]byte, bool) {
	msg, err := realtime.NewMessage(eventType, room, payload)
	if err != nil {
		logger.Error("WebSocket: failed to encode %s payload: %v", eventType, err)
		return nil, false
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		logger.Error("WebSocket: failed to marshal %s frame: %v", eventType, err)
		return nil, false
	}
	return frame, true
}

func (m *Manager) roomMembers(room string) []*Client {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	members := make([]*Client, 0, len(m.rooms[room]))
	for _, client := range m.rooms[room] {
		members = append(members, client)
	}
	return members
}

func (m *Manager) deliverToRoom(room string, frame []byte) {
	for _, client := range m.roomMembers(room) {
		m.deliver(client, frame)
	}
}

func (m *Manager) deliverToUser(userID string, frame []byte) {
	m.mutex.RLock()
	sessions := make([]*Client, 0, len(m.users[userID]))
	for _, client := range m.users[userID] {
		sessions = append(sessions, client)
	}
	m.mutex.RUnlock()

	for _, client := range sessions {
		m.deliver(client, frame)
	}
}

// deliver is a no-op for sessions that are not Connected. A session whose
// buffer is full is dropped; its client reconnects and refetches.
func (m *Manager) deliver(client *Client, frame []byte) {
	client.mu.Lock()
	if client.state != realtime.Connected {
		state := client.state
		client.mu.Unlock()
		logger.Debug("WebSocket: skipping publish to session %s in state %s", client.ID, state)
		return
	}
	select {
	case client.Send <- frame:
		client.mu.Unlock()
	default:
		client.mu.Unlock()
		logger.Warn("WebSocket: session %s send buffer full, closing", client.ID)
		m.Unregister(client)
	}
}

func (m *Manager) relayFrame(kind, target string, frame []byte) {
	if m.relay == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := m.relay.Publish(ctx, RelayMessage{Origin: m.instanceID, Kind: kind, Target: target, Frame: frame})
	if err != nil {
		logger.Warn("WebSocket: relay publish to %s %s failed: %v", kind, target, err)
	}
}

func (m *Manager) trackPresence(room, userID string, delta int64) {
	if m.relay == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.relay.TrackPresence(ctx, room, userID, delta)
}

// SessionCount is reported by the health endpoint.
func (m *Manager) SessionCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// ReadPump reads commands until the connection fails, then unregisters.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		m.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket: read error for session %s: %v", c.ID, err)
			}
			return
		}
		m.HandleClientMessage(c, message)
	}
}

// WritePump drains Send onto the connection and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("WebSocket: write error for session %s: %v", c.ID, err)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
