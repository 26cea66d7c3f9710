package realtime

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var ErrNotConnected = errors.New("realtime: not connected")

// Client is a websocket session to the API. Room joins and leaves issued
// while the session is not Connected are kept in an outbox and flushed in
// order once it is; rooms joined before a drop are re-joined on reconnect.
type Client struct {
	url    string
	header http.Header
	dialer *websocket.Dialer

	mu     sync.Mutex
	state  ConnectionState
	conn   *websocket.Conn
	outbox []Message
	rooms  map[string]bool

	writeMu sync.Mutex
	events  chan Message
	done    chan struct{}
	closed  bool
	readers int
}

func NewClient(url, token string) *Client {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return &Client{
		url:    url,
		header: header,
		dialer: websocket.DefaultDialer,
		rooms:  make(map[string]bool),
		events: make(chan Message, 64),
		done:   make(chan struct{}),
	}
}

func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Events delivers every frame received from the server.
func (c *Client) Events() <-chan Message {
	return c.events
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrNotConnected
	}
	if c.state != Disconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = Connecting
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		c.setState(Disconnected)
		return err
	}

	// Intents queued while the outbox is being written land back in the
	// outbox, so keep draining until it is empty and only then flip to
	// Connected under the same lock.
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return ErrNotConnected
		}
		c.conn = conn
		if len(c.outbox) == 0 {
			c.state = Connected
			c.readers++
			c.mu.Unlock()
			break
		}
		pending := c.outbox
		c.outbox = nil
		c.mu.Unlock()

		for i, msg := range pending {
			if err := c.write(conn, msg); err != nil {
				conn.Close()
				c.mu.Lock()
				if c.conn == conn {
					c.conn = nil
				}
				c.outbox = append(append([]Message{}, pending[i:]...), c.outbox...)
				c.state = Disconnected
				c.mu.Unlock()
				return err
			}
		}
	}

	go c.readLoop(conn)
	return nil
}

func (c *Client) Join(room string) error {
	c.mu.Lock()
	c.rooms[room] = true
	c.mu.Unlock()
	return c.intent(CommandJoinRoom, room)
}

func (c *Client) Leave(room string) error {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
	return c.intent(CommandLeaveRoom, room)
}

// MarkSeen is not buffered; a reader that is offline has not seen anything.
func (c *Client) MarkSeen(room string) error {
	msg, err := NewMessage(CommandMarkSeen, room, RoomData{Room: room})
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// Send writes a frame on a Connected session.
func (c *Client) Send(msg Message) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == Connected
	c.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}
	return c.write(conn, msg)
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.state = Disconnected
	// a running readLoop owns events and closes it on exit
	if c.readers == 0 {
		close(c.events)
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return conn.Close()
}

func (c *Client) intent(command, room string) error {
	msg, err := NewMessage(command, room, RoomData{Room: room})
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != Connected || c.conn == nil {
		c.outbox = append(c.outbox, msg)
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	c.mu.Unlock()
	return c.write(conn, msg)
}

func (c *Client) write(conn *websocket.Conn, msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

func (c *Client) setState(state ConnectionState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		select {
		case c.events <- msg:
		case <-c.done:
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.readers--
	if c.closed {
		if c.readers == 0 {
			close(c.events)
		}
		conn.Close()
		return
	}
	if c.conn == conn {
		c.conn = nil
		c.state = Disconnected
		// rejoin on the next Connect
		c.outbox = c.outbox[:0]
		for room := range c.rooms {
			if msg, err := NewMessage(CommandJoinRoom, room, RoomData{Room: room}); err == nil {
				c.outbox = append(c.outbox, msg)
			}
		}
	}
	conn.Close()
}
