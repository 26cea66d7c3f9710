// Package realtime holds the websocket wire format shared by the server and
// the Go client.
package realtime

import (
	"encoding/json"
	"time"
)

// ConnectionState is the lifecycle of one websocket session.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Inbound commands.
const (
	CommandPing        = "ping"
	CommandJoinRoom    = "join_room"
	CommandLeaveRoom   = "leave_room"
	CommandMarkSeen    = "mark_seen"
	CommandTypingStart = "typing_start"
	CommandTypingStop  = "typing_stop"
)

// Outbound events.
const (
	EventPong              = "pong"
	EventError             = "error"
	EventRoomJoined        = "room_joined"
	EventRoomLeft          = "room_left"
	EventTyping            = "typing_indicator"
	EventRequestUpdated    = "request_updated"
	EventNewMessage        = "new_message"
	EventMessagesSeen      = "messages_seen"
	EventMessagesDelivered = "messages_delivered"
	EventUnreadUpdate      = "unread_update"
	EventChatListUpdate    = "chat_list_update"
	EventNotification      = "notification"
)

// Message is one frame on the socket in either direction. Events are refetch
// hints: Data carries the new state, never a diff.
type Message struct {
	Type      string          `json:"type"`
	Room      string          `json:"room,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// NewMessage encodes data into a frame stamped with the current time.
func NewMessage(msgType, room string, data interface{}) (Message, error) {
	msg := Message{
		Type:      msgType,
		Room:      room,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Message{}, err
		}
		msg.Data = raw
	}
	return msg, nil
}

// Decode unmarshals the frame payload into v.
func (m Message) Decode(v interface{}) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

type RoomData struct {
	Room string `json:"room"`
}

type TypingData struct {
	Room      string `json:"room"`
	UserID    string `json:"user_id"`
	Typing    bool   `json:"typing"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
