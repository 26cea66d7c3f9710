package websocket

import (
	"context"
	"encoding/json"
	"time"

	"neighborly/internal/infrastructure/ratelimit"
	"neighborly/pkg/errors"
	"neighborly/pkg/logger"
	"neighborly/pkg/realtime"
)

const (
	commandTimeout = 5 * time.Second
	typingTTL      = 5 * time.Second
)

// HandleClientMessage processes one inbound frame.
func (m *Manager) HandleClientMessage(client *Client, messageBytes []byte) {
	var msg realtime.Message
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		logger.Warn("WebSocket: invalid frame from session %s: %v", client.ID, err)
		m.sendError(client, errors.CodeValidation, "Invalid message format")
		return
	}

	room := msg.Room
	if room == "" {
		var data realtime.RoomData
		if err := msg.Decode(&data); err == nil {
			room = data.Room
		}
	}

	logger.Debug("WebSocket: %s from session %s (room %q)", msg.Type, client.ID, room)

	switch msg.Type {
	case realtime.CommandPing:
		m.sendTo(client, realtime.EventPong, "", map[string]string{"status": "alive"})

	case realtime.CommandJoinRoom:
		m.handleJoinRoom(client, room)

	case realtime.CommandLeaveRoom:
		m.handleLeaveRoom(client, room)

	case realtime.CommandMarkSeen:
		m.handleMarkSeen(client, room)

	case realtime.CommandTypingStart:
		m.handleTyping(client, room, true)

	case realtime.CommandTypingStop:
		m.handleTyping(client, room, false)

	default:
		m.sendError(client, errors.CodeValidation, "Unknown message type")
	}
}

func (m *Manager) handleJoinRoom(client *Client, room string) {
	if room == "" {
		m.sendError(client, errors.CodeValidation, "Missing room")
		return
	}
	if m.authorizer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		allowed := m.authorizer.CanJoinRoom(ctx, client.UserID, room)
		cancel()
		if !allowed {
			m.sendError(client, errors.CodeUnauthorized, "You cannot join this room")
			return
		}
	}

	m.Join(client, room)
}

// afterJoin acknowledges the join and delivers the thread's pending messages
// to the joining user.
func (m *Manager) afterJoin(client *Client, room string) {
	m.sendTo(client, realtime.EventRoomJoined, room, realtime.RoomData{Room: room})
	if m.receipts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := m.receipts.MarkDelivered(ctx, client.UserID, room); err != nil && !errors.Is(err, errors.CodeNotFound) {
		logger.Warn("WebSocket: mark delivered in %s for %s failed: %v", room, client.UserID, err)
	}
}

func (m *Manager) handleLeaveRoom(client *Client, room string) {
	if room == "" {
		m.sendError(client, errors.CodeValidation, "Missing room")
		return
	}
	m.Leave(client, room)
	m.sendTo(client, realtime.EventRoomLeft, room, realtime.RoomData{Room: room})
}

func (m *Manager) handleMarkSeen(client *Client, room string) {
	if room == "" {
		m.sendError(client, errors.CodeValidation, "Missing room")
		return
	}
	if m.receipts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := m.receipts.MarkSeen(ctx, client.UserID, room); err != nil {
		m.sendAppError(client, err)
	}
}

func (m *Manager) handleTyping(client *Client, room string, typing bool) {
	if room == "" {
		m.sendError(client, errors.CodeValidation, "Missing room")
		return
	}
	client.mu.Lock()
	joined := client.rooms[room]
	client.mu.Unlock()
	if !joined {
		m.sendError(client, errors.CodeUnauthorized, "Join the room first")
		return
	}
	if m.limiter != nil {
		if ok, _ := m.limiter.Allow(client.UserID, ratelimit.ActionTyping); !ok {
			return
		}
	}

	data := realtime.TypingData{Room: room, UserID: client.UserID, Typing: typing}
	if typing {
		data.ExpiresAt = time.Now().Add(typingTTL).UTC().Format(time.RFC3339)
	}
	m.PublishToRoomExcept(room, client.UserID, realtime.EventTyping, data)
}

func (m *Manager) sendTo(client *Client, eventType, room string, payload interface{}) {
	frame, ok := m.encode(eventType, room, payload)
	if !ok {
		return
	}
	m.deliver(client, frame)
}

func (m *Manager) sendError(client *Client, code, message string) {
	m.sendTo(client, realtime.EventError, "", realtime.ErrorData{Code: code, Message: message})
}

func (m *Manager) sendAppError(client *Client, err error) {
	if appErr, ok := err.(*errors.AppError); ok {
		m.sendError(client, appErr.Code, appErr.Message)
		return
	}
	logger.Error("WebSocket: command failed for session %s: %v", client.ID, err)
	m.sendError(client, errors.CodeInternal, "Something went wrong")
}
