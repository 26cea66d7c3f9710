package entity

import "time"

type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageSeen      MessageStatus = "seen"
)

func (s MessageStatus) rank() int {
	switch s {
	case MessageDelivered:
		return 1
	case MessageSeen:
		return 2
	default:
		return 0
	}
}

// Advance returns the later of s and next; status never regresses.
func (s MessageStatus) Advance(next MessageStatus) MessageStatus {
	if next.rank() > s.rank() {
		return next
	}
	return s
}

type Message struct {
	ID             string        `json:"id" firestore:"id"`
	ThreadID       string        `json:"thread_id" firestore:"threadId"`
	Seq            int64         `json:"seq" firestore:"seq"`
	SenderID       string        `json:"sender_id" firestore:"senderId"`
	Body           string        `json:"body" firestore:"body"`
	Type           string        `json:"type" firestore:"type"` // "text", "image", "system"
	Status         MessageStatus `json:"status" firestore:"status"`
	AttachmentURLs []string      `json:"attachment_urls,omitempty" firestore:"attachmentUrls,omitempty"`
	CreatedAt      time.Time     `json:"created_at" firestore:"createdAt"`
}

const MessageTypeSystem = "system"

// IsSystem reports a generated message. It may land on a thread that is not
// open and is never counted as unread.
func (m *Message) IsSystem() bool {
	return m.Type == MessageTypeSystem
}
