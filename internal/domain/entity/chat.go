package entity

import "time"

type ThreadState string

const (
	ThreadReadOnly ThreadState = "read_only" // direct offer pending, history visible, no new messages
	ThreadOpen     ThreadState = "open"
	ThreadFrozen   ThreadState = "frozen"
)

// ChatThread is keyed by the ID of the service request (and booking) it belongs to.
type ChatThread struct {
	ID            string         `json:"id" firestore:"id"`
	RequestID     string         `json:"request_id" firestore:"requestId"`
	RequesterID   string         `json:"requester_id" firestore:"requesterId"`
	ProviderID    string         `json:"provider_id" firestore:"providerId"`
	Participants  []string       `json:"participants" firestore:"participants"`
	State         ThreadState    `json:"state" firestore:"state"`
	LastSeq       int64          `json:"last_seq" firestore:"lastSeq"`
	LastMessage   string         `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageAt time.Time      `json:"last_message_at" firestore:"lastMessageAt"`
	UnreadCount   map[string]int `json:"unread_count" firestore:"unreadCount"` // Map of userID to unread count
	CreatedAt     time.Time      `json:"created_at" firestore:"createdAt"`
	UpdatedAt     time.Time      `json:"updated_at" firestore:"updatedAt"`
}

func (t *ChatThread) IsParticipant(userID string) bool {
	for _, p := range t.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Counterpart returns the participant that is not userID.
func (t *ChatThread) Counterpart(userID string) string {
	if userID == t.RequesterID {
		return t.ProviderID
	}
	return t.RequesterID
}

// Conversation collapses every thread between the same two users. It is built
// at read time and never stored.
type Conversation struct {
	CounterpartID string    `json:"counterpart_id"`
	ThreadIDs     []string  `json:"thread_ids"`
	LatestThread  string    `json:"latest_thread_id"`
	LastMessage   string    `json:"last_message,omitempty"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int       `json:"unread_count"`
}
