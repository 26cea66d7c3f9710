package entity

import "time"

// Notification kinds, used as meta["kind"].
const (
	NotifyRequestAvailable = "request_available"
	NotifyRequestOffered   = "request_offered"
	NotifyRequestAccepted  = "request_accepted"
	NotifyRequestDeclined  = "request_declined"
	NotifyRequestCancelled = "request_cancelled"
	NotifyRequestCompleted = "request_completed"
	NotifyOfferExpired     = "offer_expired"
	NotifyNewMessage       = "new_message"
)

type Notification struct {
	ID          string                 `json:"id" firestore:"id"`
	RecipientID string                 `json:"recipient_id" firestore:"recipientId"`
	Title       string                 `json:"title" firestore:"title"`
	Message     string                 `json:"message" firestore:"message"`
	Meta        map[string]interface{} `json:"meta,omitempty" firestore:"meta,omitempty"`
	CreatedAt   time.Time              `json:"created_at" firestore:"createdAt"`
	ReadAt      *time.Time             `json:"read_at,omitempty" firestore:"readAt,omitempty"`
}

func (n *Notification) Kind() string {
	if kind, ok := n.Meta["kind"].(string); ok {
		return kind
	}
	return ""
}
