package entity

import "time"

// Lifecycle event types published on the event stream and to realtime rooms.
const (
	EventRequestCreated   = "request.created"
	EventRequestOffered   = "request.offered"
	EventRequestAccepted  = "request.accepted"
	EventRequestDeclined  = "request.declined"
	EventRequestReopened  = "request.reopened"
	EventRequestCancelled = "request.cancelled"
	EventRequestCompleted = "request.completed"
)

// LifecycleEvent is emitted once per committed transition.
type LifecycleEvent struct {
	Type       string          `json:"type"`
	RequestID  string          `json:"request_id"`
	ActorID    string          `json:"actor_id"`
	FromStatus RequestStatus   `json:"from_status,omitempty"`
	ToStatus   RequestStatus   `json:"to_status"`
	Version    int64           `json:"version"`
	Request    *ServiceRequest `json:"request"`
	Booking    *Booking        `json:"booking,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
