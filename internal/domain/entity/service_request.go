package entity

import (
	"strings"
	"time"
)

type RequestStatus string

const (
	StatusOpen      RequestStatus = "open"
	StatusOffered   RequestStatus = "offered"
	StatusWorking   RequestStatus = "working"
	StatusCompleted RequestStatus = "completed"
	StatusCancelled RequestStatus = "cancelled"
)

// statusAliases maps display-layer synonyms onto the canonical status.
// Anything reaching the state machine must pass through ParseRequestStatus.
var statusAliases = map[string]RequestStatus{
	"open":        StatusOpen,
	"waiting":     StatusOpen,
	"available":   StatusOpen,
	"pending":     StatusOpen,
	"offered":     StatusOffered,
	"direct":      StatusOffered,
	"working":     StatusWorking,
	"accepted":    StatusWorking,
	"in_progress": StatusWorking,
	"ongoing":     StatusWorking,
	"completed":   StatusCompleted,
	"done":        StatusCompleted,
	"finished":    StatusCompleted,
	"cancelled":   StatusCancelled,
	"canceled":    StatusCancelled,
}

// ParseRequestStatus normalizes a status string. ok is false for unknown values.
func ParseRequestStatus(s string) (RequestStatus, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")
	status, ok := statusAliases[key]
	return status, ok
}

func (s RequestStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// HasAcceptedProvider reports whether a request in this status must carry an accepted provider.
func (s RequestStatus) HasAcceptedProvider() bool {
	return s == StatusWorking || s == StatusCompleted
}

type GeoPoint struct {
	Lat float64 `json:"lat" firestore:"lat"`
	Lng float64 `json:"lng" firestore:"lng"`
}

type ServiceRequest struct {
	ID            string        `json:"id" firestore:"id"`
	RequesterID   string        `json:"requester_id" firestore:"requesterId"`
	TypeOfWork    string        `json:"type_of_work" firestore:"typeOfWork"`
	Budget        float64       `json:"budget" firestore:"budget"`
	Address       string        `json:"address" firestore:"address"`
	Location      *GeoPoint     `json:"location,omitempty" firestore:"location,omitempty"`
	PreferredDate string        `json:"preferred_date,omitempty" firestore:"preferredDate,omitempty"`
	PreferredTime string        `json:"preferred_time,omitempty" firestore:"preferredTime,omitempty"`
	Notes         string        `json:"notes,omitempty" firestore:"notes,omitempty"`
	Status        RequestStatus `json:"status" firestore:"status"`

	TargetProviderID   string   `json:"target_provider_id,omitempty" firestore:"targetProviderId,omitempty"`
	AcceptedProviderID string   `json:"accepted_provider_id,omitempty" firestore:"acceptedProviderId,omitempty"`
	DeclinedProviders  []string `json:"declined_providers,omitempty" firestore:"declinedProviders,omitempty"`

	CancelledBy        string `json:"cancelled_by,omitempty" firestore:"cancelledBy,omitempty"`
	CancellationReason string `json:"cancellation_reason,omitempty" firestore:"cancellationReason,omitempty"`

	// Version increases by one on every committed transition.
	Version int64 `json:"version" firestore:"version"`

	CreatedAt   time.Time  `json:"created_at" firestore:"createdAt"`
	UpdatedAt   time.Time  `json:"updated_at" firestore:"updatedAt"`
	OfferedAt   *time.Time `json:"offered_at,omitempty" firestore:"offeredAt,omitempty"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty" firestore:"acceptedAt,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" firestore:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" firestore:"cancelledAt,omitempty"`
}

// Clone returns a deep copy so a transition can be prepared without touching the stored value.
func (r *ServiceRequest) Clone() *ServiceRequest {
	if r == nil {
		return nil
	}
	c := *r
	if r.Location != nil {
		loc := *r.Location
		c.Location = &loc
	}
	if r.DeclinedProviders != nil {
		c.DeclinedProviders = append([]string(nil), r.DeclinedProviders...)
	}
	c.OfferedAt = cloneTime(r.OfferedAt)
	c.AcceptedAt = cloneTime(r.AcceptedAt)
	c.CompletedAt = cloneTime(r.CompletedAt)
	c.CancelledAt = cloneTime(r.CancelledAt)
	return &c
}

func (r *ServiceRequest) IsParty(userID string) bool {
	return userID != "" && (userID == r.RequesterID || userID == r.TargetProviderID || userID == r.AcceptedProviderID)
}

func (r *ServiceRequest) HasDeclined(providerID string) bool {
	for _, id := range r.DeclinedProviders {
		if id == providerID {
			return true
		}
	}
	return false
}

// OfferExpired reports whether a direct offer has waited longer than ttl.
func (r *ServiceRequest) OfferExpired(now time.Time, ttl time.Duration) bool {
	if r.Status != StatusOffered || r.OfferedAt == nil {
		return false
	}
	return now.Sub(*r.OfferedAt) >= ttl
}

// CounterpartOf returns the other side of the request for a party, or "" if there is none yet.
func (r *ServiceRequest) CounterpartOf(userID string) string {
	if userID == r.RequesterID {
		if r.AcceptedProviderID != "" {
			return r.AcceptedProviderID
		}
		return r.TargetProviderID
	}
	return r.RequesterID
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
