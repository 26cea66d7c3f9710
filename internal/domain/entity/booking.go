package entity

import "time"

// Booking is the appointment created once a ServiceRequest is accepted.
// Its ID is the ID of the request it was derived from.
type Booking struct {
	ID               string     `json:"id" firestore:"id"`
	ServiceRequestID string     `json:"service_request_id" firestore:"serviceRequestId"`
	ProviderID       string     `json:"provider_id" firestore:"providerId"`
	RequesterID      string     `json:"requester_id" firestore:"requesterId"`
	TypeOfWork       string     `json:"type_of_work" firestore:"typeOfWork"`
	Budget           float64    `json:"budget" firestore:"budget"`
	Status           string     `json:"status" firestore:"status"` // "active", "completed", "cancelled"
	CompletionNotes  string     `json:"completion_notes,omitempty" firestore:"completionNotes,omitempty"`
	ProofURIs        []string   `json:"proof_uris,omitempty" firestore:"proofUris,omitempty"`
	Rating           int        `json:"rating,omitempty" firestore:"rating,omitempty"` // 1-5, set by requester
	Review           string     `json:"review,omitempty" firestore:"review,omitempty"`
	CreatedAt        time.Time  `json:"created_at" firestore:"createdAt"`
	UpdatedAt        time.Time  `json:"updated_at" firestore:"updatedAt"`
	CompletedAt      *time.Time `json:"completed_at,omitempty" firestore:"completedAt,omitempty"`
	RatedAt          *time.Time `json:"rated_at,omitempty" firestore:"ratedAt,omitempty"`
}

const (
	BookingActive    = "active"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
)

func (b *Booking) IsParty(userID string) bool {
	return userID != "" && (userID == b.ProviderID || userID == b.RequesterID)
}
