package usecase

//go:generate mockgen -source=interfaces.go -destination=../mocks/usecase/mock.go -package=mocks

import (
	"context"
	"io"
	"time"

	"neighborly/internal/domain/entity"
)

// Actor is the trusted identity a command runs as.
type Actor struct {
	UserID string
	Role   string
}

var SystemActor = Actor{UserID: "system", Role: entity.RoleSystem}

func (a Actor) IsSystem() bool {
	return a.Role == entity.RoleSystem
}

// RealtimePublisher fans events out to websocket rooms and personal channels.
// Publishing is fire-and-forget; sessions that are not connected are skipped.
type RealtimePublisher interface {
	PublishToRoom(room, eventType string, payload interface{})
	PublishToUser(userID, eventType string, payload interface{})
	IsInRoom(room, userID string) bool
}

// EventPublisher writes committed lifecycle events to the event stream.
type EventPublisher interface {
	Publish(ctx context.Context, event *entity.LifecycleEvent) error
}

// PushNotifier hands a notification to an external push channel.
type PushNotifier interface {
	Push(ctx context.Context, recipient *entity.User, notification *entity.Notification) error
}

type Geocoder interface {
	ReverseGeocode(ctx context.Context, point entity.GeoPoint) (string, error)
}

// MediaStore keeps uploaded proof-of-work files and returns opaque URIs.
type MediaStore interface {
	Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error)
	// SignedReadURL grants temporary read access to a URI returned by Upload.
	SignedReadURL(uri string, ttl time.Duration) (string, error)
}

type nopEventPublisher struct{}

func (nopEventPublisher) Publish(context.Context, *entity.LifecycleEvent) error { return nil }

// NopEventPublisher is used when no event stream is configured.
func NopEventPublisher() EventPublisher { return nopEventPublisher{} }
