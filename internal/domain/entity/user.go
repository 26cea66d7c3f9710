package entity

import (
	"strings"
	"time"
)

const (
	RoleRequester = "requester"
	RoleProvider  = "provider"
	RoleSystem    = "system"
)

type User struct {
	ID       string `json:"id" firestore:"id"`
	Email    string `json:"email" firestore:"email"`
	Username string `json:"username" firestore:"username"`
	Phone    string `json:"phone" firestore:"phone"`
	Bio      string `json:"bio" firestore:"bio"`
	Role     string `json:"role" firestore:"role"`

	FullName string    `json:"full_name,omitempty" firestore:"fullName,omitempty"`
	Address  string    `json:"address,omitempty" firestore:"address,omitempty"`
	Location *GeoPoint `json:"location,omitempty" firestore:"location,omitempty"`

	// Provider fields
	Skills      []string  `json:"skills,omitempty" firestore:"skills,omitempty"`
	Rate        float64   `json:"rate,omitempty" firestore:"rate,omitempty"`
	Rating      float64   `json:"rating,omitempty" firestore:"rating,omitempty"`
	RatingCount int       `json:"rating_count,omitempty" firestore:"ratingCount,omitempty"`
	Online      bool      `json:"online" firestore:"online"`
	OnlineSince time.Time `json:"online_since,omitempty" firestore:"onlineSince,omitempty"`

	BlockedUsers []string `json:"blocked_users,omitempty" firestore:"blockedUsers,omitempty"`

	// Push hand-off targets; device tokens live with the external provider.
	TelegramChatID int64  `json:"telegram_chat_id,omitempty" firestore:"telegramChatId,omitempty"`
	PushChannel    string `json:"push_channel,omitempty" firestore:"pushChannel,omitempty"` // "email", "telegram", "none"

	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}

// FoldRating adds one rating to a running average.
func FoldRating(average float64, count, rating int) (float64, int) {
	total := average*float64(count) + float64(rating)
	count++
	return total / float64(count), count
}

func (u *User) IsProvider() bool {
	return u.Role == RoleProvider
}

func (u *User) HasSkill(skill string) bool {
	for _, s := range u.Skills {
		if strings.EqualFold(s, skill) {
			return true
		}
	}
	return false
}

func (u *User) HasBlocked(userID string) bool {
	for _, id := range u.BlockedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// Blocks reports whether either side has blocked the other.
func Blocks(a, b *User) bool {
	return a.HasBlocked(b.ID) || b.HasBlocked(a.ID)
}
