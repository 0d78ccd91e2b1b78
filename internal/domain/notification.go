package domain

import "time"

// Kind classifies a notification. The set is closed.
type Kind string

const (
	KindTuitionPost Kind = "tuition_post"
	KindApplication Kind = "application"
	KindMessage     Kind = "message"
	KindSystem      Kind = "system"
	KindLike        Kind = "like"
	KindComment     Kind = "comment"
	KindRating      Kind = "rating"
	KindFavorite    Kind = "favorite"
)

// Kinds lists every accepted kind, in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindTuitionPost, KindApplication, KindMessage, KindSystem,
		KindLike, KindComment, KindRating, KindFavorite,
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindTuitionPost, KindApplication, KindMessage, KindSystem,
		KindLike, KindComment, KindRating, KindFavorite:
		return true
	}
	return false
}

// Notification is a persisted in-app notification. Only Read changes after creation.
type Notification struct {
	ID               string    `json:"id"`
	RecipientID      string    `json:"user_id"`
	Title            string    `json:"title"`
	Message          string    `json:"message"`
	Kind             Kind      `json:"type"`
	RelatedSubjectID string    `json:"related_post,omitempty"`
	Read             bool      `json:"read"`
	CreatedAt        time.Time `json:"created_at"`
}

// NotificationPage is one page of a user's inbox.
type NotificationPage struct {
	Records  []Notification `json:"notifications"`
	Total    int64          `json:"total"`
	Unread   int64          `json:"unread_count"`
	Page     int            `json:"page"`
	PageSize int            `json:"limit"`
	Pages    int            `json:"pages"`
}
