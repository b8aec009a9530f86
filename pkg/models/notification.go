package models

import "time"

type NotificationType string

const (
	NotificationThread   NotificationType = "thread"
	NotificationDocument NotificationType = "document"
	NotificationReply    NotificationType = "reply"
)

// Notification is created by fan-out only; IsRead is its only mutable field.
type Notification struct {
	ID        string           `json:"id" db:"id"`
	UserID    string           `json:"user_id" db:"user_id"`
	ProjectID string           `json:"project_id" db:"project_id"`
	Type      NotificationType `json:"type" db:"type"`
	Title     string           `json:"title" db:"title"`
	Message   string           `json:"message" db:"message"`
	RelatedID string           `json:"related_id" db:"related_id"`
	IsRead    bool             `json:"is_read" db:"is_read"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

// NotificationFeed is the recent slice of a user's notifications
type NotificationFeed struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}

// DefaultFeedLimit is how many notifications a feed request returns
const DefaultFeedLimit = 20
