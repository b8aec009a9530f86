package realtime

import (
	"context"
	"sync"

	"clientbridge/pkg/logger"
	"clientbridge/pkg/models"
)

// Event is one change to a user's notifications, routed by Data.UserID
type Event struct {
	Type string              `json:"type"`
	Data models.Notification `json:"data"`
}

const (
	// EventNotification marks a newly inserted notification
	EventNotification = "notification"
	// EventNotificationUpdated carries a row whose read flag changed
	EventNotificationUpdated = "notification_updated"
	// EventNotificationsReadAll means every notification of Data.UserID is now read
	EventNotificationsReadAll = "notifications_read_all"
)

// Inserted wraps a new notification
func Inserted(n models.Notification) Event {
	return Event{Type: EventNotification, Data: n}
}

// Updated wraps a notification whose read flag changed
func Updated(n models.Notification) Event {
	return Event{Type: EventNotificationUpdated, Data: n}
}

// ReadAll tells userID's connections that the whole feed was marked read
func ReadAll(userID string) Event {
	return Event{Type: EventNotificationsReadAll, Data: models.Notification{UserID: userID, IsRead: true}}
}

// Hub delivers notification inserts and updates to their recipients' live connections
type Hub interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe returns a channel of the user's events and a cancel func that closes it
	Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error)
	Close() error
}

const subscriberBuffer = 16

// Channel is the pub/sub channel name carrying a user's notifications
func Channel(userID string) string {
	return "notifications:" + userID
}

type subscriber struct {
	ch   chan Event
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// LocalHub fans notifications out to subscribers in this process
type LocalHub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]struct{}
}

// NewLocalHub creates an in-process hub
func NewLocalHub() *LocalHub {
	return &LocalHub{subscribers: make(map[string]map[*subscriber]struct{})}
}

// Publish never blocks; a subscriber with a full buffer misses the event
func (h *LocalHub) Publish(ctx context.Context, ev Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers[ev.Data.UserID] {
		select {
		case sub.ch <- ev:
		default:
			logger.Warn("dropping realtime event for slow subscriber", "user_id", ev.Data.UserID, "type", ev.Type)
		}
	}
	return nil
}

func (h *LocalHub) Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error) {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[*subscriber]struct{})
	}
	h.subscribers[userID][sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if subs, ok := h.subscribers[userID]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.subscribers, userID)
			}
		}
		h.mu.Unlock()
		sub.close()
	}
	return sub.ch, cancel, nil
}

// SubscriberCount 当前订阅数
func (h *LocalHub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID])
}

func (h *LocalHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, subs := range h.subscribers {
		for sub := range subs {
			sub.close()
		}
		delete(h.subscribers, userID)
	}
	return nil
}
