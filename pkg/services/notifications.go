package services

import (
	"context"

	"clientbridge/pkg/logger"
	"clientbridge/pkg/models"
	"clientbridge/pkg/realtime"
)

// NotificationFeed returns the user's newest notifications and unread count
func (s *Service) NotificationFeed(ctx context.Context, actor *models.User, limit int) (*models.NotificationFeed, error) {
	if limit <= 0 || limit > 100 {
		limit = models.DefaultFeedLimit
	}
	list, err := s.db.ListNotifications(ctx, actor.ID, limit)
	if err != nil {
		return nil, err
	}
	unread, err := s.db.CountUnreadNotifications(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Notification{}
	}
	return &models.NotificationFeed{Notifications: list, UnreadCount: unread}, nil
}

// MarkNotificationRead flips one notification; other users' rows are NotFound.
// The updated row is pushed to the owner's other live connections.
func (s *Service) MarkNotificationRead(ctx context.Context, actor *models.User, id string) (*models.Notification, error) {
	n, err := s.db.MarkNotificationRead(ctx, actor.ID, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.Updated(*n))
	return n, nil
}

// MarkAllNotificationsRead returns how many rows changed
func (s *Service) MarkAllNotificationsRead(ctx context.Context, actor *models.User) (int, error) {
	updated, err := s.db.MarkAllNotificationsRead(ctx, actor.ID)
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		s.publish(ctx, realtime.ReadAll(actor.ID))
	}
	return updated, nil
}

// publish 推送失败只记录日志
func (s *Service) publish(ctx context.Context, ev realtime.Event) {
	if s.hub == nil {
		return
	}
	if err := s.hub.Publish(ctx, ev); err != nil {
		logger.FromContext(ctx).Warn("realtime publish failed", "user_id", ev.Data.UserID, "type", ev.Type, "error", err)
	}
}
