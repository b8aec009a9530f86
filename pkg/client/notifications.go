package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/models"
	"clientbridge/pkg/realtime"

	"github.com/gorilla/websocket"
)

// Notifications returns the newest notifications and the unread count.
// limit <= 0 uses the server default.
func (c *Client) Notifications(ctx context.Context, limit int) (*models.NotificationFeed, error) {
	path := "/api/notifications"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out models.NotificationFeed
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) (*models.Notification, error) {
	var out models.Notification
	if err := c.do(ctx, http.MethodPost, "/api/notifications/"+pathEscape(id)+"/read", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	var out struct {
		Updated int `json:"updated"`
	}
	err := c.do(ctx, http.MethodPost, "/api/notifications/read-all", nil, &out)
	return out.Updated, err
}

// WatchNotifications streams notification events to fn until ctx ends or the
// connection drops: inserts (realtime.EventNotification), read-flag updates
// (EventNotificationUpdated) and mark-all-read (EventNotificationsReadAll).
// Unknown event types are skipped. It returns nil when ctx was cancelled.
func (c *Client) WatchNotifications(ctx context.Context, fn func(realtime.Event)) error {
	if c.token == "" {
		return apperrors.Unauthenticated("Sign in to receive notifications")
	}
	u, err := url.Parse(c.baseURL + "/api/notifications/ws")
	if err != nil {
		return err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	q := u.Query()
	q.Set("access_token", c.token)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			defer resp.Body.Close()
			return decodeResponse(resp, nil)
		}
		return apperrors.Network(err)
	}
	defer conn.Close()

	// ctx 结束时关闭连接以解除 ReadJSON 阻塞
	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	for {
		var ev realtime.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return apperrors.Network(err)
		}
		switch ev.Type {
		case realtime.EventNotification, realtime.EventNotificationUpdated, realtime.EventNotificationsReadAll:
			fn(ev)
		}
	}
}
