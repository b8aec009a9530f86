package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"clientbridge/pkg/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestLocalHub_DeliversOnlyToRecipient(t *testing.T) {
	hub := NewLocalHub()
	ctx := context.Background()

	dave, cancelDave, err := hub.Subscribe(ctx, "dave")
	require.NoError(t, err)
	defer cancelDave()
	sarah, cancelSarah, err := hub.Subscribe(ctx, "sarah")
	require.NoError(t, err)
	defer cancelSarah()

	require.NoError(t, hub.Publish(ctx, Inserted(models.Notification{ID: "n1", UserID: "dave", Title: "New Thread"})))
	assert.Equal(t, "n1", receive(t, dave).Data.ID)

	select {
	case n := <-sarah:
		t.Fatalf("unexpected notification %v", n)
	default:
	}
}

func TestLocalHub_CancelClosesChannel(t *testing.T) {
	hub := NewLocalHub()
	ch, cancel, err := hub.Subscribe(context.Background(), "dave")
	require.NoError(t, err)
	assert.Equal(t, 1, hub.SubscriberCount("dave"))

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, hub.SubscriberCount("dave"))
}

func TestLocalHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewLocalHub()
	_, cancel, err := hub.Subscribe(context.Background(), "dave")
	require.NoError(t, err)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			hub.Publish(context.Background(), Inserted(models.Notification{UserID: "dave"}))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestServer_StreamsNotifications(t *testing.T) {
	hub := NewLocalHub()
	srv := NewServer(hub, nil)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.Serve(w, r, "dave")
	}))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.SubscriberCount("dave") == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(context.Background(), Inserted(models.Notification{ID: "n1", UserID: "dave", Message: "hi"})))
	require.NoError(t, hub.Publish(context.Background(), Updated(models.Notification{ID: "n1", UserID: "dave", IsRead: true})))
	require.NoError(t, hub.Publish(context.Background(), ReadAll("dave")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventNotification, ev.Type)
	assert.Equal(t, "n1", ev.Data.ID)
	assert.False(t, ev.Data.IsRead)

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventNotificationUpdated, ev.Type)
	assert.Equal(t, "n1", ev.Data.ID)
	assert.True(t, ev.Data.IsRead)

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventNotificationsReadAll, ev.Type)
	assert.Equal(t, "dave", ev.Data.UserID)
}

func TestLocalHub_DeliversUpdatesInOrder(t *testing.T) {
	hub := NewLocalHub()
	ctx := context.Background()
	ch, cancel, err := hub.Subscribe(ctx, "sarah")
	require.NoError(t, err)
	defer cancel()

	n := models.Notification{ID: "n1", UserID: "sarah"}
	require.NoError(t, hub.Publish(ctx, Inserted(n)))
	n.IsRead = true
	require.NoError(t, hub.Publish(ctx, Updated(n)))

	assert.Equal(t, EventNotification, receive(t, ch).Type)
	updated := receive(t, ch)
	assert.Equal(t, EventNotificationUpdated, updated.Type)
	assert.True(t, updated.Data.IsRead)
}

func TestRedisHub_RoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	hub, err := NewRedisHub(url)
	require.NoError(t, err)
	defer hub.Close()

	ctx := context.Background()
	ch, cancel, err := hub.Subscribe(ctx, "dave")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, Updated(models.Notification{ID: "n1", UserID: "dave", IsRead: true})))
	ev := receive(t, ch)
	assert.Equal(t, EventNotificationUpdated, ev.Type)
	assert.Equal(t, "n1", ev.Data.ID)
}
