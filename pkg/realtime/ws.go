package realtime

import (
	"net/http"
	"time"

	"clientbridge/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Server upgrades authenticated requests into a per-user notification stream
type Server struct {
	hub      Hub
	upgrader websocket.Upgrader
}

// NewServer creates a websocket server; allowOrigin nil accepts every origin
func NewServer(hub Hub, allowOrigin func(r *http.Request) bool) *Server {
	if allowOrigin == nil {
		allowOrigin = func(r *http.Request) bool { return true }
	}
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin:     allowOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Serve streams userID's notification events until the client disconnects
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()
	events, cancel, err := s.hub.Subscribe(ctx, userID)
	if err != nil {
		logger.FromContext(ctx).Error("realtime subscribe failed", "error", err)
		http.Error(w, "realtime unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		logger.FromContext(ctx).Warn("websocket upgrade error", "error", err)
		return
	}
	logger.FromContext(ctx).Debug("websocket client connected", "user_id", userID)

	closed := make(chan struct{})
	go readPump(conn, closed)
	writePump(conn, events, closed)

	cancel()
	conn.Close()
	logger.FromContext(ctx).Debug("websocket client disconnected", "user_id", userID)
}

// readPump drains control frames; the stream is one-way
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, events <-chan Event, closed <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
