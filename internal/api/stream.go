package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/mini-city/internal/engine"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	maxStreamConns = 16
	catchUpEvents  = 50
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStream upgrades to a websocket and pushes every drained event as
// JSON, starting with recent history.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.Hub.Subscribers() >= maxStreamConns {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}

	id, events := s.Hub.Subscribe()
	slog.Info("stream client connected", "sub_id", id)

	done := make(chan struct{})
	go readPump(conn, done)
	writePump(conn, s.Hub.Recent(catchUpEvents), events, done)

	s.Hub.Unsubscribe(id)
	conn.Close()
	slog.Info("stream client disconnected", "sub_id", id)
}

// readPump discards client messages and keeps the read deadline alive.
// It closes done when the connection ends.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("stream read error", "error", err)
			}
			return
		}
	}
}

// writePump sends catch-up history, then live events and pings, until the
// reader stops or a write fails.
func writePump(conn *websocket.Conn, history []engine.Event, events <-chan engine.Event, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	send := func(e engine.Event) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(e); err != nil {
			slog.Debug("stream write failed", "error", err)
			return false
		}
		return true
	}

	for _, e := range history {
		if !send(e) {
			return
		}
	}

	for {
		select {
		case e, ok := <-events:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !send(e) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
