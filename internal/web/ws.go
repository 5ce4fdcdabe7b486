package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	// wsEventBuffer bounds how far a slow client can fall behind
	// before events are dropped for it.
	wsEventBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Session cookies are SameSite and the feed is read-only, so
	// cross-origin upgrades are harmless.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEventsWS streams the household's event feed over a WebSocket.
// Only events for the caller's household are forwarded.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	household := currentUser(r).HouseholdID

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := s.bus.Subscribe(wsEventBuffer)
	defer s.bus.Unsubscribe(ch)

	s.logger.Debug("websocket subscriber connected", "household", household)

	// Read pump: discard client frames, detect close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Household != household {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}
