package web

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JonMunkholm/rowgrid/internal/core"
	"github.com/JonMunkholm/rowgrid/internal/logging"
)

const (
	// streamWriteWait bounds a single websocket write.
	streamWriteWait = 10 * time.Second
	// streamPongWait is how long the client may stay silent.
	streamPongWait = 60 * time.Second
	// streamPingPeriod must be shorter than streamPongWait.
	streamPingPeriod = streamPongWait * 9 / 10
	// streamMaxMessage caps client messages.
	streamMaxMessage = 4096
)

// streamMessage is sent to the client for every session event. Row, schema
// and filter events carry a full snapshot.
type streamMessage struct {
	Type         string             `json:"type"`
	Snapshot     *core.Snapshot     `json:"snapshot,omitempty"`
	Notification *core.Notification `json:"notification,omitempty"`
}

// clientMessage is read from the client. Only scroll positions are accepted.
type clientMessage struct {
	Type     string              `json:"type"`
	Position core.ScrollPosition `json:"position"`
}

// checkOrigin accepts configured origins, or same-host origins when none are
// configured. Requests without an Origin header are not from a browser and
// are accepted.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	allowed := s.cfg.Security.AllowedOrigins
	if len(allowed) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(strings.TrimRight(a, "/"), origin) {
			return true
		}
	}
	return false
}

// handleStream upgrades to a websocket and forwards session events until the
// client disconnects or the session closes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	logger := logging.WithFields(r.Context(), "session_id", session.ID())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the error response.
		logger.Warn("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := session.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go s.readStream(conn, session, done)

	send := func(msg streamMessage) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	snap := session.Snapshot()
	if err := send(streamMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
		logger.Debug("stream write failed", "error", err)
		return
	}

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	logger.Info("stream opened")
	for {
		select {
		case <-done:
			logger.Info("stream closed by client")
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug("stream ping failed", "error", err)
				return
			}
		case ev, ok := <-events:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				logger.Info("stream closed with session")
				return
			}
			msg := streamMessage{Type: string(ev.Type), Notification: ev.Notification}
			if ev.Type != core.EventNotification {
				snap := session.Snapshot()
				msg.Snapshot = &snap
			}
			if err := send(msg); err != nil {
				logger.Debug("stream write failed", "error", err)
				return
			}
		}
	}
}

// readStream consumes client messages until the connection fails, then
// closes done.
func (s *Server) readStream(conn *websocket.Conn, session *core.Session, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(streamMaxMessage)
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(streamPongWait))
		if msg.Type == "scroll" {
			session.Scroll(msg.Position)
		}
	}
}
