package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/stressguard/internal/errors"
	"github.com/felixgeelhaar/stressguard/internal/router"
)

const (
	writeWait       = 10 * time.Second
	defaultPongWait = 60 * time.Second
	maxMessageSize  = 4096
)

// Frame types sent to chat clients
const (
	FrameDelta    = "delta"
	FrameResponse = "response"
	FrameError    = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ClientMessage is what a chat client sends
type ClientMessage struct {
	Text string `json:"text"`
}

// DeltaFrame carries one streamed fragment of a chat reply
type DeltaFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ResponseFrame carries a router response
type ResponseFrame struct {
	Type string `json:"type"`
	Code string `json:"code,omitempty"`
	*router.Response
}

// handleChat handles GET /ws. Each connection is one conversation with its
// own router state. ?mode=automatic opens with the stress alert greeting.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.router == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New(errors.ErrCodeGeneratorUnknown, "chat is not enabled"))
		return
	}
	if s.IsShuttingDown() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}

	greeting := router.Greeting
	if r.URL.Query().Get("mode") == "automatic" {
		greeting = router.AlertGreeting
	}

	s.track(conn)
	if s.IsShuttingDown() {
		s.untrack(conn)
		_ = conn.Close()
		return
	}

	s.sessionsWG.Add(1)
	go func() {
		defer s.sessionsWG.Done()
		s.serveChat(conn, greeting)
	}()
}

func (s *Server) track(conn *websocket.Conn) {
	s.sessionsMu.Lock()
	s.sessions[conn] = struct{}{}
	s.sessionsMu.Unlock()
	if s.metrics != nil {
		s.metrics.ActiveSessions.Inc()
	}
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.sessionsMu.Lock()
	delete(s.sessions, conn)
	s.sessionsMu.Unlock()
	if s.metrics != nil {
		s.metrics.ActiveSessions.Dec()
	}
}

// closeSessions tells every chat client the server is going away
func (s *Server) closeSessions() {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for conn := range s.sessions {
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	}
}

func (s *Server) serveChat(conn *websocket.Conn, greeting string) {
	defer func() {
		s.untrack(conn)
		_ = conn.Close()
	}()

	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	extend := func() error { return conn.SetReadDeadline(time.Now().Add(s.pongWait)) }
	_ = extend()
	conn.SetPongHandler(func(string) error { return extend() })
	go s.pingLoop(ctx, conn)

	logger := s.logger.With("remote", conn.RemoteAddr().String())
	logger.Info("chat session opened")
	defer logger.Info("chat session closed")

	if err := writeFrame(conn, ResponseFrame{
		Type:     FrameResponse,
		Response: &router.Response{Kind: router.KindShowText, Text: greeting},
	}); err != nil {
		return
	}

	st := router.NewState()
	for {
		// pongs are only processed inside ReadMessage, so a long reply must
		// not count against the idle deadline
		if err := extend(); err != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithError(err).Debug("chat read failed")
			}
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if err := writeFrame(conn, DeltaFrame{Type: FrameError, Text: "mensaje no válido"}); err != nil {
				return
			}
			continue
		}
		if strings.TrimSpace(msg.Text) == "" {
			continue
		}

		var writeErr error
		resp, err := s.router.HandleMessage(ctx, st, msg.Text, router.OnDelta(func(delta string) {
			if writeErr == nil {
				writeErr = writeFrame(conn, DeltaFrame{Type: FrameDelta, Text: delta})
			}
		}))
		if err != nil {
			// only a cancelled context ends up here
			return
		}
		if writeErr != nil {
			return
		}

		frame := ResponseFrame{Type: FrameResponse, Response: resp}
		if resp.Err != nil {
			frame.Code = string(errors.CodeOf(resp.Err))
		}
		if err := writeFrame(conn, frame); err != nil {
			return
		}

		if resp.Kind == router.KindExit {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (s *Server) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.pongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
