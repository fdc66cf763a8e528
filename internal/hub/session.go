package hub

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wburgers/zwave-hub/internal/authgate"
	"github.com/wburgers/zwave-hub/internal/controller"
	"github.com/wburgers/zwave-hub/internal/registry"
)

const (
	authKeyword = "AUTH"

	// authTimeout bounds the identity provider round trip for one
	// admission attempt.
	authTimeout = 15 * time.Second

	// dispatchTimeout bounds one command's controller exchange.
	dispatchTimeout = 30 * time.Second

	// writeDrainTimeout bounds how long a closing connection waits for
	// the write pump to flush queued envelopes.
	writeDrainTimeout = 3 * time.Second
)

// Session is one UI WebSocket connection. Identity is set exactly once
// at admission and never changes afterwards.
type Session struct {
	ID       string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	identity *authgate.Identity

	// admitted is only written by the read pump.
	admitted bool

	// writeDone is closed when the write pump exits, after it has
	// drained the send channel.
	writeDone chan struct{}

	closeOnce sync.Once
}

func newSession(h *Hub, conn *websocket.Conn) *Session {
	return &Session{
		ID:        uuid.NewString(),
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, h.cfg.SendBuffer),
		writeDone: make(chan struct{}),
	}
}

// readPump reads messages from the WebSocket connection. The first
// message must authenticate; everything after is a command.
func (s *Session) readPump() {
	defer func() {
		s.shutdown()
		s.awaitWriteDrain()
		s.conn.Close()
	}()

	cfg := s.hub.cfg
	s.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	s.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.logger.Warn("websocket read error", "session_id", s.ID, "error", err)
			} else {
				s.hub.logger.Debug("websocket closed", "session_id", s.ID, "error", err)
			}
			return
		}
		// Any client message resets the read deadline.
		//nolint:errcheck // Best-effort deadline reset
		s.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))

		msg := strings.TrimSpace(string(message))
		if msg == "" {
			continue
		}
		if !s.admitted {
			if !s.handleAuth(msg) {
				return
			}
			continue
		}
		s.hub.dispatch(s, msg)
	}
}

// handleAuth processes the mandatory first message. Rejection is
// explicit: the client receives {"command":"AUTH","auth":false} before
// the connection closes, so it can distinguish a bad credential from a
// transport failure.
func (s *Session) handleAuth(msg string) bool {
	keyword, credential, _ := strings.Cut(msg, "~")
	if keyword != authKeyword || credential == "" {
		s.hub.logger.Debug("first message was not an auth command", "session_id", s.ID)
		s.reject()
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	defer cancel()

	identity, err := s.hub.gate.Verify(ctx, credential)
	if err != nil {
		s.hub.logger.Warn("admission refused", "session_id", s.ID, "error", err)
		s.reject()
		return false
	}

	s.identity = identity
	s.admitted = true
	s.hub.admit(s, identity)
	return true
}

// reject queues the typed rejection envelope and closes the send
// channel. The write pump drains the buffer before it sends the close
// frame, and the read pump's shutdown path waits for that drain, so
// the rejection reaches the client before the connection closes.
func (s *Session) reject() {
	s.queueEnvelope(authEnvelope(false, ""))
	s.closeSend()
}

// shutdown releases the session on read pump exit. Admitted sessions
// are removed from the hub (which closes the send channel exactly
// once); unadmitted ones only need their channel closed.
func (s *Session) shutdown() {
	if s.admitted {
		s.hub.remove(s)
		return
	}
	s.closeSend()
}

func (s *Session) closeSend() {
	s.closeOnce.Do(func() { close(s.send) })
}

// awaitWriteDrain blocks until the write pump has flushed the send
// channel and exited. Closing the socket before that cuts off whatever
// is still queued, which for a rejected session is the AUTH envelope
// itself.
func (s *Session) awaitWriteDrain() {
	select {
	case <-s.writeDone:
	case <-time.After(writeDrainTimeout):
	}
}

// writePump writes queued messages and keepalive pings.
func (s *Session) writePump() {
	cfg := s.hub.cfg
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		close(s.writeDone)
	}()

	for {
		select {
		case message, ok := <-s.send:
			if !ok {
				//nolint:errcheck // Best-effort close frame
				s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			s.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			s.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// queueEnvelope marshals and queues one envelope for this session only.
func (s *Session) queueEnvelope(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		s.hub.logger.Error("marshalling envelope", "command", env.Command, "error", err)
		return
	}
	s.trySend(data)
}

// trySend delivers to the session's buffer without blocking. A full
// buffer or a concurrently closed channel drops the message; a client
// that slow is about to be disconnected anyway.
func (s *Session) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case s.send <- data:
	default:
	}
}

// dispatch routes one post-admission command and replies to the
// issuing session only. Controller failures never leak to other
// sessions.
func (h *Hub) dispatch(s *Session, raw string) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	env, err := h.router.Dispatch(ctx, raw)
	if err != nil {
		h.logger.Warn("command failed", "session_id", s.ID, "error", err)
		s.queueEnvelope(errorEnvelope(commandErrorMessage(err)))
		return
	}
	if env != nil {
		s.queueEnvelope(*env)
	}
}

// commandErrorMessage maps internal errors to client-safe text.
func commandErrorMessage(err error) string {
	switch {
	case errors.Is(err, controller.ErrControllerUnavailable):
		return "controller unavailable"
	case errors.Is(err, controller.ErrRequestTimeout):
		return "controller did not respond"
	case errors.Is(err, ErrUnknownDevice):
		return "unknown device"
	case errors.Is(err, registry.ErrUnknownRoom):
		return "unknown room"
	case errors.Is(err, ErrTypeMismatch):
		return "device type mismatch"
	case errors.Is(err, ErrBadCommand):
		return "malformed command"
	default:
		return "command failed"
	}
}
