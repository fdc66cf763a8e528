package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/wburgers/zwave-hub/internal/authgate"
	"github.com/wburgers/zwave-hub/internal/infrastructure/config"
	"github.com/wburgers/zwave-hub/internal/infrastructure/logging"
	"github.com/wburgers/zwave-hub/internal/protocol"
	"github.com/wburgers/zwave-hub/internal/registry"
)

// Verifier checks a UI credential and returns the verified identity.
type Verifier interface {
	Verify(ctx context.Context, credential string) (*authgate.Identity, error)
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// The credential check at admission is the real gate.
		return true
	},
}

// Hub owns the set of admitted UI sessions and fans registry change
// events out to them.
type Hub struct {
	cfg      config.WebSocketConfig
	registry *registry.Registry
	gate     Verifier
	router   *Router
	logger   *logging.Logger

	mu       sync.RWMutex
	sessions map[*Session]struct{}
}

// NewHub creates a hub. The router handles post-admission commands.
func NewHub(cfg config.WebSocketConfig, reg *registry.Registry, gate Verifier, router *Router, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		registry: reg,
		gate:     gate,
		router:   router,
		logger:   logger,
		sessions: make(map[*Session]struct{}),
	}
}

// Run blocks until the context is cancelled, then disconnects all
// sessions.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// ServeWS upgrades an HTTP request to a WebSocket session. The session
// is not admitted until its first message carries a valid credential.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	session := newSession(h, conn)
	go session.writePump()
	go session.readPump()
}

// admit registers a verified session and hands it the full state
// snapshot in one batch.
//
// The snapshot is queued while the hub lock is held, so no broadcast
// can interleave between registration and the snapshot: a new session
// always sees current state before its first change event.
func (h *Hub) admit(s *Session, identity *authgate.Identity) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}

	s.queueEnvelope(authEnvelope(true, identity.Profile))
	s.queueEnvelope(deviceListEnvelope(h.registry.Devices()))
	s.queueEnvelope(roomListEnvelope(h.registry.Rooms()))
	s.queueEnvelope(sceneListEnvelope(h.registry.Scenes()))
	s.queueEnvelope(presenceEnvelope(h.registry.AtHome()))
	h.mu.Unlock()

	h.logger.Info("session admitted",
		"session_id", s.ID, "subject", identity.Subject, "sessions", h.SessionCount())
}

// remove unregisters a session. Idempotent; only the call that
// actually removes the session closes its send channel.
func (h *Hub) remove(s *Session) {
	h.mu.Lock()
	_, existed := h.sessions[s]
	delete(h.sessions, s)
	h.mu.Unlock()

	if existed {
		close(s.send)
		h.logger.Debug("session removed", "session_id", s.ID, "sessions", h.SessionCount())
	}
}

// Broadcast delivers one envelope to every admitted session. A slow
// session only loses its own delivery; it never stalls the others.
func (h *Hub) Broadcast(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("marshalling broadcast envelope", "error", err)
		return
	}

	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		s.trySend(data)
	}
	if len(sessions) > 0 {
		h.logger.Debug("broadcast sent", "command", env.Command, "recipients", len(sessions))
	}
}

// HandleControllerEvent translates a controller change notification
// into a broadcast. It satisfies the controller session's event
// handler signature and must stay non-blocking.
func (h *Hub) HandleControllerEvent(kind protocol.Kind, payload any) {
	switch kind {
	case protocol.KindDeviceList:
		h.Broadcast(deviceListEnvelope(h.registry.Devices()))
	case protocol.KindRoomList:
		h.Broadcast(roomListEnvelope(h.registry.Rooms()))
	case protocol.KindRoom:
		if room, ok := payload.(registry.Room); ok {
			h.Broadcast(roomEnvelope(room))
		} else {
			h.Broadcast(roomListEnvelope(h.registry.Rooms()))
		}
	case protocol.KindSceneList:
		h.Broadcast(sceneListEnvelope(h.registry.Scenes()))
	case protocol.KindPresence:
		h.Broadcast(presenceEnvelope(h.registry.AtHome()))
	case protocol.KindUpdate:
		h.Broadcast(Envelope{Command: CommandUpdate})
	default:
		h.logger.Debug("unhandled controller event", "kind", kind)
	}
}

// SessionCount returns the number of admitted sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// closeAll disconnects every session and closes their send channels so
// the write pumps exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.sessions {
		close(s.send)
		s.conn.Close()
		delete(h.sessions, s)
	}
}
