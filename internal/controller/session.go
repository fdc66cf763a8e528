package controller

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wburgers/zwave-hub/internal/infrastructure/config"
	"github.com/wburgers/zwave-hub/internal/protocol"
	"github.com/wburgers/zwave-hub/internal/registry"
)

// Logger defines the logging interface used by the Session.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// EventHandler receives a change notification after controller state
// has been applied to the registry. Payload is nil except for single
// room updates, which carry the changed registry.Room. Handlers run on
// the session's connection goroutine and must not block.
type EventHandler func(kind protocol.Kind, payload any)

// DialFunc opens a connection to the controller. Tests substitute an
// in-memory pipe.
type DialFunc func(ctx context.Context) (net.Conn, error)

// request is one queued command awaiting its reply line.
type request struct {
	kind protocol.Kind
	line string
	done chan error
}

// Session manages the controller connection lifecycle: dialing,
// reconnecting with exponential backoff, serialized request/reply
// exchange, and applying decoded state to the registry.
//
// All public methods are thread-safe.
type Session struct {
	cfg      config.ControllerConfig
	registry *registry.Registry
	logger   Logger
	dial     DialFunc
	handler  EventHandler

	requests  chan *request
	connected atomic.Bool

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// maxLineSize bounds one reply line. A full device list for a large
// network fits comfortably.
const maxLineSize = 1 << 20

// New creates a controller session writing into the given registry.
func New(cfg config.ControllerConfig, reg *registry.Registry) *Session {
	s := &Session{
		cfg:      cfg,
		registry: reg,
		logger:   noopLogger{},
		handler:  func(protocol.Kind, any) {},
		requests: make(chan *request, cfg.PendingLimit),
	}
	s.dial = func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, cfg.Network, cfg.Address)
	}
	return s
}

// SetLogger sets the logger for the session.
func (s *Session) SetLogger(logger Logger) {
	s.logger = logger
}

// SetEventHandler registers the change-notification callback.
// Must be called before Start.
func (s *Session) SetEventHandler(handler EventHandler) {
	s.handler = handler
}

// SetDialer replaces the connection factory. Must be called before
// Start.
func (s *Session) SetDialer(dial DialFunc) {
	s.dial = dial
}

// Start launches the connection loop. It returns immediately; the
// first connection attempt happens in the background.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(runCtx)
	}()
	return nil
}

// Stop tears down the connection and waits for the loop to exit.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Connected reports whether a controller connection is currently up.
func (s *Session) Connected() bool {
	return s.connected.Load()
}

// HealthCheck reports an error while the controller link is down.
func (s *Session) HealthCheck(_ context.Context) error {
	if !s.connected.Load() {
		return ErrControllerUnavailable
	}
	return nil
}

// Send queues one command and waits for its reply to be observed.
//
// While disconnected, or when the bounded queue is full, it fails fast
// with ErrControllerUnavailable instead of queuing indefinitely.
func (s *Session) Send(ctx context.Context, kind protocol.Kind, line string) error {
	if !s.connected.Load() {
		return ErrControllerUnavailable
	}

	req := &request{kind: kind, line: line, done: make(chan error, 1)}
	select {
	case s.requests <- req:
	default:
		return fmt.Errorf("%w: request queue full", ErrControllerUnavailable)
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh queues the four list requests that rebuild the registry.
// Best effort: requests that do not fit the queue are skipped and the
// next refresh will catch up.
func (s *Session) Refresh() {
	for _, kind := range []protocol.Kind{
		protocol.KindDeviceList,
		protocol.KindRoomList,
		protocol.KindSceneList,
		protocol.KindPresence,
	} {
		req := &request{kind: kind, line: protocol.EncodeRequest(kind), done: make(chan error, 1)}
		select {
		case s.requests <- req:
		default:
			s.logger.Warn("refresh request dropped, queue full", "kind", kind)
		}
	}
}

// run is the connection loop: dial, serve, back off, repeat.
func (s *Session) run(ctx context.Context) {
	delay := s.cfg.GetInitialReconnectDelay()

	for {
		conn, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("controller dial failed",
				"address", s.cfg.Address, "retry_in", delay, "error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			delay = nextDelay(delay, s.cfg.GetMaxReconnectDelay())
			continue
		}

		s.logger.Info("controller connected", "address", s.cfg.Address)
		delay = s.cfg.GetInitialReconnectDelay()
		s.connected.Store(true)
		s.Refresh()

		err = s.serve(ctx, conn)
		s.connected.Store(false)
		conn.Close()
		s.failPending()

		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("controller connection lost", "error", err)
	}
}

func nextDelay(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

// serve runs one connection until it breaks. Reply lines are consumed
// inside transact; lines arriving with no request in flight are
// unsolicited pushes.
func (s *Session) serve(ctx context.Context, conn net.Conn) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go readLines(conn, lines, readErr, done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case line := <-lines:
			s.handlePush(line)
		case req := <-s.requests:
			if err := s.transact(ctx, conn, req, lines, readErr); err != nil {
				return err
			}
		}
	}
}

// transact writes one request and waits for its reply line. Pushes
// that interleave with the exchange are handled in place. Any error
// returned here is fatal to the connection.
func (s *Session) transact(ctx context.Context, conn net.Conn, req *request, lines chan string, readErr chan error) error {
	if _, err := fmt.Fprintf(conn, "%s\n", req.line); err != nil {
		req.done <- ErrControllerUnavailable
		return fmt.Errorf("writing %s: %w", req.kind, err)
	}

	timeout := time.NewTimer(s.cfg.GetRequestTimeout())
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			req.done <- ErrControllerUnavailable
			return ctx.Err()
		case err := <-readErr:
			req.done <- ErrControllerUnavailable
			return err
		case <-timeout.C:
			req.done <- ErrRequestTimeout
			return fmt.Errorf("%w: %s", ErrRequestTimeout, req.kind)
		case line := <-lines:
			if protocol.IsUpdatePush(line) {
				s.handlePush(line)
				continue
			}
			s.applyReply(req.kind, line)
			req.done <- nil
			return nil
		}
	}
}

// handlePush reacts to an unsolicited controller line. Only the UPDATE
// signal is expected; it announces that state changed upstream, so the
// session notifies subscribers and re-requests the lists.
func (s *Session) handlePush(line string) {
	if !protocol.IsUpdatePush(line) {
		s.logger.Warn("unexpected unsolicited line", "line", truncate(line))
		return
	}
	s.logger.Debug("update push received")
	s.handler(protocol.KindUpdate, nil)
	s.Refresh()
}

// applyReply decodes a reply by its request's kind and applies it to
// the registry. Change notifications fire only when the registry
// reports an actual difference, so re-applying identical state is
// silent. Decode errors skip the bad records and keep the rest.
func (s *Session) applyReply(kind protocol.Kind, payload string) {
	switch kind {
	case protocol.KindDeviceList:
		devices, err := protocol.DecodeDeviceList(payload)
		if err != nil {
			s.logger.Warn("device list partially decoded", "error", err)
		}
		if s.registry.ApplyDevices(devices) {
			s.handler(protocol.KindDeviceList, nil)
		}

	case protocol.KindRoomList:
		rooms, err := protocol.DecodeRoomList(payload)
		if err != nil {
			s.logger.Warn("room list partially decoded", "error", err)
		}
		if s.registry.ApplyRooms(rooms) {
			s.handler(protocol.KindRoomList, nil)
		}

	case protocol.KindRoom:
		room, err := protocol.DecodeRoom(payload)
		if err != nil {
			s.logger.Warn("room update discarded", "error", err)
			return
		}
		changed, err := s.registry.ApplyRoomUpdate(room)
		if err != nil {
			if errors.Is(err, registry.ErrUnknownRoom) {
				s.logger.Warn("room update for unknown room", "room", room.Name)
				return
			}
			s.logger.Error("applying room update", "error", err)
			return
		}
		if changed {
			s.handler(protocol.KindRoom, room)
		}

	case protocol.KindSceneList:
		scenes, err := protocol.DecodeSceneList(payload)
		if err != nil {
			s.logger.Warn("scene list partially decoded", "error", err)
		}
		if s.registry.ApplyScenes(scenes) {
			s.handler(protocol.KindSceneList, nil)
		}

	case protocol.KindPresence:
		atHome, err := protocol.DecodePresence(payload)
		if err != nil {
			s.logger.Warn("presence reply discarded", "error", err)
			return
		}
		if s.registry.ApplyPresence(atHome) {
			s.handler(protocol.KindPresence, nil)
		}

	default:
		// Command acknowledgement. State changes arrive via UPDATE.
		s.logger.Debug("command acknowledged", "kind", kind, "reply", truncate(payload))
	}
}

// failPending rejects queued requests after a disconnect so callers
// are not left waiting for a connection that may be minutes away.
func (s *Session) failPending() {
	for {
		select {
		case req := <-s.requests:
			req.done <- ErrControllerUnavailable
		default:
			return
		}
	}
}

// readLines feeds newline-framed messages to the serve loop until the
// connection breaks or the loop signals done.
func readLines(conn net.Conn, lines chan<- string, readErr chan<- error, done <-chan struct{}) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		select {
		case lines <- line:
		case <-done:
			return
		}
	}
	err := scanner.Err()
	if err == nil {
		err = errors.New("controller closed the connection")
	}
	select {
	case readErr <- err:
	case <-done:
	}
}

func truncate(line string) string {
	const max = 120
	if len(line) <= max {
		return line
	}
	return line[:max] + "..."
}
