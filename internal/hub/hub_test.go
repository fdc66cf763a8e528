package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wburgers/zwave-hub/internal/authgate"
	"github.com/wburgers/zwave-hub/internal/controller"
	"github.com/wburgers/zwave-hub/internal/infrastructure/config"
	"github.com/wburgers/zwave-hub/internal/infrastructure/logging"
	"github.com/wburgers/zwave-hub/internal/protocol"
	"github.com/wburgers/zwave-hub/internal/registry"
)

// fakeGate admits the credential "good-token" and rejects the rest.
type fakeGate struct{}

func (fakeGate) Verify(_ context.Context, credential string) (*authgate.Identity, error) {
	if credential == "good-token" {
		return &authgate.Identity{Subject: "user-1", Profile: `{"name":"Test User"}`}, nil
	}
	return nil, authgate.ErrInvalid
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		Path:           "/ws",
		MaxMessageSize: 65536,
		PingInterval:   30,
		PongTimeout:    10,
		SendBuffer:     32,
	}
}

func newTestHub(t *testing.T) (*Hub, *registry.Registry, *fakeCommander, *httptest.Server) {
	t.Helper()

	reg := registry.New()
	reg.ApplyDevices([]registry.Device{
		{Node: 2, Name: "Lamp", Group: "Living", Type: registry.TypeBinarySwitch, Status: registry.StatusOn},
		{Node: 3, Name: "Dimmer", Group: "Study", Type: registry.TypeMultilevelPowerSwitch, Status: "42"},
		{Node: 4, Name: "Fan", Group: "Attic", Type: registry.TypeBinarySwitch, Status: registry.StatusOff},
	})
	reg.ApplyRooms([]registry.Room{{Name: "Living"}, {Name: "Study"}})
	reg.ApplyScenes([]registry.Scene{{Name: "Movie"}})
	reg.ApplyPresence(true)

	cmd := &fakeCommander{}
	router := NewRouter(reg, cmd, 2, logging.Default())
	h := NewHub(testWSConfig(), reg, fakeGate{}, router, logging.Default())

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(srv.Close)
	return h, reg, cmd, srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading envelope: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decoding envelope %q: %v", data, err)
	}
	return env
}

func admit(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte("AUTH~good-token")); err != nil {
		t.Fatalf("sending auth: %v", err)
	}
}

func TestHub_AdmissionDeliversSnapshotFirst(t *testing.T) {
	h, _, _, srv := newTestHub(t)
	conn := dialWS(t, srv)
	admit(t, conn)

	auth := readEnvelope(t, conn)
	if auth.Command != CommandAuth || auth.Auth == nil || !*auth.Auth {
		t.Fatalf("first envelope = %+v, want AUTH true", auth)
	}
	if auth.Profile == "" {
		t.Error("auth envelope missing profile")
	}

	// The full snapshot arrives before any broadcast.
	wantOrder := []string{CommandDeviceList, CommandRoomList, CommandSceneList, CommandPresence}
	for _, want := range wantOrder {
		env := readEnvelope(t, conn)
		if env.Command != want {
			t.Fatalf("snapshot envelope = %q, want %q", env.Command, want)
		}
		switch want {
		case CommandDeviceList:
			if len(env.Nodes) != 3 {
				t.Errorf("nodes = %d, want 3", len(env.Nodes))
			}
		case CommandRoomList:
			if len(env.Rooms) != 2 {
				t.Errorf("rooms = %d, want 2", len(env.Rooms))
			}
		case CommandSceneList:
			if len(env.Scenes) != 1 {
				t.Errorf("scenes = %d, want 1", len(env.Scenes))
			}
		case CommandPresence:
			if env.AtHome == nil || !*env.AtHome {
				t.Errorf("athome = %v, want true", env.AtHome)
			}
		}
	}

	// Broadcasts flow after the snapshot.
	h.HandleControllerEvent(protocol.KindUpdate, nil)
	if env := readEnvelope(t, conn); env.Command != CommandUpdate {
		t.Errorf("post-snapshot envelope = %q, want UPDATE", env.Command)
	}
}

func TestHub_RejectionIsTyped(t *testing.T) {
	_, _, _, srv := newTestHub(t)
	conn := dialWS(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("AUTH~stolen-token")); err != nil {
		t.Fatalf("sending auth: %v", err)
	}

	env := readEnvelope(t, conn)
	if env.Command != CommandAuth || env.Auth == nil || *env.Auth {
		t.Fatalf("rejection envelope = %+v, want AUTH false", env)
	}

	// The server closes after the rejection.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to close after rejection")
	}
}

func TestHub_RejectionSurvivesConnectionTeardown(t *testing.T) {
	// The rejection envelope is queued on the same goroutine that then
	// tears the connection down, so delivery depends on the close path
	// waiting for the write pump. Repeat to cover scheduling orders.
	_, _, _, srv := newTestHub(t)

	for i := 0; i < 50; i++ {
		url := "ws" + strings.TrimPrefix(srv.URL, "http")
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("attempt %d: dialing websocket: %v", i, err)
		}

		if err := conn.WriteMessage(websocket.TextMessage, []byte("AUTH~stolen-token")); err != nil {
			conn.Close()
			t.Fatalf("attempt %d: sending auth: %v", i, err)
		}

		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			t.Fatalf("attempt %d: rejection envelope lost: %v", i, err)
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			conn.Close()
			t.Fatalf("attempt %d: decoding envelope %q: %v", i, data, err)
		}
		if env.Command != CommandAuth || env.Auth == nil || *env.Auth {
			conn.Close()
			t.Fatalf("attempt %d: envelope = %+v, want AUTH false", i, env)
		}
		conn.Close()
	}
}

func TestHub_FirstMessageMustAuthenticate(t *testing.T) {
	h, _, _, srv := newTestHub(t)
	conn := dialWS(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("ALIST")); err != nil {
		t.Fatalf("sending command: %v", err)
	}

	env := readEnvelope(t, conn)
	if env.Command != CommandAuth || env.Auth == nil || *env.Auth {
		t.Fatalf("envelope = %+v, want AUTH false", env)
	}
	if h.SessionCount() != 0 {
		t.Errorf("sessions = %d, want 0", h.SessionCount())
	}
}

func TestHub_DispatchAfterAdmission(t *testing.T) {
	_, _, cmd, srv := newTestHub(t)
	conn := dialWS(t, srv)
	admit(t, conn)

	// Drain auth plus snapshot.
	for i := 0; i < 5; i++ {
		readEnvelope(t, conn)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("ALIST")); err != nil {
		t.Fatalf("sending command: %v", err)
	}
	env := readEnvelope(t, conn)
	if env.Command != CommandDeviceList || len(env.Nodes) != 3 {
		t.Errorf("envelope = %+v, want device list reply", env)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("DEVICE~2~0~Binary Switch")); err != nil {
		t.Fatalf("sending command: %v", err)
	}
	waitForCondition(t, "controller to receive command", func() bool {
		lines := cmd.lines()
		return len(lines) == 1 && lines[0] == "DEVICE~2~0~Binary Switch"
	})
}

func TestHub_ErrorEnvelopeOnControllerFailure(t *testing.T) {
	_, _, cmd, srv := newTestHub(t)
	cmd.failWith(controller.ErrControllerUnavailable)

	conn := dialWS(t, srv)
	admit(t, conn)
	for i := 0; i < 5; i++ {
		readEnvelope(t, conn)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("DEVICE~2~0~Binary Switch")); err != nil {
		t.Fatalf("sending command: %v", err)
	}
	env := readEnvelope(t, conn)
	if env.Command != CommandError || env.Error != "controller unavailable" {
		t.Errorf("envelope = %+v, want controller unavailable error", env)
	}
}

func TestHub_UnknownKeywordIsSilentlyIgnored(t *testing.T) {
	h, _, _, srv := newTestHub(t)
	conn := dialWS(t, srv)
	admit(t, conn)
	for i := 0; i < 5; i++ {
		readEnvelope(t, conn)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("REBOOT~now")); err != nil {
		t.Fatalf("sending command: %v", err)
	}

	// No reply for the unknown keyword; the next broadcast is the next
	// thing this client sees.
	h.Broadcast(Envelope{Command: CommandUpdate})
	if env := readEnvelope(t, conn); env.Command != CommandUpdate {
		t.Errorf("envelope = %q, want UPDATE (nothing in between)", env.Command)
	}
}

func TestHub_SlowSessionDoesNotBlockBroadcast(t *testing.T) {
	reg := registry.New()
	router := NewRouter(reg, &fakeCommander{}, 2, logging.Default())
	h := NewHub(testWSConfig(), reg, fakeGate{}, router, logging.Default())

	slow := &Session{ID: "slow", hub: h, send: make(chan []byte, 1)}
	slow.send <- []byte("stuck") // buffer already full, never drained
	healthy := &Session{ID: "healthy", hub: h, send: make(chan []byte, 8)}

	h.sessions[slow] = struct{}{}
	h.sessions[healthy] = struct{}{}

	done := make(chan struct{})
	go func() {
		h.Broadcast(Envelope{Command: CommandUpdate})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on slow session")
	}

	select {
	case <-healthy.send:
	default:
		t.Error("healthy session did not receive the broadcast")
	}
}

func TestHub_RemoveIsIdempotent(t *testing.T) {
	reg := registry.New()
	router := NewRouter(reg, &fakeCommander{}, 2, logging.Default())
	h := NewHub(testWSConfig(), reg, fakeGate{}, router, logging.Default())

	s := &Session{ID: "s1", hub: h, send: make(chan []byte, 1)}
	h.sessions[s] = struct{}{}

	h.remove(s)
	h.remove(s) // second call must not close the channel again

	if h.SessionCount() != 0 {
		t.Errorf("sessions = %d, want 0", h.SessionCount())
	}
}

func waitForCondition(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
