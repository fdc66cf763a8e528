package controller

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wburgers/zwave-hub/internal/infrastructure/config"
	"github.com/wburgers/zwave-hub/internal/protocol"
	"github.com/wburgers/zwave-hub/internal/registry"
)

func testControllerConfig() config.ControllerConfig {
	return config.ControllerConfig{
		Network: "tcp",
		Address: "test:60004",
		Reconnect: config.ReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     1,
		},
		RequestTimeout: 5,
		PendingLimit:   16,
	}
}

const testDeviceList = "~Lamp~2~Living~Binary Switch~Switch=True Basic=255#" +
	"~Fan~3~Study~Binary Switch~Switch=False Basic=0#"

// fakeController answers list requests with canned payloads and
// records every line it receives.
type fakeController struct {
	conn    net.Conn
	replies map[string]string

	mu       sync.Mutex
	received []string
}

func newFakeController(conn net.Conn) *fakeController {
	f := &fakeController{
		conn: conn,
		replies: map[string]string{
			"ALIST":     testDeviceList,
			"ROOMLIST":  "~Living~20.5~19~2#",
			"ROOM":      "~Living~20.5~20~2#",
			"SCENELIST": "~Movie~2=Off#",
			"ATHOME":    "1",
		},
	}
	go f.serve()
	return f
}

func (f *fakeController) serve() {
	scanner := bufio.NewScanner(f.conn)
	for scanner.Scan() {
		line := scanner.Text()
		f.mu.Lock()
		f.received = append(f.received, line)
		f.mu.Unlock()

		keyword, _, _ := strings.Cut(line, "~")
		reply, ok := f.replies[keyword]
		if !ok {
			reply = "OK"
		}
		fmt.Fprintf(f.conn, "%s\n", reply)
	}
}

func (f *fakeController) push(line string) {
	fmt.Fprintf(f.conn, "%s\n", line)
}

func (f *fakeController) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

func (f *fakeController) countLines(keyword string) int {
	n := 0
	for _, line := range f.lines() {
		if line == keyword || strings.HasPrefix(line, keyword+"~") {
			n++
		}
	}
	return n
}

// eventRecorder collects change notifications.
type eventRecorder struct {
	mu    sync.Mutex
	kinds []protocol.Kind
}

func (e *eventRecorder) record(kind protocol.Kind, _ any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kinds = append(e.kinds, kind)
}

func (e *eventRecorder) count(kind protocol.Kind) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, k := range e.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
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

// startTestSession wires a session to a fake controller over an
// in-memory pipe. Redials block until the test context ends.
func startTestSession(t *testing.T) (*Session, *registry.Registry, *fakeController, *eventRecorder) {
	t.Helper()

	client, server := net.Pipe()
	fake := newFakeController(server)

	connCh := make(chan net.Conn, 1)
	connCh <- client

	reg := registry.New()
	events := &eventRecorder{}

	s := New(testControllerConfig(), reg)
	s.SetEventHandler(events.record)
	s.SetDialer(func(ctx context.Context) (net.Conn, error) {
		select {
		case c := <-connCh:
			return c, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		cancel()
		s.Stop()
		client.Close()
		server.Close()
	})
	return s, reg, fake, events
}

func TestSession_RefreshOnConnect(t *testing.T) {
	_, reg, fake, events := startTestSession(t)

	waitFor(t, "registry to be populated", func() bool {
		return len(reg.Devices()) == 2 && len(reg.Rooms()) == 1 &&
			len(reg.Scenes()) == 1 && reg.AtHome()
	})

	d, ok := reg.Device(2)
	if !ok || d.Status != registry.StatusOn {
		t.Errorf("device 2 = %+v, ok = %v", d, ok)
	}

	for _, keyword := range []string{"ALIST", "ROOMLIST", "SCENELIST", "ATHOME"} {
		if got := fake.countLines(keyword); got != 1 {
			t.Errorf("%s requested %d times, want 1", keyword, got)
		}
	}

	waitFor(t, "initial change notifications", func() bool {
		return events.count(protocol.KindDeviceList) == 1 &&
			events.count(protocol.KindPresence) == 1
	})
}

func TestSession_Send_FailsFastWhenDisconnected(t *testing.T) {
	s := New(testControllerConfig(), registry.New())

	err := s.Send(context.Background(), protocol.KindSetStatus, "DEVICE~2~0~Binary Switch")
	if !errors.Is(err, ErrControllerUnavailable) {
		t.Errorf("Send() error = %v, want ErrControllerUnavailable", err)
	}
}

func TestSession_SendCommand(t *testing.T) {
	s, reg, fake, _ := startTestSession(t)
	waitFor(t, "registry to be populated", func() bool { return len(reg.Devices()) == 2 })

	line, err := protocol.EncodeSetStatus(2, registry.StatusOff, registry.TypeBinarySwitch)
	if err != nil {
		t.Fatalf("EncodeSetStatus() error = %v", err)
	}
	if err := s.Send(context.Background(), protocol.KindSetStatus, line); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if got := fake.countLines("DEVICE"); got != 1 {
		t.Errorf("DEVICE sent %d times, want 1", got)
	}
	for _, sent := range fake.lines() {
		if strings.HasPrefix(sent, "DEVICE") && sent != "DEVICE~2~0~Binary Switch" {
			t.Errorf("sent %q", sent)
		}
	}
}

func TestSession_SetpointReplyUpdatesRoom(t *testing.T) {
	s, reg, _, events := startTestSession(t)
	waitFor(t, "registry to be populated", func() bool { return len(reg.Rooms()) == 1 })

	line, err := protocol.EncodeSetpointAdjust("Living", true)
	if err != nil {
		t.Fatalf("EncodeSetpointAdjust() error = %v", err)
	}
	if err := s.Send(context.Background(), protocol.KindRoom, line); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	room, ok := reg.Room("Living")
	if !ok {
		t.Fatal("room Living missing after setpoint reply")
	}
	if room.CurrentSetpoint == nil || *room.CurrentSetpoint != 20 {
		t.Errorf("setpoint = %v, want 20", room.CurrentSetpoint)
	}
	if got := events.count(protocol.KindRoom); got != 1 {
		t.Errorf("room notifications = %d, want 1", got)
	}
}

func TestSession_ReapplyingIdenticalStateIsSilent(t *testing.T) {
	s, reg, fake, events := startTestSession(t)
	waitFor(t, "first refresh", func() bool { return fake.countLines("ATHOME") == 1 && reg.AtHome() })

	s.Refresh()
	waitFor(t, "second refresh", func() bool { return fake.countLines("ATHOME") == 2 })

	if got := events.count(protocol.KindDeviceList); got != 1 {
		t.Errorf("device list notifications = %d, want 1 for identical state", got)
	}
}

func TestSession_UpdatePushTriggersRefresh(t *testing.T) {
	_, reg, fake, events := startTestSession(t)
	waitFor(t, "first refresh", func() bool { return fake.countLines("ATHOME") == 1 && reg.AtHome() })

	fake.push("UPDATE")

	waitFor(t, "update notification", func() bool { return events.count(protocol.KindUpdate) == 1 })
	waitFor(t, "second refresh", func() bool { return fake.countLines("ALIST") == 2 })
}

func TestSession_StartTwice(t *testing.T) {
	s, _, _, _ := startTestSession(t)
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}
