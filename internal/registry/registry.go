package registry

import "sync"

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the in-memory authoritative snapshot of devices, rooms,
// scenes, and presence. The controller session is the single writer;
// every other component only reads.
//
// Mutation never edits state in place: each Apply call builds a fresh
// snapshot and swaps it in under the lock, so readers always observe a
// consistent point-in-time view and returned copies are safe to hold
// across later updates.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	devices []Device
	rooms   []*Room
	scenes  []*Scene
	atHome  bool
	logger  Logger
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{logger: noopLogger{}}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// ApplyDevices replaces the device set wholesale. The controller is
// authoritative, so there is no merge logic. Returns true only when the
// new set differs by value from the previous one, which is the signal
// to notify subscribers.
func (r *Registry) ApplyDevices(devices []Device) bool {
	next := make([]Device, len(devices))
	copy(next, devices)

	r.mu.Lock()
	defer r.mu.Unlock()

	if devicesEqual(r.devices, next) {
		return false
	}
	r.devices = next
	r.logger.Debug("device snapshot replaced", "count", len(next))
	return true
}

// ApplyRooms replaces the room set wholesale, same change-detection
// rule as ApplyDevices.
func (r *Registry) ApplyRooms(rooms []Room) bool {
	next := make([]*Room, len(rooms))
	for i := range rooms {
		next[i] = rooms[i].DeepCopy()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if roomsEqual(r.rooms, next) {
		return false
	}
	r.rooms = next
	r.logger.Debug("room snapshot replaced", "count", len(next))
	return true
}

// ApplyRoomUpdate merges a single room by name. Rooms only come into
// existence through a full room list, so an unknown name returns
// ErrUnknownRoom.
func (r *Registry) ApplyRoomUpdate(room Room) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.rooms {
		if existing.Name != room.Name {
			continue
		}
		if existing.Equal(&room) {
			return false, nil
		}
		next := make([]*Room, len(r.rooms))
		copy(next, r.rooms)
		next[i] = room.DeepCopy()
		r.rooms = next
		return true, nil
	}
	return false, ErrUnknownRoom
}

// ApplyScenes replaces the scene set wholesale, same change-detection
// rule as ApplyDevices.
func (r *Registry) ApplyScenes(scenes []Scene) bool {
	next := make([]*Scene, len(scenes))
	for i := range scenes {
		next[i] = scenes[i].DeepCopy()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if scenesEqual(r.scenes, next) {
		return false
	}
	r.scenes = next
	r.logger.Debug("scene snapshot replaced", "count", len(next))
	return true
}

// ApplyPresence records the last-reported at-home flag. Returns true
// when the value changed.
func (r *Registry) ApplyPresence(atHome bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.atHome == atHome {
		return false
	}
	r.atHome = atHome
	return true
}

// Devices returns a copy of the current device snapshot.
func (r *Registry) Devices() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]Device, len(r.devices))
	copy(devices, r.devices)
	return devices
}

// Device returns the device with the given node id, if present.
func (r *Registry) Device(node int) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.devices {
		if d.Node == node {
			return d, true
		}
	}
	return Device{}, false
}

// Rooms returns a copy of the current room snapshot.
func (r *Registry) Rooms() []Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, *room.DeepCopy())
	}
	return rooms
}

// Room returns the room with the given name, if present.
func (r *Registry) Room(name string) (Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, room := range r.rooms {
		if room.Name == name {
			return *room.DeepCopy(), true
		}
	}
	return Room{}, false
}

// Scenes returns a copy of the current scene snapshot.
func (r *Registry) Scenes() []Scene {
	r.mu.RLock()
	defer r.mu.RUnlock()

	scenes := make([]Scene, 0, len(r.scenes))
	for _, scene := range r.scenes {
		scenes = append(scenes, *scene.DeepCopy())
	}
	return scenes
}

// AtHome returns the last-reported presence flag.
func (r *Registry) AtHome() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.atHome
}

func devicesEqual(a, b []Device) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func roomsEqual(a, b []*Room) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func scenesEqual(a, b []*Scene) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
