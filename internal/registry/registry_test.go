package registry

import "testing"

func testDevices() []Device {
	return []Device{
		{Node: 2, Name: "Lamp", Group: "Living", Type: TypeBinarySwitch, Status: StatusOn},
		{Node: 3, Name: "Dimmer", Group: "Study", Type: TypeMultilevelPowerSwitch, Status: "42"},
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestRegistry_ApplyDevices_ChangeDetection(t *testing.T) {
	r := New()

	if !r.ApplyDevices(testDevices()) {
		t.Error("first apply should report a change")
	}
	if r.ApplyDevices(testDevices()) {
		t.Error("identical apply should not report a change")
	}

	changed := testDevices()
	changed[0].Status = StatusOff
	if !r.ApplyDevices(changed) {
		t.Error("apply with a differing status should report a change")
	}
}

func TestRegistry_Device(t *testing.T) {
	r := New()
	r.ApplyDevices(testDevices())

	d, ok := r.Device(3)
	if !ok {
		t.Fatal("expected node 3 to exist")
	}
	if d.Name != "Dimmer" || d.Status != "42" {
		t.Errorf("unexpected device: %+v", d)
	}

	if _, ok := r.Device(99); ok {
		t.Error("expected node 99 to be absent")
	}
}

func TestRegistry_SnapshotIsolation(t *testing.T) {
	r := New()
	r.ApplyDevices(testDevices())

	snap := r.Devices()
	snap[0].Name = "mutated"

	d, _ := r.Device(2)
	if d.Name != "Lamp" {
		t.Error("mutating a snapshot must not affect registry state")
	}

	r.ApplyRooms([]Room{{Name: "Living", CurrentTemp: floatPtr(20.5)}})
	rooms := r.Rooms()
	*rooms[0].CurrentTemp = 99

	room, _ := r.Room("Living")
	if *room.CurrentTemp != 20.5 {
		t.Error("mutating a room snapshot must not affect registry state")
	}
}

func TestRegistry_ApplyRoomUpdate(t *testing.T) {
	r := New()
	r.ApplyRooms([]Room{
		{Name: "Living", CurrentSetpoint: floatPtr(19)},
		{Name: "Study"},
	})

	changed, err := r.ApplyRoomUpdate(Room{Name: "Living", CurrentSetpoint: floatPtr(19.5)})
	if err != nil {
		t.Fatalf("ApplyRoomUpdate() error = %v", err)
	}
	if !changed {
		t.Error("setpoint change should report a change")
	}

	room, _ := r.Room("Living")
	if room.CurrentSetpoint == nil || *room.CurrentSetpoint != 19.5 {
		t.Errorf("setpoint not merged: %+v", room)
	}

	// Same value again is a no-op
	changed, err = r.ApplyRoomUpdate(Room{Name: "Living", CurrentSetpoint: floatPtr(19.5)})
	if err != nil {
		t.Fatalf("ApplyRoomUpdate() error = %v", err)
	}
	if changed {
		t.Error("identical update should not report a change")
	}

	if _, err := r.ApplyRoomUpdate(Room{Name: "Attic"}); err != ErrUnknownRoom {
		t.Errorf("ApplyRoomUpdate(unknown) error = %v, want ErrUnknownRoom", err)
	}
}

func TestRegistry_ApplyScenes_ChangeDetection(t *testing.T) {
	r := New()
	scenes := []Scene{{Name: "Movie", Targets: []SceneTarget{{Node: 2, Status: StatusOff}, {Node: 3, Status: "20"}}}}

	if !r.ApplyScenes(scenes) {
		t.Error("first apply should report a change")
	}
	if r.ApplyScenes(scenes) {
		t.Error("identical apply should not report a change")
	}

	reordered := []Scene{{Name: "Movie", Targets: []SceneTarget{{Node: 3, Status: "20"}, {Node: 2, Status: StatusOff}}}}
	if !r.ApplyScenes(reordered) {
		t.Error("target order is significant; reorder should report a change")
	}
}

func TestRegistry_ApplyPresence(t *testing.T) {
	r := New()

	if r.AtHome() {
		t.Error("presence should default to false")
	}
	if !r.ApplyPresence(true) {
		t.Error("first transition should report a change")
	}
	if r.ApplyPresence(true) {
		t.Error("repeated value should not report a change")
	}
	if !r.AtHome() {
		t.Error("presence should now be true")
	}
}

func TestStatus_Level(t *testing.T) {
	tests := []struct {
		status Status
		level  int
		ok     bool
	}{
		{StatusOn, 99, true},
		{StatusOff, 0, true},
		{"42", 42, true},
		{"0", 0, true},
		{"99", 99, true},
		{"100", 0, false},
		{"-1", 0, false},
		{"dim", 0, false},
	}

	for _, tt := range tests {
		level, ok := tt.status.Level()
		if level != tt.level || ok != tt.ok {
			t.Errorf("Status(%q).Level() = (%d, %v), want (%d, %v)", tt.status, level, ok, tt.level, tt.ok)
		}
	}
}
