package registry

import "strconv"

// DeviceType identifies the command class a device speaks. The set is
// closed; the controller only exposes binary and multilevel switches.
type DeviceType string

const (
	TypeBinarySwitch          DeviceType = "Binary Switch"
	TypeBinaryPowerSwitch     DeviceType = "Binary Power Switch"
	TypeMultilevelSwitch      DeviceType = "Multilevel Switch"
	TypeMultilevelPowerSwitch DeviceType = "Multilevel Power Switch"
)

// Known reports whether t is one of the supported device types.
func (t DeviceType) Known() bool {
	switch t {
	case TypeBinarySwitch, TypeBinaryPowerSwitch,
		TypeMultilevelSwitch, TypeMultilevelPowerSwitch:
		return true
	}
	return false
}

// Multilevel reports whether the device carries a dimmable level
// rather than a plain on/off state.
func (t DeviceType) Multilevel() bool {
	return t == TypeMultilevelSwitch || t == TypeMultilevelPowerSwitch
}

// Status is a device state as reported by the controller. Binary
// devices use StatusOn and StatusOff; multilevel devices report a
// numeric level 0-99 as its decimal string, with On/Off accepted as
// aliases for full and zero.
type Status string

const (
	StatusOn  Status = "On"
	StatusOff Status = "Off"
)

// Level returns the numeric level a status represents and whether the
// status is a valid level for a multilevel device.
func (s Status) Level() (int, bool) {
	switch s {
	case StatusOn:
		return 99, true
	case StatusOff:
		return 0, true
	}
	n, err := strconv.Atoi(string(s))
	if err != nil || n < 0 || n > 99 {
		return 0, false
	}
	return n, true
}

// Device is one controller-managed node. Node is the stable unique id
// assigned by the controller; Name and Group are mutable labels.
type Device struct {
	Node   int        `json:"node"`
	Name   string     `json:"name"`
	Group  string     `json:"group"`
	Type   DeviceType `json:"type"`
	Status Status     `json:"status"`
}

// Room groups devices under a display name and carries the latest
// reported climate readings. Temperature fields are nil until the
// controller first reports them.
type Room struct {
	Name            string   `json:"Name"`
	CurrentTemp     *float64 `json:"currentTemp"`
	CurrentSetpoint *float64 `json:"currentSetpoint"`
	Nodes           []int    `json:"nodes,omitempty"`
}

// DeepCopy returns a copy sharing no memory with the original.
func (r *Room) DeepCopy() *Room {
	c := *r
	if r.CurrentTemp != nil {
		v := *r.CurrentTemp
		c.CurrentTemp = &v
	}
	if r.CurrentSetpoint != nil {
		v := *r.CurrentSetpoint
		c.CurrentSetpoint = &v
	}
	if r.Nodes != nil {
		c.Nodes = make([]int, len(r.Nodes))
		copy(c.Nodes, r.Nodes)
	}
	return &c
}

// Equal reports whether two rooms match by value.
func (r *Room) Equal(other *Room) bool {
	if r.Name != other.Name {
		return false
	}
	if !floatPtrEqual(r.CurrentTemp, other.CurrentTemp) {
		return false
	}
	if !floatPtrEqual(r.CurrentSetpoint, other.CurrentSetpoint) {
		return false
	}
	if len(r.Nodes) != len(other.Nodes) {
		return false
	}
	for i := range r.Nodes {
		if r.Nodes[i] != other.Nodes[i] {
			return false
		}
	}
	return true
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// SceneTarget is one step of a scene: drive a node to a status.
type SceneTarget struct {
	Node   int    `json:"node"`
	Status Status `json:"status"`
}

// Scene is a named, ordered set of device targets. Scenes are
// definitions only; they carry no runtime state.
type Scene struct {
	Name    string        `json:"Name"`
	Targets []SceneTarget `json:"targets,omitempty"`
}

// DeepCopy returns a copy sharing no memory with the original.
func (s *Scene) DeepCopy() *Scene {
	c := *s
	if s.Targets != nil {
		c.Targets = make([]SceneTarget, len(s.Targets))
		copy(c.Targets, s.Targets)
	}
	return &c
}

// Equal reports whether two scenes match by value, including target order.
func (s *Scene) Equal(other *Scene) bool {
	if s.Name != other.Name || len(s.Targets) != len(other.Targets) {
		return false
	}
	for i := range s.Targets {
		if s.Targets[i] != other.Targets[i] {
			return false
		}
	}
	return true
}
