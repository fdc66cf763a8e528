package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wburgers/zwave-hub/internal/registry"
)

// EncodeRequest builds the no-argument request line for a list kind.
func EncodeRequest(kind Kind) string {
	return string(kind)
}

// EncodeSetStatus builds a DEVICE command driving a node to a status.
//
// Binary types accept only On and Off, encoded as attribute values 255
// and 0. Multilevel types pass the numeric level through unchanged,
// with On and Off accepted as aliases for 99 and 0.
func EncodeSetStatus(node int, status registry.Status, devType registry.DeviceType) (string, error) {
	var value int
	switch {
	case devType.Multilevel():
		level, ok := status.Level()
		if !ok {
			return "", fmt.Errorf("%w: %q on %s", ErrInvalidStatus, status, devType)
		}
		value = level
	case status == registry.StatusOn:
		value = 255
	case status == registry.StatusOff:
		value = 0
	default:
		return "", fmt.Errorf("%w: %q on %s", ErrInvalidStatus, status, devType)
	}
	return fmt.Sprintf("DEVICE~%d~%d~%s", node, value, devType), nil
}

// EncodeRename builds a SETNODE command updating a node's name and
// group labels. The trailing '~' is part of the wire format.
func EncodeRename(node int, name, group string) (string, error) {
	if err := checkField(name); err != nil {
		return "", fmt.Errorf("name: %w", err)
	}
	if err := checkField(group); err != nil {
		return "", fmt.Errorf("group: %w", err)
	}
	return fmt.Sprintf("SETNODE~%d~%s~%s~", node, name, group), nil
}

// EncodeSetpointAdjust builds a ROOM command nudging a room's target
// temperature one step up or down. The controller answers with the
// room's updated record.
func EncodeSetpointAdjust(name string, up bool) (string, error) {
	if err := checkField(name); err != nil {
		return "", fmt.Errorf("name: %w", err)
	}
	dir := "-"
	if up {
		dir = "+"
	}
	return fmt.Sprintf("ROOM~%s~%s", dir, name), nil
}

// EncodeDeviceRecord builds one device-list record in the controller's
// own layout. Decoding it reproduces the device's node, name, group,
// type, and status, which pins the field layout in tests and feeds the
// controller simulator.
func EncodeDeviceRecord(d registry.Device) string {
	var blob string
	if d.Type.Multilevel() {
		level, _ := d.Status.Level()
		blob = fmt.Sprintf("Level=%d Basic=%d", level, level)
	} else if d.Status == registry.StatusOn {
		blob = "Switch=True Basic=255"
	} else {
		blob = "Switch=False Basic=0"
	}
	return fmt.Sprintf("~%s~%d~%s~%s~%s", d.Name, d.Node, d.Group, d.Type, blob)
}

// EncodeDeviceList joins device records into a full ALIST reply.
func EncodeDeviceList(devices []registry.Device) string {
	var b strings.Builder
	for _, d := range devices {
		b.WriteString(EncodeDeviceRecord(d))
		b.WriteString(recordSep)
	}
	return b.String()
}

// EncodeRoomRecord builds one room-list record.
func EncodeRoomRecord(r registry.Room) string {
	nodes := make([]string, len(r.Nodes))
	for i, n := range r.Nodes {
		nodes[i] = strconv.Itoa(n)
	}
	return fmt.Sprintf("~%s~%s~%s~%s",
		r.Name,
		formatNullableFloat(r.CurrentTemp),
		formatNullableFloat(r.CurrentSetpoint),
		strings.Join(nodes, " "))
}

// EncodeRoomList joins room records into a full ROOMLIST reply.
func EncodeRoomList(rooms []registry.Room) string {
	var b strings.Builder
	for _, r := range rooms {
		b.WriteString(EncodeRoomRecord(r))
		b.WriteString(recordSep)
	}
	return b.String()
}

// EncodeSceneRecord builds one scene-list record.
func EncodeSceneRecord(s registry.Scene) string {
	targets := make([]string, len(s.Targets))
	for i, t := range s.Targets {
		targets[i] = fmt.Sprintf("%d=%s", t.Node, t.Status)
	}
	return fmt.Sprintf("~%s~%s", s.Name, strings.Join(targets, " "))
}

// EncodeSceneList joins scene records into a full SCENELIST reply.
func EncodeSceneList(scenes []registry.Scene) string {
	var b strings.Builder
	for _, s := range scenes {
		b.WriteString(EncodeSceneRecord(s))
		b.WriteString(recordSep)
	}
	return b.String()
}

// EncodePresence builds an ATHOME reply payload.
func EncodePresence(atHome bool) string {
	if atHome {
		return "1"
	}
	return "0"
}

func formatNullableFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func checkField(v string) error {
	if strings.ContainsAny(v, fieldSep+recordSep) {
		return ErrReservedCharacter
	}
	return nil
}
