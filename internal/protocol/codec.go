package protocol

import (
	"errors"
	"strconv"
	"strings"

	"github.com/wburgers/zwave-hub/internal/registry"
)

// Kind discriminates controller messages. Request keywords and reply
// kinds share the same values; a reply is tagged with the Kind of the
// request that solicited it.
type Kind string

const (
	KindDeviceList Kind = "ALIST"
	KindRoomList   Kind = "ROOMLIST"
	KindRoom       Kind = "ROOM"
	KindSceneList  Kind = "SCENELIST"
	KindPresence   Kind = "ATHOME"

	// KindUpdate is the controller's unsolicited "state changed" push.
	// It carries no payload; receivers should re-request the lists.
	KindUpdate Kind = "UPDATE"

	// KindSetStatus and KindRename are command kinds. Their replies are
	// free-text acknowledgements, not decodable payloads.
	KindSetStatus Kind = "DEVICE"
	KindRename    Kind = "SETNODE"
)

const (
	recordSep = "#"
	fieldSep  = "~"

	// basicMarker precedes the numeric level in a multilevel device's
	// attribute blob. The leading space is part of the wire format.
	basicMarker = " Basic="
)

// DecodeDeviceList parses a full device list reply.
//
// Each record needs at least six fields: a leading empty field, then
// name, node, group, type, and the attribute blob. Status is inferred
// from the blob: "Basic=255" means On, "Basic=0" means Off, and for
// multilevel types the integer after " Basic=" up to the next space is
// the level, overriding the binary inference.
//
// Malformed records are skipped, not fatal: the returned slice holds
// every record that parsed, and the returned error joins one
// DecodeError per skipped record. Empty input yields an empty slice
// and a nil error.
func DecodeDeviceList(raw string) ([]registry.Device, error) {
	records := splitRecords(raw)
	devices := make([]registry.Device, 0, len(records))
	var errs []error

	for i, record := range records {
		device, err := decodeDeviceRecord(record)
		if err != nil {
			errs = append(errs, &DecodeError{Index: i, Record: record, Reason: err.Error()})
			continue
		}
		devices = append(devices, device)
	}
	return devices, errors.Join(errs...)
}

func decodeDeviceRecord(record string) (registry.Device, error) {
	fields := strings.Split(record, fieldSep)
	if len(fields) < 6 {
		return registry.Device{}, errors.New("fewer than 6 fields")
	}

	node, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil {
		return registry.Device{}, errors.New("node is not an integer")
	}

	device := registry.Device{
		Node:  node,
		Name:  fields[1],
		Group: fields[3],
		Type:  registry.DeviceType(fields[4]),
	}
	device.Status = inferStatus(fields[5], device.Type)
	return device, nil
}

// inferStatus applies the attribute-blob rules. An unrecognisable blob
// leaves the status empty rather than failing the record; the
// controller reports attributes we do not model.
func inferStatus(blob string, devType registry.DeviceType) registry.Status {
	var status registry.Status
	if strings.Contains(blob, "Basic=255") {
		status = registry.StatusOn
	}
	if strings.Contains(blob, "Basic=0") {
		status = registry.StatusOff
	}
	if devType.Multilevel() {
		if idx := strings.Index(blob, basicMarker); idx >= 0 {
			level := blob[idx+len(basicMarker):]
			if end := strings.IndexByte(level, ' '); end >= 0 {
				level = level[:end]
			}
			if _, err := strconv.Atoi(level); err == nil {
				status = registry.Status(level)
			}
		}
	}
	return status
}

// DecodeRoomList parses a full room list reply. Record layout mirrors
// the device list: leading empty field, then name, current temperature,
// setpoint, and an optional space-joined member node list. Temperature
// fields may be empty, meaning not yet reported.
func DecodeRoomList(raw string) ([]registry.Room, error) {
	records := splitRecords(raw)
	rooms := make([]registry.Room, 0, len(records))
	var errs []error

	for i, record := range records {
		room, err := decodeRoomRecord(record)
		if err != nil {
			errs = append(errs, &DecodeError{Index: i, Record: record, Reason: err.Error()})
			continue
		}
		rooms = append(rooms, room)
	}
	return rooms, errors.Join(errs...)
}

// DecodeRoom parses a single-room push, as sent after a setpoint change.
func DecodeRoom(raw string) (registry.Room, error) {
	record := strings.TrimSuffix(strings.TrimSpace(raw), recordSep)
	room, err := decodeRoomRecord(record)
	if err != nil {
		return registry.Room{}, &DecodeError{Record: record, Reason: err.Error()}
	}
	return room, nil
}

func decodeRoomRecord(record string) (registry.Room, error) {
	fields := strings.Split(record, fieldSep)
	if len(fields) < 4 {
		return registry.Room{}, errors.New("fewer than 4 fields")
	}
	if fields[1] == "" {
		return registry.Room{}, errors.New("empty room name")
	}

	room := registry.Room{Name: fields[1]}

	temp, err := decodeNullableFloat(fields[2])
	if err != nil {
		return registry.Room{}, errors.New("current temperature is not numeric")
	}
	room.CurrentTemp = temp

	setpoint, err := decodeNullableFloat(fields[3])
	if err != nil {
		return registry.Room{}, errors.New("setpoint is not numeric")
	}
	room.CurrentSetpoint = setpoint

	if len(fields) > 4 && fields[4] != "" {
		for _, tok := range strings.Fields(fields[4]) {
			node, err := strconv.Atoi(tok)
			if err != nil {
				return registry.Room{}, errors.New("member node is not an integer")
			}
			room.Nodes = append(room.Nodes, node)
		}
	}
	return room, nil
}

func decodeNullableFloat(field string) (*float64, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// DecodeSceneList parses a full scene list reply. Record layout:
// leading empty field, name, then a space-joined "<node>=<status>"
// target list preserving controller order.
func DecodeSceneList(raw string) ([]registry.Scene, error) {
	records := splitRecords(raw)
	scenes := make([]registry.Scene, 0, len(records))
	var errs []error

	for i, record := range records {
		scene, err := decodeSceneRecord(record)
		if err != nil {
			errs = append(errs, &DecodeError{Index: i, Record: record, Reason: err.Error()})
			continue
		}
		scenes = append(scenes, scene)
	}
	return scenes, errors.Join(errs...)
}

func decodeSceneRecord(record string) (registry.Scene, error) {
	fields := strings.Split(record, fieldSep)
	if len(fields) < 3 {
		return registry.Scene{}, errors.New("fewer than 3 fields")
	}
	if fields[1] == "" {
		return registry.Scene{}, errors.New("empty scene name")
	}

	scene := registry.Scene{Name: fields[1]}
	for _, tok := range strings.Fields(fields[2]) {
		node, status, ok := strings.Cut(tok, "=")
		if !ok {
			return registry.Scene{}, errors.New("target is not node=status")
		}
		n, err := strconv.Atoi(node)
		if err != nil {
			return registry.Scene{}, errors.New("target node is not an integer")
		}
		scene.Targets = append(scene.Targets, registry.SceneTarget{
			Node:   n,
			Status: registry.Status(status),
		})
	}
	return scene, nil
}

// DecodePresence parses an at-home reply. "1", "255", or "true" mean
// at home; "0", "false", or empty mean away.
func DecodePresence(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSuffix(strings.TrimSpace(raw), recordSep)) {
	case "1", "255", "true":
		return true, nil
	case "0", "false", "":
		return false, nil
	default:
		return false, &DecodeError{Record: raw, Reason: "unrecognised presence value"}
	}
}

// IsUpdatePush reports whether a raw line is the unsolicited UPDATE
// signal rather than a reply payload.
func IsUpdatePush(raw string) bool {
	return strings.TrimSuffix(strings.TrimSpace(raw), recordSep) == string(KindUpdate)
}

// splitRecords breaks a reply into records, dropping the trailing
// empty element produced by the terminating '#'.
func splitRecords(raw string) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, recordSep)
	if raw == "" {
		return nil
	}
	return strings.Split(raw, recordSep)
}
