package hub

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/wburgers/zwave-hub/internal/infrastructure/logging"
	"github.com/wburgers/zwave-hub/internal/protocol"
	"github.com/wburgers/zwave-hub/internal/registry"
)

// Commander sends one encoded command to the controller and waits for
// its reply to be observed.
type Commander interface {
	Send(ctx context.Context, kind protocol.Kind, line string) error
}

// Router maps inbound command keywords to handlers. The keyword set is
// closed; unknown keywords are ignored with a debug log rather than
// reported, matching the behaviour UI clients were built against.
//
// Mutating commands apply the no-redundant-write guard: a command that
// would not change recorded state is answered locally and never
// forwarded to the controller.
type Router struct {
	registry   *registry.Registry
	commander  Commander
	switchNode int
	logger     *logging.Logger
}

// NewRouter creates a router. switchNode is the well-known device the
// bare SWITCH command toggles.
func NewRouter(reg *registry.Registry, commander Commander, switchNode int, logger *logging.Logger) *Router {
	return &Router{
		registry:   reg,
		commander:  commander,
		switchNode: switchNode,
		logger:     logger,
	}
}

// Dispatch routes one raw command. A non-nil envelope is the reply for
// the issuing session; nil with nil error means nothing to say.
func (r *Router) Dispatch(ctx context.Context, raw string) (*Envelope, error) {
	keyword, args, _ := strings.Cut(raw, "~")

	switch keyword {
	case CommandDeviceList:
		env := deviceListEnvelope(r.registry.Devices())
		return &env, nil
	case CommandRoomList:
		env := roomListEnvelope(r.registry.Rooms())
		return &env, nil
	case CommandSceneList:
		env := sceneListEnvelope(r.registry.Scenes())
		return &env, nil
	case CommandPresence:
		env := presenceEnvelope(r.registry.AtHome())
		return &env, nil
	case "DEVICE":
		return nil, r.handleSetStatus(ctx, args)
	case "SETNODE":
		return nil, r.handleRename(ctx, args)
	case "ROOM":
		return nil, r.handleSetpoint(ctx, args)
	case "SWITCH":
		return nil, r.handleToggle(ctx)
	default:
		r.logger.Debug("unknown command ignored", "keyword", keyword)
		return nil, nil
	}
}

// handleSetStatus drives one device to a target status:
// DEVICE~<node>~<value>~<type>.
func (r *Router) handleSetStatus(ctx context.Context, args string) error {
	parts := strings.Split(args, "~")
	if len(parts) != 3 {
		return fmt.Errorf("%w: DEVICE wants node, value, type", ErrBadCommand)
	}

	node, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("%w: node %q", ErrBadCommand, parts[0])
	}

	device, ok := r.registry.Device(node)
	if !ok {
		return fmt.Errorf("%w: node %d", ErrUnknownDevice, node)
	}
	devType := registry.DeviceType(parts[2])
	if devType != device.Type {
		return fmt.Errorf("%w: node %d is %q, not %q", ErrTypeMismatch, node, device.Type, devType)
	}

	target, err := normalizeStatus(parts[1], devType)
	if err != nil {
		return err
	}

	if statusEqual(device.Status, target, devType) {
		r.logger.Debug("status unchanged, not forwarded", "node", node, "status", target)
		return nil
	}

	line, err := protocol.EncodeSetStatus(node, target, devType)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadCommand, err)
	}
	return r.commander.Send(ctx, protocol.KindSetStatus, line)
}

// handleRename updates a device's name and group labels:
// SETNODE~<node>~<name>~<group>~.
func (r *Router) handleRename(ctx context.Context, args string) error {
	parts := strings.Split(args, "~")
	if len(parts) < 3 {
		return fmt.Errorf("%w: SETNODE wants node, name, group", ErrBadCommand)
	}

	node, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("%w: node %q", ErrBadCommand, parts[0])
	}
	name, group := parts[1], parts[2]

	device, ok := r.registry.Device(node)
	if !ok {
		return fmt.Errorf("%w: node %d", ErrUnknownDevice, node)
	}
	if device.Name == name && device.Group == group {
		r.logger.Debug("labels unchanged, not forwarded", "node", node)
		return nil
	}

	line, err := protocol.EncodeRename(node, name, group)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadCommand, err)
	}
	return r.commander.Send(ctx, protocol.KindRename, line)
}

// handleSetpoint nudges a room's target temperature one step:
// ROOM~+~<name> or ROOM~-~<name>. The controller replies with the
// room's updated record, which the session applies on its way back.
func (r *Router) handleSetpoint(ctx context.Context, args string) error {
	dir, name, ok := strings.Cut(args, "~")
	if !ok || name == "" {
		return fmt.Errorf("%w: ROOM wants direction, name", ErrBadCommand)
	}

	var up bool
	switch dir {
	case "+":
		up = true
	case "-":
		up = false
	default:
		return fmt.Errorf("%w: direction %q", ErrBadCommand, dir)
	}

	if _, exists := r.registry.Room(name); !exists {
		return fmt.Errorf("%w: %q", registry.ErrUnknownRoom, name)
	}

	line, err := protocol.EncodeSetpointAdjust(name, up)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadCommand, err)
	}
	return r.commander.Send(ctx, protocol.KindRoom, line)
}

// handleToggle flips the configured well-known device: On becomes Off
// and anything else becomes On.
func (r *Router) handleToggle(ctx context.Context) error {
	device, ok := r.registry.Device(r.switchNode)
	if !ok {
		return fmt.Errorf("%w: switch node %d", ErrUnknownDevice, r.switchNode)
	}

	target := registry.StatusOn
	if on, _ := device.Status.Level(); on > 0 {
		target = registry.StatusOff
	}

	line, err := protocol.EncodeSetStatus(device.Node, target, device.Type)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadCommand, err)
	}
	return r.commander.Send(ctx, protocol.KindSetStatus, line)
}

// normalizeStatus maps a command's value argument onto the status
// domain of the device type. Binary devices accept 255/0 and the
// On/Off words; multilevel devices accept a 0-99 level or the aliases.
func normalizeStatus(value string, devType registry.DeviceType) (registry.Status, error) {
	if devType.Multilevel() {
		status := registry.Status(value)
		if _, ok := status.Level(); !ok {
			return "", fmt.Errorf("%w: level %q", ErrBadCommand, value)
		}
		return status, nil
	}

	switch value {
	case "255", string(registry.StatusOn):
		return registry.StatusOn, nil
	case "0", string(registry.StatusOff):
		return registry.StatusOff, nil
	default:
		return "", fmt.Errorf("%w: status %q on %s", ErrBadCommand, value, devType)
	}
}

// statusEqual compares a recorded status with a target. Multilevel
// statuses compare by level so the On/Off aliases match their numeric
// forms.
func statusEqual(current, target registry.Status, devType registry.DeviceType) bool {
	if !devType.Multilevel() {
		return current == target
	}
	a, aok := current.Level()
	b, bok := target.Level()
	return aok && bok && a == b
}
