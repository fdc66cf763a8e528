package hub

import "github.com/wburgers/zwave-hub/internal/registry"

// Envelope command keywords. They mirror the controller's push kinds,
// plus AUTH for the admission reply and ERROR for command failures.
const (
	CommandDeviceList = "ALIST"
	CommandRoomList   = "ROOMLIST"
	CommandRoom       = "ROOM"
	CommandSceneList  = "SCENELIST"
	CommandPresence   = "ATHOME"
	CommandUpdate     = "UPDATE"
	CommandAuth       = "AUTH"
	CommandError      = "ERROR"
)

// Envelope is one JSON message to a UI client. Command selects which
// payload field is populated; UPDATE carries none, it is a signal to
// re-request the lists.
type Envelope struct {
	Command string            `json:"command"`
	Nodes   []registry.Device `json:"nodes,omitempty"`
	Rooms   []registry.Room   `json:"rooms,omitempty"`
	Room    *registry.Room    `json:"room,omitempty"`
	Scenes  []registry.Scene  `json:"scenes,omitempty"`
	AtHome  *bool             `json:"athome,omitempty"`
	Auth    *bool             `json:"auth,omitempty"`
	Profile string            `json:"profile,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func deviceListEnvelope(nodes []registry.Device) Envelope {
	return Envelope{Command: CommandDeviceList, Nodes: nodes}
}

func roomListEnvelope(rooms []registry.Room) Envelope {
	return Envelope{Command: CommandRoomList, Rooms: rooms}
}

func roomEnvelope(room registry.Room) Envelope {
	return Envelope{Command: CommandRoom, Room: &room}
}

func sceneListEnvelope(scenes []registry.Scene) Envelope {
	return Envelope{Command: CommandSceneList, Scenes: scenes}
}

func presenceEnvelope(atHome bool) Envelope {
	return Envelope{Command: CommandPresence, AtHome: &atHome}
}

func authEnvelope(ok bool, profile string) Envelope {
	return Envelope{Command: CommandAuth, Auth: &ok, Profile: profile}
}

func errorEnvelope(message string) Envelope {
	return Envelope{Command: CommandError, Error: message}
}
