package mqtt

import (
	"fmt"
	"strings"
)

// topicPrefix roots every topic this bridge publishes.
const topicPrefix = "zwavehub"

// Topics builds the bridge's topic names. Methods rather than
// constants so callers cannot typo a topic string.
type Topics struct{}

// SystemStatus is the retained online/offline status topic. The LWT
// is registered against the same topic.
func (Topics) SystemStatus() string {
	return topicPrefix + "/system/status"
}

// Event carries one registry change notification, named by its kind
// in lower case, e.g. zwavehub/event/alist.
func (Topics) Event(kind string) string {
	return fmt.Sprintf("%s/event/%s", topicPrefix, strings.ToLower(kind))
}

// DeviceStatus carries one device's current status, e.g.
// zwavehub/device/2/status.
func (Topics) DeviceStatus(node int) string {
	return fmt.Sprintf("%s/device/%d/status", topicPrefix, node)
}
