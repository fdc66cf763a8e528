package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wburgers/zwave-hub/internal/registry"
)

// maxPayloadSize caps outbound payloads at 1MB, aligning with typical
// broker limits.
const maxPayloadSize = 1 << 20

// Publish sends a payload to the given topic with the configured QoS.
//
// Retained should be true only for state topics where new subscribers
// must receive the last value immediately; event topics are not
// retained.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, byte(c.cfg.QoS), retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishEvent mirrors one registry change notification onto the event
// topic for its kind. The payload may be nil for notifications that
// carry no body.
func (c *Client) PublishEvent(kind string, payload any) error {
	body := eventPayload{
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: marshal event: %w", ErrPublishFailed, err)
	}

	return c.Publish(Topics{}.Event(kind), data, false)
}

// PublishDeviceStatus publishes a device's current status as a
// retained message so late subscribers see the last known state.
func (c *Client) PublishDeviceStatus(device registry.Device) error {
	data, err := json.Marshal(device)
	if err != nil {
		return fmt.Errorf("%w: marshal device: %w", ErrPublishFailed, err)
	}

	return c.Publish(Topics{}.DeviceStatus(device.Node), data, true)
}

type eventPayload struct {
	Kind      string `json:"kind"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp string `json:"timestamp"`
}
