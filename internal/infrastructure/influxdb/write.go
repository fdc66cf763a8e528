package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/wburgers/zwave-hub/internal/registry"
)

// WriteDeviceStatus records a device's status as a numeric level.
//
// Binary switches record 0 or 99, multilevel switches their dimmer
// level. Statuses with no numeric interpretation are skipped. The
// write is non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteDeviceStatus(device registry.Device) {
	if !c.IsConnected() {
		return
	}

	level, ok := device.Status.Level()
	if !ok {
		return
	}

	point := write.NewPoint(
		"device_status",
		map[string]string{
			"node":  strconv.Itoa(device.Node),
			"name":  device.Name,
			"group": device.Group,
			"type":  string(device.Type),
		},
		map[string]interface{}{
			"level": level,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRoomClimate records a room's current temperature and setpoint.
// Rooms reporting neither are skipped.
func (c *Client) WriteRoomClimate(room registry.Room) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{}
	if room.CurrentTemp != nil {
		fields["temperature"] = *room.CurrentTemp
	}
	if room.CurrentSetpoint != nil {
		fields["setpoint"] = *room.CurrentSetpoint
	}
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"room_climate",
		map[string]string{
			"room": room.Name,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePresence records a home/away transition.
func (c *Client) WritePresence(atHome bool) {
	if !c.IsConnected() {
		return
	}

	value := 0
	if atHome {
		value = 1
	}

	point := write.NewPoint(
		"presence",
		nil,
		map[string]interface{}{
			"at_home": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
