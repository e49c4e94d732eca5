package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementBatteryLevel = "battery_level"
	MeasurementDeviceEvents = "device_events"
)

// WriteBatteryLevel records the battery percentage a device reported when
// it registered. Non-blocking.
func (c *Client) WriteBatteryLevel(deviceID uint32, info string, level uint8, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(batteryPoint(deviceID, info, level, ts))
}

// WriteDeviceEvent records one logged device event. Non-blocking.
//
// Parameters:
//   - deviceID: Assigned device id
//   - info: Device display info
//   - priority: Event priority 0-3
//   - description: Event text
//   - ts: Event time
func (c *Client) WriteDeviceEvent(deviceID uint32, info string, priority uint8, description string, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(eventPoint(deviceID, info, priority, description, ts))
}

func batteryPoint(deviceID uint32, info string, level uint8, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementBatteryLevel,
		map[string]string{
			"device_id":   strconv.FormatUint(uint64(deviceID), 10),
			"device_info": info,
		},
		map[string]any{
			"percent": int64(level),
		},
		ts,
	)
}

func eventPoint(deviceID uint32, info string, priority uint8, description string, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementDeviceEvents,
		map[string]string{
			"device_id": strconv.FormatUint(uint64(deviceID), 10),
			"priority":  strconv.Itoa(int(priority)),
		},
		map[string]any{
			"device_info": info,
			"description": description,
		},
		ts,
	)
}
