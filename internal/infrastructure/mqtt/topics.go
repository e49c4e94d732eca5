package mqtt

import "fmt"

// TopicPrefix is the root of every topic the base station publishes.
const TopicPrefix = "graylogic/basestation"

// Topics provides builders for base station MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.DeviceEvent(10) // "graylogic/basestation/event/10"
type Topics struct{}

// DeviceEvent returns the topic for events logged for one device.
//
// Example: graylogic/basestation/event/10
func (Topics) DeviceEvent(deviceID uint32) string {
	return fmt.Sprintf("%s/event/%d", TopicPrefix, deviceID)
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: graylogic/basestation/system/status
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// AllDeviceEvents returns a pattern matching every device event topic.
//
// Pattern: graylogic/basestation/event/+
func (Topics) AllDeviceEvents() string {
	return TopicPrefix + "/event/+"
}
