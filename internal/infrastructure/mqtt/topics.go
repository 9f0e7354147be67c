package mqtt

import "fmt"

// Topic prefixes for the Biofleet MQTT hierarchy.
const (
	// TopicPrefix is the base for all Biofleet topics.
	TopicPrefix = "biofleet"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "biofleet/system"
)

// Topics provides builders for Biofleet MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// Attendance returns the topic for attendance events from one device.
//
// Example: biofleet/attendance/3f2a1c
func (Topics) Attendance(deviceID string) string {
	return fmt.Sprintf("%s/attendance/%s", TopicPrefix, deviceID)
}

// DeviceStatus returns the topic for a device's lifecycle status.
// Published retained so new subscribers see the current state.
//
// Example: biofleet/device/3f2a1c/status
func (Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/status", TopicPrefix, deviceID)
}

// SystemStatus returns the system status topic.
//
// Example: biofleet/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
