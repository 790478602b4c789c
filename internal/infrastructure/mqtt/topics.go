package mqtt

import (
	"fmt"
	"strings"
)

// DefaultPrefix roots devicehub topics when none is configured.
const DefaultPrefix = "devicehub"

// Topics builds devicehub MQTT topics under a common prefix.
//
//	topics := mqtt.Topics{Prefix: "devicehub"}
//	topics.DeviceData("0190c5e2-...", "temperature")
//	// Returns: "devicehub/devices/0190c5e2-.../data/temperature"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.Trim(t.Prefix, "/")
	if p == "" {
		return DefaultPrefix
	}
	return p
}

// Status returns the retained service status topic, also used for the LWT.
//
// Example: devicehub/status
func (t Topics) Status() string {
	return t.prefix() + "/status"
}

// DataIn returns the ingest topic for device data messages. rel is the
// configured topic relative to the prefix.
//
// Example: devicehub/data/in
func (t Topics) DataIn(rel string) string {
	return fmt.Sprintf("%s/%s", t.prefix(), strings.Trim(rel, "/"))
}

// DeviceData returns the topic a stored data point is republished on.
// MQTT wildcard characters in name are replaced so the topic stays literal.
//
// Example: devicehub/devices/{device_id}/data/temperature
func (t Topics) DeviceData(deviceID, name string) string {
	return fmt.Sprintf("%s/devices/%s/data/%s", t.prefix(), deviceID, topicSafe(name))
}

// AllDeviceData returns a pattern matching every republished data point.
//
// Pattern: devicehub/devices/+/data/+
func (t Topics) AllDeviceData() string {
	return t.prefix() + "/devices/+/data/+"
}

// topicSafe replaces characters that are not allowed in a published topic
// level.
func topicSafe(level string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(level)
}
