package influxdb

import (
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceData mirrors one stored data point.
//
// The point is tagged with device_id, name and unit. The raw text goes in
// the "value" field; "value_float" is added only when the text parses as a
// float, so numeric readings can be graphed without losing the original.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteDeviceData(d.DeviceID, "temperature", "21.5", "C", d.CreatedAt)
func (c *Client) WriteDeviceData(deviceID, name, value, unit string, at time.Time) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(deviceDataPoint(c.cfg.Measurement, deviceID, name, value, unit, at))
}

// deviceDataPoint builds the point written by WriteDeviceData.
func deviceDataPoint(measurement, deviceID, name, value, unit string, at time.Time) *write.Point {
	tags := map[string]string{
		"device_id": deviceID,
		"name":      name,
	}
	if unit != "" {
		tags["unit"] = unit
	}

	fields := map[string]any{
		"value": value,
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		fields["value_float"] = f
	}

	return write.NewPoint(measurement, tags, fields, at)
}
