// Package egress fans stored readings out to secondary sinks. Each sink is
// registered as a device.DataService listener and never fails the write
// that triggered it: errors are logged and the reading stays stored.
package egress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nerrad567/devicehub/internal/device"
	"github.com/nerrad567/devicehub/internal/infrastructure/logging"
	"github.com/nerrad567/devicehub/internal/infrastructure/mqtt"
)

// Publisher is the part of mqtt.Client the MQTT sink needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// mqttQueueSize bounds readings waiting to be published.
const mqttQueueSize = 256

// MQTTSink republishes each reading on {prefix}/devices/{device_id}/data/{name}.
// Handle only queues; Run does the publishing so a slow broker never holds
// up the write, which may be running on the MQTT client's own callback.
type MQTTSink struct {
	client Publisher
	topics mqtt.Topics
	qos    byte
	logger *logging.Logger
	queue  chan device.DeviceData
}

// NewMQTTSink creates an MQTT sink. Nothing is published until Run starts.
func NewMQTTSink(client Publisher, topics mqtt.Topics, qos byte, logger *logging.Logger) *MQTTSink {
	if logger == nil {
		logger = logging.Discard()
	}
	return &MQTTSink{
		client: client,
		topics: topics,
		qos:    qos,
		logger: logger.Component("mqtt-egress"),
		queue:  make(chan device.DeviceData, mqttQueueSize),
	}
}

// Handle queues d for publishing. Register it with DataService.OnAdded.
// When the queue is full the reading is dropped from the sink only.
func (s *MQTTSink) Handle(d device.DeviceData) {
	select {
	case s.queue <- d:
	default:
		s.logger.Warn("mqtt egress queue full, dropping reading", "data_id", d.ID, "device_id", d.DeviceID)
	}
}

// Run publishes queued readings until ctx is cancelled.
func (s *MQTTSink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.queue:
			s.publish(d)
		}
	}
}

func (s *MQTTSink) publish(d device.DeviceData) {
	payload, err := json.Marshal(d)
	if err != nil {
		s.logger.Error("marshalling device data", "data_id", d.ID, "error", err)
		return
	}

	topic := s.topics.DeviceData(d.DeviceID, d.Name)
	if err := s.client.Publish(topic, payload, s.qos, false); err != nil {
		s.logger.Warn("publishing device data", "topic", topic, "error", err)
	}
}

// PointWriter is the part of influxdb.Client the mirror needs.
type PointWriter interface {
	WriteDeviceData(deviceID, name, value, unit string, at time.Time)
}

// InfluxMirror writes each reading to InfluxDB. Writes are batched and
// non-blocking; write errors surface through the client's error callback.
type InfluxMirror struct {
	writer PointWriter
}

// NewInfluxMirror creates a mirror onto writer.
func NewInfluxMirror(writer PointWriter) *InfluxMirror {
	return &InfluxMirror{writer: writer}
}

// Handle queues d for writing. Register it with DataService.OnAdded.
func (m *InfluxMirror) Handle(d device.DeviceData) {
	m.writer.WriteDeviceData(d.DeviceID, d.Name, d.Value, d.Unit, d.CreatedAt)
}
