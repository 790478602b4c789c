// Package ingest consumes device data messages from AMQP and MQTT and
// stores them through the device DataService.
//
// Both transports share one Processor and one policy: a message that cannot
// be decoded, fails validation, names an unknown device or cannot be stored
// is logged and dropped. Nothing is redelivered, so delivery is at most once.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/devicehub/internal/device"
	"github.com/nerrad567/devicehub/internal/infrastructure/logging"
	"github.com/nerrad567/devicehub/internal/infrastructure/metrics"
)

// defaultTimeout bounds one message when no timeout is configured.
const defaultTimeout = 10 * time.Second

// DataMessage is the payload both transports carry.
type DataMessage struct {
	DeviceID string       `json:"device_id"`
	Name     string       `json:"name"`
	Value    device.Value `json:"value"`
	Unit     string       `json:"unit"`
}

// Decode parses a JSON data message.
func Decode(payload []byte) (DataMessage, error) {
	var msg DataMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return DataMessage{}, fmt.Errorf("%w: decoding message: %w", device.ErrInvalidInput, err)
	}
	return msg, nil
}

// DataAdder is the part of device.DataService the processor needs.
type DataAdder interface {
	Add(ctx context.Context, deviceID, name, value, unit string) (*device.DeviceData, error)
}

// Processor turns one raw message into one stored reading.
type Processor struct {
	data    DataAdder
	logger  *logging.Logger
	timeout time.Duration
}

// NewProcessor creates a processor. A timeout of zero uses the default.
func NewProcessor(data DataAdder, logger *logging.Logger, timeout time.Duration) *Processor {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Processor{
		data:    data,
		logger:  logger.Component("ingest"),
		timeout: timeout,
	}
}

// Process decodes and stores payload. The returned error is informational:
// it has already been logged and counted, and callers must still ack.
func (p *Processor) Process(ctx context.Context, transport string, payload []byte) error {
	msg, err := Decode(payload)
	if err != nil {
		p.logger.Warn("dropping undecodable message", "transport", transport, "error", err, "bytes", len(payload))
		metrics.IncIngest(transport, metrics.ResultDropped)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	d, err := p.data.Add(ctx, msg.DeviceID, msg.Name, msg.Value.String(), msg.Unit)
	if err != nil {
		kind := device.KindOf(err)
		args := []any{
			"transport", transport,
			"device_id", msg.DeviceID,
			"name", msg.Name,
			"kind", kind.String(),
			"error", err,
		}
		switch kind {
		case device.KindInvalidInput, device.KindNotFound:
			p.logger.Warn("dropping device data message", args...)
			metrics.IncIngest(transport, metrics.ResultDropped)
		default:
			p.logger.Error("failed to store device data message", args...)
			metrics.IncIngest(transport, metrics.ResultError)
		}
		return err
	}

	p.logger.Debug("device data ingested", "transport", transport, "device_id", d.DeviceID, "data_id", d.ID)
	metrics.IncIngest(transport, metrics.ResultSuccess)
	return nil
}
