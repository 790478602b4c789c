package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/devicehub/internal/infrastructure/metrics"
	"github.com/nerrad567/devicehub/internal/infrastructure/mqtt"
)

// Subscriber is the part of mqtt.Client the consumer needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// MQTTConsumer feeds messages from one MQTT topic into the Processor.
type MQTTConsumer struct {
	client    Subscriber
	topic     string
	qos       byte
	processor *Processor

	mu  sync.RWMutex
	ctx context.Context //nolint:containedctx // Base context for paho callbacks, set by Start
}

// NewMQTTConsumer creates a consumer for topic.
func NewMQTTConsumer(client Subscriber, topic string, qos byte, processor *Processor) *MQTTConsumer {
	return &MQTTConsumer{
		client:    client,
		topic:     topic,
		qos:       qos,
		processor: processor,
		ctx:       context.Background(),
	}
}

// Start subscribes. Messages are processed with ctx as their parent until
// Stop is called.
func (c *MQTTConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	if err := c.client.Subscribe(c.topic, c.qos, c.handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", c.topic, err)
	}
	return nil
}

// Stop unsubscribes from the topic.
func (c *MQTTConsumer) Stop() error {
	if err := c.client.Unsubscribe(c.topic); err != nil {
		return fmt.Errorf("unsubscribing from %s: %w", c.topic, err)
	}
	return nil
}

// Topic returns the subscribed topic.
func (c *MQTTConsumer) Topic() string {
	return c.topic
}

// handle always returns nil so the client does not log dropped messages a
// second time.
func (c *MQTTConsumer) handle(_ string, payload []byte) error {
	c.mu.RLock()
	ctx := c.ctx
	c.mu.RUnlock()

	_ = c.processor.Process(ctx, metrics.TransportMQTT, payload) //nolint:errcheck // Logged and counted by Process
	return nil
}
