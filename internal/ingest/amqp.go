package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/nerrad567/devicehub/internal/infrastructure/amqp"
	"github.com/nerrad567/devicehub/internal/infrastructure/logging"
	"github.com/nerrad567/devicehub/internal/infrastructure/metrics"
)

const (
	amqpHandlerName    = "device_data_amqp"
	routerCloseTimeout = 10 * time.Second
)

// AMQPConsumer routes device data messages from a watermill subscriber
// into the Processor. It is transport agnostic; the gochannel pub/sub
// stands in for AMQP in tests.
type AMQPConsumer struct {
	router    *message.Router
	processor *Processor
	logger    *logging.Logger
}

// NewAMQPConsumer creates a consumer for topic on sub.
func NewAMQPConsumer(sub message.Subscriber, topic string, processor *Processor, logger *logging.Logger) (*AMQPConsumer, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.Component("amqp-consumer")

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: routerCloseTimeout,
	}, amqp.NewLoggerAdapter(logger.With("subsystem", "router")))
	if err != nil {
		return nil, fmt.Errorf("creating message router: %w", err)
	}

	c := &AMQPConsumer{
		router:    router,
		processor: processor,
		logger:    logger,
	}
	router.AddNoPublisherHandler(amqpHandlerName, topic, sub, c.handle)

	return c, nil
}

// Run consumes until ctx is cancelled or Close is called.
func (c *AMQPConsumer) Run(ctx context.Context) error {
	if err := c.router.Run(ctx); err != nil {
		return fmt.Errorf("running amqp consumer: %w", err)
	}
	return nil
}

// Running is closed once the consumer has subscribed.
func (c *AMQPConsumer) Running() chan struct{} {
	return c.router.Running()
}

// Close stops the router and waits for in-flight handlers.
func (c *AMQPConsumer) Close() error {
	return c.router.Close()
}

// handle never returns an error: a nacked message would be redelivered,
// and a failed reading is dropped instead.
func (c *AMQPConsumer) handle(msg *message.Message) error {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("amqp handler panic recovered", "message_uuid", msg.UUID, "panic", r)
			metrics.IncIngest(metrics.TransportAMQP, metrics.ResultDropped)
		}
	}()

	_ = c.processor.Process(msg.Context(), metrics.TransportAMQP, msg.Payload) //nolint:errcheck // Logged and counted by Process
	return nil
}
