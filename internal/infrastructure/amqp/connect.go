package amqp

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wamqp "github.com/ThreeDotsLabs/watermill-amqp/v2/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v4"

	"github.com/nerrad567/devicehub/internal/infrastructure/config"
	"github.com/nerrad567/devicehub/internal/infrastructure/logging"
)

// NewSubscriber dials the broker and returns a subscriber for device data.
// Dialling is retried with exponential backoff per cfg.Connect until it
// succeeds, attempts run out, or ctx is cancelled.
func NewSubscriber(ctx context.Context, cfg config.AMQPConfig, logger *logging.Logger) (message.Subscriber, error) {
	c, err := newConfig(cfg)
	if err != nil {
		return nil, err
	}

	wlog := NewLoggerAdapter(logger.With("subsystem", "amqp-subscriber"))

	var sub *wamqp.Subscriber
	err = retry(ctx, cfg.Connect, logger, func() error {
		var dialErr error
		sub, dialErr = wamqp.NewSubscriber(c, wlog)
		return dialErr
	})
	if err != nil {
		return nil, err
	}

	logger.Info("amqp subscriber connected",
		"host", cfg.Host,
		"exchange", cfg.Exchange,
		"queue", QueueName(cfg),
	)
	return sub, nil
}

// NewPublisher dials the broker and returns a publisher onto the device
// data exchange, with the same retry policy as NewSubscriber.
func NewPublisher(ctx context.Context, cfg config.AMQPConfig, logger *logging.Logger) (message.Publisher, error) {
	c, err := newConfig(cfg)
	if err != nil {
		return nil, err
	}

	wlog := NewLoggerAdapter(logger.With("subsystem", "amqp-publisher"))

	var pub *wamqp.Publisher
	err = retry(ctx, cfg.Connect, logger, func() error {
		var dialErr error
		pub, dialErr = wamqp.NewPublisher(c, wlog)
		return dialErr
	})
	if err != nil {
		return nil, err
	}
	return pub, nil
}

// PublishJSON publishes payload on the device data topic with a fresh UUID.
func PublishJSON(pub message.Publisher, cfg config.AMQPConfig, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("content-type", "application/json")
	if err := pub.Publish(Topic(cfg), msg); err != nil {
		return fmt.Errorf("publishing to %s: %w", cfg.Exchange, err)
	}
	return nil
}

func retry(ctx context.Context, rc config.RetryConfig, logger *logging.Logger, op func() error) error {
	initial, maxDelay := rc.Durations()

	b := backoff.NewExponentialBackOff()
	if initial > 0 {
		b.InitialInterval = initial
	}
	if maxDelay > 0 {
		b.MaxInterval = maxDelay
	}
	b.MaxElapsedTime = 0

	var bo backoff.BackOff = b
	if rc.MaxAttempts > 0 {
		bo = backoff.WithMaxRetries(bo, uint64(rc.MaxAttempts-1)) //nolint:gosec // Checked positive above
	}
	bo = backoff.WithContext(bo, ctx)

	notify := func(err error, next time.Duration) {
		logger.Warn("amqp connect failed, retrying", "error", err, "retry_in", next)
	}

	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return nil
}
