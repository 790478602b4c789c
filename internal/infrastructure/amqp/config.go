package amqp

import (
	"crypto/tls"
	"fmt"
	"net/url"

	wamqp "github.com/ThreeDotsLabs/watermill-amqp/v2/pkg/amqp"

	"github.com/nerrad567/devicehub/internal/infrastructure/config"
)

// URI builds the broker URI from cfg. Credentials and vhost are escaped.
func URI(cfg config.AMQPConfig) string {
	scheme := "amqp"
	if cfg.TLS {
		scheme = "amqps"
	}

	userInfo := ""
	if cfg.Username != "" {
		userInfo = fmt.Sprintf("%s:%s@", url.PathEscape(cfg.Username), url.PathEscape(cfg.Password))
	}

	vhost := cfg.VHost
	if vhost == "" || vhost == "/" {
		vhost = ""
	} else {
		vhost = url.PathEscape(vhost)
	}

	return fmt.Sprintf("%s://%s%s:%d/%s", scheme, userInfo, cfg.Host, cfg.Port, vhost)
}

// Topic returns the watermill topic for device data, which is the routing key.
func Topic(cfg config.AMQPConfig) string {
	return cfg.RoutingKey
}

// QueueName returns the queue a subscriber with cfg binds.
func QueueName(cfg config.AMQPConfig) string {
	return wamqp.GenerateQueueNameTopicNameWithSuffix(cfg.QueueSuffix)(Topic(cfg))
}

// newConfig builds the watermill-amqp configuration: one named topic
// exchange, a suffixed queue per deployment, and the topic as routing key
// for both binding and publishing.
func newConfig(cfg config.AMQPConfig) (wamqp.Config, error) {
	if cfg.Exchange == "" || cfg.RoutingKey == "" {
		return wamqp.Config{}, fmt.Errorf("%w: exchange and routing_key are required", ErrInvalidConfig)
	}

	queueName := wamqp.GenerateQueueNameTopicNameWithSuffix(cfg.QueueSuffix)

	var c wamqp.Config
	if cfg.Durable {
		c = wamqp.NewDurablePubSubConfig(URI(cfg), queueName)
	} else {
		c = wamqp.NewNonDurablePubSubConfig(URI(cfg), queueName)
	}

	if cfg.TLS {
		c.Connection.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	exchange := cfg.Exchange
	c.Exchange = wamqp.ExchangeConfig{
		GenerateName: func(string) string {
			return exchange
		},
		Type:    "topic",
		Durable: cfg.Durable,
	}

	c.QueueBind = wamqp.QueueBindConfig{
		GenerateRoutingKey: func(topic string) string {
			return topic
		},
	}

	c.Publish.GenerateRoutingKey = func(topic string) string {
		return topic
	}

	return c, nil
}
