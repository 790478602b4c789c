// Package amqp connects devicehub to a RabbitMQ-compatible broker through
// watermill-amqp.
//
// Device data arrives on a topic exchange (default "device_data") under a
// routing key (default "data.produced"). Each devicehub deployment binds a
// durable queue named "<routing key>_<queue suffix>", so instances sharing a
// suffix compete for messages while differently suffixed deployments each
// receive a copy.
//
// The watermill topic passed to Subscribe and Publish is the routing key.
// Use Topic to obtain it from configuration.
package amqp
