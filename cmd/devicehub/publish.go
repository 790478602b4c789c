package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/nerrad567/devicehub/internal/device"
	"github.com/nerrad567/devicehub/internal/infrastructure/amqp"
	"github.com/nerrad567/devicehub/internal/infrastructure/config"
	"github.com/nerrad567/devicehub/internal/infrastructure/logging"
	"github.com/nerrad567/devicehub/internal/infrastructure/mqtt"
	"github.com/nerrad567/devicehub/internal/ingest"
)

// Transports accepted by the publish command.
const (
	transportAMQP = "amqp"
	transportMQTT = "mqtt"
)

// publishRequest holds parsed publish flags.
type publishRequest struct {
	transport string
	message   ingest.DataMessage
}

// parsePublish validates the publish flags.
func parsePublish(args []string, out io.Writer) (publishRequest, error) {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	fs.SetOutput(out)
	deviceID := fs.String("device", "", "device id (required)")
	name := fs.String("name", "", "data point name (required)")
	value := fs.String("value", "", "data point value (required)")
	unit := fs.String("unit", "", "unit of the value")
	transport := fs.String("transport", transportAMQP, "amqp or mqtt")
	if err := fs.Parse(args); err != nil {
		return publishRequest{}, err
	}

	switch {
	case *deviceID == "" || *name == "" || *value == "":
		return publishRequest{}, errors.New("-device, -name and -value are required")
	case *transport != transportAMQP && *transport != transportMQTT:
		return publishRequest{}, fmt.Errorf("unknown transport %q", *transport)
	}

	return publishRequest{
		transport: *transport,
		message: ingest.DataMessage{
			DeviceID: *deviceID,
			Name:     *name,
			Value:    device.Value(*value),
			Unit:     *unit,
		},
	}, nil
}

// runPublish sends one device data message to the configured broker, the
// same way a producer would. Useful for smoke testing a deployment.
func runPublish(ctx context.Context, args []string, cfg *config.Config, out io.Writer) error {
	req, err := parsePublish(args, out)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(req.message)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	log := logging.New(cfg.Logging, version)

	switch req.transport {
	case transportMQTT:
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer client.Close()

		topic := client.Topics().DataIn(cfg.MQTT.Topics.DataIn)
		if err := client.Publish(topic, payload, client.QoS(), false); err != nil {
			return err
		}
		fmt.Fprintf(out, "published to mqtt topic %s\n", topic)

	default:
		pub, err := amqp.NewPublisher(ctx, cfg.AMQP, log)
		if err != nil {
			return fmt.Errorf("connecting to AMQP: %w", err)
		}
		defer pub.Close()

		if err := amqp.PublishJSON(pub, cfg.AMQP, payload); err != nil {
			return err
		}
		fmt.Fprintf(out, "published to amqp exchange %s (%s)\n", cfg.AMQP.Exchange, amqp.Topic(cfg.AMQP))
	}
	return nil
}
