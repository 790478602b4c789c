// devicehub is an IoT device registry.
//
// Devices register by network address over HTTP. Their data points arrive
// over HTTP, AMQP or MQTT, are stored in SQLite or Postgres, and are fanned
// out to WebSocket subscribers, MQTT and InfluxDB.
//
// Usage:
//
//	devicehub [serve]                        run the service
//	devicehub token -subject s -role writer  issue an API token
//	devicehub publish -device id -name n -value v [-unit u] [-transport amqp|mqtt]
//	devicehub migrate [up|down|status]
//	devicehub version
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/devicehub/migrations"

	"github.com/nerrad567/devicehub/internal/api"
	"github.com/nerrad567/devicehub/internal/device"
	"github.com/nerrad567/devicehub/internal/egress"
	"github.com/nerrad567/devicehub/internal/infrastructure/amqp"
	"github.com/nerrad567/devicehub/internal/infrastructure/config"
	"github.com/nerrad567/devicehub/internal/infrastructure/database"
	"github.com/nerrad567/devicehub/internal/infrastructure/influxdb"
	"github.com/nerrad567/devicehub/internal/infrastructure/logging"
	"github.com/nerrad567/devicehub/internal/infrastructure/metrics"
	"github.com/nerrad567/devicehub/internal/infrastructure/mqtt"
	"github.com/nerrad567/devicehub/internal/ingest"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// startupCheckTimeout bounds the post-start health probe.
const startupCheckTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := dispatch(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// dispatch selects a subcommand. No arguments means serve.
func dispatch(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return run(ctx)
	}

	switch args[0] {
	case "serve":
		return run(ctx)
	case "version":
		fmt.Fprintf(out, "devicehub %s (commit %s, built %s)\n", version, commit, date)
		return nil
	case "token", "publish", "migrate":
		cfg, err := config.Load(getConfigPath())
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		switch args[0] {
		case "token":
			return runToken(args[1:], cfg, out)
		case "publish":
			return runPublish(ctx, args[1:], cfg, out)
		default:
			return runMigrate(ctx, args[1:], cfg, out)
		}
	default:
		return fmt.Errorf("unknown command %q (want serve, token, publish, migrate or version)", args[0])
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting devicehub",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"environment", cfg.Service.Environment,
	)

	db, err := connectDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	metrics.Init(db.DB, log)

	// Services
	serviceLog := log.Component("device")
	devices := device.NewSQLRepository(db)
	registration := device.NewRegistrationService(devices)
	registration.SetLogger(serviceLog)
	query := device.NewQueryService(devices)
	update := device.NewUpdateService(devices)
	update.SetLogger(serviceLog)
	data := device.NewDataService(devices, device.NewSQLDataRepository(db))
	data.SetLogger(serviceLog)

	srv, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Security:     cfg.Security,
		Development:  cfg.Service.IsDevelopment(),
		Logger:       log,
		Registration: registration,
		Query:        query,
		Update:       update,
		Data:         data,
		Store:        db,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	data.OnAdded(srv.Hub().PublishDeviceData)

	// MQTT (optional): ingest and republish
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		if cfg.MQTT.Topics.PublishData {
			sink := egress.NewMQTTSink(mqttClient, mqttClient.Topics(), mqttClient.QoS(), log)
			go sink.Run(ctx)
			data.OnAdded(sink.Handle)
			log.Info("publishing device data to MQTT", "topic", mqttClient.Topics().AllDeviceData())
		}
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional): mirror every stored point
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		data.OnAdded(egress.NewInfluxMirror(influxClient).Handle)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	if mqttClient != nil {
		topic := mqttClient.Topics().DataIn(cfg.MQTT.Topics.DataIn)
		processor := ingest.NewProcessor(data, log, time.Duration(cfg.MQTT.HandlerTimeout)*time.Second)
		consumer := ingest.NewMQTTConsumer(mqttClient, topic, mqttClient.QoS(), processor)
		if startErr := consumer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT consumer: %w", startErr)
		}
		defer func() {
			if stopErr := consumer.Stop(); stopErr != nil {
				log.Warn("error stopping MQTT consumer", "error", stopErr)
			}
		}()
		log.Info("MQTT consumer started", "topic", topic)
	}

	consumerErr := make(chan error, 1)
	if cfg.AMQP.Enabled {
		processor := ingest.NewProcessor(data, log, time.Duration(cfg.AMQP.HandlerTimeout)*time.Second)
		stop, startErr := startAMQPConsumer(ctx, cfg.AMQP, processor, log, consumerErr)
		if startErr != nil {
			return startErr
		}
		defer stop()
	} else {
		log.Info("AMQP disabled")
	}

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	checkCtx, cancel := context.WithTimeout(ctx, startupCheckTimeout)
	defer cancel()
	if err := healthCheck(checkCtx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case err := <-consumerErr:
		return err
	case err := <-srv.Err():
		return err
	}

	// Deferred closes run in reverse: API, consumers, InfluxDB, MQTT, database.
	log.Info("devicehub stopped")
	return nil
}

// connectDatabase opens the configured store with exponential backoff.
func connectDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	initial, maxDelay := cfg.Database.Connect.Durations()
	db, err := database.Connect(ctx, database.Config{
		Driver:       cfg.Database.Driver,
		Path:         cfg.Database.Path,
		WALMode:      cfg.Database.WALMode,
		BusyTimeout:  cfg.Database.BusyTimeout,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	}, database.RetryPolicy{
		InitialInterval: initial,
		MaxInterval:     maxDelay,
		MaxAttempts:     cfg.Database.Connect.MaxAttempts,
	}, func(err error, next time.Duration) {
		log.Warn("database not ready, retrying", "error", err, "retry_in", next)
	})
	if err != nil {
		return nil, err
	}
	log.Info("database connected", "driver", cfg.Database.Driver)
	return db, nil
}

// startAMQPConsumer dials the broker and runs the consumer in the
// background. A router failure is reported on errs. The returned func
// stops the consumer.
func startAMQPConsumer(ctx context.Context, cfg config.AMQPConfig, processor *ingest.Processor, log *logging.Logger, errs chan<- error) (func(), error) {
	sub, err := amqp.NewSubscriber(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connecting to AMQP: %w", err)
	}

	consumer, err := ingest.NewAMQPConsumer(sub, amqp.Topic(cfg), processor, log)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}

	go func() {
		if runErr := consumer.Run(ctx); runErr != nil {
			errs <- fmt.Errorf("amqp consumer: %w", runErr)
		}
	}()

	select {
	case <-consumer.Running():
		log.Info("AMQP consumer started", "exchange", cfg.Exchange, "queue", amqp.QueueName(cfg))
	case <-ctx.Done():
	}

	return func() {
		log.Info("stopping AMQP consumer")
		if closeErr := consumer.Close(); closeErr != nil {
			log.Error("error closing AMQP consumer", "error", closeErr)
		}
		if closeErr := sub.Close(); closeErr != nil {
			log.Warn("error closing AMQP subscriber", "error", closeErr)
		}
	}, nil
}

// getConfigPath returns the configuration file path.
// Uses DEVICEHUB_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DEVICEHUB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	var errs []error

	if err := db.HealthCheck(ctx); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mqtt: %w", err))
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}

	return errors.Join(errs...)
}
