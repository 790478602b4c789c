// Package logging provides structured logging for devicehub.
//
// It wraps log/slog so every entry carries the service name and build
// version, and so every component logs through one configured handler.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 8080)
//	logger.Component("amqp").Error("consume failed", "error", err)
//
// Never log secrets, tokens or passwords.
package logging
