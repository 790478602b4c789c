package amqp

import (
	"sort"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/nerrad567/devicehub/internal/infrastructure/logging"
)

// loggerAdapter routes watermill's logging into devicehub's slog logger.
type loggerAdapter struct {
	logger *logging.Logger
}

// NewLoggerAdapter wraps logger for use by watermill publishers,
// subscribers and routers.
func NewLoggerAdapter(logger *logging.Logger) watermill.LoggerAdapter {
	return &loggerAdapter{logger: logger}
}

func (l *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.logger.Error(msg, append(toArgs(fields), "error", err)...)
}

func (l *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	l.logger.Info(msg, toArgs(fields)...)
}

func (l *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, toArgs(fields)...)
}

// Trace maps to debug; slog has no lower level.
func (l *loggerAdapter) Trace(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, toArgs(fields)...)
}

func (l *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &loggerAdapter{logger: l.logger.With(toArgs(fields)...)}
}

// toArgs flattens fields into slog key/value pairs in key order.
func toArgs(fields watermill.LogFields) []any {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(fields)*2)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	return args
}
