package device

import (
	"time"

	"github.com/nerrad567/devicehub/internal/infrastructure/metrics"
)

// Logger defines the logging interface used by the services.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Operation names recorded in devicehub_operations_total.
const (
	opRegister = "device.register"
	opGetAll   = "device.get_all"
	opFind     = "device.find"
	opGetByID  = "device.get_by_id"
	opUpdate   = "device.update"
	opAddData  = "data.add"
	opFindData = "data.find"
	opGetData  = "data.get"
)

// observe records the outcome and latency of one service call.
func observe(operation string, start time.Time, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveOperation(operation, result, time.Since(start))
}
