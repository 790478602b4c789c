package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// countTimeout bounds each scrape-time COUNT query.
const countTimeout = 2 * time.Second

func registerDBMetrics(db *sql.DB, logger ErrorLogger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "db_open_connections",
			Help: "Open database connections",
		},
		func() float64 { return float64(db.Stats().OpenConnections) },
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "db_in_use_connections",
			Help: "Database connections currently in use",
		},
		func() float64 { return float64(db.Stats().InUse) },
	))

	prometheus.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: metricPrefix + "db_wait_count_total",
			Help: "Connections waited for",
		},
		func() float64 { return float64(db.Stats().WaitCount) },
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "devices_registered",
			Help: "Registered devices",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM devices")
		},
	))
}

func queryCount(db *sql.DB, logger ErrorLogger, query string) float64 {
	if db == nil {
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), countTimeout)
	defer cancel()

	var count int64
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		if logger != nil {
			logger.Error("metrics query failed", "query", query, "error", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
