// Package influxdb mirrors device data into InfluxDB for time-series queries.
//
// The SQL store stays the system of record; InfluxDB receives a copy of
// every stored point when influxdb.enabled is set.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDeviceData(deviceID, "temperature", "21.5", "C", time.Now())
//
// # Error Handling
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Batch failures are delivered to the SetOnError callback.
// Connection and health check errors are returned directly.
package influxdb
