// Package api implements the HTTP REST API and WebSocket feed for devicehub.
//
// This package provides:
//   - REST endpoints for device registration, lookup and update
//   - REST endpoints for appending and querying device data
//   - A WebSocket hub that pushes every stored data point to subscribers
//   - Optional bearer token authentication with reader and writer roles
//   - Middleware stack (request ID, logging, recovery, CORS, metrics)
//
// # Error mapping
//
// Service errors are classified with device.KindOf. Invalid input maps to
// 400 bad_request and a missing entity to 404 not_found. Everything else is
// a 500, coded unavailable when the store is unreachable and internal_error
// otherwise. Only development mode adds the wrapped error text as detail.
//
// # Live feed
//
// Clients connect to /ws and subscribe to "device_data" for every point, or
// to "device_data.{device_id}" for one device. Wire Hub.PublishDeviceData
// to device.DataService.OnAdded to feed it.
package api
