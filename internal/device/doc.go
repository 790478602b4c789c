// Package device provides the device registry for devicehub.
//
// A Device is a network-connected entity identified by its address. Each
// device owns an append-only series of DeviceData readings ("temperature=22").
// The package holds the domain types, the store contracts with their SQL
// implementations, and four services that every ingress adapter (HTTP,
// AMQP, MQTT) goes through.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                           device                                  │
//	│                                                                   │
//	│  RegistrationService   QueryService   UpdateService   DataService │
//	│          │                  │               │              │      │
//	│          └──────────────────┴───────┬───────┘              │      │
//	│                                     ▼                      ▼      │
//	│                               DeviceStore              DataStore  │
//	│                             (SQLRepository)      (SQLDataRepository)
//	└─────────────────────────────────────┬────────────────────────────┘
//	                                      ▼
//	                     database.DB (sqlite or postgres)
//
// Services are stateless and safe for concurrent use. The unique index on
// devices.address is the only guard against duplicate registration; the
// RegistrationService resolves a lost race by re-reading the winner.
//
// # Errors
//
// Every error returned by a service wraps one of the package sentinels.
// Adapters dispatch on KindOf:
//
//	switch device.KindOf(err) {
//	case device.KindInvalidInput:
//	    // 400
//	case device.KindNotFound:
//	    // 404
//	default:
//	    // 500
//	}
//
// # Usage
//
//	devices := device.NewSQLRepository(db)
//	data := device.NewSQLDataRepository(db)
//
//	reg := device.NewRegistrationService(devices)
//	d, err := reg.Register(ctx, "10.0.0.5", device.Metadata{Name: "boiler"})
//
//	svc := device.NewDataService(devices, data)
//	_, err = svc.Add(ctx, d.ID, "temp", "22", "C")
package device
