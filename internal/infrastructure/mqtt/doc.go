// Package mqtt connects devicehub to an MQTT broker via paho.
//
// The client subscribes to the data-in topic for ingestion and, when
// enabled, republishes every stored data point. Topics share one prefix
// (default "devicehub"):
//
//	devicehub/status                          retained online/offline document, also the LWT
//	devicehub/data/in                         ingest (mqtt.topics.data_in)
//	devicehub/devices/{device_id}/data/{name} republished points
//
// Use TLS (mqtt.broker.tls) anywhere outside a trusted network.
package mqtt
