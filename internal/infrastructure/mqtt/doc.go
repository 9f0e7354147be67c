// Package mqtt wraps paho.mqtt.golang for publishing fleet events to an
// MQTT broker.
//
// The client is publish-only: Biofleet produces attendance events and
// status updates for downstream consumers but never takes commands over
// MQTT. Connection management includes automatic reconnection with
// exponential backoff and a Last Will and Testament so consumers can
// distinguish a crash from a graceful shutdown.
//
// Topic hierarchy (see Topics for builders):
//
//	biofleet/system/status          — online/offline status (retained)
//	biofleet/attendance/{deviceID}  — relayed attendance events
//	biofleet/device/{deviceID}/status — device lifecycle transitions (retained)
//
// All methods are safe for concurrent use.
package mqtt
