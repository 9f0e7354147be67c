// Package relay forwards attendance events to the downstream Event Sink.
//
// Delivery is strictly best-effort: a failed delivery is logged and
// dropped, never retried and never surfaced to the polling loop. The
// listener's read-clear cycle must keep moving regardless of sink health,
// so a slow or dead sink costs at most one delivery timeout per event.
//
// Two sink transports are supported: an HTTP POST endpoint and an MQTT
// topic. Both receive the same JSON payload shape.
package relay
