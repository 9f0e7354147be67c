package influxdb

import (
	"github.com/biofleet/biofleet-core/internal/device"
	"github.com/biofleet/biofleet-core/internal/relay"
)

// Telemetry adapts a Client to the observer hooks exposed by the
// listener manager and the relay. It satisfies both interfaces so a
// single value can be handed to each at wiring time.
//
// All callbacks delegate to non-blocking batched writes, so they are
// safe to invoke from poll loops.
type Telemetry struct {
	client *Client
}

// NewTelemetry wraps a connected client in observer form.
func NewTelemetry(client *Client) *Telemetry {
	return &Telemetry{client: client}
}

// DeviceStatusChanged records a lifecycle transition for a terminal.
func (t *Telemetry) DeviceStatusChanged(deviceID string, status device.Status) {
	t.client.WriteDeviceStatus(deviceID, string(status))
}

// PollCompleted records the size of a poll batch that produced records.
func (t *Telemetry) PollCompleted(deviceID string, records int) {
	if records <= 0 {
		return
	}
	t.client.WritePollBatch(deviceID, records)
}

// RelayOutcome records whether an attendance event reached the sink.
func (t *Telemetry) RelayOutcome(deviceID string, _ relay.Event, err error) {
	t.client.WriteRelayOutcome(deviceID, err == nil)
}
