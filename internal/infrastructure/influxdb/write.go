package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceStatus records a terminal lifecycle transition.
//
// Each transition (online, listening, offline, error) becomes a point
// in the device_status measurement, tagged by device and status so
// dashboards can chart uptime and flapping per terminal.
//
// Parameters:
//   - deviceID: Registry identifier of the terminal
//   - status: The status the device transitioned to
func (c *Client) WriteDeviceStatus(deviceID string, status string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_status",
		map[string]string{
			"device_id": deviceID,
			"status":    status,
		},
		map[string]interface{}{
			"value": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePollBatch records the number of attendance records read in one
// poll cycle. Zero-record polls are not written; the listener only
// reports cycles that produced data.
func (c *Client) WritePollBatch(deviceID string, records int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"poll_batch",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"records": records,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRelayOutcome records whether a single attendance event reached
// the sink. Dropped events are the interesting signal here: the relay
// is best-effort and these points are the only durable trace of loss.
func (c *Client) WriteRelayOutcome(deviceID string, delivered bool) {
	if !c.IsConnected() {
		return
	}

	outcome := "delivered"
	if !delivered {
		outcome = "dropped"
	}

	point := write.NewPoint(
		"relay_outcome",
		map[string]string{
			"device_id": deviceID,
			"outcome":   outcome,
		},
		map[string]interface{}{
			"value": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
