package mqtt

import (
	"fmt"
	"time"

	"github.com/biofleet/biofleet-core/internal/device"
)

// RetainedPublisher is the slice of the client the status publisher needs.
type RetainedPublisher interface {
	PublishRetained(topic string, payload []byte) error
}

// StatusPublisher mirrors terminal lifecycle transitions onto the broker's
// device-status topics. Messages are retained, so a consumer that
// subscribes after a transition still sees each device's current state.
type StatusPublisher struct {
	pub    RetainedPublisher
	logger Logger
}

// NewStatusPublisher creates a status publisher writing through pub.
func NewStatusPublisher(pub RetainedPublisher) *StatusPublisher {
	return &StatusPublisher{pub: pub}
}

// SetLogger sets a logger for publish failure reporting.
func (p *StatusPublisher) SetLogger(logger Logger) {
	p.logger = logger
}

// DeviceStatusChanged publishes the device's new status to its retained
// status topic. Publish failures are logged, never surfaced: status
// mirroring must not interfere with the listener's own state machine.
func (p *StatusPublisher) DeviceStatusChanged(deviceID string, status device.Status) {
	topic := Topics{}.DeviceStatus(deviceID)
	payload := fmt.Sprintf(
		`{"device_id":"%s","status":"%s","timestamp":"%s"}`,
		deviceID,
		status,
		time.Now().UTC().Format(time.RFC3339),
	)

	if err := p.pub.PublishRetained(topic, []byte(payload)); err != nil && p.logger != nil {
		p.logger.Warn("device status publish failed", "device_id", deviceID, "error", err)
	}
}

// PollCompleted is a no-op: attendance volume reaches consumers through
// the relay sink, not the status hierarchy.
func (p *StatusPublisher) PollCompleted(deviceID string, records int) {}
