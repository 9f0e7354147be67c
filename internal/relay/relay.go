package relay

import (
	"context"
	"time"

	"github.com/biofleet/biofleet-core/internal/terminal"
)

// Logger defines the logging interface for the relay.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Observer is notified of each delivery outcome. Used for telemetry and
// the live event stream; notifications must not block.
type Observer interface {
	RelayOutcome(deviceID string, ev Event, err error)
}

// Observers fans out delivery outcomes to multiple observers in order.
type Observers []Observer

func (o Observers) RelayOutcome(deviceID string, ev Event, err error) {
	for _, obs := range o {
		obs.RelayOutcome(deviceID, ev, err)
	}
}

// Relay forwards attendance records to the Event Sink, best-effort.
type Relay struct {
	sink     Sink
	timeout  time.Duration
	logger   Logger
	observer Observer
}

// New creates a relay delivering through sink, with the given per-event
// delivery timeout.
func New(sink Sink, timeout time.Duration) *Relay {
	return &Relay{
		sink:    sink,
		timeout: timeout,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the relay.
func (r *Relay) SetLogger(logger Logger) {
	r.logger = logger
}

// SetObserver sets an observer notified of every delivery outcome.
func (r *Relay) SetObserver(obs Observer) {
	r.observer = obs
}

// Forward delivers one attendance record downstream. It never returns an
// error: a failed delivery is logged, reported to the observer, and
// dropped. The polling loop must not stall on sink health.
func (r *Relay) Forward(ctx context.Context, deviceID, deviceIP string, rec terminal.AttendanceRecord) {
	ev := NewEvent(rec.UserID, rec.Timestamp, deviceIP)

	deliverCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.sink.Deliver(deliverCtx, deviceID, ev)
	if err != nil {
		r.logger.Warn("attendance relay failed, event dropped",
			"device_id", deviceID,
			"device_ip", deviceIP,
			"user_id", ev.UserID,
			"time", ev.Time,
			"error", err,
		)
	} else {
		r.logger.Debug("attendance relayed",
			"device_id", deviceID,
			"user_id", ev.UserID,
			"time", ev.Time,
		)
	}

	if r.observer != nil {
		r.observer.RelayOutcome(deviceID, ev, err)
	}
}
