package relay

import (
	"context"
	"time"
)

// timestampLayout is the wire format for event timestamps, chosen for
// compatibility with existing attendance collectors.
const timestampLayout = "2006-01-02 15:04:05"

// Event is one attendance punch forwarded downstream.
type Event struct {
	// UserID identifies the person who punched.
	UserID string `json:"userId"`

	// Time is the punch timestamp, formatted "YYYY-MM-DD HH:MM:SS".
	Time string `json:"time"`

	// DeviceIP is the network address of the originating terminal.
	DeviceIP string `json:"deviceIp"`
}

// NewEvent builds an Event from raw attendance fields.
func NewEvent(userID string, ts time.Time, deviceIP string) Event {
	return Event{
		UserID:   userID,
		Time:     ts.Format(timestampLayout),
		DeviceIP: deviceIP,
	}
}

// Sink delivers a single event to the downstream collector.
// Implementations must bound their own delivery time.
type Sink interface {
	// Deliver sends one event originating from the given device.
	// Returns an error on delivery failure; the caller decides whether
	// failures matter.
	Deliver(ctx context.Context, deviceID string, ev Event) error
}
