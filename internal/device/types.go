package device

import "github.com/google/uuid"

// Status is the lifecycle status of a terminal.
//
// Transitions are driven by the listener supervisor and connection paths:
//
//	unknown ──ad-hoc connect──▶ online ──listener attach──▶ listening
//	   │                           │                            │
//	   └─────────────────────── offline ◀───────────────────────┘
//
// A listener task that fails its start-up connection terminates and
// leaves the device in error; the next successful connect clears it.
type Status string

// Valid terminal statuses.
const (
	StatusUnknown   Status = "unknown"
	StatusOnline    Status = "online"
	StatusOffline   Status = "offline"
	StatusListening Status = "listening"
	StatusError     Status = "error"
)

// Info holds hardware metadata read from a terminal.
// Populated lazily on the first successful info query; empty until then.
type Info struct {
	Platform        string `json:"platform,omitempty"`
	FirmwareVersion string `json:"firmwareVersion,omitempty"`
	SerialNumber    string `json:"serialNumber,omitempty"`
}

// Device represents one configured biometric terminal.
//
// The JSON field names match the administrative API payloads ("ip" rather
// than "address" for compatibility with existing collector tooling).
type Device struct {
	ID      string `json:"id"`
	Address string `json:"ip"`
	Port    int    `json:"port"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Status  Status `json:"status"`
	Info    Info   `json:"info"`
}

// Addr returns the host:port form of the device's network location.
func (d *Device) Addr() string {
	return joinHostPort(d.Address, d.Port)
}

// Update describes a partial administrative update.
// Nil fields are left unchanged. Only configuration fields are
// updatable; status and info are owned by the listener paths.
type Update struct {
	Name    *string
	Enabled *bool
	Address *string
	Port    *int
}

// GenerateID creates a new unique identifier for a device.
func GenerateID() string {
	return uuid.New().String()
}
