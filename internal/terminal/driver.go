package terminal

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/biofleet/biofleet-core/internal/device"
)

// UserRecord is one user entry stored on a terminal.
type UserRecord struct {
	UID       int    `json:"uid"`
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Privilege int    `json:"privilege"`
	Password  string `json:"password,omitempty"`
	Card      uint64 `json:"card,omitempty"`
}

// AttendanceRecord is one punch event read from a terminal's on-board log.
// Records are transient: read once, relayed, then cleared from the device.
type AttendanceRecord struct {
	UserID    string
	Timestamp time.Time
}

// Driver opens protocol sessions to terminals. Implementations wrap a
// vendor protocol library; the rest of the system never sees wire details.
type Driver interface {
	// Name returns the driver's registry name.
	Name() string

	// Open performs the protocol handshake against addr (host:port) and
	// returns an established session. The timeout bounds the handshake;
	// ctx cancellation aborts it early.
	Open(ctx context.Context, addr string, timeout time.Duration) (Session, error)
}

// Session is an established protocol connection to one terminal.
//
// A session is owned by a single goroutine at a time. The listener task
// holds one long-lived session per device; administrative operations open
// their own short-lived sessions through the per-device session gate in the
// listener manager rather than sharing this one.
type Session interface {
	// Info reads hardware metadata from the terminal.
	Info(ctx context.Context) (device.Info, error)

	// Users returns all user records stored on the terminal.
	Users(ctx context.Context) ([]UserRecord, error)

	// DeleteUser removes the user with the given uid.
	// Returns ErrUserNotFound if no such user exists.
	DeleteUser(ctx context.Context, uid int) error

	// Attendance returns the terminal's on-board attendance log, oldest
	// first. Returns an empty slice when the log is empty.
	Attendance(ctx context.Context) ([]AttendanceRecord, error)

	// ClearAttendance erases the terminal's on-board attendance log.
	ClearAttendance(ctx context.Context) error

	// Disable pauses the terminal's user-facing functions. Some firmware
	// requires this before a user write.
	Disable(ctx context.Context) error

	// Enable resumes the terminal's user-facing functions.
	Enable(ctx context.Context) error

	// Close tears down the session. Safe to call more than once.
	Close() error
}

// UserWriter is the full-shape user write supported by current firmware.
// Sessions that implement it accept every UserRecord field.
type UserWriter interface {
	SetUser(ctx context.Context, rec UserRecord) error
}

// BasicUserWriter is the reduced write shape of older firmware revisions,
// which reject card and password fields.
type BasicUserWriter interface {
	SetUserBasic(ctx context.Context, uid int, userID, name string, privilege int) error
}

// driverRegistry maps driver names to implementations. Drivers register at
// start-up; lookups happen on every connection attempt.
var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// RegisterDriver makes a driver available under its Name. Registering two
// drivers with the same name panics, as does a nil driver; both are
// programming errors caught at start-up.
func RegisterDriver(d Driver) {
	if d == nil {
		panic("terminal: RegisterDriver with nil driver")
	}
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[d.Name()]; dup {
		panic("terminal: RegisterDriver called twice for driver " + d.Name())
	}
	drivers[d.Name()] = d
}

// OpenDriver returns the registered driver with the given name.
func OpenDriver(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
	return d, nil
}

// Drivers returns the names of all registered drivers, sorted.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
