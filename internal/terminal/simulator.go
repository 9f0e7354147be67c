package terminal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/biofleet/biofleet-core/internal/device"
)

// Firmware modes for simulated terminals.
const (
	// SimFirmwareCurrent accepts the full user write shape.
	SimFirmwareCurrent = "current"
	// SimFirmwareLegacy rejects card/password fields; only the basic
	// write shape succeeds.
	SimFirmwareLegacy = "legacy"
)

// Simulator is an in-memory Driver used for development and tests. Each
// address it is asked to open becomes an independent simulated terminal
// with its own user table and attendance log.
//
// Failure injection hooks let tests drive the reconnect and retry paths
// without real hardware: FailNextOpens makes handshakes fail, DropSessions
// makes established sessions start returning connection-lost errors.
type Simulator struct {
	mu     sync.Mutex
	states map[string]*simState
}

type simState struct {
	mu         sync.Mutex
	addr       string
	firmware   string
	info       device.Info
	users      map[int]UserRecord
	attendance []AttendanceRecord
	failOpens  int
	dropped    bool
	serial     int
}

// The simulator is always available under its registry name; vendor
// drivers register themselves the same way at import time.
func init() {
	RegisterDriver(NewSimulator())
}

// NewSimulator creates an empty simulator driver.
func NewSimulator() *Simulator {
	return &Simulator{states: make(map[string]*simState)}
}

// Name implements Driver.
func (s *Simulator) Name() string { return "simulator" }

// Open implements Driver. Unknown addresses are created on first open.
func (s *Simulator) Open(ctx context.Context, addr string, timeout time.Duration) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := s.state(addr)

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.failOpens > 0 {
		st.failOpens--
		return nil, fmt.Errorf("handshake rejected by %s", addr)
	}
	st.dropped = false
	st.serial++
	return &simSession{state: st, serial: st.serial}, nil
}

func (s *Simulator) state(addr string) *simState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[addr]
	if !ok {
		st = &simState{
			addr:     addr,
			firmware: SimFirmwareCurrent,
			info: device.Info{
				Platform:        "SIM200",
				FirmwareVersion: "1.0",
				SerialNumber:    "SIM-" + addr,
			},
			users: make(map[int]UserRecord),
		}
		s.states[addr] = st
	}
	return st
}

// FailNextOpens makes the next n Open calls for addr fail with a protocol
// error. The transport probe is unaffected.
func (s *Simulator) FailNextOpens(addr string, n int) {
	st := s.state(addr)
	st.mu.Lock()
	st.failOpens = n
	st.mu.Unlock()
}

// DropSessions makes every currently open session for addr return
// ErrConnectionLost until a new session is opened.
func (s *Simulator) DropSessions(addr string) {
	st := s.state(addr)
	st.mu.Lock()
	st.dropped = true
	st.mu.Unlock()
}

// SetFirmware switches the simulated firmware mode for addr.
func (s *Simulator) SetFirmware(addr, firmware string) {
	st := s.state(addr)
	st.mu.Lock()
	st.firmware = firmware
	st.mu.Unlock()
}

// QueueAttendance appends records to addr's simulated on-board log.
func (s *Simulator) QueueAttendance(addr string, recs ...AttendanceRecord) {
	st := s.state(addr)
	st.mu.Lock()
	st.attendance = append(st.attendance, recs...)
	st.mu.Unlock()
}

// simSession is one established connection to a simulated terminal.
// A session opened before a DropSessions call observes connection loss;
// a fresh Open clears the condition.
type simSession struct {
	state  *simState
	serial int
	mu     sync.Mutex
	closed bool
}

func (s *simSession) check(ctx context.Context) (*simState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, errors.New("session closed")
	}
	st := s.state
	st.mu.Lock()
	if st.dropped || st.serial != s.serial {
		st.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrConnectionLost, st.addr)
	}
	return st, nil
}

func (s *simSession) Info(ctx context.Context) (device.Info, error) {
	st, err := s.check(ctx)
	if err != nil {
		return device.Info{}, err
	}
	defer st.mu.Unlock()
	return st.info, nil
}

func (s *simSession) Users(ctx context.Context) ([]UserRecord, error) {
	st, err := s.check(ctx)
	if err != nil {
		return nil, err
	}
	defer st.mu.Unlock()
	out := make([]UserRecord, 0, len(st.users))
	for _, u := range st.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

func (s *simSession) SetUser(ctx context.Context, rec UserRecord) error {
	st, err := s.check(ctx)
	if err != nil {
		return err
	}
	defer st.mu.Unlock()
	if st.firmware == SimFirmwareLegacy {
		return errors.New("unsupported argument: card")
	}
	st.users[rec.UID] = rec
	return nil
}

func (s *simSession) SetUserBasic(ctx context.Context, uid int, userID, name string, privilege int) error {
	st, err := s.check(ctx)
	if err != nil {
		return err
	}
	defer st.mu.Unlock()
	st.users[uid] = UserRecord{UID: uid, UserID: userID, Name: name, Privilege: privilege}
	return nil
}

func (s *simSession) DeleteUser(ctx context.Context, uid int) error {
	st, err := s.check(ctx)
	if err != nil {
		return err
	}
	defer st.mu.Unlock()
	if _, ok := st.users[uid]; !ok {
		return fmt.Errorf("%w: uid %d", ErrUserNotFound, uid)
	}
	delete(st.users, uid)
	return nil
}

func (s *simSession) Attendance(ctx context.Context) ([]AttendanceRecord, error) {
	st, err := s.check(ctx)
	if err != nil {
		return nil, err
	}
	defer st.mu.Unlock()
	out := make([]AttendanceRecord, len(st.attendance))
	copy(out, st.attendance)
	return out, nil
}

func (s *simSession) ClearAttendance(ctx context.Context) error {
	st, err := s.check(ctx)
	if err != nil {
		return err
	}
	defer st.mu.Unlock()
	st.attendance = nil
	return nil
}

func (s *simSession) Disable(ctx context.Context) error {
	_, err := s.check(ctx)
	if err != nil {
		return err
	}
	s.state.mu.Unlock()
	return nil
}

func (s *simSession) Enable(ctx context.Context) error {
	_, err := s.check(ctx)
	if err != nil {
		return err
	}
	s.state.mu.Unlock()
	return nil
}

func (s *simSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
