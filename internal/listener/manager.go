package listener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/biofleet/biofleet-core/internal/device"
	"github.com/biofleet/biofleet-core/internal/infrastructure/config"
	"github.com/biofleet/biofleet-core/internal/relay"
	"github.com/biofleet/biofleet-core/internal/terminal"
)

// Logger defines the logging interface for the listener manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer is notified of supervision events. Implementations fan out to
// the WebSocket hub and the telemetry writer; callbacks must return
// quickly and must not call back into the Manager.
type Observer interface {
	// DeviceStatusChanged fires on every device lifecycle transition.
	DeviceStatusChanged(deviceID string, status device.Status)

	// PollCompleted fires after each poll iteration that read records.
	PollCompleted(deviceID string, records int)
}

// Observers fans out supervision events to multiple observers in order.
type Observers []Observer

func (o Observers) DeviceStatusChanged(deviceID string, status device.Status) {
	for _, obs := range o {
		obs.DeviceStatusChanged(deviceID, status)
	}
}

func (o Observers) PollCompleted(deviceID string, records int) {
	for _, obs := range o {
		obs.PollCompleted(deviceID, records)
	}
}

// task is the supervision handle for one device's polling goroutine.
type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager supervises one polling task per enabled device.
type Manager struct {
	cfg      config.ListenerConfig
	registry *device.Registry
	driver   terminal.Driver
	relay    *relay.Relay
	status   *Aggregator
	logger   Logger
	observer Observer

	// mu guards tasks and started.
	mu      sync.Mutex
	tasks   map[string]*task
	started bool

	// gates serialise a device's listener session with ad-hoc
	// administrative sessions to the same physical terminal.
	gateMu sync.Mutex
	gates  map[string]*sync.Mutex
}

// NewManager creates a listener manager.
//
// Parameters:
//   - cfg: supervision timings (poll interval, retry policy, stop timeout)
//   - registry: the device registry supplying configuration and receiving
//     status transitions
//   - drv: the protocol driver used for all sessions
//   - rly: the attendance relay
func NewManager(cfg config.ListenerConfig, registry *device.Registry, drv terminal.Driver, rly *relay.Relay) *Manager {
	return &Manager{
		cfg:      cfg,
		registry: registry,
		driver:   drv,
		relay:    rly,
		status:   NewAggregator(),
		logger:   noopLogger{},
		tasks:    make(map[string]*task),
		gates:    make(map[string]*sync.Mutex),
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetObserver sets the supervision event observer.
func (m *Manager) SetObserver(obs Observer) {
	m.observer = obs
}

// Status returns a snapshot of the aggregate listener status.
func (m *Manager) Status() Status {
	return m.status.Snapshot()
}

// IsRunning reports whether a start-all is in effect.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// StartAll launches a polling task for every enabled device that does not
// already have one. Disabled devices are never given a task. ctx is the
// parent for all task contexts; cancelling it stops every task.
func (m *Manager) StartAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = true
	m.status.setRunning(true)
	m.status.setGlobalError("")

	launched := 0
	for _, dev := range m.registry.List() {
		if !dev.Enabled {
			continue
		}
		if _, active := m.tasks[dev.ID]; active {
			continue
		}

		taskCtx, cancel := context.WithCancel(ctx)
		t := &task{cancel: cancel, done: make(chan struct{})}
		m.tasks[dev.ID] = t
		m.status.register(dev.ID, dev.Name, dev.Addr())

		go m.run(taskCtx, dev, t)
		launched++
	}

	m.logger.Info("listener start-all", "launched", launched, "active", len(m.tasks))
}

// StopAll cancels every task and waits, bounded per task, for it to exit.
// Tasks that do not observe the signal within the stop timeout are
// abandoned; their session teardown happens whenever the blocking driver
// call eventually returns. Idempotent.
func (m *Manager) StopAll() {
	m.mu.Lock()
	tasks := m.tasks
	m.tasks = make(map[string]*task)
	m.started = false
	m.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}

	timeout := m.cfg.StopTimeoutDuration()
	for id, t := range tasks {
		select {
		case <-t.done:
		case <-time.After(timeout):
			m.logger.Warn("listener task did not stop in time, abandoning", "device_id", id)
		}
	}

	m.status.reset()
	m.logger.Info("listener stop-all complete", "stopped", len(tasks))
}

// StopDevice cancels and waits out a single device's task, removing its
// status entry. Returns true if a task was active. Used by device removal,
// which must not leave an orphaned task referencing a deleted entry.
func (m *Manager) StopDevice(id string) bool {
	m.mu.Lock()
	t, active := m.tasks[id]
	if active {
		delete(m.tasks, id)
	}
	m.mu.Unlock()

	if active {
		t.cancel()
		select {
		case <-t.done:
		case <-time.After(m.cfg.StopTimeoutDuration()):
			m.logger.Warn("listener task did not stop in time, abandoning", "device_id", id)
		}
	}

	m.status.remove(id)
	return active
}

// WithSession opens a short-lived administrative session to one device and
// runs fn against it. The call holds the device's gate for its duration,
// serialising it with the listener task's own driver traffic. A single
// connection attempt is made; administrative callers want a fast failure,
// not the listener's patient retry policy.
func (m *Manager) WithSession(ctx context.Context, id string, fn func(sess terminal.Session) error) error {
	dev, err := m.registry.Get(id)
	if err != nil {
		return err
	}

	unlock := m.lockDevice(id)
	defer unlock()

	opts := m.connectOpts()
	opts.MaxRetries = 1
	sess, err := terminal.Connect(ctx, m.driver, dev.Addr(), opts)
	if err != nil {
		if !m.hasTask(id) && terminal.IsConnectivity(err) {
			m.setDeviceStatus(id, device.StatusOffline)
		}
		return err
	}
	defer sess.Close()

	// A successful ad-hoc connect proves the terminal is up. A running
	// listener task owns the status and already reports listening.
	if !m.hasTask(id) {
		m.setDeviceStatus(id, device.StatusOnline)
	}

	return fn(sess)
}

// hasTask reports whether a listener task exists for the device.
func (m *Manager) hasTask(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[id]
	return ok
}

// run is the per-device task state machine.
func (m *Manager) run(ctx context.Context, dev *device.Device, t *task) {
	defer close(t.done)

	var sess terminal.Session
	exitStatus := device.StatusOffline
	defer func() {
		if sess != nil {
			sess.Close()
		}
		m.setDeviceStatus(dev.ID, exitStatus)
		m.status.setTaskRunning(dev.ID, false)
	}()

	// starting: a failure here terminates the task. Only a fresh
	// start-all retries a device that never came up.
	sess0, err := m.connect(ctx, dev)
	if err != nil {
		if ctx.Err() == nil {
			exitStatus = device.StatusError
		}
		m.status.setTaskError(dev.ID, err.Error())
		m.status.setGlobalError(fmt.Sprintf("%s: %v", dev.Name, err))
		m.logger.Error("listener start failed", "device_id", dev.ID, "address", dev.Addr(), "error", err)
		return
	}
	sess = sess0

	m.fetchInfo(ctx, dev.ID, sess)
	m.setDeviceStatus(dev.ID, device.StatusListening)
	m.status.setTaskRunning(dev.ID, true)
	m.logger.Info("listener attached", "device_id", dev.ID, "address", dev.Addr())

	pollInterval := m.cfg.PollIntervalDuration()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.poll(ctx, dev, sess); err != nil {
			if ctx.Err() != nil {
				return
			}
			m.status.setTaskError(dev.ID, err.Error())

			if terminal.IsConnectivity(err) {
				m.logger.Warn("device connection lost, reconnecting",
					"device_id", dev.ID, "address", dev.Addr(), "error", err)
				sess.Close()
				sess = nil
				m.setDeviceStatus(dev.ID, device.StatusOffline)

				newSess, recErr := m.reconnect(ctx, dev)
				if recErr != nil {
					return
				}
				sess = newSess
				m.status.clearTaskError(dev.ID)
				m.setDeviceStatus(dev.ID, device.StatusListening)
				m.logger.Info("device reconnected", "device_id", dev.ID, "address", dev.Addr())
				continue
			}

			// Non-connectivity errors are recorded and the loop keeps
			// polling on the normal cadence.
			m.logger.Warn("attendance poll error", "device_id", dev.ID, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(pollInterval):
		}
	}
}

// poll runs one read-forward-clear cycle against the device, holding its
// gate so administrative sessions never interleave with it.
func (m *Manager) poll(ctx context.Context, dev *device.Device, sess terminal.Session) error {
	unlock := m.lockDevice(dev.ID)
	defer unlock()

	recs, err := sess.Attendance(ctx)
	if err != nil {
		return fmt.Errorf("reading attendance: %w", err)
	}
	if len(recs) == 0 {
		return nil
	}

	// Forward in device order, then clear the on-board log in one call.
	// Not crash-atomic; see the package doc for the loss/duplication
	// window this accepts.
	for _, rec := range recs {
		m.relay.Forward(ctx, dev.ID, dev.Address, rec)
	}

	if err := sess.ClearAttendance(ctx); err != nil {
		return fmt.Errorf("clearing attendance log: %w", err)
	}

	m.logger.Debug("attendance batch processed", "device_id", dev.ID, "records", len(recs))
	if m.observer != nil {
		m.observer.PollCompleted(dev.ID, len(recs))
	}
	return nil
}

// reconnect re-establishes a session, backing off between failed cycles
// and retrying until success or cancellation. It only returns an error
// when ctx is done.
func (m *Manager) reconnect(ctx context.Context, dev *device.Device) (terminal.Session, error) {
	backoff := m.cfg.ReconnectBackoffDuration()

	for {
		sess, err := m.connect(ctx, dev)
		if err == nil {
			return sess, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		m.status.setTaskError(dev.ID, err.Error())
		m.logger.Warn("reconnect failed, backing off",
			"device_id", dev.ID, "address", dev.Addr(), "backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// connect establishes the task's session under the device gate.
func (m *Manager) connect(ctx context.Context, dev *device.Device) (terminal.Session, error) {
	unlock := m.lockDevice(dev.ID)
	defer unlock()
	return terminal.Connect(ctx, m.driver, dev.Addr(), m.connectOpts())
}

// fetchInfo lazily populates device metadata after a successful connect.
// Failure is harmless; the next start-all tries again.
func (m *Manager) fetchInfo(ctx context.Context, id string, sess terminal.Session) {
	info, err := sess.Info(ctx)
	if err != nil {
		m.logger.Debug("device info read failed", "device_id", id, "error", err)
		return
	}
	m.registry.SetInfo(id, info)
}

func (m *Manager) setDeviceStatus(id string, status device.Status) {
	m.registry.SetStatus(id, status)
	if m.observer != nil {
		m.observer.DeviceStatusChanged(id, status)
	}
}

// lockDevice acquires the per-device gate, returning the unlock func.
func (m *Manager) lockDevice(id string) func() {
	m.gateMu.Lock()
	g, ok := m.gates[id]
	if !ok {
		g = &sync.Mutex{}
		m.gates[id] = g
	}
	m.gateMu.Unlock()

	g.Lock()
	return g.Unlock
}

func (m *Manager) connectOpts() terminal.ConnectOptions {
	return terminal.ConnectOptions{
		MaxRetries:     m.cfg.MaxRetries,
		RetryDelay:     m.cfg.RetryDelayDuration(),
		ProbeTimeout:   m.cfg.ProbeTimeoutDuration(),
		ConnectTimeout: m.cfg.ConnectTimeoutDuration(),
	}
}
