package listener

import "sync"

// TaskStatus is the reported state of one device's polling task.
type TaskStatus struct {
	Running   bool   `json:"running"`
	LastError string `json:"lastError,omitempty"`
	Name      string `json:"name"`
	Address   string `json:"ip"`
}

// Status is the process-wide listener view returned to the API.
type Status struct {
	Running   bool                  `json:"running"`
	LastError string                `json:"lastError,omitempty"`
	Devices   map[string]TaskStatus `json:"devices"`
}

// Aggregator maintains the consistent point-in-time status view. Writers
// are the Manager's task transitions; readers are API handlers. Entries
// are guarded individually so unrelated devices never contend.
type Aggregator struct {
	mu        sync.RWMutex
	running   bool
	lastError string
	devices   map[string]*taskEntry
}

type taskEntry struct {
	mu        sync.Mutex
	running   bool
	lastError string
	name      string
	address   string
}

// NewAggregator creates an empty status aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		devices: make(map[string]*taskEntry),
	}
}

// Snapshot returns a copy of the current aggregate status.
func (a *Aggregator) Snapshot() Status {
	a.mu.RLock()
	out := Status{
		Running:   a.running,
		LastError: a.lastError,
		Devices:   make(map[string]TaskStatus, len(a.devices)),
	}
	entries := make(map[string]*taskEntry, len(a.devices))
	for id, e := range a.devices {
		entries[id] = e
	}
	a.mu.RUnlock()

	for id, e := range entries {
		e.mu.Lock()
		out.Devices[id] = TaskStatus{
			Running:   e.running,
			LastError: e.lastError,
			Name:      e.name,
			Address:   e.address,
		}
		e.mu.Unlock()
	}
	return out
}

// setRunning records the global running flag.
func (a *Aggregator) setRunning(running bool) {
	a.mu.Lock()
	a.running = running
	a.mu.Unlock()
}

// setGlobalError records the last process-wide listener error.
func (a *Aggregator) setGlobalError(msg string) {
	a.mu.Lock()
	a.lastError = msg
	a.mu.Unlock()
}

// register creates (or refreshes) the entry for a device's task.
func (a *Aggregator) register(id, name, address string) {
	a.mu.Lock()
	e, ok := a.devices[id]
	if !ok {
		e = &taskEntry{}
		a.devices[id] = e
	}
	a.mu.Unlock()

	e.mu.Lock()
	e.name = name
	e.address = address
	e.mu.Unlock()
}

// setTaskRunning flips one task's running flag; clearing the flag keeps
// the last error for post-mortem visibility.
func (a *Aggregator) setTaskRunning(id string, running bool) {
	if e := a.entry(id); e != nil {
		e.mu.Lock()
		e.running = running
		if running {
			e.lastError = ""
		}
		e.mu.Unlock()
	}
}

// setTaskError records one task's most recent error.
func (a *Aggregator) setTaskError(id string, msg string) {
	if e := a.entry(id); e != nil {
		e.mu.Lock()
		e.lastError = msg
		e.mu.Unlock()
	}
}

// clearTaskError wipes one task's error after recovery.
func (a *Aggregator) clearTaskError(id string) {
	a.setTaskError(id, "")
}

// remove drops one device's entry entirely.
func (a *Aggregator) remove(id string) {
	a.mu.Lock()
	delete(a.devices, id)
	a.mu.Unlock()
}

// reset clears all state after a stop-all.
func (a *Aggregator) reset() {
	a.mu.Lock()
	a.running = false
	a.lastError = ""
	a.devices = make(map[string]*taskEntry)
	a.mu.Unlock()
}

func (a *Aggregator) entry(id string) *taskEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.devices[id]
}
