package device

import (
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Registry is the in-memory store of configured terminals.
//
// All methods are safe for concurrent use. Reads return copies; callers
// never hold references into the registry's internal state, so a snapshot
// from List remains stable while the supervisor mutates statuses.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*Device
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]*Device),
	}
}

// Add registers a new terminal and returns its generated identifier.
//
// Parameters:
//   - address: IPv4/IPv6 address or hostname of the terminal
//   - port: TCP port the terminal's protocol service listens on
//   - name: human-readable label (may be empty)
//   - enabled: whether the listener supervisor should manage this device
//
// Returns:
//   - *Device: a copy of the stored device, including the new ID
//   - error: ErrInvalidAddress or ErrInvalidPort on bad input
func (r *Registry) Add(address string, port int, name string, enabled bool) (*Device, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrInvalidAddress
	}
	if port < 1 || port > 65535 {
		return nil, ErrInvalidPort
	}

	d := &Device{
		ID:      GenerateID(),
		Address: address,
		Port:    port,
		Name:    name,
		Enabled: enabled,
		Status:  StatusUnknown,
	}

	r.mu.Lock()
	r.devices[d.ID] = d
	r.mu.Unlock()

	out := *d
	return &out, nil
}

// Get returns a copy of the device with the given ID.
// Returns ErrNotFound if no such device exists.
func (r *Registry) Get(id string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *d
	return &out, nil
}

// List returns copies of all registered devices, ordered by name then
// address for stable API output.
func (r *Registry) List() []*Device {
	r.mu.RLock()
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		c := *d
		out = append(out, &c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Address < out[j].Address
	})
	return out
}

// Update applies a partial configuration update to a device.
// Only name, enabled, address and port may change through this path;
// status and info are owned by the listener supervisor.
//
// Returns a copy of the updated device, or ErrNotFound / validation errors.
func (r *Registry) Update(id string, upd Update) (*Device, error) {
	if upd.Address != nil && strings.TrimSpace(*upd.Address) == "" {
		return nil, ErrInvalidAddress
	}
	if upd.Port != nil && (*upd.Port < 1 || *upd.Port > 65535) {
		return nil, ErrInvalidPort
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Name != nil {
		d.Name = *upd.Name
	}
	if upd.Enabled != nil {
		d.Enabled = *upd.Enabled
	}
	if upd.Address != nil {
		d.Address = strings.TrimSpace(*upd.Address)
	}
	if upd.Port != nil {
		d.Port = *upd.Port
	}

	out := *d
	return &out, nil
}

// Remove deletes a device from the registry.
// Returns ErrNotFound if the device does not exist. The caller is
// responsible for stopping any listener task first.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return ErrNotFound
	}
	delete(r.devices, id)
	return nil
}

// SetStatus records a status transition for a device.
// Unknown IDs are ignored: a listener task may race with device removal,
// and a late status write must not resurrect the entry.
func (r *Registry) SetStatus(id string, status Status) {
	r.mu.Lock()
	if d, ok := r.devices[id]; ok {
		d.Status = status
	}
	r.mu.Unlock()
}

// SetInfo records hardware metadata for a device. Unknown IDs are ignored.
func (r *Registry) SetInfo(id string, info Info) {
	r.mu.Lock()
	if d, ok := r.devices[id]; ok {
		d.Info = info
	}
	r.mu.Unlock()
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
