package monitor

import "sync"

// InFlight tracks devices that are queued or being polled. The planner
// consults it when monitor.prevent-overlap is enabled.
type InFlight struct {
	mu      sync.Mutex
	devices map[string]struct{}
}

// NewInFlight creates an empty tracker.
func NewInFlight() *InFlight {
	return &InFlight{devices: make(map[string]struct{})}
}

// Acquire marks a device in flight. It returns false if it already was.
func (f *InFlight) Acquire(deviceID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.devices[deviceID]; busy {
		return false
	}
	f.devices[deviceID] = struct{}{}
	return true
}

// Release clears a device. Releasing an untracked device is a no-op.
func (f *InFlight) Release(deviceID string) {
	f.mu.Lock()
	delete(f.devices, deviceID)
	f.mu.Unlock()
}

// Len returns the number of devices in flight.
func (f *InFlight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.devices)
}
