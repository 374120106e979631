package models

import "time"

// IPVersion4 is the only address family the probes can reach.
const IPVersion4 = 4

// Device represents a monitored network device.
type Device struct {
	ID             string    `json:"id"`
	Hostname       string    `json:"hostname"`
	Description    string    `json:"description,omitempty"`
	Addresses      []Address `json:"addresses"`
	MonitorEnabled bool      `json:"monitor_enabled"`
	CreatedAt      time.Time `json:"created_at"`

	// Monitor holds the device-level (core) monitor configuration.
	// Probe-scoped attributes are loaded separately by the poller.
	Monitor MonitorConfig `json:"monitor,omitempty"`
}

// Address is one IP address of a device. Disabled addresses are kept
// but skipped by probes.
type Address struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"device_id"`
	Version   int       `json:"version"`
	Address   string    `json:"address"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// IsIPv4 reports whether the address belongs to the IPv4 family.
func (a Address) IsIPv4() bool {
	return a.Version == IPVersion4
}

// DevicePlanning tracks when a device was last handed to the poller queue.
type DevicePlanning struct {
	DeviceID             string    `json:"device_id"`
	LastEnqueueTimestamp time.Time `json:"last_enqueue_timestamp"`
}
