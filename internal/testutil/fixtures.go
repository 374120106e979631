// Package testutil provides device fixtures shared by package tests.
package testutil

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/HerbHall/netpad/pkg/models"
)

// NewDevice returns a monitored Device with one enabled IPv4 address and
// no monitor configuration. Override fields with options.
func NewDevice(opts ...func(*models.Device)) models.Device {
	d := models.Device{
		ID:             uuid.New().String(),
		Hostname:       "test-device",
		MonitorEnabled: true,
		CreatedAt:      time.Now().UTC(),
		Addresses: []models.Address{
			{Version: models.IPVersion4, Address: "192.0.2.10", Enabled: true},
		},
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// WithHostname sets the device hostname.
func WithHostname(name string) func(*models.Device) {
	return func(d *models.Device) { d.Hostname = name }
}

// WithID sets the device ID.
func WithID(id string) func(*models.Device) {
	return func(d *models.Device) { d.ID = id }
}

// WithAddresses replaces the device's address list.
func WithAddresses(addrs ...models.Address) func(*models.Device) {
	return func(d *models.Device) { d.Addresses = addrs }
}

// WithIPv4 replaces the address list with enabled IPv4 addresses.
func WithIPv4(ips ...string) func(*models.Device) {
	return func(d *models.Device) {
		d.Addresses = nil
		for _, ip := range ips {
			d.Addresses = append(d.Addresses, IPv4(ip))
		}
	}
}

// WithMonitor sets core monitor attributes.
func WithMonitor(attrs ...models.Attribute) func(*models.Device) {
	return func(d *models.Device) { d.Monitor = models.NewMonitorConfig(attrs...) }
}

// WithPolling sets PollInterval and EnabledProbes.
func WithPolling(intervalSeconds int, probes ...string) func(*models.Device) {
	return WithMonitor(
		models.Attribute{Name: models.AttrPollInterval, Value: strconv.Itoa(intervalSeconds)},
		models.Attribute{Name: models.AttrEnabledProbes, Value: models.JoinList(probes)},
	)
}

// Disabled turns monitoring off for the device.
func Disabled() func(*models.Device) {
	return func(d *models.Device) { d.MonitorEnabled = false }
}

// IPv4 returns an enabled IPv4 address.
func IPv4(ip string) models.Address {
	return models.Address{Version: models.IPVersion4, Address: ip, Enabled: true}
}
