package monitor

import (
	"context"
	"time"

	"github.com/HerbHall/netpad/pkg/models"
	"github.com/HerbHall/netpad/pkg/probe"
)

// CoreScope selects the device-level monitor configuration, as opposed to
// a probe's own attribute scope.
const CoreScope = ""

// Store is the persistence port consumed by the planner and the poller.
// Implementations must serialize their own writes.
type Store interface {
	ListDevices(ctx context.Context, enabledOnly bool) ([]models.Device, error)
	GetDevice(ctx context.Context, id string) (*models.Device, error)

	GetMonitorConfig(ctx context.Context, deviceID, scope string) (models.MonitorConfig, error)
	SetMonitorConfig(ctx context.Context, deviceID, scope string, cfg models.MonitorConfig) error

	CreatePollRecord(ctx context.Context, deviceID string) (string, error)
	FinalizePollRecord(ctx context.Context, id string, stats models.PollStats) error
	UpsertLastResult(ctx context.Context, deviceID string, stats models.PollStats) error

	GetPlanning(ctx context.Context, deviceID string) (*models.DevicePlanning, error)
	CreatePlanning(ctx context.Context, deviceID string, at time.Time) error
	SetPlanning(ctx context.Context, deviceID string, at time.Time) error
}

// ProbeSource constructs probe instances by name. Satisfied by
// *registry.Registry.
type ProbeSource interface {
	New(name string, deps probe.Dependencies) (probe.Probe, error)
}

// Compile-time checks that MonitorStore satisfies the ports.
var (
	_ Store             = (*MonitorStore)(nil)
	_ probe.ConfigStore = (*MonitorStore)(nil)
)
