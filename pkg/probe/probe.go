// Package probe provides the public SDK types for netpad measurement probes.
// Built-in and third-party probes implement these interfaces and are
// registered explicitly with the daemon's probe registry at startup.
package probe

import (
	"context"
	"errors"
	"time"

	"github.com/HerbHall/netpad/pkg/models"
	"go.uber.org/zap"
)

// ErrProbeFailed marks a soft failure: the probe could not run against the
// device (bad configuration, transport could not be built). The poller
// records it in the poll record and moves on to the next probe. Any other
// error returned from PollDevice escalates out of the worker.
var ErrProbeFailed = errors.New("probe failed")

// Probe executes one measurement against one device.
type Probe interface {
	// ValidateConfiguration checks probe-scoped configuration. It returns nil
	// when nothing needs fixing, otherwise a complete corrected copy that the
	// caller persists. It must not modify cfg and must be idempotent.
	ValidateConfiguration(device models.Device, cfg models.MonitorConfig) *models.MonitorConfig

	// PollDevice performs the measurement. Device-side failures are reported
	// in the returned ProbeResult, not as an error.
	PollDevice(ctx context.Context, device models.Device, probeName string, cfg models.MonitorConfig) (models.ProbeResult, error)
}

// Info describes a probe implementation.
type Info struct {
	Name        string // Unique identifier referenced by EnabledProbes: "ping", "snmp_info"
	Description string // Human-readable summary
	Version     string // Semantic version string
}

// Factory constructs probe instances. One Factory is registered per probe
// implementation; the poller creates a fresh Probe for every device poll.
type Factory interface {
	Info() Info
	New(deps Dependencies) (Probe, error)
}

// Dependencies provides controlled access to shared services.
type Dependencies struct {
	Config Config      // Scoped to this probe's config section
	Logger *zap.Logger // Named logger for this probe
	Store  ConfigStore // May be nil in tests
}

// ConfigStore is the slice of the persistence layer a probe may use to read
// or update device monitor configuration outside the validation step.
type ConfigStore interface {
	GetMonitorConfig(ctx context.Context, deviceID, scope string) (models.MonitorConfig, error)
	SetMonitorConfig(ctx context.Context, deviceID, scope string, cfg models.MonitorConfig) error
}

// Config abstracts configuration access. Wraps Viper today, replaceable later.
type Config interface {
	Unmarshal(target any) error
	Get(key string) any
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	IsSet(key string) bool
	Sub(key string) Config
}

// FactoryFunc adapts an Info and constructor function into a Factory.
type FactoryFunc struct {
	Meta        Info
	Constructor func(deps Dependencies) (Probe, error)
}

func (f FactoryFunc) Info() Info { return f.Meta }

func (f FactoryFunc) New(deps Dependencies) (Probe, error) {
	return f.Constructor(deps)
}
