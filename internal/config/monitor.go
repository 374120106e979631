package config

import (
	"fmt"
	"time"

	"github.com/HerbHall/netpad/pkg/models"
	"github.com/spf13/viper"
)

// MaxPollerThreads bounds monitor.threads.
const MaxPollerThreads = 20

// MonitorSettings holds the [monitor] section.
type MonitorSettings struct {
	QueueMaxSize        int           `mapstructure:"queue-max-size"`
	Threads             int           `mapstructure:"threads"`
	ProbePath           string        `mapstructure:"probe-path"`
	DefaultPollInterval int           `mapstructure:"default-poll-interval"`
	DefaultProbes       string        `mapstructure:"default-probes"`
	PlannerSleep        time.Duration `mapstructure:"planner-sleep"`
	PreventOverlap      bool          `mapstructure:"prevent-overlap"`
}

// LoadMonitorSettings unmarshals and validates the monitor section.
func LoadMonitorSettings(v *viper.Viper) (MonitorSettings, error) {
	var s MonitorSettings
	if err := New(v).Sub("monitor").Unmarshal(&s); err != nil {
		return s, fmt.Errorf("%w: monitor: %v", ErrInvalidConfig, err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Validate checks bounds on the monitor settings.
func (s MonitorSettings) Validate() error {
	if s.QueueMaxSize <= 0 {
		return fmt.Errorf("%w: monitor.queue-max-size must be > 0, got %d", ErrInvalidConfig, s.QueueMaxSize)
	}
	if s.Threads < 1 || s.Threads > MaxPollerThreads {
		return fmt.Errorf("%w: monitor.threads must be in [1, %d], got %d", ErrInvalidConfig, MaxPollerThreads, s.Threads)
	}
	if s.DefaultPollInterval <= 0 {
		return fmt.Errorf("%w: monitor.default-poll-interval must be > 0, got %d", ErrInvalidConfig, s.DefaultPollInterval)
	}
	if len(s.DefaultProbeList()) == 0 {
		return fmt.Errorf("%w: monitor.default-probes must name at least one probe", ErrInvalidConfig)
	}
	if s.PlannerSleep <= 0 {
		return fmt.Errorf("%w: monitor.planner-sleep must be positive, got %s", ErrInvalidConfig, s.PlannerSleep)
	}
	return nil
}

// DefaultProbeList returns the default probe names in order.
func (s MonitorSettings) DefaultProbeList() []string {
	return models.SplitList(s.DefaultProbes)
}
