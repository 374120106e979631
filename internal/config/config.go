// Package config provides the Viper-backed configuration layer: loading,
// defaults, the probe.Config adapter, and the logger builder.
package config

import (
	"strings"
	"time"

	"github.com/HerbHall/netpad/pkg/probe"
	"github.com/spf13/viper"
)

// Compile-time interface guard.
var _ probe.Config = (*ViperConfig)(nil)

// ViperConfig wraps a Viper instance to implement probe.Config.
// A scoped config (from Sub) reads through to the root instance with a key
// prefix, so defaults, file values, and environment overrides all resolve
// per key instead of per section.
type ViperConfig struct {
	v      *viper.Viper
	prefix string
}

// New creates a Config backed by the given Viper instance.
// Returns the concrete type; callers assign to probe.Config where needed.
func New(v *viper.Viper) *ViperConfig {
	if v == nil {
		v = viper.New()
	}
	return &ViperConfig{v: v}
}

func (c *ViperConfig) Unmarshal(target any) error {
	if c.prefix == "" {
		return c.v.Unmarshal(target)
	}
	scoped := viper.New()
	for _, k := range c.v.AllKeys() {
		if rest, ok := strings.CutPrefix(k, c.prefix); ok {
			scoped.Set(rest, c.v.Get(k))
		}
	}
	return scoped.Unmarshal(target)
}

func (c *ViperConfig) Get(key string) any {
	return c.v.Get(c.prefix + key)
}

func (c *ViperConfig) GetString(key string) string {
	return c.v.GetString(c.prefix + key)
}

func (c *ViperConfig) GetInt(key string) int {
	return c.v.GetInt(c.prefix + key)
}

func (c *ViperConfig) GetBool(key string) bool {
	return c.v.GetBool(c.prefix + key)
}

func (c *ViperConfig) GetDuration(key string) time.Duration {
	return c.v.GetDuration(c.prefix + key)
}

func (c *ViperConfig) IsSet(key string) bool {
	return c.v.IsSet(c.prefix + key)
}

// Sub scopes the config to a section, e.g. Sub("probe_ping").
// A missing section yields a config on which every key is unset.
func (c *ViperConfig) Sub(key string) probe.Config {
	return &ViperConfig{v: c.v, prefix: c.prefix + strings.ToLower(key) + "."}
}

// Viper returns the underlying Viper instance for direct access.
func (c *ViperConfig) Viper() *viper.Viper {
	return c.v
}
