// Package probetest provides shared contract tests that verify any
// probe.Factory implementation behaves correctly. Every probe package's
// test file should call TestProbeContract to ensure conformance.
package probetest

import (
	"testing"

	"github.com/HerbHall/netpad/pkg/models"
	"github.com/HerbHall/netpad/pkg/probe"
	"golang.org/x/mod/semver"
)

// TestProbeContract runs a suite of behavioral contract tests against a
// probe.Factory. deps must carry a Config populated with the probe's
// defaults, exactly as the daemon would pass it:
//
//	func TestContract(t *testing.T) {
//	    probetest.TestProbeContract(t, ping.Factory(), testDeps(t))
//	}
func TestProbeContract(t *testing.T, f probe.Factory, deps probe.Dependencies) {
	t.Helper()

	device := models.Device{
		ID:             "contract-device",
		Hostname:       "contract.example",
		MonitorEnabled: true,
		Addresses: []models.Address{
			{ID: 1, Version: models.IPVersion4, Address: "192.0.2.1", Enabled: true},
		},
	}

	t.Run("Info_returns_valid_metadata", func(t *testing.T) {
		info := f.Info()
		if info.Name == "" {
			t.Error("Info().Name must not be empty")
		}
		if info.Description == "" {
			t.Error("Info().Description must not be empty")
		}
		if !semver.IsValid("v" + info.Version) {
			t.Errorf("Info().Version = %q, want a semantic version", info.Version)
		}
	})

	t.Run("Info_is_idempotent", func(t *testing.T) {
		a := f.Info()
		b := f.Info()
		if a != b {
			t.Error("Info() must return consistent results")
		}
	})

	t.Run("New_succeeds_with_valid_deps", func(t *testing.T) {
		p, err := f.New(deps)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if p == nil {
			t.Fatal("New() returned nil probe")
		}
	})

	t.Run("ValidateConfiguration_fills_empty_config", func(t *testing.T) {
		p, err := f.New(deps)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		empty := models.MonitorConfig{}
		repaired := p.ValidateConfiguration(device, empty)
		if repaired == nil {
			t.Fatal("ValidateConfiguration(empty) = nil, want repaired config")
		}
		if repaired.Len() == 0 {
			t.Error("repaired config has no attributes")
		}
		if empty.Len() != 0 {
			t.Error("ValidateConfiguration modified its input")
		}
	})

	t.Run("ValidateConfiguration_is_idempotent", func(t *testing.T) {
		p, err := f.New(deps)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		repaired := p.ValidateConfiguration(device, models.MonitorConfig{})
		if repaired == nil {
			t.Fatal("ValidateConfiguration(empty) = nil, want repaired config")
		}
		if again := p.ValidateConfiguration(device, *repaired); again != nil {
			t.Errorf("second ValidateConfiguration = %v, want nil", again.Attributes())
		}
	})
}
