// Package ping implements the ICMP echo probe.
package ping

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/HerbHall/netpad/pkg/models"
	"github.com/HerbHall/netpad/pkg/probe"
	"go.uber.org/zap"
)

// Name is the probe name referenced by EnabledProbes.
const Name = "ping"

// Probe-scoped configuration attributes.
const (
	AttrCount   = "PingCount"
	AttrTimeout = "PingTimeout"
	AttrAddress = "PingAddress"
)

// SelectAll pings every address of the device.
const SelectAll = "all"

// Compile-time interface guard.
var _ probe.Probe = (*Probe)(nil)

// Settings are the probe-level defaults from the probe_ping section.
type Settings struct {
	DefaultCount   int    `mapstructure:"default-count"`
	DefaultTimeout int    `mapstructure:"default-timeout"` // seconds
	DefaultAddress string `mapstructure:"default-address"`
	Privileged     bool   `mapstructure:"privileged"`
}

func (s Settings) validate() error {
	if s.DefaultCount < 1 {
		return fmt.Errorf("default-count must be > 0, got %d", s.DefaultCount)
	}
	if s.DefaultTimeout < 1 {
		return fmt.Errorf("default-timeout must be > 0, got %d", s.DefaultTimeout)
	}
	if strings.TrimSpace(s.DefaultAddress) == "" {
		return errors.New("default-address must not be empty")
	}
	if _, _, err := parseSelector(s.DefaultAddress); err != nil {
		return fmt.Errorf("default-address: %w", err)
	}
	return nil
}

// Factory returns the registry entry for the ping probe.
func Factory() probe.Factory {
	return probe.FactoryFunc{
		Meta: probe.Info{
			Name:        Name,
			Description: "ICMP Ping Probe",
			Version:     "1.0.0",
		},
		Constructor: func(deps probe.Dependencies) (probe.Probe, error) {
			var s Settings
			if deps.Config != nil {
				if err := deps.Config.Unmarshal(&s); err != nil {
					return nil, fmt.Errorf("ping settings: %w", err)
				}
			}
			return New(s, ProBingEchoer{Privileged: s.Privileged}, deps.Logger)
		},
	}
}

// Probe pings the selected addresses of a device.
type Probe struct {
	settings Settings
	echoer   Echoer
	logger   *zap.Logger
}

// New creates a ping probe. Invalid defaults are rejected.
func New(s Settings, echoer Echoer, logger *zap.Logger) (*Probe, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Probe{settings: s, echoer: echoer, logger: logger}, nil
}

// ValidateConfiguration fills PingCount, PingTimeout, and PingAddress
// from the probe defaults.
func (p *Probe) ValidateConfiguration(device models.Device, cfg models.MonitorConfig) *models.MonitorConfig {
	fixed := cfg.Clone()
	changed := false
	defaults := []models.Attribute{
		{Name: AttrCount, Value: strconv.Itoa(p.settings.DefaultCount)},
		{Name: AttrTimeout, Value: strconv.Itoa(p.settings.DefaultTimeout)},
		{Name: AttrAddress, Value: p.settings.DefaultAddress},
	}
	for _, d := range defaults {
		if fixed.Has(d.Name) {
			continue
		}
		p.logger.Warn("missing ping probe attribute",
			zap.String("device_id", device.ID),
			zap.String("attribute", d.Name),
		)
		fixed.Set(d.Name, d.Value)
		changed = true
	}
	if !changed {
		return nil
	}
	return &fixed
}

// AddressResult is the outcome for one selected address.
type AddressResult struct {
	Index   int                `json:"Index"`
	Address *models.Address    `json:"Address,omitempty"`
	Status  int                `json:"Status"`
	Error   *models.ProbeError `json:"Error,omitempty"`
	Result  *Stats             `json:"Result,omitempty"`
}

// Result is the probe payload stored in the poll record.
type Result struct {
	PerAddress []AddressResult `json:"PerAddress"`
}

// PollDevice pings each selected address PingCount times.
func (p *Probe) PollDevice(ctx context.Context, device models.Device, _ string, cfg models.MonitorConfig) (models.ProbeResult, error) {
	count, err := cfg.Int(AttrCount)
	if err != nil || count < 1 {
		return models.ProbeResult{}, fmt.Errorf("%w: invalid %s %q", probe.ErrProbeFailed, AttrCount, attr(cfg, AttrCount))
	}
	timeoutSec, err := cfg.Int(AttrTimeout)
	if err != nil || timeoutSec < 1 {
		return models.ProbeResult{}, fmt.Errorf("%w: invalid %s %q", probe.ErrProbeFailed, AttrTimeout, attr(cfg, AttrTimeout))
	}
	all, indexes, err := parseSelector(attr(cfg, AttrAddress))
	if err != nil {
		return models.ProbeResult{}, fmt.Errorf("%w: %s: %v", probe.ErrProbeFailed, AttrAddress, err)
	}
	if all {
		indexes = make([]int, len(device.Addresses))
		for i := range indexes {
			indexes[i] = i
		}
	}

	timeout := time.Duration(timeoutSec) * time.Second
	var out Result
	for _, idx := range indexes {
		res, err := p.pingIndex(ctx, device, idx, count, timeout)
		if err != nil {
			return models.ProbeResult{}, err
		}
		out.PerAddress = append(out.PerAddress, res)
	}
	return summarizeDevice(out), nil
}

func (p *Probe) pingIndex(ctx context.Context, device models.Device, idx, count int, timeout time.Duration) (AddressResult, error) {
	res := AddressResult{Index: idx}
	if idx < 0 || idx >= len(device.Addresses) {
		res.Error = &models.ProbeError{
			ID:      models.ErrIDInvalidAddressIndex,
			Message: fmt.Sprintf("address index %d out of range, device has %d addresses", idx, len(device.Addresses)),
		}
		return res, nil
	}

	addr := device.Addresses[idx]
	res.Address = &addr
	switch {
	case !addr.Enabled:
		res.Error = &models.ProbeError{ID: models.ErrIDAddressDisabled, Message: "address " + addr.Address + " is disabled"}
		return res, nil
	case !addr.IsIPv4():
		p.logger.Error("unsupported address version for ping probe",
			zap.String("device_id", device.ID),
			zap.Int("version", addr.Version),
		)
		res.Error = &models.ProbeError{
			ID:      models.ErrIDUnsupportedVersion,
			Message: "Unsupported address version " + strconv.Itoa(addr.Version),
		}
		return res, nil
	}

	samples := make([]*float64, 0, count)
	start := time.Now()
	var lastErr error
	for i := 0; i < count; i++ {
		rtt, ok, err := p.echoer.Echo(ctx, addr.Address, timeout)
		if errors.Is(err, ErrEchoUnavailable) {
			return res, fmt.Errorf("%w: %v", probe.ErrProbeFailed, err)
		}
		if err != nil {
			p.logger.Debug("echo failed",
				zap.String("device_id", device.ID),
				zap.String("address", addr.Address),
				zap.Error(err),
			)
			lastErr = err
			samples = append(samples, nil)
			continue
		}
		if !ok {
			samples = append(samples, nil)
			continue
		}
		ms := models.Millis(rtt)
		samples = append(samples, &ms)
	}
	st, ok := summarize(samples, time.Since(start))

	p.logger.Debug("processed pings",
		zap.String("address", addr.Address),
		zap.Int("count", count),
		zap.Float64("elapsed_ms", st.ExecutionTime),
	)
	if !ok {
		msg := "no responses received"
		if lastErr != nil {
			msg += ": " + lastErr.Error()
		}
		res.Error = &models.ProbeError{ID: models.ErrIDNoResponses, Message: msg}
		return res, nil
	}
	res.Status = 1
	res.Result = &st
	return res, nil
}

// summarizeDevice marks the poll successful when any address replied.
// Otherwise the first address error becomes the probe error.
func summarizeDevice(r Result) models.ProbeResult {
	out := models.ProbeResult{Data: r}
	for _, a := range r.PerAddress {
		if a.Status == 1 {
			out.Success = true
			return out
		}
	}
	if len(r.PerAddress) == 0 {
		out.Error = &models.ProbeError{ID: models.ErrIDNoIPAddresses, Message: "no addresses selected"}
		return out
	}
	out.Error = r.PerAddress[0].Error
	return out
}

// parseSelector parses PingAddress: "all" or comma-separated zero-based
// address indexes.
func parseSelector(s string) (all bool, indexes []int, err error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, SelectAll) {
		return true, nil, nil
	}
	parts := models.SplitList(s)
	if len(parts) == 0 {
		return false, nil, fmt.Errorf("empty address selector")
	}
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return false, nil, fmt.Errorf("invalid address index %q", part)
		}
		indexes = append(indexes, n)
	}
	return false, indexes, nil
}

func attr(cfg models.MonitorConfig, name string) string {
	v, _ := cfg.Get(name)
	return v
}
