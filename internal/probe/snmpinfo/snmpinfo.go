// Package snmpinfo implements the SNMP information probe: a batched GET of
// scalar OIDs followed by best-effort walks of configured tables.
package snmpinfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/HerbHall/netpad/pkg/models"
	"github.com/HerbHall/netpad/pkg/probe"
)

// Name is the probe name referenced by EnabledProbes.
const Name = "snmp_info"

// Probe-scoped configuration attributes.
const (
	AttrVersion         = "SnmpVersion"
	AttrCommunity       = "SnmpCommunity"
	AttrPort            = "SnmpPort"
	AttrInfoDictionary  = "SnmpInfoDictionary"
	AttrTableDictionary = "SnmpTableDictionary"
)

// Compile-time interface guard.
var _ probe.Probe = (*Probe)(nil)

// Settings are the probe-level defaults from the probe_snmp_info section.
type Settings struct {
	DefaultPort            int           `mapstructure:"default-snmp-port"`
	DefaultCommunity       string        `mapstructure:"default-snmp-community"`
	DefaultVersion         string        `mapstructure:"default-snmp-version"`
	DefaultInfoDictionary  string        `mapstructure:"default-snmp-info-dictionary"`
	DefaultTableDictionary string        `mapstructure:"default-snmp-table-dictionary"`
	BulkCommandSize        int           `mapstructure:"bulk-command-size"`
	Timeout                time.Duration `mapstructure:"timeout"`
	Retries                int           `mapstructure:"retries"`
	Debug                  bool          `mapstructure:"snmp-debug"`
}

// Factory returns the registry entry for the SNMP info probe.
func Factory() probe.Factory {
	return probe.FactoryFunc{
		Meta: probe.Info{
			Name:        Name,
			Description: "SNMP Information Fetcher",
			Version:     "1.0.0",
		},
		Constructor: func(deps probe.Dependencies) (probe.Probe, error) {
			var s Settings
			if deps.Config != nil {
				if err := deps.Config.Unmarshal(&s); err != nil {
					return nil, fmt.Errorf("snmp_info settings: %w", err)
				}
			}
			logger := deps.Logger
			if logger == nil {
				logger = zap.NewNop()
			}
			return New(s, GoSNMPDialer(logger, s.Debug), logger)
		},
	}
}

// Probe queries device addresses over SNMP until one answers.
type Probe struct {
	settings Settings
	dial     Dialer
	logger   *zap.Logger

	// Canonical JSON for the default dictionaries.
	defaultInfo  string
	defaultTable string
}

// New creates an SNMP info probe. Invalid defaults are rejected.
func New(s Settings, dial Dialer, logger *zap.Logger) (*Probe, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if s.DefaultPort < 1 || s.DefaultPort > 65535 {
		return nil, fmt.Errorf("default-snmp-port out of range: %d", s.DefaultPort)
	}
	if s.DefaultCommunity == "" {
		return nil, errors.New("default-snmp-community must not be empty")
	}
	if _, err := parseVersion(s.DefaultVersion); err != nil {
		return nil, fmt.Errorf("default-snmp-version: %w", err)
	}
	if s.BulkCommandSize < 1 {
		return nil, fmt.Errorf("bulk-command-size must be > 0, got %d", s.BulkCommandSize)
	}
	if s.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", s.Timeout)
	}

	info, err := parseInfoDictionary(s.DefaultInfoDictionary)
	if err != nil {
		return nil, fmt.Errorf("default-snmp-info-dictionary: %w", err)
	}
	tables, err := parseTableDictionary(s.DefaultTableDictionary)
	if err != nil {
		return nil, fmt.Errorf("default-snmp-table-dictionary: %w", err)
	}
	infoJSON, _ := json.Marshal(info)
	tableJSON, _ := json.Marshal(tables)

	if s.Debug {
		logger.Debug("snmp debugging is enabled")
	}
	return &Probe{
		settings:     s,
		dial:         dial,
		logger:       logger,
		defaultInfo:  string(infoJSON),
		defaultTable: string(tableJSON),
	}, nil
}

// ValidateConfiguration fills missing SNMP attributes from the probe
// defaults.
func (p *Probe) ValidateConfiguration(device models.Device, cfg models.MonitorConfig) *models.MonitorConfig {
	fixed := cfg.Clone()
	changed := false
	defaults := []models.Attribute{
		{Name: AttrVersion, Value: p.settings.DefaultVersion},
		{Name: AttrCommunity, Value: p.settings.DefaultCommunity},
		{Name: AttrPort, Value: strconv.Itoa(p.settings.DefaultPort)},
		{Name: AttrInfoDictionary, Value: p.defaultInfo},
		{Name: AttrTableDictionary, Value: p.defaultTable},
	}
	for _, d := range defaults {
		if fixed.Has(d.Name) {
			continue
		}
		p.logger.Warn("missing snmp_info probe attribute",
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

// Result is the probe payload stored in the poll record.
type Result struct {
	Address       string            `json:"Address"`
	SnmpInfoData  map[string]string `json:"SnmpInfoData"`
	SnmpTableData map[string]any    `json:"SnmpTableData"`
}

// request is a parsed probe configuration.
type request struct {
	version   gosnmp.SnmpVersion
	community string
	port      uint16
	info      map[string]string
	tables    map[string]TableConfig
}

// PollDevice tries each enabled IPv4 address in order; the first address
// that answers the scalar GET provides the result.
func (p *Probe) PollDevice(ctx context.Context, device models.Device, _ string, cfg models.MonitorConfig) (models.ProbeResult, error) {
	if len(device.Addresses) == 0 {
		return models.Failure(models.ErrIDNoIPAddresses, "no internet protocol addresses defined for device"), nil
	}
	req, err := parseRequest(cfg)
	if err != nil {
		return models.ProbeResult{}, fmt.Errorf("%w: %v", probe.ErrProbeFailed, err)
	}

	start := time.Now()
	var lastErr error
	for _, addr := range device.Addresses {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		if !addr.IsIPv4() {
			p.logger.Warn("unsupported address version for snmp_info probe",
				zap.String("device_id", device.ID),
				zap.String("address", addr.Address),
				zap.Int("version", addr.Version),
			)
			continue
		}
		if !addr.Enabled {
			p.logger.Debug("skipping disabled address",
				zap.String("device_id", device.ID),
				zap.String("address", addr.Address),
			)
			continue
		}

		res, err := p.pollAddress(device, addr.Address, req)
		if err != nil {
			lastErr = err
			p.logger.Warn("snmp query failed, trying next address",
				zap.String("device_id", device.ID),
				zap.String("address", addr.Address),
				zap.Error(err),
			)
			continue
		}

		p.logger.Debug("processed snmp info",
			zap.String("device_id", device.ID),
			zap.String("address", addr.Address),
			zap.Int("scalars", len(res.SnmpInfoData)),
			zap.Int("tables", len(res.SnmpTableData)),
			zap.Duration("elapsed", time.Since(start)),
		)
		return models.ProbeResult{Success: true, Data: res}, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no enabled IPv4 address")
	}
	p.logger.Warn("failed to get snmp info from any address",
		zap.String("device_id", device.ID),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(lastErr),
	)
	return models.Failure(models.ErrIDSNMP, lastErr.Error()), nil
}

func (p *Probe) pollAddress(device models.Device, address string, req request) (Result, error) {
	client, err := p.dial(Target{
		Address:   address,
		Port:      req.port,
		Community: req.community,
		Version:   req.version,
		Timeout:   p.settings.Timeout,
		Retries:   p.settings.Retries,
	})
	if err != nil {
		return Result{}, err
	}
	defer client.Close()

	info, err := p.fetchInfo(client, req.info)
	if err != nil {
		return Result{}, err
	}

	res := Result{Address: address, SnmpInfoData: info, SnmpTableData: make(map[string]any, len(req.tables))}
	for _, name := range sortedKeys(req.tables) {
		table, err := p.fetchTable(client, req.version, req.tables[name])
		if err != nil {
			p.logger.Warn("failed to get snmp table",
				zap.String("device_id", device.ID),
				zap.String("table", name),
				zap.Error(err),
			)
			continue
		}
		res.SnmpTableData[name] = table
	}
	return res, nil
}

// fetchInfo performs one batched GET over every configured scalar.
func (p *Probe) fetchInfo(c Client, dict map[string]string) (map[string]string, error) {
	data := make(map[string]string, len(dict))
	if len(dict) == 0 {
		return data, nil
	}

	names := make(map[string]string, len(dict))
	oids := make([]string, 0, len(dict))
	for _, name := range sortedKeys(dict) {
		oid := normalizeOID(dict[name])
		names[oid] = name
		oids = append(oids, oid)
	}

	pkt, err := c.Get(oids)
	if err != nil {
		return nil, err
	}
	if pkt.Error != gosnmp.NoError {
		return nil, packetError(pkt)
	}
	for _, pdu := range pkt.Variables {
		name, ok := names[normalizeOID(pdu.Name)]
		if !ok {
			continue
		}
		data[name] = pduString(pdu)
	}
	return data, nil
}

func (p *Probe) fetchTable(c Client, version gosnmp.SnmpVersion, cfg TableConfig) (any, error) {
	size := p.settings.BulkCommandSize
	next := bulkPager(c, size)
	if version == gosnmp.Version1 {
		next = nextPager(c, size)
	}
	return walkTable(cfg, size, next, p.logger.With(zap.String("base_oid", cfg.BaseOid)))
}

func parseRequest(cfg models.MonitorConfig) (request, error) {
	var req request
	var err error

	v, _ := cfg.Get(AttrVersion)
	if req.version, err = parseVersion(v); err != nil {
		return req, err
	}
	req.community, _ = cfg.Get(AttrCommunity)

	port, err := cfg.Int(AttrPort)
	if err != nil || port < 1 || port > 65535 {
		v, _ := cfg.Get(AttrPort)
		return req, fmt.Errorf("invalid %s %q", AttrPort, v)
	}
	req.port = uint16(port)

	raw, _ := cfg.Get(AttrInfoDictionary)
	if req.info, err = parseInfoDictionary(raw); err != nil {
		return req, fmt.Errorf("%s: %w", AttrInfoDictionary, err)
	}
	raw, _ = cfg.Get(AttrTableDictionary)
	if req.tables, err = parseTableDictionary(raw); err != nil {
		return req, fmt.Errorf("%s: %w", AttrTableDictionary, err)
	}
	return req, nil
}

// parseVersion accepts SNMP versions 1 and 2c.
func parseVersion(v string) (gosnmp.SnmpVersion, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "v1":
		return gosnmp.Version1, nil
	case "2c", "v2c", "2":
		return gosnmp.Version2c, nil
	default:
		return 0, fmt.Errorf("unsupported snmp version %q", v)
	}
}

func parseInfoDictionary(raw string) (map[string]string, error) {
	dict := map[string]string{}
	if strings.TrimSpace(raw) == "" {
		return dict, nil
	}
	if err := json.Unmarshal([]byte(raw), &dict); err != nil {
		return nil, err
	}
	return dict, nil
}

func parseTableDictionary(raw string) (map[string]TableConfig, error) {
	dict := map[string]TableConfig{}
	if strings.TrimSpace(raw) == "" {
		return dict, nil
	}
	if err := json.Unmarshal([]byte(raw), &dict); err != nil {
		return nil, err
	}
	return dict, nil
}
