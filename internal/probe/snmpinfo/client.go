package snmpinfo

import (
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"
)

// Client is the subset of *gosnmp.GoSNMP the probe uses.
type Client interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	GetNext(oids []string) (*gosnmp.SnmpPacket, error)
	GetBulk(oids []string, nonRepeaters uint8, maxRepetitions uint32) (*gosnmp.SnmpPacket, error)
	Close() error
}

// Target describes one agent endpoint.
type Target struct {
	Address   string
	Port      uint16
	Community string
	Version   gosnmp.SnmpVersion
	Timeout   time.Duration
	Retries   int
}

// Dialer opens a client for a target.
type Dialer func(t Target) (Client, error)

type gosnmpClient struct {
	*gosnmp.GoSNMP
}

// Get raises MaxOids when a single batched GET carries more OIDs than the
// library default.
func (c gosnmpClient) Get(oids []string) (*gosnmp.SnmpPacket, error) {
	if len(oids) > c.MaxOids {
		c.MaxOids = len(oids)
	}
	return c.GoSNMP.Get(oids)
}

func (c gosnmpClient) Close() error {
	if c.Conn == nil {
		return nil
	}
	return c.Conn.Close()
}

// GoSNMPDialer returns a Dialer backed by gosnmp. When debug is set,
// packet traces go to logger at debug level.
func GoSNMPDialer(logger *zap.Logger, debug bool) Dialer {
	return func(t Target) (Client, error) {
		g := &gosnmp.GoSNMP{
			Target:    t.Address,
			Port:      t.Port,
			Community: t.Community,
			Version:   t.Version,
			Timeout:   t.Timeout,
			Retries:   t.Retries,
			MaxOids:   gosnmp.MaxOids,
		}
		if debug {
			std, err := zap.NewStdLogAt(logger.Named("gosnmp"), zap.DebugLevel)
			if err == nil {
				g.Logger = gosnmp.NewLogger(std)
			}
		}
		if err := g.Connect(); err != nil {
			return nil, fmt.Errorf("connect to %s:%d: %w", t.Address, t.Port, err)
		}
		return gosnmpClient{GoSNMP: g}, nil
	}
}
