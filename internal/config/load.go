package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned for configuration values that prevent startup.
var ErrInvalidConfig = errors.New("invalid configuration")

// Default SNMP scalar dictionary: the SNMPv2-MIB system group.
const defaultSNMPInfoDictionary = `{
	"sysDescr": "1.3.6.1.2.1.1.1.0",
	"sysObjectID": "1.3.6.1.2.1.1.2.0",
	"sysUpTime": "1.3.6.1.2.1.1.3.0",
	"sysContact": "1.3.6.1.2.1.1.4.0",
	"sysName": "1.3.6.1.2.1.1.5.0",
	"sysLocation": "1.3.6.1.2.1.1.6.0"
}`

// SetDefaults registers every recognized option with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "netpad.db")
	v.SetDefault("metrics.listen", "")

	v.SetDefault("monitor.queue-max-size", 100)
	v.SetDefault("monitor.threads", 4)
	v.SetDefault("monitor.probe-path", "")
	v.SetDefault("monitor.default-poll-interval", 300)
	v.SetDefault("monitor.default-probes", "ping, snmp_info")
	v.SetDefault("monitor.planner-sleep", "10s")
	v.SetDefault("monitor.prevent-overlap", false)

	v.SetDefault("probe_ping.default-count", 3)
	v.SetDefault("probe_ping.default-timeout", 2)
	v.SetDefault("probe_ping.default-address", "all")
	v.SetDefault("probe_ping.privileged", false)

	v.SetDefault("probe_snmp_info.default-snmp-port", 161)
	v.SetDefault("probe_snmp_info.default-snmp-community", "public")
	v.SetDefault("probe_snmp_info.default-snmp-version", "2c")
	v.SetDefault("probe_snmp_info.default-snmp-info-dictionary", defaultSNMPInfoDictionary)
	v.SetDefault("probe_snmp_info.default-snmp-table-dictionary", "{}")
	v.SetDefault("probe_snmp_info.bulk-command-size", 25)
	v.SetDefault("probe_snmp_info.timeout", "5s")
	v.SetDefault("probe_snmp_info.retries", 1)
	v.SetDefault("probe_snmp_info.snmp-debug", false)
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("netpadd")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/netpad")
	}

	// Environment variable support: NETPAD_MONITOR_THREADS=8
	v.SetEnvPrefix("NETPAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
