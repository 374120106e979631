package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/HerbHall/netpad/internal/config"
)

func TestProbeFactories_Unique(t *testing.T) {
	seen := map[string]bool{}
	for _, f := range probeFactories() {
		name := f.Info().Name
		assert.False(t, seen[name], "duplicate probe %q", name)
		seen[name] = true
	}
	assert.True(t, seen["ping"])
	assert.True(t, seen["snmp_info"])
}

func TestRun_StartsAndStops(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("database.path", filepath.Join(t.TempDir(), "netpad.db"))
	v.Set("monitor.threads", 2)
	v.Set("monitor.planner-sleep", "20ms")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, v, zaptest.NewLogger(t)) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRun_InvalidSettingsAreFatal(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("database.path", filepath.Join(t.TempDir(), "netpad.db"))
	v.Set("monitor.threads", 50)

	err := run(context.Background(), v, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestPrintVersion_ListsProbes(t *testing.T) {
	var buf bytes.Buffer
	printVersion(&buf)

	out := buf.String()
	assert.Contains(t, out, "probe ping 1.0.0: ICMP Ping Probe")
	assert.Contains(t, out, "probe snmp_info")
	assert.Less(t, strings.Index(out, "probe ping"), strings.Index(out, "probe snmp_info"), "registration order")
}
