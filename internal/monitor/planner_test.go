package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/HerbHall/netpad/internal/testutil"
	"github.com/HerbHall/netpad/pkg/models"
)

var plannerEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Sleep:               10 * time.Millisecond,
		DefaultPollInterval: 300,
		DefaultProbes:       []string{"ping", "snmp_info"},
	}
}

func newTestPlanner(t *testing.T, s Store, q *Queue, cfg PlannerConfig) (*Planner, *time.Time) {
	t.Helper()
	p := NewPlanner(s, q, nil, cfg, zaptest.NewLogger(t))
	now := plannerEpoch
	p.now = func() time.Time { return now }
	return p, &now
}

func drain(q *Queue) []Task {
	var out []Task
	for q.Len() > 0 {
		task, _ := q.Pop(context.Background())
		out = append(out, task)
	}
	return out
}

func TestPlanner_ForceEnqueuesDeviceWithoutPlanning(t *testing.T) {
	dev := testutil.NewDevice(testutil.WithPolling(3600, "ping"))
	s := newMemStore(dev)
	q := NewQueue(10)
	p, _ := newTestPlanner(t, s, q, testPlannerConfig())

	require.NoError(t, p.RunOnce(context.Background()))

	tasks := drain(q)
	require.Len(t, tasks, 1)
	assert.Equal(t, dev.ID, tasks[0].Device.ID)

	at, ok := s.planningFor(dev.ID)
	require.True(t, ok, "planning record created")
	assert.Equal(t, plannerEpoch, at)
}

func TestPlanner_DueAtExactInterval(t *testing.T) {
	dev := testutil.NewDevice(testutil.WithPolling(60, "ping"))
	s := newMemStore(dev)
	q := NewQueue(10)
	p, now := newTestPlanner(t, s, q, testPlannerConfig())
	ctx := context.Background()

	require.NoError(t, p.RunOnce(ctx))
	require.Len(t, drain(q), 1)

	*now = plannerEpoch.Add(59 * time.Second)
	require.NoError(t, p.RunOnce(ctx))
	assert.Empty(t, drain(q), "not due before the interval elapsed")

	*now = plannerEpoch.Add(60 * time.Second)
	require.NoError(t, p.RunOnce(ctx))
	assert.Len(t, drain(q), 1, "due when elapsed equals the interval")

	at, _ := s.planningFor(dev.ID)
	assert.Equal(t, plannerEpoch.Add(60*time.Second), at, "timestamp stamped at enqueue")
}

func TestPlanner_SkipsDisabledDevices(t *testing.T) {
	dev := testutil.NewDevice(testutil.WithPolling(60, "ping"), testutil.Disabled())
	s := newMemStore(dev)
	q := NewQueue(10)
	p, _ := newTestPlanner(t, s, q, testPlannerConfig())

	require.NoError(t, p.RunOnce(context.Background()))
	assert.Zero(t, q.Len())
}

func TestPlanner_RepairsMissingCoreConfigOnce(t *testing.T) {
	dev := testutil.NewDevice(testutil.WithMonitor(
		models.Attribute{Name: "Owner", Value: "noc"},
	))
	s := newMemStore(dev)
	q := NewQueue(10)

	core, logs := observer.New(zapcore.WarnLevel)
	p := NewPlanner(s, q, nil, testPlannerConfig(), zap.New(core))
	now := plannerEpoch
	p.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, p.RunOnce(ctx))

	cfg, err := s.GetMonitorConfig(ctx, dev.ID, CoreScope)
	require.NoError(t, err)
	attrs := cfg.Attributes()
	require.Len(t, attrs, 3)
	assert.Equal(t, "Owner", attrs[0].Name, "provisioned attributes keep their position")
	assert.Equal(t, models.Attribute{Name: models.AttrPollInterval, Value: "300"}, attrs[1])
	assert.Equal(t, models.Attribute{Name: models.AttrEnabledProbes, Value: "ping, snmp_info"}, attrs[2])

	repairs := logs.FilterMessage("device monitor configuration repaired from defaults")
	assert.Equal(t, 1, repairs.Len())

	tasks := drain(q)
	require.Len(t, tasks, 1)
	assert.Equal(t, []string{"ping", "snmp_info"}, tasks[0].Device.Monitor.EnabledProbes())

	now = now.Add(time.Hour)
	require.NoError(t, p.RunOnce(ctx))
	assert.Equal(t, 1, s.setConfigCalls(), "repair persisted exactly once")
	assert.Equal(t, 1, logs.FilterMessage("device monitor configuration repaired from defaults").Len())
}

func TestPlanner_DefaultsArePerInstance(t *testing.T) {
	q := NewQueue(10)
	a := NewPlanner(newMemStore(), q, nil, testPlannerConfig(), zap.NewNop())

	cfg := testPlannerConfig()
	cfg.DefaultPollInterval = 30
	cfg.DefaultProbes = []string{"ping"}
	b := NewPlanner(newMemStore(), q, nil, cfg, zap.NewNop())

	av, _ := a.defaults.Get(models.AttrPollInterval)
	bv, _ := b.defaults.Get(models.AttrPollInterval)
	assert.Equal(t, "300", av)
	assert.Equal(t, "30", bv)
}

func TestPlanner_BadPollIntervalSkipsOnlyThatDevice(t *testing.T) {
	bad := testutil.NewDevice(testutil.WithID("bad"), testutil.WithMonitor(
		models.Attribute{Name: models.AttrPollInterval, Value: "often"},
		models.Attribute{Name: models.AttrEnabledProbes, Value: "ping"},
	))
	good := testutil.NewDevice(testutil.WithID("good"), testutil.WithPolling(60, "ping"))
	s := newMemStore(bad, good)
	q := NewQueue(10)

	core, logs := observer.New(zapcore.ErrorLevel)
	p := NewPlanner(s, q, nil, testPlannerConfig(), zap.New(core))

	require.NoError(t, p.RunOnce(context.Background()))

	tasks := drain(q)
	require.Len(t, tasks, 1)
	assert.Equal(t, "good", tasks[0].Device.ID)
	assert.Equal(t, 1, logs.FilterMessage("skipping device for this pass").Len())

	_, planned := s.planningFor("bad")
	assert.False(t, planned)
}

func TestPlanner_ListFailure(t *testing.T) {
	s := newMemStore()
	s.listError = errors.New("disk on fire")
	p, _ := newTestPlanner(t, s, NewQueue(1), testPlannerConfig())

	err := p.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestPlanner_BackpressureBlocksThirdEnqueue(t *testing.T) {
	s := newMemStore(
		testutil.NewDevice(testutil.WithID("d1"), testutil.WithPolling(60, "ping")),
		testutil.NewDevice(testutil.WithID("d2"), testutil.WithPolling(60, "ping")),
		testutil.NewDevice(testutil.WithID("d3"), testutil.WithPolling(60, "ping")),
	)
	q := NewQueue(2)

	core, logs := observer.New(zapcore.WarnLevel)
	p := NewPlanner(s, q, nil, testPlannerConfig(), zap.New(core))

	done := make(chan error, 1)
	go func() { done <- p.RunOnce(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("RunOnce returned while the queue was full: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, 2, q.Len())
	_, planned := s.planningFor("d3")
	assert.False(t, planned, "d3 not stamped before it is enqueued")
	assert.Equal(t, 1, logs.FilterMessage("poller queue full, planner waiting").Len())

	// One worker drains a slot.
	first, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "d1", first.Device.ID)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunOnce still blocked after a slot was freed")
	}

	ids := []string{}
	for _, task := range drain(q) {
		ids = append(ids, task.Device.ID)
	}
	assert.Equal(t, []string{"d2", "d3"}, ids)
}

func TestPlanner_OverlapPreservedByDefault(t *testing.T) {
	dev := testutil.NewDevice(testutil.WithPolling(1, "ping"))
	s := newMemStore(dev)
	q := NewQueue(10)
	p, now := newTestPlanner(t, s, q, testPlannerConfig())
	ctx := context.Background()

	require.NoError(t, p.RunOnce(ctx))
	*now = now.Add(2 * time.Second)
	require.NoError(t, p.RunOnce(ctx))

	assert.Equal(t, 2, q.Len(), "device enqueued again while its first task is pending")
}

func TestPlanner_PreventOverlap(t *testing.T) {
	dev := testutil.NewDevice(testutil.WithPolling(1, "ping"))
	s := newMemStore(dev)
	q := NewQueue(10)
	inflight := NewInFlight()

	cfg := testPlannerConfig()
	cfg.PreventOverlap = true
	p := NewPlanner(s, q, inflight, cfg, zaptest.NewLogger(t))
	now := plannerEpoch
	p.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, p.RunOnce(ctx))
	assert.Equal(t, 1, inflight.Len(), "enqueued device tracked")

	now = now.Add(2 * time.Second)
	require.NoError(t, p.RunOnce(ctx))
	assert.Equal(t, 1, q.Len(), "in-flight device not re-enqueued")

	at, _ := s.planningFor(dev.ID)
	assert.Equal(t, plannerEpoch, at, "skipped device keeps its timestamp")

	drain(q)
	inflight.Release(dev.ID)
	require.NoError(t, p.RunOnce(ctx))
	assert.Equal(t, 1, q.Len())
}

func TestPlanner_RunStopsOnCancel(t *testing.T) {
	s := newMemStore(testutil.NewDevice(testutil.WithPolling(60, "ping")))
	q := NewQueue(10)
	p := NewPlanner(s, q, nil, testPlannerConfig(), zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return q.Len() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func testLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t)
}

func TestPlanner_ReleaseQueuedMakesDevicesDue(t *testing.T) {
	polled := testutil.NewDevice(testutil.WithID("polled"), testutil.WithPolling(300, "ping"))
	waiting := testutil.NewDevice(testutil.WithID("waiting"), testutil.WithPolling(300, "ping"))
	s := newMemStore(polled, waiting)
	q := NewQueue(10)
	inflight := NewInFlight()

	cfg := testPlannerConfig()
	cfg.PreventOverlap = true
	p := NewPlanner(s, q, inflight, cfg, zaptest.NewLogger(t))
	now := plannerEpoch
	p.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, p.RunOnce(ctx))
	require.Equal(t, 2, q.Len())

	// One device reaches a worker before shutdown.
	task, err := q.Pop(ctx)
	require.NoError(t, err)
	require.Equal(t, "polled", task.Device.ID)

	assert.Equal(t, 1, p.ReleaseQueued(ctx))
	assert.Zero(t, q.Len())
	assert.Equal(t, 1, inflight.Len(), "only the polled device stays in flight")

	at, _ := s.planningFor("waiting")
	assert.True(t, at.Before(plannerEpoch), "released device planning reset")
	at, _ = s.planningFor("polled")
	assert.Equal(t, plannerEpoch, at)

	// A fresh planner after restart enqueues the released device at once.
	restarted := NewPlanner(s, NewQueue(10), nil, testPlannerConfig(), zaptest.NewLogger(t))
	now = now.Add(time.Second)
	restarted.now = func() time.Time { return now }
	require.NoError(t, restarted.RunOnce(ctx))
	assert.Equal(t, 1, restarted.queue.Len())
}
