package monitor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/HerbHall/netpad/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// PlannerConfig holds the planner's process-wide settings.
type PlannerConfig struct {
	// Sleep is the pause between two planning passes.
	Sleep time.Duration
	// DefaultPollInterval in seconds, used to repair devices without one.
	DefaultPollInterval int
	// DefaultProbes is used to repair devices without EnabledProbes.
	DefaultProbes []string
	// PreventOverlap skips devices that are still queued or being polled.
	PreventOverlap bool
}

// Planner decides which monitored devices are due and pushes them onto
// the poller queue.
type Planner struct {
	store    Store
	queue    *Queue
	inflight *InFlight
	cfg      PlannerConfig
	defaults models.MonitorConfig
	logger   *zap.Logger

	now       func() time.Time
	queueFull rate.Sometimes
}

// NewPlanner creates a planner. inflight may be nil when PreventOverlap is
// off.
func NewPlanner(store Store, queue *Queue, inflight *InFlight, cfg PlannerConfig, logger *zap.Logger) *Planner {
	defaults := models.NewMonitorConfig(
		models.Attribute{Name: models.AttrPollInterval, Value: strconv.Itoa(cfg.DefaultPollInterval)},
		models.Attribute{Name: models.AttrEnabledProbes, Value: models.JoinList(cfg.DefaultProbes)},
	)
	if cfg.PreventOverlap && inflight == nil {
		inflight = NewInFlight()
	}
	return &Planner{
		store:     store,
		queue:     queue,
		inflight:  inflight,
		cfg:       cfg,
		defaults:  defaults,
		logger:    logger,
		now:       time.Now,
		queueFull: rate.Sometimes{Interval: time.Minute},
	}
}

// Run plans passes until ctx is cancelled or the queue is closed.
func (p *Planner) Run(ctx context.Context) error {
	p.logger.Info("planner started",
		zap.Duration("sleep", p.cfg.Sleep),
		zap.Int("default_poll_interval", p.cfg.DefaultPollInterval),
		zap.Strings("default_probes", p.cfg.DefaultProbes),
		zap.Bool("prevent_overlap", p.cfg.PreventOverlap),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("planner stopped")
			return nil
		case <-timer.C:
		}

		if err := p.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrQueueClosed) {
				p.logger.Info("planner stopped")
				return nil
			}
			p.logger.Error("planning pass failed", zap.Error(err))
		}
		timer.Reset(p.cfg.Sleep)
	}
}

// RunOnce performs a single planning pass over every enabled device.
// Per-device failures are logged and skipped; the returned error reports
// a failure to list devices or to enqueue.
func (p *Planner) RunOnce(ctx context.Context) error {
	devices, err := p.store.ListDevices(ctx, true)
	if err != nil {
		return fmt.Errorf("list monitored devices: %w", err)
	}

	for i := range devices {
		if err := p.planDevice(ctx, devices[i]); err != nil {
			if errors.Is(err, ErrQueueClosed) || ctx.Err() != nil {
				return err
			}
			p.logger.Error("skipping device for this pass",
				zap.String("device_id", devices[i].ID),
				zap.String("hostname", devices[i].Hostname),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (p *Planner) planDevice(ctx context.Context, device models.Device) error {
	cfg, err := p.ensureCoreConfig(ctx, device)
	if err != nil {
		return err
	}
	device.Monitor = cfg

	interval, err := cfg.PollInterval()
	if err != nil {
		return fmt.Errorf("parse %s: %w", models.AttrPollInterval, err)
	}

	planning, err := p.store.GetPlanning(ctx, device.ID)
	if err != nil {
		return err
	}

	forced := planning == nil
	if !forced {
		elapsed := p.now().Sub(planning.LastEnqueueTimestamp)
		if elapsed < time.Duration(interval)*time.Second {
			return nil
		}
	}

	if p.cfg.PreventOverlap && !p.inflight.Acquire(device.ID) {
		p.logger.Debug("device still in flight, not re-enqueued",
			zap.String("device_id", device.ID),
			zap.String("hostname", device.Hostname),
		)
		return nil
	}

	if err := p.enqueue(ctx, device); err != nil {
		if p.cfg.PreventOverlap {
			p.inflight.Release(device.ID)
		}
		return err
	}

	stamp := p.now()
	if forced {
		err = p.store.CreatePlanning(ctx, device.ID, stamp)
	} else {
		err = p.store.SetPlanning(ctx, device.ID, stamp)
	}
	if err != nil {
		return fmt.Errorf("record enqueue time: %w", err)
	}

	p.logger.Debug("device enqueued",
		zap.String("device_id", device.ID),
		zap.String("hostname", device.Hostname),
		zap.Bool("forced", forced),
	)
	return nil
}

// releasedStamp is written to the planning record of a device that was
// queued but never polled; any poll interval has elapsed since then.
var releasedStamp = time.Unix(0, 0).UTC()

// ReleaseQueued closes the queue and makes every device still waiting in
// it due again, so the next pass or the next process start polls it
// without waiting a full interval. Call it after the planner and the
// workers have stopped. It returns the number of devices released.
func (p *Planner) ReleaseQueued(ctx context.Context) int {
	p.queue.Close()
	tasks := p.queue.Drain()
	for _, t := range tasks {
		if p.inflight != nil {
			p.inflight.Release(t.Device.ID)
		}
		planning, err := p.store.GetPlanning(ctx, t.Device.ID)
		if err == nil && planning != nil {
			err = p.store.SetPlanning(ctx, t.Device.ID, releasedStamp)
		}
		if err != nil {
			p.logger.Error("could not reset planning of unpolled device",
				zap.String("device_id", t.Device.ID),
				zap.Error(err),
			)
		}
	}
	if len(tasks) > 0 {
		p.logger.Info("released queued devices for the next start", zap.Int("devices", len(tasks)))
	}
	return len(tasks)
}

// enqueue pushes the device, blocking while the queue is full.
func (p *Planner) enqueue(ctx context.Context, device models.Device) error {
	task := Task{Device: device, EnqueuedAt: p.now()}
	if p.queue.TryPush(task) {
		deviceEnqueues.Inc()
		return nil
	}

	p.queueFull.Do(func() {
		p.logger.Warn("poller queue full, planner waiting",
			zap.Int("capacity", p.queue.Cap()),
			zap.String("device_id", device.ID),
		)
	})
	if err := p.queue.Push(ctx, task); err != nil {
		return err
	}
	deviceEnqueues.Inc()
	return nil
}

// ensureCoreConfig fills missing PollInterval and EnabledProbes from the
// planner defaults and persists the repaired configuration.
func (p *Planner) ensureCoreConfig(ctx context.Context, device models.Device) (models.MonitorConfig, error) {
	cfg := device.Monitor.Clone()
	var repaired []string
	for _, name := range []string{models.AttrPollInterval, models.AttrEnabledProbes} {
		if cfg.Has(name) {
			continue
		}
		value, _ := p.defaults.Get(name)
		cfg.Set(name, value)
		repaired = append(repaired, name)
	}
	if len(repaired) == 0 {
		return cfg, nil
	}

	if err := p.store.SetMonitorConfig(ctx, device.ID, CoreScope, cfg); err != nil {
		return cfg, fmt.Errorf("persist repaired monitor config: %w", err)
	}
	configRepairs.WithLabelValues("core").Inc()
	p.logger.Warn("device monitor configuration repaired from defaults",
		zap.String("device_id", device.ID),
		zap.String("hostname", device.Hostname),
		zap.Strings("attributes", repaired),
	)
	return cfg, nil
}
