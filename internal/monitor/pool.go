package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/HerbHall/netpad/internal/registry"
	"github.com/HerbHall/netpad/pkg/models"
	"github.com/HerbHall/netpad/pkg/probe"
	"go.uber.org/zap"
)

// WorkerError is an escalated probe failure: an error that is not
// probe.ErrProbeFailed, or a panic. It aborts the device poll, leaves the
// poll record unfinalized, and ends the worker loop so the pool can
// restart it.
type WorkerError struct {
	Worker   int
	DeviceID string
	Probe    string
	Err      error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("poller-%d: probe %q on device %s: %v", e.Worker, e.Probe, e.DeviceID, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }

// DepsFunc returns the dependencies handed to a probe constructor.
type DepsFunc func(probeName string) probe.Dependencies

// Pool runs a fixed number of poller workers over a shared queue.
type Pool struct {
	store    Store
	probes   ProbeSource
	queue    *Queue
	inflight *InFlight
	deps     DepsFunc
	workers  int
	logger   *zap.Logger

	restartDelay time.Duration
}

// NewPool creates a pool of workers. inflight may be nil.
func NewPool(store Store, probes ProbeSource, queue *Queue, inflight *InFlight, deps DepsFunc, workers int, logger *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		store:        store,
		probes:       probes,
		queue:        queue,
		inflight:     inflight,
		deps:         deps,
		workers:      workers,
		logger:       logger,
		restartDelay: time.Second,
	}
}

// Run starts the workers and blocks until ctx is cancelled or the queue is
// closed. A worker finishes the device it is polling before it exits.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("poller pool started", zap.Int("workers", p.workers), zap.Int("queue_capacity", p.queue.Cap()))

	var wg sync.WaitGroup
	for i := 1; i <= p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.supervise(ctx, id)
		}(i)
	}
	wg.Wait()

	fields := []zap.Field{zap.Int("queued_tasks", p.queue.Len())}
	if p.inflight != nil {
		fields = append(fields, zap.Int("in_flight", p.inflight.Len()))
	}
	p.logger.Info("poller pool stopped", fields...)
	return nil
}

// supervise keeps one worker alive, restarting it after escalations.
func (p *Pool) supervise(ctx context.Context, id int) {
	logger := p.logger.Named(fmt.Sprintf("poller-%d", id))
	for {
		err := p.work(ctx, id, logger)

		var werr *WorkerError
		if !errors.As(err, &werr) {
			return
		}
		workerFailures.Inc()
		logger.Error("worker failed, restarting",
			zap.String("device_id", werr.DeviceID),
			zap.String("probe", werr.Probe),
			zap.Error(werr.Err),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.restartDelay):
		}
	}
}

// work pops tasks until the queue closes, ctx ends, or a probe escalates.
func (p *Pool) work(ctx context.Context, id int, logger *zap.Logger) error {
	for {
		task, err := p.queue.Pop(ctx)
		if err != nil {
			return err
		}

		// In-flight polls run to completion on shutdown.
		pollCtx := context.WithoutCancel(ctx)
		err = p.pollTask(pollCtx, id, task, logger)
		if p.inflight != nil {
			p.inflight.Release(task.Device.ID)
		}

		var werr *WorkerError
		if errors.As(err, &werr) {
			return err
		}
		if err != nil {
			logger.Error("device poll failed",
				zap.String("device_id", task.Device.ID),
				zap.String("hostname", task.Device.Hostname),
				zap.Error(err),
			)
		}
	}
}

func (p *Pool) pollTask(ctx context.Context, worker int, task Task, logger *zap.Logger) error {
	// The queued snapshot may be stale; poll the device as stored now.
	device, err := p.store.GetDevice(ctx, task.Device.ID)
	if err != nil {
		return fmt.Errorf("reload device: %w", err)
	}
	switch {
	case device == nil:
		logger.Info("device removed while queued, skipping", zap.String("device_id", task.Device.ID))
		return nil
	case !device.MonitorEnabled:
		logger.Info("device monitoring disabled while queued, skipping",
			zap.String("device_id", device.ID),
			zap.String("hostname", device.Hostname),
		)
		return nil
	}

	logger.Debug("polling device",
		zap.String("device_id", device.ID),
		zap.String("hostname", device.Hostname),
		zap.Duration("queued", time.Since(task.EnqueuedAt)),
	)
	_, err = p.PollDevice(ctx, *device, logger)
	var werr *WorkerError
	if errors.As(err, &werr) {
		werr.Worker = worker
	}
	return err
}

// PollDevice runs every enabled probe against device, in order, and
// persists the poll record and last-result snapshot.
func (p *Pool) PollDevice(ctx context.Context, device models.Device, logger *zap.Logger) (models.PollStats, error) {
	names := device.Monitor.EnabledProbes()

	recordID, err := p.store.CreatePollRecord(ctx, device.ID)
	if err != nil {
		return models.PollStats{}, err
	}

	stats := models.PollStats{Probes: make(map[string]models.ProbeOutcome, len(names))}
	start := time.Now()

	for _, name := range names {
		outcome, ran, err := p.runProbe(ctx, device, name, logger)
		if err != nil {
			return stats, err
		}
		if ran {
			stats.Probes[name] = outcome
		}
	}

	stats.TotalTime = time.Since(start)
	if err := p.store.FinalizePollRecord(ctx, recordID, stats); err != nil {
		return stats, err
	}
	if err := p.store.UpsertLastResult(ctx, device.ID, stats); err != nil {
		return stats, err
	}

	pollsTotal.Inc()
	pollDuration.Observe(stats.TotalTime.Seconds())
	logger.Debug("device poll finished",
		zap.String("device_id", device.ID),
		zap.Duration("elapsed", stats.TotalTime),
		zap.Int("probes", len(stats.Probes)),
	)
	return stats, nil
}

// runProbe executes one probe. ran is false when the probe was skipped.
// A non-nil error is always a *WorkerError or a persistence failure.
func (p *Pool) runProbe(ctx context.Context, device models.Device, name string, logger *zap.Logger) (outcome models.ProbeOutcome, ran bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("probe panicked",
				zap.String("device_id", device.ID),
				zap.String("probe", name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = &WorkerError{DeviceID: device.ID, Probe: name, Err: fmt.Errorf("panic: %v", r)}
			ran = false
		}
	}()

	pr, err := p.probes.New(name, p.deps(name))
	if err != nil {
		if errors.Is(err, registry.ErrUnknownProbe) {
			logger.Error("unknown probe, skipping",
				zap.String("device_id", device.ID),
				zap.String("probe", name),
			)
			return outcome, false, nil
		}
		logger.Error("probe construction failed",
			zap.String("device_id", device.ID),
			zap.String("probe", name),
			zap.Error(err),
		)
		probeExecutions.WithLabelValues(name, outcomeSoft).Inc()
		return models.ProbeOutcome{Error: err.Error()}, true, nil
	}

	cfg, err := p.probeConfig(ctx, device, name, pr, logger)
	if err != nil {
		return outcome, false, err
	}

	start := time.Now()
	result, perr := pr.PollDevice(ctx, device, name, cfg)
	elapsed := time.Since(start)
	probeDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	outcome.ElapsedMs = models.Millis(elapsed)
	switch {
	case perr == nil:
		outcome.Success = result.Success
		outcome.Result = &result
		if result.Success {
			probeExecutions.WithLabelValues(name, outcomeSuccess).Inc()
		} else {
			probeExecutions.WithLabelValues(name, outcomeFailure).Inc()
		}
	case errors.Is(perr, probe.ErrProbeFailed):
		outcome.Error = perr.Error()
		probeExecutions.WithLabelValues(name, outcomeSoft).Inc()
		logger.Warn("probe failed",
			zap.String("device_id", device.ID),
			zap.String("probe", name),
			zap.Error(perr),
		)
	default:
		return outcome, false, &WorkerError{DeviceID: device.ID, Probe: name, Err: perr}
	}
	return outcome, true, nil
}

// probeConfig loads the probe-scoped configuration and persists a repaired
// copy when the probe asks for one.
func (p *Pool) probeConfig(ctx context.Context, device models.Device, name string, pr probe.Probe, logger *zap.Logger) (models.MonitorConfig, error) {
	cfg, err := p.store.GetMonitorConfig(ctx, device.ID, name)
	if err != nil {
		return cfg, err
	}

	repaired := pr.ValidateConfiguration(device, cfg)
	if repaired == nil {
		return cfg, nil
	}
	if err := p.store.SetMonitorConfig(ctx, device.ID, name, *repaired); err != nil {
		return cfg, fmt.Errorf("persist repaired %s config: %w", name, err)
	}
	configRepairs.WithLabelValues(name).Inc()
	logger.Warn("probe configuration repaired from defaults",
		zap.String("device_id", device.ID),
		zap.String("probe", name),
		zap.Int("attributes", repaired.Len()),
	)
	return *repaired, nil
}
