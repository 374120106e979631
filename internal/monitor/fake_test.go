package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/HerbHall/netpad/pkg/models"
)

// memStore is an in-memory Store for planner and pool tests.
type memStore struct {
	mu        sync.Mutex
	devices   []models.Device
	configs   map[string]models.MonitorConfig // deviceID + "/" + scope
	planning  map[string]time.Time
	polls     map[string]*models.PollRecord
	last      map[string]models.PollStats
	setCalls  int
	listError error
}

func newMemStore(devices ...models.Device) *memStore {
	s := &memStore{
		configs:  make(map[string]models.MonitorConfig),
		planning: make(map[string]time.Time),
		polls:    make(map[string]*models.PollRecord),
		last:     make(map[string]models.PollStats),
	}
	for _, d := range devices {
		s.devices = append(s.devices, d)
		s.configs[configKey(d.ID, CoreScope)] = d.Monitor.Clone()
	}
	return s
}

func configKey(deviceID, scope string) string { return deviceID + "/" + scope }

func (s *memStore) ListDevices(_ context.Context, enabledOnly bool) ([]models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listError != nil {
		return nil, s.listError
	}
	var out []models.Device
	for _, d := range s.devices {
		if enabledOnly && !d.MonitorEnabled {
			continue
		}
		d.Monitor = s.configs[configKey(d.ID, CoreScope)].Clone()
		out = append(out, d)
	}
	return out, nil
}

func (s *memStore) GetDevice(_ context.Context, id string) (*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d.ID == id {
			d.Monitor = s.configs[configKey(d.ID, CoreScope)].Clone()
			return &d, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetMonitorConfig(_ context.Context, deviceID, scope string) (models.MonitorConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configs[configKey(deviceID, scope)].Clone(), nil
}

func (s *memStore) SetMonitorConfig(_ context.Context, deviceID, scope string, cfg models.MonitorConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++
	s.configs[configKey(deviceID, scope)] = cfg.Clone()
	return nil
}

func (s *memStore) CreatePollRecord(_ context.Context, deviceID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("poll-%d", len(s.polls)+1)
	s.polls[id] = &models.PollRecord{ID: id, DeviceID: deviceID, StartedAt: time.Now()}
	return id, nil
}

func (s *memStore) FinalizePollRecord(_ context.Context, id string, stats models.PollStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.polls[id]
	if !ok {
		return fmt.Errorf("poll %q not found", id)
	}
	now := time.Now()
	ms := models.Millis(stats.TotalTime)
	r.FinalizedAt = &now
	r.PollTimeMs = &ms
	r.Probes = stats.Probes
	return nil
}

func (s *memStore) UpsertLastResult(_ context.Context, deviceID string, stats models.PollStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[deviceID] = stats
	return nil
}

func (s *memStore) GetPlanning(_ context.Context, deviceID string) (*models.DevicePlanning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.planning[deviceID]
	if !ok {
		return nil, nil
	}
	return &models.DevicePlanning{DeviceID: deviceID, LastEnqueueTimestamp: at}, nil
}

func (s *memStore) CreatePlanning(_ context.Context, deviceID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.planning[deviceID]; ok {
		return fmt.Errorf("planning for %q exists", deviceID)
	}
	s.planning[deviceID] = at
	return nil
}

func (s *memStore) SetPlanning(_ context.Context, deviceID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.planning[deviceID]; !ok {
		return fmt.Errorf("no planning for %q", deviceID)
	}
	s.planning[deviceID] = at
	return nil
}

func (s *memStore) planningFor(deviceID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.planning[deviceID]
	return at, ok
}

func (s *memStore) pollRecords() []models.PollRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PollRecord, 0, len(s.polls))
	for _, r := range s.polls {
		out = append(out, *r)
	}
	return out
}

func (s *memStore) lastResult(deviceID string) (models.PollStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.last[deviceID]
	return st, ok
}

func (s *memStore) setConfigCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setCalls
}
