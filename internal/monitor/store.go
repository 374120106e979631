package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/netpad/internal/store"
	"github.com/HerbHall/netpad/pkg/models"
	"github.com/google/uuid"
)

// MonitorStore implements Store on the shared SQLite database.
type MonitorStore struct {
	db *sql.DB
}

// NewMonitorStore creates a MonitorStore backed by the given database.
func NewMonitorStore(db *sql.DB) *MonitorStore {
	return &MonitorStore{db: db}
}

// -- Devices --

// InsertDevice provisions a device together with its addresses and core
// monitor configuration. An empty ID is replaced with a new UUID.
func (s *MonitorStore) InsertDevice(ctx context.Context, d *models.Device) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	return store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO devices (id, hostname, description, monitor_enabled, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			d.ID, d.Hostname, d.Description, boolToInt(d.MonitorEnabled), d.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert device: %w", err)
		}
		for i := range d.Addresses {
			d.Addresses[i].DeviceID = d.ID
			if err := insertAddress(ctx, tx, &d.Addresses[i]); err != nil {
				return err
			}
		}
		return replaceConfig(ctx, tx, d.ID, CoreScope, d.Monitor)
	})
}

// InsertAddress adds an address to an existing device.
func (s *MonitorStore) InsertAddress(ctx context.Context, a *models.Address) error {
	return store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return insertAddress(ctx, tx, a)
	})
}

func insertAddress(ctx context.Context, tx *sql.Tx, a *models.Address) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO device_addresses (device_id, version, address, enabled, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.DeviceID, a.Version, a.Address, boolToInt(a.Enabled), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert address id: %w", err)
	}
	a.ID = id
	return nil
}

// ListDevices returns devices with their addresses and core monitor
// configuration, ordered by creation time.
func (s *MonitorStore) ListDevices(ctx context.Context, enabledOnly bool) ([]models.Device, error) {
	query := `SELECT id, hostname, description, monitor_enabled, created_at FROM devices`
	if enabledOnly {
		query += ` WHERE monitor_enabled = 1`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	var devices []models.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list devices: %w", err)
	}
	rows.Close()

	// Details are loaded after the cursor is closed; the pool has one connection.
	for i := range devices {
		if err := s.loadDeviceDetails(ctx, &devices[i]); err != nil {
			return nil, err
		}
	}
	return devices, nil
}

// GetDevice returns a device by ID. Returns nil, nil if not found.
func (s *MonitorStore) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, hostname, description, monitor_enabled, created_at
		FROM devices WHERE id = ?`, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get device: %w", err)
	}
	if err := s.loadDeviceDetails(ctx, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(sc scanner) (models.Device, error) {
	var d models.Device
	var enabled int
	err := sc.Scan(&d.ID, &d.Hostname, &d.Description, &enabled, &d.CreatedAt)
	d.MonitorEnabled = enabled != 0
	return d, err
}

func (s *MonitorStore) loadDeviceDetails(ctx context.Context, d *models.Device) error {
	addrs, err := s.listAddresses(ctx, d.ID)
	if err != nil {
		return err
	}
	d.Addresses = addrs

	cfg, err := s.GetMonitorConfig(ctx, d.ID, CoreScope)
	if err != nil {
		return err
	}
	d.Monitor = cfg
	return nil
}

func (s *MonitorStore) listAddresses(ctx context.Context, deviceID string) ([]models.Address, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, version, address, enabled, created_at
		FROM device_addresses WHERE device_id = ? ORDER BY id`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	var addrs []models.Address
	for rows.Next() {
		var a models.Address
		var enabled int
		if err := rows.Scan(&a.ID, &a.DeviceID, &a.Version, &a.Address, &enabled, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		a.Enabled = enabled != 0
		addrs = append(addrs, a)
	}
	return addrs, rows.Err()
}

// -- Monitor configuration --

// GetMonitorConfig returns the attributes stored for a device under scope,
// in the order they were first written.
func (s *MonitorStore) GetMonitorConfig(ctx context.Context, deviceID, scope string) (models.MonitorConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT attribute_name, attribute_value FROM monitor_configuration
		WHERE device_id = ? AND probe_name = ? ORDER BY id`, deviceID, scope)
	if err != nil {
		return models.MonitorConfig{}, fmt.Errorf("get monitor config: %w", err)
	}
	defer rows.Close()

	var attrs []models.Attribute
	for rows.Next() {
		var a models.Attribute
		if err := rows.Scan(&a.Name, &a.Value); err != nil {
			return models.MonitorConfig{}, fmt.Errorf("scan monitor config: %w", err)
		}
		attrs = append(attrs, a)
	}
	if err := rows.Err(); err != nil {
		return models.MonitorConfig{}, fmt.Errorf("get monitor config: %w", err)
	}
	return models.NewMonitorConfig(attrs...), nil
}

// SetMonitorConfig replaces the attributes stored under scope with cfg.
// Existing attributes keep their position; attributes absent from cfg are
// removed.
func (s *MonitorStore) SetMonitorConfig(ctx context.Context, deviceID, scope string, cfg models.MonitorConfig) error {
	return store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return replaceConfig(ctx, tx, deviceID, scope, cfg)
	})
}

func replaceConfig(ctx context.Context, tx *sql.Tx, deviceID, scope string, cfg models.MonitorConfig) error {
	keep := make(map[string]bool, cfg.Len())
	for _, a := range cfg.Attributes() {
		keep[a.Name] = true
		_, err := tx.ExecContext(ctx, `
			INSERT INTO monitor_configuration (device_id, probe_name, attribute_name, attribute_value)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(device_id, probe_name, attribute_name)
			DO UPDATE SET attribute_value = excluded.attribute_value`,
			deviceID, scope, a.Name, a.Value,
		)
		if err != nil {
			return fmt.Errorf("upsert monitor attribute %q: %w", a.Name, err)
		}
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT attribute_name FROM monitor_configuration
		WHERE device_id = ? AND probe_name = ?`, deviceID, scope)
	if err != nil {
		return fmt.Errorf("list monitor attributes: %w", err)
	}
	var stale []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("scan monitor attribute: %w", err)
		}
		if !keep[name] {
			stale = append(stale, name)
		}
	}
	rows.Close()

	for _, name := range stale {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM monitor_configuration
			WHERE device_id = ? AND probe_name = ? AND attribute_name = ?`,
			deviceID, scope, name)
		if err != nil {
			return fmt.Errorf("delete monitor attribute %q: %w", name, err)
		}
	}
	return nil
}

// -- Poll records --

// CreatePollRecord opens a poll record for a device and returns its ID.
func (s *MonitorStore) CreatePollRecord(ctx context.Context, deviceID string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monitor_polls (id, device_id, started_at) VALUES (?, ?, ?)`,
		id, deviceID, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("create poll record: %w", err)
	}
	return id, nil
}

// FinalizePollRecord stores the total time and per-probe outcomes.
func (s *MonitorStore) FinalizePollRecord(ctx context.Context, id string, stats models.PollStats) error {
	results, err := json.Marshal(stats.Probes)
	if err != nil {
		return fmt.Errorf("encode poll results: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE monitor_polls SET finalized_at = ?, poll_time_ms = ?, results = ?
		WHERE id = ?`,
		time.Now().UTC(), models.Millis(stats.TotalTime), string(results), id,
	)
	if err != nil {
		return fmt.Errorf("finalize poll record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finalize poll record: %q not found", id)
	}
	return nil
}

// ListPollRecords returns the most recent poll records for a device,
// newest first.
func (s *MonitorStore) ListPollRecords(ctx context.Context, deviceID string, limit int) ([]models.PollRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, started_at, finalized_at, poll_time_ms, results
		FROM monitor_polls WHERE device_id = ?
		ORDER BY started_at DESC LIMIT ?`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list poll records: %w", err)
	}
	defer rows.Close()

	var records []models.PollRecord
	for rows.Next() {
		var r models.PollRecord
		var finalized sql.NullTime
		var pollTime sql.NullFloat64
		var results sql.NullString
		if err := rows.Scan(&r.ID, &r.DeviceID, &r.StartedAt, &finalized, &pollTime, &results); err != nil {
			return nil, fmt.Errorf("scan poll record: %w", err)
		}
		if finalized.Valid {
			t := finalized.Time
			r.FinalizedAt = &t
		}
		if pollTime.Valid {
			ms := pollTime.Float64
			r.PollTimeMs = &ms
		}
		if results.Valid && results.String != "" {
			if err := json.Unmarshal([]byte(results.String), &r.Probes); err != nil {
				return nil, fmt.Errorf("decode poll results: %w", err)
			}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// UpsertLastResult overwrites the device's latest poll snapshot.
func (s *MonitorStore) UpsertLastResult(ctx context.Context, deviceID string, stats models.PollStats) error {
	results, err := json.Marshal(stats.Probes)
	if err != nil {
		return fmt.Errorf("encode last result: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO monitor_last_results (device_id, poll_time_ms, results, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			poll_time_ms = excluded.poll_time_ms,
			results = excluded.results,
			updated_at = excluded.updated_at`,
		deviceID, models.Millis(stats.TotalTime), string(results), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert last result: %w", err)
	}
	return nil
}

// GetLastResult returns the latest poll snapshot. Returns nil, nil if the
// device has never been polled.
func (s *MonitorStore) GetLastResult(ctx context.Context, deviceID string) (*models.LastResult, error) {
	var r models.LastResult
	var results string
	err := s.db.QueryRowContext(ctx, `
		SELECT device_id, poll_time_ms, results, updated_at
		FROM monitor_last_results WHERE device_id = ?`, deviceID,
	).Scan(&r.DeviceID, &r.PollTimeMs, &results, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last result: %w", err)
	}
	if err := json.Unmarshal([]byte(results), &r.Probes); err != nil {
		return nil, fmt.Errorf("decode last result: %w", err)
	}
	return &r, nil
}

// -- Planning --

// GetPlanning returns the device's planning record. Returns nil, nil if
// the device has never been enqueued.
func (s *MonitorStore) GetPlanning(ctx context.Context, deviceID string) (*models.DevicePlanning, error) {
	var p models.DevicePlanning
	err := s.db.QueryRowContext(ctx, `
		SELECT device_id, last_enqueue_timestamp FROM monitor_planning WHERE device_id = ?`,
		deviceID,
	).Scan(&p.DeviceID, &p.LastEnqueueTimestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get planning: %w", err)
	}
	return &p, nil
}

// CreatePlanning inserts the first planning record for a device.
func (s *MonitorStore) CreatePlanning(ctx context.Context, deviceID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monitor_planning (device_id, last_enqueue_timestamp) VALUES (?, ?)`,
		deviceID, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("create planning: %w", err)
	}
	return nil
}

// SetPlanning updates the last enqueue timestamp of a device.
func (s *MonitorStore) SetPlanning(ctx context.Context, deviceID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE monitor_planning SET last_enqueue_timestamp = ? WHERE device_id = ?`,
		at.UTC(), deviceID,
	)
	if err != nil {
		return fmt.Errorf("set planning: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set planning: no record for device %q", deviceID)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
