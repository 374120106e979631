package monitor

import (
	"database/sql"

	"github.com/HerbHall/netpad/internal/store"
)

// Migrations returns the schema steps owned by the monitor component.
func Migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create device inventory tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS devices (
						id TEXT PRIMARY KEY,
						hostname TEXT NOT NULL,
						description TEXT NOT NULL DEFAULT '',
						monitor_enabled INTEGER NOT NULL DEFAULT 1,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_devices_monitor_enabled ON devices(monitor_enabled)`,

					`CREATE TABLE IF NOT EXISTS device_addresses (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
						version INTEGER NOT NULL DEFAULT 4,
						address TEXT NOT NULL,
						enabled INTEGER NOT NULL DEFAULT 1,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_device_addresses_device ON device_addresses(device_id)`,
				}
				return execAll(tx, stmts)
			},
		},
		{
			Version:     2,
			Description: "create monitor configuration and planning tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS monitor_configuration (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
						probe_name TEXT NOT NULL DEFAULT '',
						attribute_name TEXT NOT NULL,
						attribute_value TEXT NOT NULL,
						UNIQUE(device_id, probe_name, attribute_name)
					)`,

					`CREATE TABLE IF NOT EXISTS monitor_planning (
						device_id TEXT PRIMARY KEY REFERENCES devices(id) ON DELETE CASCADE,
						last_enqueue_timestamp DATETIME NOT NULL
					)`,
				}
				return execAll(tx, stmts)
			},
		},
		{
			Version:     3,
			Description: "create poll result tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS monitor_polls (
						id TEXT PRIMARY KEY,
						device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
						started_at DATETIME NOT NULL,
						finalized_at DATETIME,
						poll_time_ms REAL,
						results TEXT
					)`,
					`CREATE INDEX IF NOT EXISTS idx_monitor_polls_device_time ON monitor_polls(device_id, started_at)`,

					`CREATE TABLE IF NOT EXISTS monitor_last_results (
						device_id TEXT PRIMARY KEY REFERENCES devices(id) ON DELETE CASCADE,
						poll_time_ms REAL NOT NULL,
						results TEXT NOT NULL,
						updated_at DATETIME NOT NULL
					)`,
				}
				return execAll(tx, stmts)
			},
		},
	}
}

func execAll(tx *sql.Tx, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
