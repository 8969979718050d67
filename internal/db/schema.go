package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS item_types (
    id   INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS locations (
    id          INTEGER PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    description TEXT,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS items (
    id               INTEGER PRIMARY KEY,
    name             TEXT NOT NULL,
    serial_number    TEXT,
    inventory_number TEXT NOT NULL,
    item_type_id     INTEGER REFERENCES item_types(id),
    description      TEXT,
    purchase_date    TEXT,
    cost             TEXT NOT NULL DEFAULT '0',
    active           INTEGER NOT NULL DEFAULT 1,
    image            BLOB,
    image_mime       TEXT,
    created_at       DATETIME NOT NULL,
    updated_at       DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_items_inventory_number
    ON items(inventory_number);

CREATE UNIQUE INDEX IF NOT EXISTS idx_items_serial_number
    ON items(serial_number) WHERE serial_number IS NOT NULL;

CREATE TABLE IF NOT EXISTS assignments (
    id          INTEGER PRIMARY KEY,
    item_id     INTEGER NOT NULL REFERENCES items(id),
    location_id INTEGER NOT NULL REFERENCES locations(id),
    assigned_at DATETIME NOT NULL,
    removed_at  DATETIME,
    assigned_by INTEGER REFERENCES users(id)
);

-- At most one open assignment per item.
CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_open
    ON assignments(item_id) WHERE removed_at IS NULL;

CREATE INDEX IF NOT EXISTS idx_assignments_item
    ON assignments(item_id, assigned_at);
`

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: per-location lookups for the location reports.
	`CREATE INDEX IF NOT EXISTS idx_assignments_location
	     ON assignments(location_id, removed_at)`,
}

// EnsureSchema creates all tables and indexes if they don't already exist and
// applies pending migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
