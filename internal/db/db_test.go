package db

import (
	"strings"
	"testing"
)

func TestDSNCarriesPragmas(t *testing.T) {
	got := dsn("inventory.sqlite3")
	if !strings.HasPrefix(got, "inventory.sqlite3?") {
		t.Fatalf("dsn should start with the path, got %q", got)
	}
	for _, want := range []string{"_txlock=immediate", "foreign_keys%281%29", "busy_timeout%285000%29"} {
		if !strings.Contains(got, want) {
			t.Errorf("dsn %q missing %q", got, want)
		}
	}
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	database := NewTestDB(t)

	if err := EnsureSchema(database); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}

	var n int
	err := database.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_assignments_open'`,
	).Scan(&n)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	if n != 1 {
		t.Errorf("expected open-assignment index, found %d", n)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	database := NewTestDB(t)

	_, err := database.Exec(
		`INSERT INTO assignments (item_id, location_id, assigned_at) VALUES (999, 999, CURRENT_TIMESTAMP)`,
	)
	if err == nil {
		t.Error("expected foreign key violation for dangling assignment")
	}
}
