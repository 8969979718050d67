package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

const jwtSecretKey = "jwt_secret"

// GetJWTSecret returns the stored signing secret, generating and storing a
// random one on first use.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	return getOrCreateSetting(ctx, db, jwtSecretKey, hex.EncodeToString(buf))
}

// getOrCreateSetting stores candidate under key unless a value already
// exists, then returns whichever value is stored. INSERT OR IGNORE followed
// by a read keeps concurrent first starts consistent.
func getOrCreateSetting(ctx context.Context, db *sql.DB, key, candidate string) (string, error) {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		key, candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing %s: %w", key, err)
	}

	var value string
	err = db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", key, err)
	}
	return value, nil
}
