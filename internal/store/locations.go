package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/popis/internal/model"
)

// CreateLocation creates a new location.
func CreateLocation(ctx context.Context, db *sql.DB, name, description string) (*model.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "missing name")
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO locations (name, description) VALUES (?, ?)`,
		name, nullString(description),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, invalid("name", "location %q already exists", name)
		}
		return nil, fmt.Errorf("creating location: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting location id: %w", err)
	}

	return GetLocation(ctx, db, id)
}

// GetLocation returns a location by ID.
func GetLocation(ctx context.Context, db *sql.DB, id int64) (*model.Location, error) {
	return getLocation(ctx, db, id)
}

func getLocation(ctx context.Context, q DBTX, id int64) (*model.Location, error) {
	l := &model.Location{}
	var description sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM locations WHERE id = ?`, id,
	).Scan(&l.ID, &l.Name, &description, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, notFound("location", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting location: %w", err)
	}
	l.Description = description.String
	return l, nil
}

// FindLocation returns the location with the given name, or nil.
func FindLocation(ctx context.Context, db *sql.DB, name string) (*model.Location, error) {
	l := &model.Location{}
	var description sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM locations WHERE name = ?`, strings.TrimSpace(name),
	).Scan(&l.ID, &l.Name, &description, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding location: %w", err)
	}
	l.Description = description.String
	return l, nil
}

// ListLocations returns all locations ordered by name.
func ListLocations(ctx context.Context, db *sql.DB) ([]model.Location, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM locations ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	defer rows.Close()

	var locations []model.Location
	for rows.Next() {
		var l model.Location
		var description sql.NullString
		if err := rows.Scan(&l.ID, &l.Name, &description, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		l.Description = description.String
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// UpdateLocation renames a location and replaces its description.
func UpdateLocation(ctx context.Context, db *sql.DB, id int64, name, description string) (*model.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "missing name")
	}

	result, err := db.ExecContext(ctx,
		`UPDATE locations SET name = ?, description = ? WHERE id = ?`,
		name, nullString(description), id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, invalid("name", "location %q already exists", name)
		}
		return nil, fmt.Errorf("updating location: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, notFound("location", id)
	}

	return GetLocation(ctx, db, id)
}
