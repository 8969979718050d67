package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/popis/internal/model"
)

// CreateItemType creates a new item type.
func CreateItemType(ctx context.Context, db *sql.DB, name string) (*model.ItemType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "missing name")
	}

	result, err := db.ExecContext(ctx, `INSERT INTO item_types (name) VALUES (?)`, name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, invalid("name", "item type %q already exists", name)
		}
		return nil, fmt.Errorf("creating item type: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item type id: %w", err)
	}
	return &model.ItemType{ID: id, Name: name}, nil
}

// GetItemType returns an item type by ID.
func GetItemType(ctx context.Context, db *sql.DB, id int64) (*model.ItemType, error) {
	t := &model.ItemType{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name FROM item_types WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name)
	if err == sql.ErrNoRows {
		return nil, notFound("item type", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting item type: %w", err)
	}
	return t, nil
}

// FindItemType returns the item type with the given name, or nil.
func FindItemType(ctx context.Context, db *sql.DB, name string) (*model.ItemType, error) {
	t := &model.ItemType{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name FROM item_types WHERE name = ?`, strings.TrimSpace(name),
	).Scan(&t.ID, &t.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding item type: %w", err)
	}
	return t, nil
}

// ListItemTypes returns all item types ordered by name.
func ListItemTypes(ctx context.Context, db *sql.DB) ([]model.ItemType, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name FROM item_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing item types: %w", err)
	}
	defer rows.Close()

	var types []model.ItemType
	for rows.Next() {
		var t model.ItemType
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scanning item type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}
