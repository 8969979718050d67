package store

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/erazemk/popis/internal/model"
)

const itemSelect = `SELECT i.id, i.name, i.serial_number, i.inventory_number, i.item_type_id,
       i.description, i.purchase_date, i.cost, i.active, i.image_mime,
       i.created_at, i.updated_at,
       t.name, a.assigned_at, l.id, l.name, l.description, l.created_at
FROM items i
LEFT JOIN item_types t ON t.id = i.item_type_id
LEFT JOIN assignments a ON a.item_id = i.id AND a.removed_at IS NULL
LEFT JOIN locations l ON l.id = a.location_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(s rowScanner) (model.Item, error) {
	var item model.Item
	var serial, description, purchaseDate, imageMime, typeName sql.NullString
	var typeID, locID sql.NullInt64
	var locName, locDescription sql.NullString
	var assignedAt, locCreated *time.Time

	err := s.Scan(&item.ID, &item.Name, &serial, &item.InventoryNumber, &typeID,
		&description, &purchaseDate, &item.Cost, &item.Active, &imageMime,
		&item.CreatedAt, &item.UpdatedAt,
		&typeName, &assignedAt, &locID, &locName, &locDescription, &locCreated)
	if err != nil {
		return item, err
	}

	item.SerialNumber = serial.String
	item.Description = description.String
	item.ImageMime = imageMime.String
	item.ItemTypeName = typeName.String
	if typeID.Valid {
		item.ItemTypeID = &typeID.Int64
	}
	if purchaseDate.Valid && purchaseDate.String != "" {
		d, err := model.ParseDate(purchaseDate.String)
		if err != nil {
			return item, fmt.Errorf("item %d: %w", item.ID, err)
		}
		item.PurchaseDate = &d
	}
	if locID.Valid {
		item.CurrentLocation = &model.Location{
			ID:          locID.Int64,
			Name:        locName.String,
			Description: locDescription.String,
		}
		if locCreated != nil {
			item.CurrentLocation.CreatedAt = *locCreated
		}
		item.AssignedAt = assignedAt
	}
	return item, nil
}

// CreateItem validates and inserts a new item. The item starts unassigned.
func CreateItem(ctx context.Context, db *sql.DB, in model.ItemInput) (*model.Item, error) {
	var id int64
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		id, err = insertItem(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return GetItem(ctx, db, id)
}

// CreateItemAt creates an item and, when locationID is non-nil, opens its
// first assignment there. Both writes commit together or not at all.
func CreateItemAt(ctx context.Context, db *sql.DB, in model.ItemInput, locationID *int64, opts TransferOptions) (*model.Item, error) {
	var id int64
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		id, err = insertItem(ctx, tx, in)
		if err != nil {
			return err
		}
		if locationID == nil {
			return nil
		}
		_, err = transferTx(ctx, tx, id, *locationID, opts, time.Now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	return GetItem(ctx, db, id)
}

func insertItem(ctx context.Context, q DBTX, in model.ItemInput) (int64, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.InventoryNumber = strings.TrimSpace(in.InventoryNumber)
	in.SerialNumber = strings.TrimSpace(in.SerialNumber)

	if err := validateItem(ctx, q, 0, in); err != nil {
		return 0, err
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	now := time.Now().UTC()
	result, err := q.ExecContext(ctx,
		`INSERT INTO items (name, serial_number, inventory_number, item_type_id, description,
		                    purchase_date, cost, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Name, nullString(in.SerialNumber), in.InventoryNumber, in.ItemTypeID, nullString(in.Description),
		dateValue(in.PurchaseDate), in.Cost, active, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, invalid("inventory_number", "duplicate inventory or serial number")
		}
		return 0, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting item id: %w", err)
	}
	return id, nil
}

// validateItem checks required fields, cost, item type and uniqueness.
// selfID excludes the item being updated from the uniqueness checks.
func validateItem(ctx context.Context, q DBTX, selfID int64, in model.ItemInput) error {
	if in.Name == "" {
		return invalid("name", "missing name")
	}
	if in.InventoryNumber == "" {
		return invalid("inventory_number", "missing inventory number")
	}
	if in.Cost.IsNegative() {
		return invalid("cost", "cost must not be negative")
	}

	if in.ItemTypeID != nil {
		ok, err := exists(ctx, q, `SELECT COUNT(*) FROM item_types WHERE id = ?`, *in.ItemTypeID)
		if err != nil {
			return fmt.Errorf("checking item type: %w", err)
		}
		if !ok {
			return invalid("item_type_id", "unknown item type %d", *in.ItemTypeID)
		}
	}

	dup, err := exists(ctx, q,
		`SELECT COUNT(*) FROM items WHERE inventory_number = ? AND id != ?`,
		in.InventoryNumber, selfID)
	if err != nil {
		return fmt.Errorf("checking inventory number: %w", err)
	}
	if dup {
		return invalid("inventory_number", "duplicate inventory number %q", in.InventoryNumber)
	}

	if in.SerialNumber != "" {
		dup, err := exists(ctx, q,
			`SELECT COUNT(*) FROM items WHERE serial_number = ? AND id != ?`,
			in.SerialNumber, selfID)
		if err != nil {
			return fmt.Errorf("checking serial number: %w", err)
		}
		if dup {
			return invalid("serial_number", "duplicate serial number %q", in.SerialNumber)
		}
	}

	return nil
}

// GetItem returns an item with its current location.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	return getItem(ctx, db, id)
}

func getItem(ctx context.Context, q DBTX, id int64) (*model.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx, itemSelect+` WHERE i.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, notFound("item", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return &item, nil
}

// likeEscaper makes user text match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Items returns a lazy sequence of items in creation order. Iteration stops
// at the first error, which is yielded with a zero item.
func Items(ctx context.Context, db *sql.DB, filter model.ItemFilter) iter.Seq2[model.Item, error] {
	return func(yield func(model.Item, error) bool) {
		query := itemSelect + ` WHERE 1=1`
		var args []any

		if filter.Active != nil {
			query += ` AND i.active = ?`
			args = append(args, *filter.Active)
		}
		if q := strings.TrimSpace(filter.Query); q != "" {
			like := "%" + likeEscaper.Replace(q) + "%"
			query += ` AND (i.name LIKE ? ESCAPE '\' OR i.serial_number LIKE ? ESCAPE '\' OR i.inventory_number LIKE ? ESCAPE '\')`
			args = append(args, like, like, like)
		}
		query += ` ORDER BY i.id`

		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(model.Item{}, fmt.Errorf("listing items: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			item, err := scanItem(rows)
			if err != nil {
				yield(model.Item{}, fmt.Errorf("scanning item: %w", err))
				return
			}
			if !yield(item, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.Item{}, fmt.Errorf("listing items: %w", err))
		}
	}
}

// ListItems collects Items into a slice.
func ListItems(ctx context.Context, db *sql.DB, filter model.ItemFilter) ([]model.Item, error) {
	var items []model.Item
	for item, err := range Items(ctx, db, filter) {
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// UpdateItem applies a partial update to an item.
func UpdateItem(ctx context.Context, db *sql.DB, id int64, upd model.ItemUpdate) (*model.Item, error) {
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		cur, err := getItem(ctx, tx, id)
		if err != nil {
			return err
		}

		in := model.ItemInput{
			Name:            cur.Name,
			SerialNumber:    cur.SerialNumber,
			InventoryNumber: cur.InventoryNumber,
			ItemTypeID:      cur.ItemTypeID,
			Description:     cur.Description,
			PurchaseDate:    cur.PurchaseDate,
			Cost:            cur.Cost,
			Active:          &cur.Active,
		}
		if upd.Name != nil {
			in.Name = strings.TrimSpace(*upd.Name)
		}
		if upd.SerialNumber != nil {
			in.SerialNumber = strings.TrimSpace(*upd.SerialNumber)
		}
		if upd.InventoryNumber != nil {
			in.InventoryNumber = strings.TrimSpace(*upd.InventoryNumber)
		}
		if upd.ItemTypeID != nil {
			in.ItemTypeID = upd.ItemTypeID
			if *upd.ItemTypeID == 0 {
				in.ItemTypeID = nil
			}
		}
		if upd.Description != nil {
			in.Description = *upd.Description
		}
		if upd.PurchaseDate != nil {
			in.PurchaseDate = upd.PurchaseDate
			if upd.PurchaseDate.IsZero() {
				in.PurchaseDate = nil
			}
		}
		if upd.Cost != nil {
			in.Cost = *upd.Cost
		}
		if upd.Active != nil {
			in.Active = upd.Active
		}

		if err := validateItem(ctx, tx, id, in); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE items SET name = ?, serial_number = ?, inventory_number = ?, item_type_id = ?,
			                  description = ?, purchase_date = ?, cost = ?, active = ?, updated_at = ?
			 WHERE id = ?`,
			in.Name, nullString(in.SerialNumber), in.InventoryNumber, in.ItemTypeID,
			nullString(in.Description), dateValue(in.PurchaseDate), in.Cost, *in.Active, time.Now().UTC(),
			id,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return invalid("inventory_number", "duplicate inventory or serial number")
			}
			return fmt.Errorf("updating item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return GetItem(ctx, db, id)
}

// SetItemImage sets an item's image data.
func SetItemImage(ctx context.Context, db *sql.DB, id int64, image []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET image = ?, image_mime = ?, updated_at = ? WHERE id = ?`,
		image, mime, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return notFound("item", id)
	}
	return nil
}

// GetItemImage returns an item's image data and MIME type. An item without
// an image returns nil data and no error.
func GetItemImage(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM items WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", notFound("item", id)
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, nil
}

func exists(ctx context.Context, q DBTX, query string, args ...any) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func dateValue(d *model.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}
