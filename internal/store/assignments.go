package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/popis/internal/model"
)

// TransferOptions carries the caller and policy for ledger writes.
type TransferOptions struct {
	// By is the id of the user making the move, recorded as assigned_by.
	By *int64
	// AllowInactive permits moving items whose active flag is false.
	AllowInactive bool
}

const assignmentSelect = `SELECT a.id, a.item_id, a.location_id, a.assigned_at, a.removed_at, a.assigned_by,
       i.name, l.name
FROM assignments a
JOIN items i ON i.id = a.item_id
JOIN locations l ON l.id = a.location_id`

func scanAssignment(s rowScanner) (model.Assignment, error) {
	var a model.Assignment
	var assignedBy sql.NullInt64
	err := s.Scan(&a.ID, &a.ItemID, &a.LocationID, &a.AssignedAt, &a.RemovedAt, &assignedBy,
		&a.ItemName, &a.LocationName)
	if assignedBy.Valid {
		a.AssignedBy = &assignedBy.Int64
	}
	return a, err
}

// Transfer moves an item to a location, closing its open assignment and
// opening a new one. Moving an item to the location it is already at writes
// nothing and returns the existing assignment.
func Transfer(ctx context.Context, db *sql.DB, itemID, locationID int64, opts TransferOptions) (*model.Assignment, error) {
	var a *model.Assignment
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		a, err = transferTx(ctx, tx, itemID, locationID, opts, time.Now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// BulkTransfer moves every item to one location. Either all items move or
// none do. Duplicate ids are collapsed; the result holds one assignment per
// distinct id in order of first appearance.
func BulkTransfer(ctx context.Context, db *sql.DB, itemIDs []int64, locationID int64, opts TransferOptions) ([]model.Assignment, error) {
	ids := dedupe(itemIDs)
	if len(ids) == 0 {
		return nil, invalid("item_ids", "no items to transfer")
	}

	var result []model.Assignment
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := getLocation(ctx, tx, locationID); err != nil {
			return err
		}
		for _, id := range ids {
			if err := checkTransferable(ctx, tx, id, opts); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		result = make([]model.Assignment, 0, len(ids))
		for _, id := range ids {
			a, err := transferTx(ctx, tx, id, locationID, opts, now)
			if err != nil {
				return err
			}
			result = append(result, *a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// transferTx performs a single move inside tx. Close and open share now.
func transferTx(ctx context.Context, tx *sql.Tx, itemID, locationID int64, opts TransferOptions, now time.Time) (*model.Assignment, error) {
	if err := checkTransferable(ctx, tx, itemID, opts); err != nil {
		return nil, err
	}
	if _, err := getLocation(ctx, tx, locationID); err != nil {
		return nil, err
	}

	open, err := openAssignment(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}

	if open != nil {
		if open.LocationID == locationID {
			return open, nil
		}
		if err := closeAssignment(ctx, tx, open, now); err != nil {
			return nil, err
		}
	}

	id, err := insertAssignment(ctx, tx, itemID, locationID, opts.By, now)
	if err != nil {
		return nil, err
	}
	return getAssignment(ctx, tx, id)
}

// closeAssignment stamps removed_at on a. Zero affected rows means another
// writer closed it first.
func closeAssignment(ctx context.Context, tx *sql.Tx, a *model.Assignment, now time.Time) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE assignments SET removed_at = ? WHERE id = ? AND removed_at IS NULL`,
		now, a.ID,
	)
	if err != nil {
		return fmt.Errorf("closing assignment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("closing assignment: %w", err)
	}
	if n == 0 {
		return &ConflictError{Reason: fmt.Sprintf("assignment %d of item %d was already closed", a.ID, a.ItemID)}
	}
	return nil
}

// insertAssignment opens a new assignment. idx_assignments_open rejects a
// second open row for the same item.
func insertAssignment(ctx context.Context, tx *sql.Tx, itemID, locationID int64, by *int64, now time.Time) (int64, error) {
	result, err := tx.ExecContext(ctx,
		`INSERT INTO assignments (item_id, location_id, assigned_at, assigned_by) VALUES (?, ?, ?, ?)`,
		itemID, locationID, now, by,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, &ConflictError{Reason: fmt.Sprintf("item %d already has an open assignment", itemID)}
		}
		return 0, fmt.Errorf("opening assignment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting assignment id: %w", err)
	}
	return id, nil
}

// checkTransferable verifies the item exists and, unless the policy allows
// it, that it is active.
func checkTransferable(ctx context.Context, q DBTX, itemID int64, opts TransferOptions) error {
	var active bool
	err := q.QueryRowContext(ctx, `SELECT active FROM items WHERE id = ?`, itemID).Scan(&active)
	if err == sql.ErrNoRows {
		return notFound("item", itemID)
	}
	if err != nil {
		return fmt.Errorf("checking item: %w", err)
	}
	if !active && !opts.AllowInactive {
		return invalid("item_id", "item %d is inactive", itemID)
	}
	return nil
}

func openAssignment(ctx context.Context, q DBTX, itemID int64) (*model.Assignment, error) {
	a, err := scanAssignment(q.QueryRowContext(ctx,
		assignmentSelect+` WHERE a.item_id = ? AND a.removed_at IS NULL`, itemID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding open assignment: %w", err)
	}
	return &a, nil
}

func getAssignment(ctx context.Context, q DBTX, id int64) (*model.Assignment, error) {
	a, err := scanAssignment(q.QueryRowContext(ctx, assignmentSelect+` WHERE a.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, notFound("assignment", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting assignment: %w", err)
	}
	return &a, nil
}

// History returns all assignments of an item, newest first.
func History(ctx context.Context, db *sql.DB, itemID int64) ([]model.Assignment, error) {
	if ok, err := exists(ctx, db, `SELECT COUNT(*) FROM items WHERE id = ?`, itemID); err != nil {
		return nil, fmt.Errorf("checking item: %w", err)
	} else if !ok {
		return nil, notFound("item", itemID)
	}

	rows, err := db.QueryContext(ctx,
		assignmentSelect+` WHERE a.item_id = ? ORDER BY a.assigned_at DESC, a.id DESC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var history []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}
		history = append(history, a)
	}
	return history, rows.Err()
}

// CurrentLocation returns the location an item is at, or nil when the item
// has never been assigned.
func CurrentLocation(ctx context.Context, db *sql.DB, itemID int64) (*model.Location, error) {
	item, err := GetItem(ctx, db, itemID)
	if err != nil {
		return nil, err
	}
	return item.CurrentLocation, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
