package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/popis/internal/model"
)

// ReportOptions controls which items reports count.
type ReportOptions struct {
	// IncludeInactive counts inactive items in the per-type stats.
	IncludeInactive bool
}

// StatsByType returns the item count and total cost of every item type that
// has at least one counted item, ordered by type name. Untyped items are not
// counted under any type.
func StatsByType(ctx context.Context, db *sql.DB, opts ReportOptions) ([]model.TypeStats, error) {
	return statsByType(ctx, db, opts)
}

func statsByType(ctx context.Context, q DBTX, opts ReportOptions) ([]model.TypeStats, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT t.id, t.name, i.cost
		 FROM items i
		 JOIN item_types t ON t.id = i.item_type_id
		 WHERE ? OR i.active = 1
		 ORDER BY t.name, t.id`,
		opts.IncludeInactive,
	)
	if err != nil {
		return nil, fmt.Errorf("querying stats by type: %w", err)
	}
	defer rows.Close()

	var stats []model.TypeStats
	for rows.Next() {
		var id int64
		var name string
		var cost decimal.Decimal
		if err := rows.Scan(&id, &name, &cost); err != nil {
			return nil, fmt.Errorf("scanning stats by type: %w", err)
		}
		if n := len(stats); n == 0 || stats[n-1].ItemTypeID != id {
			stats = append(stats, model.TypeStats{ItemTypeID: id, ItemTypeName: name})
		}
		s := &stats[len(stats)-1]
		s.Count++
		s.TotalCost = s.TotalCost.Add(cost)
	}
	return stats, rows.Err()
}

// StatsByLocation returns every location with the number of items currently
// assigned there, ordered by name.
func StatsByLocation(ctx context.Context, db *sql.DB) ([]model.LocationStats, error) {
	return statsByLocation(ctx, db)
}

func statsByLocation(ctx context.Context, q DBTX) ([]model.LocationStats, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT l.id, l.name, COUNT(a.id)
		 FROM locations l
		 LEFT JOIN assignments a ON a.location_id = l.id AND a.removed_at IS NULL
		 GROUP BY l.id, l.name
		 ORDER BY l.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying stats by location: %w", err)
	}
	defer rows.Close()

	stats := []model.LocationStats{}
	for rows.Next() {
		var s model.LocationStats
		if err := rows.Scan(&s.LocationID, &s.Name, &s.ActiveCount); err != nil {
			return nil, fmt.Errorf("scanning stats by location: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Stats returns the inventory overview. Assigned items are items with an
// open assignment. All parts are read from one snapshot.
func Stats(ctx context.Context, db *sql.DB, opts ReportOptions) (*model.Stats, error) {
	// ReadOnly starts a deferred transaction, so it does not take the
	// write lock. Under WAL the first read fixes the snapshot.
	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("beginning stats transaction: %w", err)
	}
	defer tx.Rollback()

	s := &model.Stats{}
	err = tx.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM items),
		        (SELECT COUNT(*) FROM assignments WHERE removed_at IS NULL)`,
	).Scan(&s.TotalItems, &s.AssignedItems)
	if err != nil {
		return nil, fmt.Errorf("counting items: %w", err)
	}

	if s.ByType, err = statsByType(ctx, tx, opts); err != nil {
		return nil, err
	}
	if s.ByType == nil {
		s.ByType = []model.TypeStats{}
	}
	if s.ByLocation, err = statsByLocation(ctx, tx); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing stats transaction: %w", err)
	}
	return s, nil
}

// LocationFullReport returns, for every location, the items currently there
// and the items that have left, each ordered by assignment time.
func LocationFullReport(ctx context.Context, db *sql.DB) ([]model.LocationReport, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT l.id, l.name, l.description,
		        a.id, a.assigned_at, a.removed_at,
		        i.id, i.name, i.serial_number, i.inventory_number, t.name
		 FROM locations l
		 LEFT JOIN assignments a ON a.location_id = l.id
		 LEFT JOIN items i ON i.id = a.item_id
		 LEFT JOIN item_types t ON t.id = i.item_type_id
		 ORDER BY l.name, l.id, a.assigned_at, a.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying location report: %w", err)
	}
	defer rows.Close()

	reports := []model.LocationReport{}
	for rows.Next() {
		var (
			locID                           int64
			locName                         string
			locDescription                  sql.NullString
			assignmentID, itemID            sql.NullInt64
			assignedAt, removedAt           *time.Time
			itemName, serial, inv, typeName sql.NullString
		)
		if err := rows.Scan(&locID, &locName, &locDescription,
			&assignmentID, &assignedAt, &removedAt,
			&itemID, &itemName, &serial, &inv, &typeName); err != nil {
			return nil, fmt.Errorf("scanning location report: %w", err)
		}

		if n := len(reports); n == 0 || reports[n-1].LocationID != locID {
			reports = append(reports, model.LocationReport{
				LocationID:   locID,
				Location:     locName,
				Description:  locDescription.String,
				ActiveItems:  []model.ReportItem{},
				RemovedItems: []model.ReportItem{},
			})
		}
		if !assignmentID.Valid {
			continue
		}

		r := &reports[len(reports)-1]
		item := model.ReportItem{
			ItemID:          itemID.Int64,
			Name:            itemName.String,
			SerialNumber:    serial.String,
			InventoryNumber: inv.String,
			ItemType:        typeName.String,
			RemovedAt:       removedAt,
		}
		if assignedAt != nil {
			item.AssignedAt = *assignedAt
		}
		if removedAt == nil {
			r.ActiveItems = append(r.ActiveItems, item)
			r.ActiveCount++
		} else {
			r.RemovedItems = append(r.RemovedItems, item)
			r.RemovedCount++
		}
	}
	return reports, rows.Err()
}
