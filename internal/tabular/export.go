package tabular

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

// ExportHeader is the header row written by ExportCSV.
var ExportHeader = []string{
	"id", "name", "serial_number", "inventory_number", "item_type",
	"cost", "is_active", "location", "assigned_at",
}

// ExportCSV writes every item with its current location.
func ExportCSV(ctx context.Context, db *sql.DB, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for item, err := range store.Items(ctx, db, model.ItemFilter{}) {
		if err != nil {
			return err
		}
		if err := cw.Write(exportRecord(item)); err != nil {
			return fmt.Errorf("writing item %d: %w", item.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

func exportRecord(item model.Item) []string {
	var location, assignedAt string
	if item.CurrentLocation != nil {
		location = item.CurrentLocation.Name
	}
	if item.AssignedAt != nil {
		assignedAt = item.AssignedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		strconv.FormatInt(item.ID, 10),
		item.Name,
		item.SerialNumber,
		item.InventoryNumber,
		item.ItemTypeName,
		item.Cost.StringFixed(2),
		strconv.FormatBool(item.Active),
		location,
		assignedAt,
	}
}
