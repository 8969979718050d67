// Package tabular imports items from row data and exports the catalog as CSV.
package tabular

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

// Row maps a column header to its raw value.
type Row map[string]string

// Options configures an import.
type Options struct {
	// Transfer is used when a row names a location.
	Transfer store.TransferOptions
}

// RowFailure records why a row was not imported. Row is the 0-based index
// of the data row, not counting the header.
type RowFailure struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Report summarizes an import.
type Report struct {
	Succeeded int          `json:"succeeded"`
	Created   []int64      `json:"created_items"`
	Failures  []RowFailure `json:"failures"`
}

// Err returns a *PartialImportError when any row failed, otherwise nil.
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return &PartialImportError{Failures: r.Failures}
}

// PartialImportError reports the rows an otherwise successful import skipped.
type PartialImportError struct {
	Failures []RowFailure
}

func (e *PartialImportError) Error() string {
	return fmt.Sprintf("%d rows failed to import", len(e.Failures))
}

// ImportRows creates one item per row. Each row commits on its own; a row
// that fails is recorded in the report and leaves nothing behind.
func ImportRows(ctx context.Context, db *sql.DB, rows []Row, opts Options) (*Report, error) {
	report := &Report{Created: []int64{}, Failures: []RowFailure{}}
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		id, err := importRow(ctx, db, row, opts)
		if err != nil {
			if !isRowError(err) {
				return report, fmt.Errorf("importing row %d: %w", i, err)
			}
			report.Failures = append(report.Failures, RowFailure{Row: i, Reason: err.Error()})
			continue
		}
		report.Succeeded++
		report.Created = append(report.Created, id)
	}
	return report, nil
}

// ImportCSV reads a CSV document with a header row and imports its rows.
func ImportCSV(ctx context.Context, db *sql.DB, r io.Reader, opts Options) (*Report, error) {
	rows, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}
	return ImportRows(ctx, db, rows, opts)
}

// ReadCSV parses a CSV document into rows keyed by the normalized header.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("reading csv header: empty document")
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	for i, h := range header {
		header[i] = normalizeHeader(h)
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		row := make(Row, len(header))
		for i, value := range record {
			if i < len(header) {
				row[header[i]] = value
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}

// rowError is a problem with the row's content rather than the database.
type rowError struct {
	reason string
}

func (e *rowError) Error() string {
	return e.reason
}

func rowErrorf(format string, args ...any) error {
	return &rowError{reason: fmt.Sprintf(format, args...)}
}

func isRowError(err error) bool {
	var re *rowError
	return errors.As(err, &re) || store.IsValidation(err) || store.IsNotFound(err) || store.IsConflict(err)
}

func importRow(ctx context.Context, db *sql.DB, row Row, opts Options) (int64, error) {
	in, err := parseRow(row)
	if err != nil {
		return 0, err
	}

	if name := row.get("item_type"); name != "" {
		t, err := store.FindItemType(ctx, db, name)
		if err != nil {
			return 0, err
		}
		if t == nil {
			return 0, rowErrorf("unknown item type %q", name)
		}
		in.ItemTypeID = &t.ID
	}

	var locationID *int64
	if name := row.get("location"); name != "" {
		loc, err := store.FindLocation(ctx, db, name)
		if err != nil {
			return 0, err
		}
		if loc == nil {
			return 0, rowErrorf("unknown location %q", name)
		}
		locationID = &loc.ID
	}

	item, err := store.CreateItemAt(ctx, db, in, locationID, opts.Transfer)
	if err != nil {
		return 0, err
	}
	return item.ID, nil
}

func parseRow(row Row) (model.ItemInput, error) {
	in := model.ItemInput{
		Name:            row.get("name"),
		SerialNumber:    row.get("serial_number"),
		InventoryNumber: row.get("inventory_number"),
		Description:     row.get("description"),
	}

	if s := row.get("purchase_date"); s != "" {
		d, err := model.ParseDate(s)
		if err != nil {
			return in, rowErrorf("invalid purchase date %q", s)
		}
		in.PurchaseDate = &d
	}

	cost, err := parseCost(row.get("cost"))
	if err != nil {
		return in, err
	}
	in.Cost = cost

	if s := row.get("is_active"); s != "" {
		active, err := strconv.ParseBool(strings.ToLower(s))
		if err != nil {
			return in, rowErrorf("invalid is_active %q", s)
		}
		in.Active = &active
	}

	return in, nil
}

// parseCost reads an empty value as zero. A lone comma is taken as the
// decimal separator.
func parseCost(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, rowErrorf("invalid cost %q", s)
	}
	return d, nil
}

func (r Row) get(key string) string {
	return strings.TrimSpace(r[key])
}
