package store

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/erazemk/popis/internal/db"
	"github.com/erazemk/popis/internal/model"
)

var allowAll = TransferOptions{AllowInactive: true}

func openCount(t *testing.T, database *sql.DB, itemID int64) int {
	t.Helper()
	var n int
	err := database.QueryRow(
		`SELECT COUNT(*) FROM assignments WHERE item_id = ? AND removed_at IS NULL`, itemID,
	).Scan(&n)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func assignmentCount(t *testing.T, database *sql.DB) int {
	t.Helper()
	var n int
	if err := database.QueryRow(`SELECT COUNT(*) FROM assignments`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestTransfer_Scenario(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Laptop", "INV-001")
	locA := mustLocation(t, database, "Location A")
	locB := mustLocation(t, database, "Location B")

	if _, err := Transfer(ctx, database, item.ID, locA.ID, allowAll); err != nil {
		t.Fatalf("Transfer to A: %v", err)
	}

	history, err := History(ctx, database, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].RemovedAt != nil {
		t.Fatalf("expected one open record, got %+v", history)
	}
	cur, err := CurrentLocation(ctx, database, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cur == nil || cur.ID != locA.ID {
		t.Fatalf("expected current location A, got %+v", cur)
	}

	if _, err := Transfer(ctx, database, item.ID, locB.ID, allowAll); err != nil {
		t.Fatalf("Transfer to B: %v", err)
	}

	history, _ = History(ctx, database, item.ID)
	if len(history) != 2 {
		t.Fatalf("expected 2 records, got %d", len(history))
	}
	// Newest first.
	if history[0].LocationID != locB.ID || history[0].RemovedAt != nil {
		t.Errorf("expected open record at B first, got %+v", history[0])
	}
	if history[1].LocationID != locA.ID || history[1].RemovedAt == nil {
		t.Errorf("expected closed record at A, got %+v", history[1])
	}
	if !history[1].RemovedAt.Equal(history[0].AssignedAt) {
		t.Errorf("close time %v differs from open time %v", history[1].RemovedAt, history[0].AssignedAt)
	}
	if history[0].LocationName != "Location B" || history[0].ItemName != "Laptop" {
		t.Errorf("expected joined names, got %q / %q", history[0].LocationName, history[0].ItemName)
	}
}

func TestTransfer_SameLocationIsNoop(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Laptop", "INV-001")
	loc := mustLocation(t, database, "Office")

	first, err := Transfer(ctx, database, item.ID, loc.ID, allowAll)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Transfer(ctx, database, item.ID, loc.ID, allowAll)
	if err != nil {
		t.Fatal(err)
	}

	if first.ID != second.ID {
		t.Errorf("expected the same assignment, got %d and %d", first.ID, second.ID)
	}
	if n := assignmentCount(t, database); n != 1 {
		t.Errorf("expected exactly 1 assignment row, got %d", n)
	}
}

func TestTransfer_NotFound(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Laptop", "INV-001")
	loc := mustLocation(t, database, "Office")

	if _, err := Transfer(ctx, database, 999, loc.ID, allowAll); !IsNotFound(err) {
		t.Errorf("expected not found for unknown item, got %v", err)
	}
	if _, err := Transfer(ctx, database, item.ID, 999, allowAll); !IsNotFound(err) {
		t.Errorf("expected not found for unknown location, got %v", err)
	}
	if n := assignmentCount(t, database); n != 0 {
		t.Errorf("expected no assignments, got %d", n)
	}
}

func TestTransfer_InactivePolicy(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Old printer", "INV-9")
	loc := mustLocation(t, database, "Basement")
	inactive := false
	if _, err := UpdateItem(ctx, database, item.ID, model.ItemUpdate{Active: &inactive}); err != nil {
		t.Fatal(err)
	}

	if _, err := Transfer(ctx, database, item.ID, loc.ID, TransferOptions{}); !IsValidation(err) {
		t.Errorf("expected validation error when inactive moves are disallowed, got %v", err)
	}
	if _, err := Transfer(ctx, database, item.ID, loc.ID, allowAll); err != nil {
		t.Errorf("expected inactive move to succeed when allowed, got %v", err)
	}
}

func TestTransfer_RecordsCaller(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "clerk", "hash")
	item := mustItem(t, database, "Laptop", "INV-001")
	loc := mustLocation(t, database, "Office")

	a, err := Transfer(ctx, database, item.ID, loc.ID, TransferOptions{By: &user.ID, AllowInactive: true})
	if err != nil {
		t.Fatal(err)
	}
	if a.AssignedBy == nil || *a.AssignedBy != user.ID {
		t.Errorf("expected assigned_by %d, got %v", user.ID, a.AssignedBy)
	}
}

func TestHistory_Ordering(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Laptop", "INV-001")
	locs := []*model.Location{
		mustLocation(t, database, "L1"),
		mustLocation(t, database, "L2"),
		mustLocation(t, database, "L3"),
	}
	for _, l := range locs {
		if _, err := Transfer(ctx, database, item.ID, l.ID, allowAll); err != nil {
			t.Fatal(err)
		}
	}

	history, err := History(ctx, database, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 records, got %d", len(history))
	}

	want := []int64{locs[2].ID, locs[1].ID, locs[0].ID}
	for i, a := range history {
		if a.LocationID != want[i] {
			t.Errorf("history[%d] at location %d, want %d", i, a.LocationID, want[i])
		}
	}
	if history[0].RemovedAt != nil {
		t.Error("expected newest record to be open")
	}
	for _, a := range history[1:] {
		if a.RemovedAt == nil {
			t.Errorf("expected record at location %d to be closed", a.LocationID)
			continue
		}
		if a.RemovedAt.Before(a.AssignedAt) {
			t.Errorf("record %d removed before it was assigned", a.ID)
		}
	}
	// Each close matches the next open.
	if !history[2].RemovedAt.Equal(history[1].AssignedAt) || !history[1].RemovedAt.Equal(history[0].AssignedAt) {
		t.Error("closing and opening times are not paired")
	}
}

func TestHistory_UnknownItem(t *testing.T) {
	database := db.NewTestDB(t)

	if _, err := History(context.Background(), database, 999); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCurrentLocation_Unassigned(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Laptop", "INV-001")
	cur, err := CurrentLocation(ctx, database, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cur != nil {
		t.Errorf("expected nil location, got %+v", cur)
	}

	if _, err := CurrentLocation(ctx, database, 999); !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestBulkTransfer_Scenario(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	i1 := mustItem(t, database, "One", "I1")
	i2 := mustItem(t, database, "Two", "I2")
	i3 := mustItem(t, database, "Three", "I3")
	locA := mustLocation(t, database, "A")
	locB := mustLocation(t, database, "B")

	if _, err := BulkTransfer(ctx, database, []int64{i1.ID, i2.ID}, locA.ID, allowAll); err != nil {
		t.Fatalf("first BulkTransfer: %v", err)
	}
	if _, err := BulkTransfer(ctx, database, []int64{i2.ID, i3.ID}, locB.ID, allowAll); err != nil {
		t.Fatalf("second BulkTransfer: %v", err)
	}

	want := map[int64]int64{i1.ID: locA.ID, i2.ID: locB.ID, i3.ID: locB.ID}
	for itemID, locID := range want {
		cur, err := CurrentLocation(ctx, database, itemID)
		if err != nil {
			t.Fatal(err)
		}
		if cur == nil || cur.ID != locID {
			t.Errorf("item %d: expected location %d, got %+v", itemID, locID, cur)
		}
	}

	history, _ := History(ctx, database, i2.ID)
	if len(history) != 2 {
		t.Fatalf("expected 2 records for I2, got %d", len(history))
	}
	if history[0].LocationID != locB.ID || history[0].RemovedAt != nil {
		t.Errorf("expected open record at B, got %+v", history[0])
	}
	if history[1].LocationID != locA.ID || history[1].RemovedAt == nil {
		t.Errorf("expected closed record at A, got %+v", history[1])
	}
}

func TestBulkTransfer_Atomic(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := mustItem(t, database, "A", "A")
	b := mustItem(t, database, "B", "B")
	start := mustLocation(t, database, "Start")
	target := mustLocation(t, database, "Target")

	if _, err := Transfer(ctx, database, a.ID, start.ID, allowAll); err != nil {
		t.Fatal(err)
	}
	before := assignmentCount(t, database)

	_, err := BulkTransfer(ctx, database, []int64{a.ID, b.ID, 999}, target.ID, allowAll)
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	if n := assignmentCount(t, database); n != before {
		t.Errorf("expected %d assignments after failed bulk move, got %d", before, n)
	}
	cur, _ := CurrentLocation(ctx, database, a.ID)
	if cur == nil || cur.ID != start.ID {
		t.Errorf("expected A to stay at start, got %+v", cur)
	}
	cur, _ = CurrentLocation(ctx, database, b.ID)
	if cur != nil {
		t.Errorf("expected B to stay unassigned, got %+v", cur)
	}
}

func TestBulkTransfer_Validation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "A", "A")
	loc := mustLocation(t, database, "L")

	if _, err := BulkTransfer(ctx, database, nil, loc.ID, allowAll); !IsValidation(err) {
		t.Errorf("expected validation error for empty list, got %v", err)
	}
	if _, err := BulkTransfer(ctx, database, []int64{item.ID}, 999, allowAll); !IsNotFound(err) {
		t.Errorf("expected not found for unknown location, got %v", err)
	}
}

func TestBulkTransfer_Duplicates(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := mustItem(t, database, "A", "A")
	b := mustItem(t, database, "B", "B")
	loc := mustLocation(t, database, "L")

	result, err := BulkTransfer(ctx, database, []int64{b.ID, a.ID, b.ID}, loc.ID, allowAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(result))
	}
	if result[0].ItemID != b.ID || result[1].ItemID != a.ID {
		t.Errorf("expected order of first appearance, got %d, %d", result[0].ItemID, result[1].ItemID)
	}
	if n := openCount(t, database, b.ID); n != 1 {
		t.Errorf("expected 1 open assignment for B, got %d", n)
	}
}

func TestTransfer_ConcurrentKeepsSingleOpen(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Contested", "C-1")
	var locs []*model.Location
	for _, name := range []string{"L1", "L2", "L3", "L4"} {
		locs = append(locs, mustLocation(t, database, name))
	}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(loc *model.Location) {
			defer wg.Done()
			_, err := Transfer(ctx, database, item.ID, loc.ID, allowAll)
			if err != nil && !IsConflict(err) {
				t.Errorf("Transfer: %v", err)
			}
		}(locs[i%len(locs)])
	}
	wg.Wait()

	if n := openCount(t, database, item.ID); n != 1 {
		t.Fatalf("expected exactly 1 open assignment, got %d", n)
	}
}

func TestTransfer_LockedDatabaseIsConflict(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the busy timeout")
	}
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Desk", "D-1")
	loc := mustLocation(t, database, "Office")

	held, err := database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer held.Rollback()

	_, err = Transfer(ctx, database, item.ID, loc.ID, allowAll)
	if !IsConflict(err) {
		t.Fatalf("expected conflict while another writer holds the lock, got %v", err)
	}

	held.Rollback()
	if n := openCount(t, database, item.ID); n != 0 {
		t.Errorf("expected no open assignment, got %d", n)
	}
	if _, err := Transfer(ctx, database, item.ID, loc.ID, allowAll); err != nil {
		t.Fatalf("Transfer after lock released: %v", err)
	}
}

func TestCloseAssignment_AlreadyClosed(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Chair", "CH-1")
	loc := mustLocation(t, database, "Hall")
	a, err := Transfer(ctx, database, item.ID, loc.ID, allowAll)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	err = withTx(ctx, database, func(tx *sql.Tx) error {
		if err := closeAssignment(ctx, tx, a, now); err != nil {
			return err
		}
		return closeAssignment(ctx, tx, a, now)
	})
	if !IsConflict(err) {
		t.Fatalf("expected conflict on second close, got %v", err)
	}
	if n := openCount(t, database, item.ID); n != 1 {
		t.Errorf("expected rollback to keep the open assignment, got %d", n)
	}
}

func TestInsertAssignment_SecondOpenIsConflict(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Printer", "PR-1")
	locA := mustLocation(t, database, "A")
	locB := mustLocation(t, database, "B")
	if _, err := Transfer(ctx, database, item.ID, locA.ID, allowAll); err != nil {
		t.Fatal(err)
	}

	err := withTx(ctx, database, func(tx *sql.Tx) error {
		_, err := insertAssignment(ctx, tx, item.ID, locB.ID, nil, time.Now().UTC())
		return err
	})
	if !IsConflict(err) {
		t.Fatalf("expected conflict for a second open assignment, got %v", err)
	}
	cur, err := CurrentLocation(ctx, database, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cur == nil || cur.ID != locA.ID {
		t.Errorf("expected item to stay at A, got %+v", cur)
	}
}

func TestStatsByLocation_MatchesCurrentLocation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	locs := []*model.Location{
		mustLocation(t, database, "A"),
		mustLocation(t, database, "B"),
		mustLocation(t, database, "Empty"),
	}
	var items []*model.Item
	for _, inv := range []string{"1", "2", "3", "4", "5"} {
		items = append(items, mustItem(t, database, "Item "+inv, inv))
	}
	moves := []struct{ item, loc int }{{0, 0}, {1, 0}, {2, 1}, {1, 1}, {3, 0}, {0, 1}}
	for _, m := range moves {
		if _, err := Transfer(ctx, database, items[m.item].ID, locs[m.loc].ID, allowAll); err != nil {
			t.Fatal(err)
		}
	}

	want := map[int64]int{}
	for _, item := range items {
		cur, err := CurrentLocation(ctx, database, item.ID)
		if err != nil {
			t.Fatal(err)
		}
		if cur != nil {
			want[cur.ID]++
		}
	}

	stats, err := StatsByLocation(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != len(locs) {
		t.Fatalf("expected %d locations, got %d", len(locs), len(stats))
	}
	for _, s := range stats {
		if s.ActiveCount != want[s.LocationID] {
			t.Errorf("location %q: count %d, want %d", s.Name, s.ActiveCount, want[s.LocationID])
		}
	}
}
