package store

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/erazemk/popis/internal/db"
	"github.com/erazemk/popis/internal/model"
)

func TestStatsByType(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	laptop, _ := CreateItemType(ctx, database, "Laptop")
	chair, _ := CreateItemType(ctx, database, "Chair")
	CreateItemType(ctx, database, "Unused")

	inactive := false
	create := func(inv string, typeID *int64, cost string, active *bool) {
		t.Helper()
		_, err := CreateItem(ctx, database, model.ItemInput{
			Name:            inv,
			InventoryNumber: inv,
			ItemTypeID:      typeID,
			Cost:            decimal.RequireFromString(cost),
			Active:          active,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	create("L1", &laptop.ID, "1000.10", nil)
	create("L2", &laptop.ID, "999.90", nil)
	create("L3", &laptop.ID, "500", &inactive)
	create("C1", &chair.ID, "45.5", nil)
	create("X1", nil, "10", nil)

	stats, err := StatsByType(ctx, database, ReportOptions{IncludeInactive: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 types, got %+v", stats)
	}
	if stats[0].ItemTypeName != "Chair" || stats[0].Count != 1 || !stats[0].TotalCost.Equal(decimal.RequireFromString("45.5")) {
		t.Errorf("unexpected chair stats %+v", stats[0])
	}
	if stats[1].ItemTypeName != "Laptop" || stats[1].Count != 3 || !stats[1].TotalCost.Equal(decimal.RequireFromString("2500")) {
		t.Errorf("unexpected laptop stats %+v", stats[1])
	}

	stats, err = StatsByType(ctx, database, ReportOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if stats[1].Count != 2 || !stats[1].TotalCost.Equal(decimal.RequireFromString("2000")) {
		t.Errorf("expected inactive laptop excluded, got %+v", stats[1])
	}
}

func TestStats(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := mustItem(t, database, "A", "A")
	b := mustItem(t, database, "B", "B")
	mustItem(t, database, "C", "C")
	l1 := mustLocation(t, database, "L1")
	l2 := mustLocation(t, database, "L2")

	Transfer(ctx, database, a.ID, l1.ID, allowAll)
	Transfer(ctx, database, b.ID, l1.ID, allowAll)
	Transfer(ctx, database, b.ID, l2.ID, allowAll)

	stats, err := Stats(ctx, database, ReportOptions{IncludeInactive: true})
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalItems != 3 {
		t.Errorf("expected 3 items, got %d", stats.TotalItems)
	}
	if stats.AssignedItems != 2 {
		t.Errorf("expected 2 assigned items, got %d", stats.AssignedItems)
	}
	if len(stats.ByType) != 0 {
		t.Errorf("expected no typed items, got %+v", stats.ByType)
	}
	if len(stats.ByLocation) != 2 || stats.ByLocation[0].ActiveCount != 1 || stats.ByLocation[1].ActiveCount != 1 {
		t.Errorf("unexpected location stats %+v", stats.ByLocation)
	}
}

func TestStats_ConsistentWithConcurrentWriter(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	locs := []*model.Location{mustLocation(t, database, "A"), mustLocation(t, database, "B")}

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := range 40 {
			n := strconv.Itoa(i)
			in := model.ItemInput{Name: "Item " + n, InventoryNumber: "INV-" + n}
			if _, err := CreateItemAt(ctx, database, in, &locs[i%2].ID, allowAll); err != nil {
				t.Errorf("CreateItemAt: %v", err)
				return
			}
		}
	}()

	check := func() bool {
		s, err := Stats(ctx, database, ReportOptions{IncludeInactive: true})
		if err != nil {
			t.Errorf("Stats: %v", err)
			return false
		}
		sum := 0
		for _, l := range s.ByLocation {
			sum += l.ActiveCount
		}
		if s.TotalItems != s.AssignedItems || s.AssignedItems != sum {
			t.Errorf("inconsistent stats: total %d, assigned %d, by location %d",
				s.TotalItems, s.AssignedItems, sum)
			return false
		}
		return true
	}

	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		if !check() {
			break
		}
	}
	wg.Wait()
	check()
}

func TestLocationFullReport(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	laptop, _ := CreateItemType(ctx, database, "Laptop")
	a, _ := CreateItem(ctx, database, model.ItemInput{Name: "A", InventoryNumber: "A", SerialNumber: "SA", ItemTypeID: &laptop.ID})
	b := mustItem(t, database, "B", "B")
	office, _ := CreateLocation(ctx, database, "Office", "Second floor")
	lab := mustLocation(t, database, "Lab")
	mustLocation(t, database, "Attic")

	Transfer(ctx, database, a.ID, office.ID, allowAll)
	Transfer(ctx, database, b.ID, office.ID, allowAll)
	Transfer(ctx, database, a.ID, lab.ID, allowAll)

	reports, err := LocationFullReport(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 3 {
		t.Fatalf("expected 3 locations, got %d", len(reports))
	}

	byName := map[string]model.LocationReport{}
	for _, r := range reports {
		byName[r.Location] = r
	}

	attic := byName["Attic"]
	if attic.ActiveCount != 0 || attic.RemovedCount != 0 || len(attic.ActiveItems) != 0 {
		t.Errorf("expected empty attic, got %+v", attic)
	}

	o := byName["Office"]
	if o.Description != "Second floor" {
		t.Errorf("expected description, got %q", o.Description)
	}
	if o.ActiveCount != 1 || o.ActiveItems[0].ItemID != b.ID {
		t.Errorf("expected B active in office, got %+v", o.ActiveItems)
	}
	if o.RemovedCount != 1 || o.RemovedItems[0].ItemID != a.ID || o.RemovedItems[0].RemovedAt == nil {
		t.Errorf("expected A removed from office, got %+v", o.RemovedItems)
	}
	if o.RemovedItems[0].ItemType != "Laptop" || o.RemovedItems[0].SerialNumber != "SA" {
		t.Errorf("expected item details, got %+v", o.RemovedItems[0])
	}

	l := byName["Lab"]
	if l.ActiveCount != 1 || l.ActiveItems[0].ItemID != a.ID {
		t.Errorf("expected A active in lab, got %+v", l.ActiveItems)
	}
	if l.ActiveItems[0].AssignedAt.IsZero() {
		t.Error("expected assigned_at to be set")
	}
}

func TestLocationFullReport_OrderedByAssignment(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	loc := mustLocation(t, database, "Store")
	var ids []int64
	for _, inv := range []string{"3", "1", "2"} {
		item := mustItem(t, database, "Item "+inv, inv)
		Transfer(ctx, database, item.ID, loc.ID, allowAll)
		ids = append(ids, item.ID)
	}

	reports, err := LocationFullReport(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	active := reports[0].ActiveItems
	if len(active) != 3 {
		t.Fatalf("expected 3 active items, got %d", len(active))
	}
	for i, id := range ids {
		if active[i].ItemID != id {
			t.Errorf("active[%d] = item %d, want %d", i, active[i].ItemID, id)
		}
	}
}
