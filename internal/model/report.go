package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TypeStats aggregates the items of one item type.
type TypeStats struct {
	ItemTypeID   int64           `json:"item_type_id"`
	ItemTypeName string          `json:"item_type"`
	Count        int             `json:"count"`
	TotalCost    decimal.Decimal `json:"total_cost"`
}

// LocationStats counts the items currently at a location.
type LocationStats struct {
	LocationID  int64  `json:"location_id"`
	Name        string `json:"name"`
	ActiveCount int    `json:"active_items_count"`
}

// Stats is the inventory overview.
type Stats struct {
	TotalItems    int             `json:"total_items"`
	AssignedItems int             `json:"active_items"`
	ByType        []TypeStats     `json:"items_by_type"`
	ByLocation    []LocationStats `json:"items_by_location"`
}

// ReportItem is one assignment row in a location report.
type ReportItem struct {
	ItemID          int64      `json:"id"`
	Name            string     `json:"name"`
	SerialNumber    string     `json:"serial_number,omitempty"`
	InventoryNumber string     `json:"inventory_number"`
	ItemType        string     `json:"item_type,omitempty"`
	AssignedAt      time.Time  `json:"assigned_at"`
	RemovedAt       *time.Time `json:"removed_at,omitempty"`
}

// LocationReport lists current and past items of a location.
type LocationReport struct {
	LocationID   int64        `json:"location_id"`
	Location     string       `json:"location"`
	Description  string       `json:"description"`
	ActiveCount  int          `json:"active_count"`
	RemovedCount int          `json:"removed_count"`
	ActiveItems  []ReportItem `json:"active_items"`
	RemovedItems []ReportItem `json:"removed_items"`
}
