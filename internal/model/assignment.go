package model

import "time"

// Assignment records an item staying at a location. RemovedAt is nil while the
// assignment is open; an item has at most one open assignment.
type Assignment struct {
	ID         int64      `json:"id"`
	ItemID     int64      `json:"item_id"`
	LocationID int64      `json:"location_id"`
	AssignedAt time.Time  `json:"assigned_at"`
	RemovedAt  *time.Time `json:"removed_at"`
	AssignedBy *int64     `json:"assigned_by,omitempty"`

	// Joined fields (not always populated).
	ItemName     string `json:"item_name,omitempty"`
	LocationName string `json:"location_name,omitempty"`
}

// Open reports whether the assignment is the item's current one.
func (a Assignment) Open() bool {
	return a.RemovedAt == nil
}
