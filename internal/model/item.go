package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a single physical inventory item.
type Item struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	SerialNumber    string          `json:"serial_number,omitempty"`
	InventoryNumber string          `json:"inventory_number"`
	ItemTypeID      *int64          `json:"item_type_id,omitempty"`
	Description     string          `json:"description,omitempty"`
	PurchaseDate    *Date           `json:"purchase_date,omitempty"`
	Cost            decimal.Decimal `json:"cost"`
	Active          bool            `json:"active"`
	ImageMime       string          `json:"image_mime,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// Joined fields (not always populated).
	ItemTypeName    string     `json:"item_type_name,omitempty"`
	CurrentLocation *Location  `json:"current_location,omitempty"`
	AssignedAt      *time.Time `json:"assigned_at,omitempty"`
}

// ItemInput holds the fields for creating an item.
type ItemInput struct {
	Name            string          `json:"name"`
	SerialNumber    string          `json:"serial_number"`
	InventoryNumber string          `json:"inventory_number"`
	ItemTypeID      *int64          `json:"item_type_id"`
	Description     string          `json:"description"`
	PurchaseDate    *Date           `json:"purchase_date"`
	Cost            decimal.Decimal `json:"cost"`
	Active          *bool           `json:"active"`
}

// ItemUpdate is a partial item update. Nil fields are left unchanged.
// An empty SerialNumber clears it, an ItemTypeID of 0 clears the type, and a
// zero PurchaseDate (an empty string in JSON) clears the purchase date.
type ItemUpdate struct {
	Name            *string          `json:"name"`
	SerialNumber    *string          `json:"serial_number"`
	InventoryNumber *string          `json:"inventory_number"`
	ItemTypeID      *int64           `json:"item_type_id"`
	Description     *string          `json:"description"`
	PurchaseDate    *Date            `json:"purchase_date"`
	Cost            *decimal.Decimal `json:"cost"`
	Active          *bool            `json:"active"`
}

// ItemFilter narrows item listings.
type ItemFilter struct {
	// Active filters by the active flag when non-nil.
	Active *bool
	// Query matches name, serial number or inventory number as a substring.
	Query string
}

// ItemType is a category of items (laptop, printer, chair).
type ItemType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
