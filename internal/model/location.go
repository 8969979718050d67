package model

import "time"

// Location is a place that can hold items (a room, a warehouse shelf).
type Location struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
