package seatwatch

import "time"

// Entity carries the timestamp pair shared by durable records. Values are
// stored in KST (see budget.Location) so that deadline arithmetic agrees
// with the record's own timestamps.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
