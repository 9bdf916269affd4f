package timesheet

import "time"

// Entity carries the bookkeeping timestamps shared by every persisted
// record.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity returns an Entity stamped with the current UTC time.
func NewEntity() Entity {
	return NewEntityAt(time.Now().UTC())
}

// NewEntityAt returns an Entity stamped with now.
func NewEntityAt(now time.Time) Entity {
	return Entity{CreatedAt: now, UpdatedAt: now}
}

// Touch sets UpdatedAt.
func (e *Entity) Touch(now time.Time) { e.UpdatedAt = now }
