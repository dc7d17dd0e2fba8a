package domain

import "time"

type HoldStatus string

const (
	HoldStatusActive    HoldStatus = "active"
	HoldStatusConverted HoldStatus = "converted"
	HoldStatusExpired   HoldStatus = "expired"
	HoldStatusReleased  HoldStatus = "released"
)

// Hold soft-reserves a resource-time range while a customer completes
// checkout, or while a waitlist offer is outstanding. Only an active hold
// occupies its range.
type Hold struct {
	ID         string
	BusinessID string
	ResourceID string
	StartAt    time.Time
	EndAt      time.Time
	Status     HoldStatus
	HolderRef  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// ActiveAt reports whether the hold still occupies its range at t.
func (h Hold) ActiveAt(t time.Time) bool {
	return h.Status == HoldStatusActive && h.ExpiresAt.After(t)
}
