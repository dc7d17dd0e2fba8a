package domain

import "time"

// BlackoutPeriod closes a business, or one of its resources, for a concrete
// datetime range. It always wins over an availability window.
type BlackoutPeriod struct {
	ID         string
	BusinessID string
	ResourceID *string
	StartAt    time.Time
	EndAt      time.Time
	Reason     string
}

// AppliesTo reports whether the blackout covers the given resource.
func (b BlackoutPeriod) AppliesTo(resourceID string) bool {
	return b.ResourceID == nil || *b.ResourceID == resourceID
}
