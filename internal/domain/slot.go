package domain

import "time"

// Slot is one candidate time range for booking a resource, generated at a
// fixed increment inside an availability window.
type Slot struct {
	ResourceID string
	StartAt    time.Time
	EndAt      time.Time
	Available  bool
}

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2)
// intersect.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}
