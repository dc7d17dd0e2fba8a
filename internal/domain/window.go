package domain

import "time"

// AvailabilityWindow is a recurring weekly open interval, expressed in the
// owning business's local time as minutes from midnight. A nil ResourceID
// scopes the window to every resource of the business.
type AvailabilityWindow struct {
	ID          string
	BusinessID  string
	ResourceID  *string
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	Active      bool
}

// AppliesTo reports whether the window covers the given resource.
func (w AvailabilityWindow) AppliesTo(resourceID string) bool {
	return w.ResourceID == nil || *w.ResourceID == resourceID
}
