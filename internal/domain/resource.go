package domain

// Resource is a single bookable unit owned by a business: a room, a court,
// a treatment chair.
type Resource struct {
	ID           string
	BusinessID   string
	BookableType string
	Name         string
	Capacity     int
	Active       bool
}
