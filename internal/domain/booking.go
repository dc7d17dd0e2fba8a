package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
	BookingStatusDenied     BookingStatus = "denied"
	BookingStatusNoShow     BookingStatus = "no_show"
)

// Occupying reports whether the status blocks the booking's resource-time
// range against other bookings and holds.
func (s BookingStatus) Occupying() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusInProgress:
		return true
	}
	return false
}

// Booking is a confirmed or pending reservation of a resource-time range.
// The engine creates confirmed bookings by converting holds; status changes
// after that come from the admin approval/cancellation flow.
type Booking struct {
	ID           string
	BusinessID   string
	ResourceID   string
	BookableType string
	StartAt      time.Time
	EndAt        time.Time
	Status       BookingStatus
	GuestName    string
	GuestEmail   string
	PartySize    int
	CreatedAt    time.Time
}
