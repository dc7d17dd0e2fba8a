package domain

import "time"

// Event names published to the notification/audit stream. The engine never
// contacts customers itself; the dispatcher consuming these does.
const (
	EventHoldAcquired     = "hold.acquired"
	EventHoldExpired      = "hold.expired"
	EventHoldReleased     = "hold.released"
	EventHoldConverted    = "hold.converted"
	EventOfferCreated     = "offer.created"
	EventOfferClaimed     = "offer.claimed"
	EventOfferExpired     = "offer.expired"
	EventOfferDeclined    = "offer.declined"
	EventBookingCancelled = "booking.cancelled"
)

// Event records a single engine state transition.
type Event struct {
	Name       string     `json:"name"`
	BusinessID string     `json:"business_id,omitempty"`
	ResourceID string     `json:"resource_id,omitempty"`
	HoldID     string     `json:"hold_id,omitempty"`
	BookingID  string     `json:"booking_id,omitempty"`
	EntryID    string     `json:"entry_id,omitempty"`
	ClaimToken string     `json:"claim_token,omitempty"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	StartAt    time.Time  `json:"start_at,omitempty"`
	EndAt      time.Time  `json:"end_at,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
