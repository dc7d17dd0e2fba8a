package domain

import "time"

type WaitlistStatus string

const (
	WaitlistStatusWaiting  WaitlistStatus = "waiting"
	WaitlistStatusOffered  WaitlistStatus = "offered"
	WaitlistStatusClaimed  WaitlistStatus = "claimed"
	WaitlistStatusExpired  WaitlistStatus = "expired"
	WaitlistStatusDeclined WaitlistStatus = "declined"
)

// WaitlistEntry is a customer waiting for a slot to free up. Nil filters
// match everything. Offers are served in (VIP desc, position asc) order;
// missing an offer demotes the entry to the back of the queue.
type WaitlistEntry struct {
	ID              string
	BusinessID      string
	ResourceID      *string
	BookableType    *string
	PreferredDate   *time.Time
	FlexibilityDays int
	GuestName       string
	GuestEmail      string
	VIP             bool
	Position        int
	Status          WaitlistStatus
	ClaimToken      *string
	ClaimExpiresAt  *time.Time
	HoldID          *string
	OfferStartAt    *time.Time
	OfferEndAt      *time.Time
	CreatedAt       time.Time
}

// Matches reports whether the entry's preferences accept a freed slot on the
// given resource. Absent filters always match.
func (e WaitlistEntry) Matches(resourceID, bookableType string, start time.Time) bool {
	if e.ResourceID != nil && *e.ResourceID != resourceID {
		return false
	}
	if e.BookableType != nil && *e.BookableType != bookableType {
		return false
	}
	if e.PreferredDate != nil && daysApart(*e.PreferredDate, start) > e.FlexibilityDays {
		return false
	}
	return true
}

// daysApart counts whole calendar days between the dates of a and b,
// ignoring the time-of-day component.
func daysApart(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	days := int(db.Sub(da) / (24 * time.Hour))
	if days < 0 {
		days = -days
	}
	return days
}
