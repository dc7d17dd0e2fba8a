package domain

// Business is an independently operated venue (coworking space, spa, gym).
// Availability windows and waitlist queues are scoped to it, and all wall-clock
// math happens in its time zone.
type Business struct {
	ID       string
	Name     string
	Timezone string
}
