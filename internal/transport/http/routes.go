package http

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// RouterConfig holds the services and middleware settings for the API router.
type RouterConfig struct {
	Availability SlotResolver
	Holds        HoldManager
	Waitlist     Waitlist
	Bookings     BookingCanceller
	CORSOrigins  []string
	Logger       logrus.FieldLogger
}

// NewRouter builds the full API handler with logging and CORS applied.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", HealthHandler)
	mux.Handle("/availability", HandleResolveAvailability(cfg.Availability))
	mux.Handle("/availability/next", HandleNextAvailable(cfg.Availability))
	mux.Handle("/holds", HandleCreateHold(cfg.Holds))
	mux.Handle("/holds/", HandleHoldActions(cfg.Holds))
	mux.Handle("/waitlist", HandleJoinWaitlist(cfg.Waitlist))
	mux.Handle("/waitlist/", HandleWaitlistActions(cfg.Waitlist))
	mux.Handle("/bookings/", HandleBookingActions(cfg.Bookings))
	mux.Handle("/", NotFoundHandler())

	var handler http.Handler = mux
	handler = CORS(cfg.CORSOrigins, handler)
	handler = RequestLogger(handler, cfg.Logger)
	return handler
}
