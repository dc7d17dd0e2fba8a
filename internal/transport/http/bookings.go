package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bookwell/engine/internal/domain"
)

// BookingCanceller is the minimal interface for the admin cancellation flow.
type BookingCanceller interface {
	Cancel(ctx context.Context, bookingID string) (domain.Booking, error)
	Deny(ctx context.Context, bookingID string) (domain.Booking, error)
}

// HandleBookingActions dispatches /bookings/{id}/cancel and
// /bookings/{id}/deny. Both free the slot for the waitlist.
func HandleBookingActions(svc BookingCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		bookingID, action, ok := parseBookingPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		var booking domain.Booking
		var err error
		switch action {
		case "cancel":
			booking, err = svc.Cancel(r.Context(), bookingID)
		case "deny":
			booking, err = svc.Deny(r.Context(), bookingID)
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(newBookingResponse(booking))
	}
}

func parseBookingPath(path string) (bookingID, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "bookings" || parts[1] == "" {
		return "", "", false
	}
	if parts[2] != "cancel" && parts[2] != "deny" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
