package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/bookwell/engine/internal/app"
	"github.com/bookwell/engine/internal/domain"
)

// HoldManager is the minimal interface needed to drive the hold lifecycle.
type HoldManager interface {
	Acquire(ctx context.Context, in app.AcquireHoldInput) (domain.Hold, error)
	Renew(ctx context.Context, holdID string) (domain.Hold, error)
	Release(ctx context.Context, holdID string) error
	Convert(ctx context.Context, in app.ConvertHoldInput) (domain.Booking, error)
}

// HandleCreateHold returns an HTTP handler for acquiring holds.
func HandleCreateHold(svc HoldManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createHoldRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if err := req.validate(); err != nil {
			writeDomainError(w, err)
			return
		}

		hold, err := svc.Acquire(r.Context(), app.AcquireHoldInput{
			ResourceID: req.ResourceID,
			StartAt:    req.StartAt,
			EndAt:      req.EndAt,
			HolderRef:  req.HolderRef,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(newHoldResponse(hold))
	}
}

// HandleHoldActions dispatches /holds/{id}/renew, /holds/{id}/confirm and
// DELETE /holds/{id}.
func HandleHoldActions(svc HoldManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		holdID, action, ok := parseHoldPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch {
		case action == "" && r.Method == http.MethodDelete:
			if err := svc.Release(r.Context(), holdID); err != nil {
				writeDomainError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		case action == "renew" && r.Method == http.MethodPost:
			hold, err := svc.Renew(r.Context(), holdID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(newHoldResponse(hold))

		case action == "confirm" && r.Method == http.MethodPost:
			var req confirmHoldRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}

			booking, err := svc.Convert(r.Context(), app.ConvertHoldInput{
				HoldID:     holdID,
				GuestName:  req.GuestName,
				GuestEmail: req.GuestEmail,
				PartySize:  req.PartySize,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(newBookingResponse(booking))

		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// parseHoldPath splits /holds/{id} and /holds/{id}/{action}.
func parseHoldPath(path string) (holdID, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "holds" || parts[1] == "" {
		return "", "", false
	}
	if len(parts) == 3 {
		if parts[2] != "renew" && parts[2] != "confirm" {
			return "", "", false
		}
		return parts[1], parts[2], true
	}
	return parts[1], "", true
}

type createHoldRequest struct {
	ResourceID string    `json:"resource_id"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	HolderRef  string    `json:"holder_ref"`
}

func (r createHoldRequest) validate() error {
	if r.ResourceID == "" {
		return domain.ErrInvalidID
	}
	if r.HolderRef == "" {
		return domain.ErrHolderRequired
	}
	if !r.EndAt.After(r.StartAt) {
		return domain.ErrInvalidRange
	}
	return nil
}

type confirmHoldRequest struct {
	GuestName  string `json:"guest_name"`
	GuestEmail string `json:"guest_email"`
	PartySize  int    `json:"party_size"`
}

type holdResponse struct {
	ID         string    `json:"id"`
	ResourceID string    `json:"resource_id"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	Status     string    `json:"status"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func newHoldResponse(hold domain.Hold) holdResponse {
	return holdResponse{
		ID:         hold.ID,
		ResourceID: hold.ResourceID,
		StartAt:    hold.StartAt,
		EndAt:      hold.EndAt,
		Status:     string(hold.Status),
		ExpiresAt:  hold.ExpiresAt,
	}
}

type bookingResponse struct {
	ID         string    `json:"id"`
	ResourceID string    `json:"resource_id"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	Status     string    `json:"status"`
	PartySize  int       `json:"party_size"`
}

func newBookingResponse(b domain.Booking) bookingResponse {
	return bookingResponse{
		ID:         b.ID,
		ResourceID: b.ResourceID,
		StartAt:    b.StartAt,
		EndAt:      b.EndAt,
		Status:     string(b.Status),
		PartySize:  b.PartySize,
	}
}
