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

// Waitlist is the minimal interface needed to drive the waitlist lifecycle.
type Waitlist interface {
	Join(ctx context.Context, in app.JoinWaitlistInput) (domain.WaitlistEntry, error)
	Claim(ctx context.Context, entryID, token string) (app.ClaimResult, error)
	Decline(ctx context.Context, entryID string) (domain.WaitlistEntry, error)
}

// HandleJoinWaitlist returns an HTTP handler for joining a waitlist.
func HandleJoinWaitlist(svc Waitlist) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req joinWaitlistRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		var preferredDate *time.Time
		if req.PreferredDate != "" {
			d, err := time.Parse("2006-01-02", req.PreferredDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRange, "preferred_date must be YYYY-MM-DD")
				return
			}
			preferredDate = &d
		}

		entry, err := svc.Join(r.Context(), app.JoinWaitlistInput{
			BusinessID:      req.BusinessID,
			ResourceID:      req.ResourceID,
			BookableType:    req.BookableType,
			PreferredDate:   preferredDate,
			FlexibilityDays: req.FlexibilityDays,
			GuestName:       req.GuestName,
			GuestEmail:      req.GuestEmail,
			VIP:             req.VIP,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(newEntryResponse(entry))
	}
}

// HandleWaitlistActions dispatches /waitlist/{id}/claim and
// /waitlist/{id}/decline.
func HandleWaitlistActions(svc Waitlist) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		entryID, action, ok := parseWaitlistPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch action {
		case "claim":
			var req claimRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}

			result, err := svc.Claim(r.Context(), entryID, req.Token)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(claimResponse{
				Entry:   newEntryResponse(result.Entry),
				Booking: newBookingResponse(result.Booking),
			})

		case "decline":
			entry, err := svc.Decline(r.Context(), entryID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(newEntryResponse(entry))
		}
	}
}

func parseWaitlistPath(path string) (entryID, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "waitlist" || parts[1] == "" {
		return "", "", false
	}
	if parts[2] != "claim" && parts[2] != "decline" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

type joinWaitlistRequest struct {
	BusinessID      string  `json:"business_id"`
	ResourceID      *string `json:"resource_id"`
	BookableType    *string `json:"bookable_type"`
	PreferredDate   string  `json:"preferred_date"`
	FlexibilityDays int     `json:"flexibility_days"`
	GuestName       string  `json:"guest_name"`
	GuestEmail      string  `json:"guest_email"`
	VIP             bool    `json:"vip"`
}

type claimRequest struct {
	Token string `json:"token"`
}

type claimResponse struct {
	Entry   entryResponse   `json:"entry"`
	Booking bookingResponse `json:"booking"`
}

type entryResponse struct {
	ID             string     `json:"id"`
	BusinessID     string     `json:"business_id"`
	Status         string     `json:"status"`
	Position       int        `json:"position"`
	VIP            bool       `json:"vip"`
	ClaimExpiresAt *time.Time `json:"claim_expires_at,omitempty"`
	OfferStartAt   *time.Time `json:"offer_start_at,omitempty"`
	OfferEndAt     *time.Time `json:"offer_end_at,omitempty"`
}

func newEntryResponse(e domain.WaitlistEntry) entryResponse {
	return entryResponse{
		ID:             e.ID,
		BusinessID:     e.BusinessID,
		Status:         string(e.Status),
		Position:       e.Position,
		VIP:            e.VIP,
		ClaimExpiresAt: e.ClaimExpiresAt,
		OfferStartAt:   e.OfferStartAt,
		OfferEndAt:     e.OfferEndAt,
	}
}
