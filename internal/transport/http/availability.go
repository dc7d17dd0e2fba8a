package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/bookwell/engine/internal/app"
	"github.com/bookwell/engine/internal/domain"
)

// SlotResolver is the minimal interface needed to answer availability
// queries.
type SlotResolver interface {
	Resolve(ctx context.Context, in app.ResolveInput) ([]domain.Slot, error)
	NextAvailable(ctx context.Context, in app.NextAvailableInput) ([]domain.Slot, error)
}

// HandleResolveAvailability returns an HTTP handler for slot queries.
func HandleResolveAvailability(svc SlotResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		q := r.URL.Query()
		from, err := time.Parse(time.RFC3339, q.Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRange, "from must be RFC 3339")
			return
		}
		to, err := time.Parse(time.RFC3339, q.Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRange, "to must be RFC 3339")
			return
		}

		partySize := 0
		if raw := q.Get("party_size"); raw != "" {
			partySize, err = strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidPartySize, "party_size must be an integer")
				return
			}
		}

		slots, err := svc.Resolve(r.Context(), app.ResolveInput{
			BusinessID:   q.Get("business_id"),
			ResourceID:   q.Get("resource_id"),
			BookableType: q.Get("bookable_type"),
			From:         from,
			To:           to,
			PartySize:    partySize,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeSlots(w, slots)
	}
}

// HandleNextAvailable returns an HTTP handler for "next available" summaries.
func HandleNextAvailable(svc SlotResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		q := r.URL.Query()
		limit := 1
		if raw := q.Get("limit"); raw != "" {
			var err error
			limit, err = strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidLimit, "limit must be an integer")
				return
			}
		}

		slots, err := svc.NextAvailable(r.Context(), app.NextAvailableInput{
			BusinessID:   q.Get("business_id"),
			BookableType: q.Get("bookable_type"),
			Limit:        limit,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeSlots(w, slots)
	}
}

type slotResponse struct {
	ResourceID string    `json:"resource_id"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	Available  bool      `json:"available"`
}

func writeSlots(w http.ResponseWriter, slots []domain.Slot) {
	resp := make([]slotResponse, 0, len(slots))
	for _, s := range slots {
		resp = append(resp, slotResponse{
			ResourceID: s.ResourceID,
			StartAt:    s.StartAt,
			EndAt:      s.EndAt,
			Available:  s.Available,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
