package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeMethodNotAllowed   = "method_not_allowed"
	codeNotFound           = "not_found"
	codeInvalidRequestBody = "invalid_request_body"
	codeInvalidRange       = "invalid_time_range"
	codeInvalidPartySize   = "invalid_party_size"
	codeInvalidLimit       = "invalid_limit"
	codeInvalidID          = "invalid_id"
	codeHolderRequired     = "holder_ref_required"
	codeContactRequired    = "guest_contact_required"
	codeBusinessNotFound   = "business_not_found"
	codeResourceNotFound   = "resource_not_found"
	codeSlotConflict       = "slot_conflict"
	codeHoldNotFound       = "hold_not_found"
	codeHoldExpired        = "hold_expired"
	codeHoldNotActive      = "hold_not_active"
	codeHoldConverted      = "hold_already_converted"
	codeBookingNotFound    = "booking_not_found"
	codeBookingNotActive   = "booking_not_active"
	codeEntryNotFound      = "entry_not_found"
	codeEntryNotOffered    = "entry_not_offered"
	codeInvalidClaimToken  = "invalid_claim_token"
	codeOfferExpired       = "offer_expired"
	codeForbidden          = "forbidden"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}
