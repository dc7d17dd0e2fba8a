package http

import (
	"errors"
	"net/http"

	"github.com/bookwell/engine/internal/domain"
)

// writeDomainError maps engine sentinel errors to HTTP status codes, falling
// back to a 500 for anything unrecognized.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, codeInvalidRange, err.Error())
	case errors.Is(err, domain.ErrInvalidPartySize):
		writeError(w, http.StatusBadRequest, codeInvalidPartySize, err.Error())
	case errors.Is(err, domain.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, codeInvalidLimit, err.Error())
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrHolderRequired):
		writeError(w, http.StatusBadRequest, codeHolderRequired, err.Error())
	case errors.Is(err, domain.ErrContactRequired):
		writeError(w, http.StatusBadRequest, codeContactRequired, err.Error())
	case errors.Is(err, domain.ErrBusinessNotFound):
		writeError(w, http.StatusNotFound, codeBusinessNotFound, err.Error())
	case errors.Is(err, domain.ErrResourceNotFound):
		writeError(w, http.StatusNotFound, codeResourceNotFound, err.Error())
	case errors.Is(err, domain.ErrHoldNotFound):
		writeError(w, http.StatusNotFound, codeHoldNotFound, err.Error())
	case errors.Is(err, domain.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, codeBookingNotFound, err.Error())
	case errors.Is(err, domain.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, codeEntryNotFound, err.Error())
	case errors.Is(err, domain.ErrSlotConflict):
		writeError(w, http.StatusConflict, codeSlotConflict, err.Error())
	case errors.Is(err, domain.ErrHoldExpired):
		writeError(w, http.StatusConflict, codeHoldExpired, err.Error())
	case errors.Is(err, domain.ErrHoldNotActive):
		writeError(w, http.StatusConflict, codeHoldNotActive, err.Error())
	case errors.Is(err, domain.ErrHoldConverted):
		writeError(w, http.StatusConflict, codeHoldConverted, err.Error())
	case errors.Is(err, domain.ErrBookingNotActive):
		writeError(w, http.StatusConflict, codeBookingNotActive, err.Error())
	case errors.Is(err, domain.ErrEntryNotOffered):
		writeError(w, http.StatusConflict, codeEntryNotOffered, err.Error())
	case errors.Is(err, domain.ErrOfferExpired):
		writeError(w, http.StatusGone, codeOfferExpired, err.Error())
	case errors.Is(err, domain.ErrInvalidClaimToken):
		writeError(w, http.StatusForbidden, codeInvalidClaimToken, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
