package domain

import "errors"

var (
	ErrInvalidRange      = errors.New("invalid time range")
	ErrInvalidPartySize  = errors.New("invalid party size")
	ErrInvalidLimit      = errors.New("invalid limit")
	ErrHolderRequired    = errors.New("holder reference required")
	ErrContactRequired   = errors.New("guest contact required")
	ErrBusinessNotFound  = errors.New("business not found")
	ErrResourceNotFound  = errors.New("resource not found")
	ErrSlotConflict      = errors.New("slot already occupied")
	ErrHoldNotFound      = errors.New("hold not found")
	ErrHoldExpired       = errors.New("hold expired")
	ErrHoldNotActive     = errors.New("hold is not active")
	ErrHoldConverted     = errors.New("hold already converted")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrBookingNotActive  = errors.New("booking is not occupying a slot")
	ErrEntryNotFound     = errors.New("waitlist entry not found")
	ErrEntryNotOffered   = errors.New("waitlist entry has no outstanding offer")
	ErrInvalidClaimToken = errors.New("invalid claim token")
	ErrOfferExpired      = errors.New("offer expired")
	ErrInvalidID         = errors.New("invalid id")
)
