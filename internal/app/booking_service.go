package app

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/bookwell/engine/internal/clock"
	"github.com/bookwell/engine/internal/domain"
)

// BookingRepository mutates the booking ledger.
type BookingRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetBookingForUpdate(ctx context.Context, bookingID string) (domain.Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID string, status domain.BookingStatus) error
}

// BookingService is the entry point for the admin approval/cancellation
// flow: it moves a booking out of an occupying state and hands the freed
// range to the waitlist allocator.
type BookingService struct {
	repo      BookingRepository
	clock     clock.Clock
	publisher EventPublisher
	freed     SlotFreedHandler
}

func NewBookingService(repo BookingRepository, clk clock.Clock, publisher EventPublisher) *BookingService {
	return &BookingService{
		repo:      repo,
		clock:     clk,
		publisher: publisher,
	}
}

// SetSlotFreedHandler wires the waitlist allocator in after construction.
func (s *BookingService) SetSlotFreedHandler(h SlotFreedHandler) {
	s.freed = h
}

// Cancel transitions a booking to cancelled and frees its slot.
func (s *BookingService) Cancel(ctx context.Context, bookingID string) (domain.Booking, error) {
	return s.vacate(ctx, bookingID, domain.BookingStatusCancelled)
}

// Deny transitions a pending booking to denied and frees its slot.
func (s *BookingService) Deny(ctx context.Context, bookingID string) (domain.Booking, error) {
	return s.vacate(ctx, bookingID, domain.BookingStatusDenied)
}

func (s *BookingService) vacate(ctx context.Context, bookingID string, status domain.BookingStatus) (domain.Booking, error) {
	var booking domain.Booking

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		cur, err := s.repo.GetBookingForUpdate(txCtx, bookingID)
		if err != nil {
			return err
		}
		if !cur.Status.Occupying() {
			return domain.ErrBookingNotActive
		}
		if err := s.repo.UpdateBookingStatus(txCtx, cur.ID, status); err != nil {
			return err
		}
		cur.Status = status
		booking = cur
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}

	s.publisher.Publish(ctx, domain.Event{
		Name:       domain.EventBookingCancelled,
		BusinessID: booking.BusinessID,
		ResourceID: booking.ResourceID,
		BookingID:  booking.ID,
		StartAt:    booking.StartAt,
		EndAt:      booking.EndAt,
		OccurredAt: s.clock.Now(),
	})
	// The cancellation is committed; a reallocation failure only means the
	// slot stays open for direct booking.
	if s.freed != nil {
		if err := s.freed.SlotFreed(ctx, booking.BusinessID, booking.ResourceID, booking.StartAt, booking.EndAt); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"booking_id":  booking.ID,
				"resource_id": booking.ResourceID,
			}).Warn("freed slot reallocation failed")
		}
	}
	return booking, nil
}
