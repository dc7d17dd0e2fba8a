package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bookwell/engine/internal/clock"
	"github.com/bookwell/engine/internal/domain"
)

// HoldRepository persists slot holds and the bookings that holds convert
// into. Implementations must back CreateHold and CreateBooking with an
// atomic overlap check (the Postgres layer uses exclusion constraints), so a
// read-then-insert race can never double-occupy a range.
type HoldRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetResourceForUpdate(ctx context.Context, resourceID string) (domain.Resource, error)
	CountOccupying(ctx context.Context, resourceID string, start, end, now time.Time) (int, error)
	CreateHold(ctx context.Context, hold domain.Hold) error
	GetHoldForUpdate(ctx context.Context, holdID string) (domain.Hold, error)
	UpdateHold(ctx context.Context, hold domain.Hold) error
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error)
	CreateBooking(ctx context.Context, booking domain.Booking) error
}

const (
	defaultHoldTTL    = 15 * time.Minute
	defaultSweepBatch = 100
)

// HoldService issues, renews, converts and expires slot holds. It is the
// only component allowed to reserve a range ahead of a confirmed booking.
type HoldService struct {
	repo      HoldRepository
	clock     clock.Clock
	publisher EventPublisher
	holdTTL   time.Duration
	freed     SlotFreedHandler
}

type HoldServiceOption func(*HoldService)

// WithHoldTTL overrides the default TTL for new holds.
func WithHoldTTL(d time.Duration) HoldServiceOption {
	return func(s *HoldService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

func NewHoldService(repo HoldRepository, clk clock.Clock, publisher EventPublisher, opts ...HoldServiceOption) *HoldService {
	svc := &HoldService{
		repo:      repo,
		clock:     clk,
		publisher: publisher,
		holdTTL:   defaultHoldTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// SetSlotFreedHandler wires the waitlist allocator in after construction;
// the allocator itself depends on this service for placing offer holds.
func (s *HoldService) SetSlotFreedHandler(h SlotFreedHandler) {
	s.freed = h
}

type AcquireHoldInput struct {
	ResourceID string
	StartAt    time.Time
	EndAt      time.Time
	HolderRef  string
	// TTL overrides the configured hold TTL when positive. Waitlist offers
	// use it so the hold survives the whole offer window.
	TTL time.Duration
}

// Acquire reserves a resource-time range for a limited time. The overlap
// re-check and the insert run in one transaction under a resource row lock,
// so two concurrent acquires for overlapping ranges can never both succeed.
func (s *HoldService) Acquire(ctx context.Context, in AcquireHoldInput) (domain.Hold, error) {
	if !in.EndAt.After(in.StartAt) {
		return domain.Hold{}, domain.ErrInvalidRange
	}
	if in.HolderRef == "" {
		return domain.Hold{}, domain.ErrHolderRequired
	}
	ttl := s.holdTTL
	if in.TTL > 0 {
		ttl = in.TTL
	}

	now := s.clock.Now()
	var hold domain.Hold

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		resource, err := s.repo.GetResourceForUpdate(txCtx, in.ResourceID)
		if err != nil {
			return err
		}
		if !resource.Active {
			return domain.ErrResourceNotFound
		}

		n, err := s.repo.CountOccupying(txCtx, resource.ID, in.StartAt, in.EndAt, now)
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrSlotConflict
		}

		hold = domain.Hold{
			ID:         newID(),
			BusinessID: resource.BusinessID,
			ResourceID: resource.ID,
			StartAt:    in.StartAt,
			EndAt:      in.EndAt,
			Status:     domain.HoldStatusActive,
			HolderRef:  in.HolderRef,
			CreatedAt:  now,
			ExpiresAt:  now.Add(ttl),
		}
		return s.repo.CreateHold(txCtx, hold)
	})
	if err != nil {
		return domain.Hold{}, err
	}

	s.publisher.Publish(ctx, s.holdEvent(domain.EventHoldAcquired, hold))
	return hold, nil
}

// Renew extends an active hold by the configured TTL from now. A hold past
// its deadline is left for the sweeper so the freed-slot event fires exactly
// once.
func (s *HoldService) Renew(ctx context.Context, holdID string) (domain.Hold, error) {
	now := s.clock.Now()
	var hold domain.Hold

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		cur, err := s.repo.GetHoldForUpdate(txCtx, holdID)
		if err != nil {
			return err
		}
		if err := activeOrStatusErr(cur, now); err != nil {
			return err
		}
		cur.ExpiresAt = now.Add(s.holdTTL)
		hold = cur
		return s.repo.UpdateHold(txCtx, cur)
	})
	if err != nil {
		return domain.Hold{}, err
	}
	return hold, nil
}

// Release is the explicit customer-abandon path: same effect as expiry, but
// immediate. The freed range is handed to the waitlist allocator.
func (s *HoldService) Release(ctx context.Context, holdID string) error {
	now := s.clock.Now()
	var hold domain.Hold

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		cur, err := s.repo.GetHoldForUpdate(txCtx, holdID)
		if err != nil {
			return err
		}
		if err := activeOrStatusErr(cur, now); err != nil {
			return err
		}
		cur.Status = domain.HoldStatusReleased
		hold = cur
		return s.repo.UpdateHold(txCtx, cur)
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(ctx, s.holdEvent(domain.EventHoldReleased, hold))
	s.notifyFreed(ctx, hold.BusinessID, hold.ResourceID, hold.StartAt, hold.EndAt)
	return nil
}

type ConvertHoldInput struct {
	HoldID     string
	GuestName  string
	GuestEmail string
	PartySize  int
}

// Convert turns an active hold into a confirmed booking in one transaction.
// This is the checkout success path; a racing expiry sweep loses or wins
// atomically, never both.
func (s *HoldService) Convert(ctx context.Context, in ConvertHoldInput) (domain.Booking, error) {
	booking, ev, err := s.convert(ctx, in)
	if err != nil {
		return domain.Booking{}, err
	}
	s.publisher.Publish(ctx, ev)
	return booking, nil
}

// convert runs the conversion transaction and hands the audit event back to
// the caller. A caller joining us to its own open transaction publishes the
// event only after that transaction commits, so a rollback cannot leave a
// phantom conversion on the stream.
func (s *HoldService) convert(ctx context.Context, in ConvertHoldInput) (domain.Booking, domain.Event, error) {
	if in.GuestName == "" && in.GuestEmail == "" {
		return domain.Booking{}, domain.Event{}, domain.ErrContactRequired
	}
	if in.PartySize < 0 {
		return domain.Booking{}, domain.Event{}, domain.ErrInvalidPartySize
	}
	partySize := in.PartySize
	if partySize == 0 {
		partySize = 1
	}

	now := s.clock.Now()
	var booking domain.Booking
	var hold domain.Hold

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		cur, err := s.repo.GetHoldForUpdate(txCtx, in.HoldID)
		if err != nil {
			return err
		}
		if err := activeOrStatusErr(cur, now); err != nil {
			return err
		}

		resource, err := s.repo.GetResourceForUpdate(txCtx, cur.ResourceID)
		if err != nil {
			return err
		}
		if partySize > resource.Capacity {
			return domain.ErrInvalidPartySize
		}

		booking = domain.Booking{
			ID:           newID(),
			BusinessID:   cur.BusinessID,
			ResourceID:   cur.ResourceID,
			BookableType: resource.BookableType,
			StartAt:      cur.StartAt,
			EndAt:        cur.EndAt,
			Status:       domain.BookingStatusConfirmed,
			GuestName:    in.GuestName,
			GuestEmail:   in.GuestEmail,
			PartySize:    partySize,
			CreatedAt:    now,
		}
		if err := s.repo.CreateBooking(txCtx, booking); err != nil {
			return err
		}

		cur.Status = domain.HoldStatusConverted
		hold = cur
		return s.repo.UpdateHold(txCtx, cur)
	})
	if err != nil {
		return domain.Booking{}, domain.Event{}, err
	}

	ev := s.holdEvent(domain.EventHoldConverted, hold)
	ev.BookingID = booking.ID
	return booking, ev, nil
}

// ExpireDue transitions every active hold past its deadline to expired and
// fires the freed-slot cascade for each. Safe to re-run: a hold already
// expired, converted or released is skipped.
func (s *HoldService) ExpireDue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	due, err := s.repo.ListExpiredHolds(ctx, now, defaultSweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list expired holds: %w", err)
	}

	expired := 0
	for _, h := range due {
		if err := ctx.Err(); err != nil {
			return expired, err
		}

		won := false
		err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
			cur, err := s.repo.GetHoldForUpdate(txCtx, h.ID)
			if err != nil {
				return err
			}
			if cur.Status != domain.HoldStatusActive || cur.ExpiresAt.After(now) {
				// A concurrent convert, release or renew won the race.
				return nil
			}
			cur.Status = domain.HoldStatusExpired
			h = cur
			won = true
			return s.repo.UpdateHold(txCtx, cur)
		})
		if err != nil {
			logrus.WithError(err).WithField("hold_id", h.ID).Error("expire hold")
			continue
		}
		if !won {
			continue
		}

		expired++
		s.publisher.Publish(ctx, s.holdEvent(domain.EventHoldExpired, h))
		s.notifyFreed(ctx, h.BusinessID, h.ResourceID, h.StartAt, h.EndAt)
	}
	return expired, nil
}

func (s *HoldService) notifyFreed(ctx context.Context, businessID, resourceID string, start, end time.Time) {
	if s.freed == nil {
		return
	}
	if err := s.freed.SlotFreed(ctx, businessID, resourceID, start, end); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"resource_id": resourceID,
			"start_at":    start,
		}).Warn("freed slot reallocation failed")
	}
}

func (s *HoldService) holdEvent(name string, hold domain.Hold) domain.Event {
	return domain.Event{
		Name:       name,
		BusinessID: hold.BusinessID,
		ResourceID: hold.ResourceID,
		HoldID:     hold.ID,
		StartAt:    hold.StartAt,
		EndAt:      hold.EndAt,
		OccurredAt: s.clock.Now(),
	}
}

// activeOrStatusErr maps a non-usable hold to its terminal-state error. A
// hold whose deadline passed but that the sweeper has not visited yet counts
// as expired already.
func activeOrStatusErr(hold domain.Hold, now time.Time) error {
	switch hold.Status {
	case domain.HoldStatusConverted:
		return domain.ErrHoldConverted
	case domain.HoldStatusReleased:
		return domain.ErrHoldNotActive
	case domain.HoldStatusExpired:
		return domain.ErrHoldExpired
	}
	if !hold.ExpiresAt.After(now) {
		return domain.ErrHoldExpired
	}
	return nil
}
