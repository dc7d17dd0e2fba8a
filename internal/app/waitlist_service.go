package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bookwell/engine/internal/clock"
	"github.com/bookwell/engine/internal/domain"
)

// WaitlistRepository persists waitlist entries. ListWaiting must return
// entries ordered VIP first, then by queue position ascending.
type WaitlistRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetBusiness(ctx context.Context, businessID string) (domain.Business, error)
	GetResource(ctx context.Context, resourceID string) (domain.Resource, error)
	CreateEntry(ctx context.Context, entry domain.WaitlistEntry) error
	GetEntryForUpdate(ctx context.Context, entryID string) (domain.WaitlistEntry, error)
	UpdateEntry(ctx context.Context, entry domain.WaitlistEntry) error
	ListWaiting(ctx context.Context, businessID string) ([]domain.WaitlistEntry, error)
	ListExpiredOffers(ctx context.Context, now time.Time, limit int) ([]domain.WaitlistEntry, error)
	NextPosition(ctx context.Context, businessID string) (int, error)
}

const defaultOfferWindow = 24 * time.Hour

// errEntryUnavailable signals that an entry stopped waiting between the
// ranked read and the offer transaction; the allocator moves on.
var errEntryUnavailable = errors.New("waitlist entry no longer waiting")

// WaitlistService ranks waiting entries when a slot frees up and drives the
// offer/claim lifecycle of the selected entry.
type WaitlistService struct {
	repo        WaitlistRepository
	holds       *HoldService
	clock       clock.Clock
	publisher   EventPublisher
	offerWindow time.Duration
}

type WaitlistServiceOption func(*WaitlistService)

// WithOfferWindow overrides how long a customer has to claim an offer.
func WithOfferWindow(d time.Duration) WaitlistServiceOption {
	return func(s *WaitlistService) {
		if d > 0 {
			s.offerWindow = d
		}
	}
}

func NewWaitlistService(repo WaitlistRepository, holds *HoldService, clk clock.Clock, publisher EventPublisher, opts ...WaitlistServiceOption) *WaitlistService {
	svc := &WaitlistService{
		repo:        repo,
		holds:       holds,
		clock:       clk,
		publisher:   publisher,
		offerWindow: defaultOfferWindow,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type JoinWaitlistInput struct {
	BusinessID      string
	ResourceID      *string
	BookableType    *string
	PreferredDate   *time.Time
	FlexibilityDays int
	GuestName       string
	GuestEmail      string
	VIP             bool
}

// Join appends a new waiting entry at the back of the business queue.
func (s *WaitlistService) Join(ctx context.Context, in JoinWaitlistInput) (domain.WaitlistEntry, error) {
	if in.BusinessID == "" {
		return domain.WaitlistEntry{}, domain.ErrInvalidID
	}
	if in.GuestName == "" && in.GuestEmail == "" {
		return domain.WaitlistEntry{}, domain.ErrContactRequired
	}
	if in.FlexibilityDays < 0 {
		return domain.WaitlistEntry{}, domain.ErrInvalidRange
	}
	if in.ResourceID != nil {
		resource, err := s.repo.GetResource(ctx, *in.ResourceID)
		if err != nil {
			return domain.WaitlistEntry{}, err
		}
		if resource.BusinessID != in.BusinessID {
			return domain.WaitlistEntry{}, domain.ErrResourceNotFound
		}
	}

	now := s.clock.Now()
	var entry domain.WaitlistEntry

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		pos, err := s.repo.NextPosition(txCtx, in.BusinessID)
		if err != nil {
			return err
		}
		entry = domain.WaitlistEntry{
			ID:              newID(),
			BusinessID:      in.BusinessID,
			ResourceID:      in.ResourceID,
			BookableType:    in.BookableType,
			PreferredDate:   in.PreferredDate,
			FlexibilityDays: in.FlexibilityDays,
			GuestName:       in.GuestName,
			GuestEmail:      in.GuestEmail,
			VIP:             in.VIP,
			Position:        pos,
			Status:          domain.WaitlistStatusWaiting,
			CreatedAt:       now,
		}
		return s.repo.CreateEntry(txCtx, entry)
	})
	if err != nil {
		return domain.WaitlistEntry{}, err
	}
	return entry, nil
}

// SlotFreed offers a freed range to the best-matching waiting entry. VIP
// entries go first, ties broken by earliest queue position. When nobody
// matches, the slot simply stays open for direct booking.
func (s *WaitlistService) SlotFreed(ctx context.Context, businessID, resourceID string, start, end time.Time) error {
	business, err := s.repo.GetBusiness(ctx, businessID)
	if err != nil {
		return fmt.Errorf("load freed business: %w", err)
	}
	loc, err := time.LoadLocation(business.Timezone)
	if err != nil {
		return fmt.Errorf("load business timezone %q: %w", business.Timezone, err)
	}
	resource, err := s.repo.GetResource(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("load freed resource: %w", err)
	}
	entries, err := s.repo.ListWaiting(ctx, businessID)
	if err != nil {
		return fmt.Errorf("list waiting entries: %w", err)
	}

	// Preferred dates are calendar days in the business's zone; a slot near
	// midnight UTC must be matched against its local date.
	localStart := start.In(loc)

	for _, entry := range entries {
		if !entry.Matches(resourceID, resource.BookableType, localStart) {
			continue
		}
		err := s.offer(ctx, entry.ID, resource, start, end)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, domain.ErrSlotConflict):
			// The range got taken while we were ranking; nothing to allocate.
			return nil
		case errors.Is(err, errEntryUnavailable):
			continue
		default:
			return err
		}
	}
	return nil
}

// offer places a hold on the freed range, then transitions the entry to
// offered with a fresh claim token. If the entry transition fails the hold
// is released immediately; even if that release fails, the hold's TTL makes
// the sweep recover the slot.
func (s *WaitlistService) offer(ctx context.Context, entryID string, resource domain.Resource, start, end time.Time) error {
	hold, err := s.holds.Acquire(ctx, AcquireHoldInput{
		ResourceID: resource.ID,
		StartAt:    start,
		EndAt:      end,
		HolderRef:  "waitlist:" + entryID,
		TTL:        s.offerWindow,
	})
	if err != nil {
		return err
	}

	token := newClaimToken()
	deadline := s.clock.Now().Add(s.offerWindow)
	var entry domain.WaitlistEntry

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		cur, err := s.repo.GetEntryForUpdate(txCtx, entryID)
		if err != nil {
			return err
		}
		if cur.Status != domain.WaitlistStatusWaiting {
			return errEntryUnavailable
		}
		cur.Status = domain.WaitlistStatusOffered
		cur.ClaimToken = &token
		cur.ClaimExpiresAt = &deadline
		cur.HoldID = &hold.ID
		cur.OfferStartAt = &start
		cur.OfferEndAt = &end
		entry = cur
		return s.repo.UpdateEntry(txCtx, cur)
	})
	if err != nil {
		if relErr := s.holds.Release(ctx, hold.ID); relErr != nil {
			logrus.WithError(relErr).WithField("hold_id", hold.ID).Warn("release orphaned offer hold")
		}
		return err
	}

	s.publisher.Publish(ctx, domain.Event{
		Name:       domain.EventOfferCreated,
		BusinessID: entry.BusinessID,
		ResourceID: resource.ID,
		HoldID:     hold.ID,
		EntryID:    entry.ID,
		ClaimToken: token,
		Deadline:   &deadline,
		StartAt:    start,
		EndAt:      end,
		OccurredAt: s.clock.Now(),
	})
	return nil
}

type ClaimResult struct {
	Entry   domain.WaitlistEntry
	Booking domain.Booking
}

// Claim converts an outstanding offer into a confirmed booking. A claim
// arriving after the deadline performs the expiry transition (demotion and
// re-offer) before surfacing ErrOfferExpired.
func (s *WaitlistService) Claim(ctx context.Context, entryID, token string) (ClaimResult, error) {
	now := s.clock.Now()
	var result ClaimResult
	var convertedEv domain.Event
	expired := false

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		cur, err := s.repo.GetEntryForUpdate(txCtx, entryID)
		if err != nil {
			return err
		}
		if cur.Status != domain.WaitlistStatusOffered {
			return domain.ErrEntryNotOffered
		}
		if cur.ClaimToken == nil || subtle.ConstantTimeCompare([]byte(*cur.ClaimToken), []byte(token)) != 1 {
			return domain.ErrInvalidClaimToken
		}
		if cur.ClaimExpiresAt == nil || !cur.ClaimExpiresAt.After(now) {
			expired = true
			return domain.ErrOfferExpired
		}
		if cur.HoldID == nil {
			return domain.ErrHoldNotFound
		}

		// The conversion joins this transaction; its audit event is held
		// back until we commit, so a failed claim leaves no phantom
		// conversion on the stream.
		booking, ev, err := s.holds.convert(txCtx, ConvertHoldInput{
			HoldID:     *cur.HoldID,
			GuestName:  cur.GuestName,
			GuestEmail: cur.GuestEmail,
		})
		if err != nil {
			if errors.Is(err, domain.ErrHoldExpired) {
				// The hold sweep won the race; treat the claim as expired.
				expired = true
				return domain.ErrOfferExpired
			}
			return err
		}

		cur.Status = domain.WaitlistStatusClaimed
		result = ClaimResult{Entry: cur, Booking: booking}
		convertedEv = ev
		return s.repo.UpdateEntry(txCtx, cur)
	})
	if expired {
		if _, _, demErr := s.demote(ctx, entryID, domain.EventOfferExpired, false); demErr != nil {
			logrus.WithError(demErr).WithField("entry_id", entryID).Error("demote expired offer")
		}
		return ClaimResult{}, domain.ErrOfferExpired
	}
	if err != nil {
		return ClaimResult{}, err
	}

	s.publisher.Publish(ctx, convertedEv)
	s.publisher.Publish(ctx, domain.Event{
		Name:       domain.EventOfferClaimed,
		BusinessID: result.Entry.BusinessID,
		ResourceID: result.Booking.ResourceID,
		BookingID:  result.Booking.ID,
		EntryID:    result.Entry.ID,
		StartAt:    result.Booking.StartAt,
		EndAt:      result.Booking.EndAt,
		OccurredAt: s.clock.Now(),
	})
	return result, nil
}

// Decline returns an offered entry to waiting at the back of the queue and
// releases the offer hold, which re-triggers allocation for the freed range.
func (s *WaitlistService) Decline(ctx context.Context, entryID string) (domain.WaitlistEntry, error) {
	entry, _, err := s.demote(ctx, entryID, domain.EventOfferDeclined, true)
	return entry, err
}

// ExpireDueOffers demotes every offer past its claim deadline. Idempotent:
// entries already demoted by a racing claim or decline are skipped.
func (s *WaitlistService) ExpireDueOffers(ctx context.Context) (int, error) {
	now := s.clock.Now()
	due, err := s.repo.ListExpiredOffers(ctx, now, defaultSweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list expired offers: %w", err)
	}

	count := 0
	for _, e := range due {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		_, demoted, err := s.demote(ctx, e.ID, domain.EventOfferExpired, false)
		if err != nil {
			logrus.WithError(err).WithField("entry_id", e.ID).Error("expire offer")
			continue
		}
		if demoted {
			count++
		}
	}
	return count, nil
}

// demote moves an offered entry back to waiting with a position at the back
// of the queue, so repeatedly-missed customers do not block others. The
// released offer hold cascades into the next eligible entry's offer.
func (s *WaitlistService) demote(ctx context.Context, entryID, eventName string, strict bool) (domain.WaitlistEntry, bool, error) {
	var entry domain.WaitlistEntry
	var holdID string
	demoted := false

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		cur, err := s.repo.GetEntryForUpdate(txCtx, entryID)
		if err != nil {
			return err
		}
		if cur.Status != domain.WaitlistStatusOffered {
			if strict {
				return domain.ErrEntryNotOffered
			}
			entry = cur
			return nil
		}

		pos, err := s.repo.NextPosition(txCtx, cur.BusinessID)
		if err != nil {
			return err
		}
		if cur.HoldID != nil {
			holdID = *cur.HoldID
		}
		cur.Status = domain.WaitlistStatusWaiting
		cur.Position = pos
		cur.ClaimToken = nil
		cur.ClaimExpiresAt = nil
		cur.HoldID = nil
		cur.OfferStartAt = nil
		cur.OfferEndAt = nil
		entry = cur
		demoted = true
		return s.repo.UpdateEntry(txCtx, cur)
	})
	if err != nil {
		return domain.WaitlistEntry{}, false, err
	}
	if !demoted {
		return entry, false, nil
	}

	s.publisher.Publish(ctx, domain.Event{
		Name:       eventName,
		BusinessID: entry.BusinessID,
		EntryID:    entry.ID,
		OccurredAt: s.clock.Now(),
	})

	if holdID != "" {
		err := s.holds.Release(ctx, holdID)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrHoldExpired), errors.Is(err, domain.ErrHoldNotActive):
			// The hold sweep beat us to it and already freed the range.
		default:
			logrus.WithError(err).WithField("hold_id", holdID).Error("release offer hold")
		}
	}
	return entry, true, nil
}
