package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bookwell/engine/internal/clock"
	"github.com/bookwell/engine/internal/domain"
)

// CalendarRepository reads the calendar model: businesses, resources,
// recurring availability windows and blackout periods.
type CalendarRepository interface {
	GetBusiness(ctx context.Context, id string) (domain.Business, error)
	GetResource(ctx context.Context, id string) (domain.Resource, error)
	ListResources(ctx context.Context, businessID, bookableType string) ([]domain.Resource, error)
	ListWindows(ctx context.Context, businessID string) ([]domain.AvailabilityWindow, error)
	ListBlackouts(ctx context.Context, businessID string, from, to time.Time) ([]domain.BlackoutPeriod, error)
}

// BookingReader lists bookings in occupying states for a set of resources.
type BookingReader interface {
	ListOccupying(ctx context.Context, resourceIDs []string, from, to time.Time) ([]domain.Booking, error)
}

// HoldReader lists unexpired active holds for a set of resources.
type HoldReader interface {
	ListActiveHolds(ctx context.Context, resourceIDs []string, from, to, now time.Time) ([]domain.Hold, error)
}

const (
	defaultSlotIncrement = 60 * time.Minute
	defaultLookahead     = 14 * 24 * time.Hour
)

// AvailabilityService computes which slots are bookable. It is a pure read
// and may lag an in-flight acquire; the acquire path re-validates under a
// lock, so display-level staleness is harmless.
type AvailabilityService struct {
	calendar   CalendarRepository
	bookings   BookingReader
	holds      HoldReader
	clock      clock.Clock
	increments map[string]time.Duration
	increment  time.Duration
	lookahead  time.Duration
}

type AvailabilityServiceOption func(*AvailabilityService)

// WithSlotIncrement overrides the slot length for one bookable type.
func WithSlotIncrement(bookableType string, d time.Duration) AvailabilityServiceOption {
	return func(s *AvailabilityService) {
		if d > 0 {
			s.increments[bookableType] = d
		}
	}
}

// WithDefaultSlotIncrement overrides the slot length for bookable types
// without a dedicated increment.
func WithDefaultSlotIncrement(d time.Duration) AvailabilityServiceOption {
	return func(s *AvailabilityService) {
		if d > 0 {
			s.increment = d
		}
	}
}

// WithLookahead bounds how far ahead NextAvailable searches.
func WithLookahead(d time.Duration) AvailabilityServiceOption {
	return func(s *AvailabilityService) {
		if d > 0 {
			s.lookahead = d
		}
	}
}

func NewAvailabilityService(calendar CalendarRepository, bookings BookingReader, holds HoldReader, clk clock.Clock, opts ...AvailabilityServiceOption) *AvailabilityService {
	svc := &AvailabilityService{
		calendar:   calendar,
		bookings:   bookings,
		holds:      holds,
		clock:      clk,
		increments: make(map[string]time.Duration),
		increment:  defaultSlotIncrement,
		lookahead:  defaultLookahead,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ResolveInput struct {
	BusinessID   string
	ResourceID   string
	BookableType string
	From         time.Time
	To           time.Time
	PartySize    int
}

// Resolve enumerates candidate slots for every resource matching the scope
// filter and marks each one available or not. Slots are ordered by start
// time, then resource.
func (s *AvailabilityService) Resolve(ctx context.Context, in ResolveInput) ([]domain.Slot, error) {
	if !in.To.After(in.From) {
		return nil, domain.ErrInvalidRange
	}
	if in.PartySize < 0 {
		return nil, domain.ErrInvalidPartySize
	}

	business, err := s.calendar.GetBusiness(ctx, in.BusinessID)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(business.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load business timezone %q: %w", business.Timezone, err)
	}

	var resources []domain.Resource
	if in.ResourceID != "" {
		resource, err := s.calendar.GetResource(ctx, in.ResourceID)
		if err != nil {
			return nil, err
		}
		if resource.BusinessID != business.ID || !resource.Active {
			return nil, domain.ErrResourceNotFound
		}
		if in.BookableType == "" || resource.BookableType == in.BookableType {
			resources = append(resources, resource)
		}
	} else {
		resources, err = s.calendar.ListResources(ctx, business.ID, in.BookableType)
		if err != nil {
			return nil, err
		}
	}
	if len(resources) == 0 {
		return nil, nil
	}

	windows, err := s.calendar.ListWindows(ctx, business.ID)
	if err != nil {
		return nil, err
	}
	blackouts, err := s.calendar.ListBlackouts(ctx, business.ID, in.From, in.To)
	if err != nil {
		return nil, err
	}

	resourceIDs := make([]string, 0, len(resources))
	for _, r := range resources {
		resourceIDs = append(resourceIDs, r.ID)
	}
	occupying, err := s.bookings.ListOccupying(ctx, resourceIDs, in.From, in.To)
	if err != nil {
		return nil, err
	}
	holds, err := s.holds.ListActiveHolds(ctx, resourceIDs, in.From, in.To, s.clock.Now())
	if err != nil {
		return nil, err
	}

	var slots []domain.Slot
	for _, resource := range resources {
		increment := s.incrementFor(resource.BookableType)
		for day := startOfDay(in.From.In(loc)); day.Before(in.To); day = day.AddDate(0, 0, 1) {
			for _, window := range windows {
				if !window.Active || window.Weekday != day.Weekday() || !window.AppliesTo(resource.ID) {
					continue
				}
				y, m, d := day.Date()
				winStart := time.Date(y, m, d, 0, window.StartMinute, 0, 0, loc)
				winEnd := time.Date(y, m, d, 0, window.EndMinute, 0, 0, loc)
				for start := winStart; !start.Add(increment).After(winEnd); start = start.Add(increment) {
					end := start.Add(increment)
					if start.Before(in.From) || end.After(in.To) {
						continue
					}
					slots = append(slots, domain.Slot{
						ResourceID: resource.ID,
						StartAt:    start,
						EndAt:      end,
						Available:  s.slotAvailable(resource, start, end, in.PartySize, blackouts, occupying, holds),
					})
				}
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].StartAt.Equal(slots[j].StartAt) {
			return slots[i].StartAt.Before(slots[j].StartAt)
		}
		return slots[i].ResourceID < slots[j].ResourceID
	})
	return slots, nil
}

type NextAvailableInput struct {
	BusinessID   string
	BookableType string
	Limit        int
}

// NextAvailable returns the first available slots from now on, bounded by the
// configured lookahead. Used to drive "next available" summaries.
func (s *AvailabilityService) NextAvailable(ctx context.Context, in NextAvailableInput) ([]domain.Slot, error) {
	if in.Limit <= 0 {
		return nil, domain.ErrInvalidLimit
	}

	now := s.clock.Now()
	slots, err := s.Resolve(ctx, ResolveInput{
		BusinessID:   in.BusinessID,
		BookableType: in.BookableType,
		From:         now,
		To:           now.Add(s.lookahead),
	})
	if err != nil {
		return nil, err
	}

	next := make([]domain.Slot, 0, in.Limit)
	for _, slot := range slots {
		if !slot.Available {
			continue
		}
		next = append(next, slot)
		if len(next) == in.Limit {
			break
		}
	}
	return next, nil
}

func (s *AvailabilityService) incrementFor(bookableType string) time.Duration {
	if d, ok := s.increments[bookableType]; ok {
		return d
	}
	return s.increment
}

func (s *AvailabilityService) slotAvailable(resource domain.Resource, start, end time.Time, partySize int, blackouts []domain.BlackoutPeriod, occupying []domain.Booking, holds []domain.Hold) bool {
	if partySize > 0 && resource.Capacity < partySize {
		return false
	}
	for _, b := range blackouts {
		if b.AppliesTo(resource.ID) && domain.Overlaps(start, end, b.StartAt, b.EndAt) {
			return false
		}
	}
	for _, bk := range occupying {
		if bk.ResourceID == resource.ID && domain.Overlaps(start, end, bk.StartAt, bk.EndAt) {
			return false
		}
	}
	for _, h := range holds {
		if h.ResourceID == resource.ID && domain.Overlaps(start, end, h.StartAt, h.EndAt) {
			return false
		}
	}
	return true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
