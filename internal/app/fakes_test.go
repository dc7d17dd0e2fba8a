package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bookwell/engine/internal/domain"
)

// fakeStore is a single in-memory backing store implementing every
// repository interface the services need. One store per test keeps the
// cross-service flows (hold release cascading into a waitlist offer)
// observable without Postgres.
type fakeStore struct {
	mu         sync.Mutex
	businesses map[string]domain.Business
	resources  map[string]domain.Resource
	windows    []domain.AvailabilityWindow
	blackouts  []domain.BlackoutPeriod
	holds      map[string]domain.Hold
	bookings   map[string]domain.Booking
	entries    map[string]domain.WaitlistEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		businesses: make(map[string]domain.Business),
		resources:  make(map[string]domain.Resource),
		holds:      make(map[string]domain.Hold),
		bookings:   make(map[string]domain.Booking),
		entries:    make(map[string]domain.WaitlistEntry),
	}
}

type fakeTxKey struct{}

// WithTx serializes transactions on a single mutex, mirroring the row-lock
// ordering the Postgres layer gets from SELECT ... FOR UPDATE. Nested calls
// join the open transaction the way txFromContext does.
func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(context.WithValue(ctx, fakeTxKey{}, struct{}{}))
}

func (f *fakeStore) GetBusiness(_ context.Context, id string) (domain.Business, error) {
	b, ok := f.businesses[id]
	if !ok {
		return domain.Business{}, domain.ErrBusinessNotFound
	}
	return b, nil
}

func (f *fakeStore) GetResource(_ context.Context, id string) (domain.Resource, error) {
	r, ok := f.resources[id]
	if !ok {
		return domain.Resource{}, domain.ErrResourceNotFound
	}
	return r, nil
}

func (f *fakeStore) GetResourceForUpdate(ctx context.Context, id string) (domain.Resource, error) {
	return f.GetResource(ctx, id)
}

func (f *fakeStore) ListResources(_ context.Context, businessID, bookableType string) ([]domain.Resource, error) {
	var out []domain.Resource
	for _, r := range f.resources {
		if r.BusinessID != businessID || !r.Active {
			continue
		}
		if bookableType != "" && r.BookableType != bookableType {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListWindows(_ context.Context, businessID string) ([]domain.AvailabilityWindow, error) {
	var out []domain.AvailabilityWindow
	for _, w := range f.windows {
		if w.BusinessID == businessID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeStore) ListBlackouts(_ context.Context, businessID string, from, to time.Time) ([]domain.BlackoutPeriod, error) {
	var out []domain.BlackoutPeriod
	for _, b := range f.blackouts {
		if b.BusinessID == businessID && domain.Overlaps(b.StartAt, b.EndAt, from, to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) ListOccupying(_ context.Context, resourceIDs []string, from, to time.Time) ([]domain.Booking, error) {
	ids := make(map[string]struct{}, len(resourceIDs))
	for _, id := range resourceIDs {
		ids[id] = struct{}{}
	}
	var out []domain.Booking
	for _, b := range f.bookings {
		if _, ok := ids[b.ResourceID]; !ok {
			continue
		}
		if b.Status.Occupying() && domain.Overlaps(b.StartAt, b.EndAt, from, to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) ListActiveHolds(_ context.Context, resourceIDs []string, from, to, now time.Time) ([]domain.Hold, error) {
	ids := make(map[string]struct{}, len(resourceIDs))
	for _, id := range resourceIDs {
		ids[id] = struct{}{}
	}
	var out []domain.Hold
	for _, h := range f.holds {
		if _, ok := ids[h.ResourceID]; !ok {
			continue
		}
		if h.ActiveAt(now) && domain.Overlaps(h.StartAt, h.EndAt, from, to) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeStore) CountOccupying(_ context.Context, resourceID string, start, end, now time.Time) (int, error) {
	n := 0
	for _, b := range f.bookings {
		if b.ResourceID == resourceID && b.Status.Occupying() && domain.Overlaps(b.StartAt, b.EndAt, start, end) {
			n++
		}
	}
	for _, h := range f.holds {
		if h.ResourceID == resourceID && h.ActiveAt(now) && domain.Overlaps(h.StartAt, h.EndAt, start, end) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateHold(_ context.Context, hold domain.Hold) error {
	f.holds[hold.ID] = hold
	return nil
}

func (f *fakeStore) GetHoldForUpdate(_ context.Context, holdID string) (domain.Hold, error) {
	h, ok := f.holds[holdID]
	if !ok {
		return domain.Hold{}, domain.ErrHoldNotFound
	}
	return h, nil
}

func (f *fakeStore) UpdateHold(_ context.Context, hold domain.Hold) error {
	if _, ok := f.holds[hold.ID]; !ok {
		return domain.ErrHoldNotFound
	}
	f.holds[hold.ID] = hold
	return nil
}

func (f *fakeStore) ListExpiredHolds(_ context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	var out []domain.Hold
	for _, h := range f.holds {
		if h.Status == domain.HoldStatusActive && !h.ExpiresAt.After(now) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) CreateBooking(_ context.Context, booking domain.Booking) error {
	f.bookings[booking.ID] = booking
	return nil
}

func (f *fakeStore) GetBookingForUpdate(_ context.Context, bookingID string) (domain.Booking, error) {
	b, ok := f.bookings[bookingID]
	if !ok {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	return b, nil
}

func (f *fakeStore) UpdateBookingStatus(_ context.Context, bookingID string, status domain.BookingStatus) error {
	b, ok := f.bookings[bookingID]
	if !ok {
		return domain.ErrBookingNotFound
	}
	b.Status = status
	f.bookings[bookingID] = b
	return nil
}

func (f *fakeStore) CreateEntry(_ context.Context, entry domain.WaitlistEntry) error {
	f.entries[entry.ID] = entry
	return nil
}

func (f *fakeStore) GetEntryForUpdate(_ context.Context, entryID string) (domain.WaitlistEntry, error) {
	e, ok := f.entries[entryID]
	if !ok {
		return domain.WaitlistEntry{}, domain.ErrEntryNotFound
	}
	return e, nil
}

func (f *fakeStore) UpdateEntry(_ context.Context, entry domain.WaitlistEntry) error {
	if _, ok := f.entries[entry.ID]; !ok {
		return domain.ErrEntryNotFound
	}
	f.entries[entry.ID] = entry
	return nil
}

func (f *fakeStore) ListWaiting(_ context.Context, businessID string) ([]domain.WaitlistEntry, error) {
	var out []domain.WaitlistEntry
	for _, e := range f.entries {
		if e.BusinessID == businessID && e.Status == domain.WaitlistStatusWaiting {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VIP != out[j].VIP {
			return out[i].VIP
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (f *fakeStore) ListExpiredOffers(_ context.Context, now time.Time, limit int) ([]domain.WaitlistEntry, error) {
	var out []domain.WaitlistEntry
	for _, e := range f.entries {
		if e.Status == domain.WaitlistStatusOffered && e.ClaimExpiresAt != nil && !e.ClaimExpiresAt.After(now) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimExpiresAt.Before(*out[j].ClaimExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) NextPosition(_ context.Context, businessID string) (int, error) {
	max := 0
	for _, e := range f.entries {
		if e.BusinessID == businessID && e.Position > max {
			max = e.Position
		}
	}
	return max + 1, nil
}

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *capturingPublisher) Publish(_ context.Context, ev domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *capturingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Name)
	}
	return out
}

func (p *capturingPublisher) last(name string) (domain.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Name == name {
			return p.events[i], true
		}
	}
	return domain.Event{}, false
}

type freedCall struct {
	businessID string
	resourceID string
	start      time.Time
	end        time.Time
}

// freedRecorder captures freed-slot notifications without reallocating.
type freedRecorder struct {
	mu    sync.Mutex
	calls []freedCall
}

func (r *freedRecorder) SlotFreed(_ context.Context, businessID, resourceID string, start, end time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, freedCall{businessID: businessID, resourceID: resourceID, start: start, end: end})
	return nil
}

func (r *freedRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// claimUpdateFailStore fails the entry update that finalizes a claim while
// delegating everything else to the wrapped store.
type claimUpdateFailStore struct {
	*fakeStore
	err error
}

func (s *claimUpdateFailStore) UpdateEntry(ctx context.Context, entry domain.WaitlistEntry) error {
	if entry.Status == domain.WaitlistStatusClaimed {
		return s.err
	}
	return s.fakeStore.UpdateEntry(ctx, entry)
}

// failingFreed rejects every freed-slot notification.
type failingFreed struct {
	err error
}

func (f *failingFreed) SlotFreed(context.Context, string, string, time.Time, time.Time) error {
	return f.err
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
