package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bookwell/engine/internal/clock"
	"github.com/bookwell/engine/internal/domain"
)

func waitlistFixture(now time.Time, offerWindow time.Duration, cascade bool) (*WaitlistService, *HoldService, *fakeStore, *capturingPublisher) {
	store := newFakeStore()
	store.businesses["biz-1"] = domain.Business{ID: "biz-1", Name: "Studio", Timezone: "UTC"}
	store.resources["res-1"] = domain.Resource{ID: "res-1", BusinessID: "biz-1", BookableType: "room", Name: "Room A", Capacity: 4, Active: true}
	store.resources["res-2"] = domain.Resource{ID: "res-2", BusinessID: "biz-1", BookableType: "court", Name: "Court B", Capacity: 2, Active: true}

	pub := &capturingPublisher{}
	holdSvc := NewHoldService(store, clock.NewFixed(now), pub)
	waitlistSvc := NewWaitlistService(store, holdSvc, clock.NewFixed(now), pub, WithOfferWindow(offerWindow))
	if cascade {
		holdSvc.SetSlotFreedHandler(waitlistSvc)
	}
	return waitlistSvc, holdSvc, store, pub
}

func TestWaitlistService_Join(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	t.Run("appends at the back of the queue", func(t *testing.T) {
		svc, _, store, _ := waitlistFixture(now, time.Hour, false)

		first, err := svc.Join(context.Background(), JoinWaitlistInput{
			BusinessID: "biz-1",
			GuestName:  "Ana",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if first.Position != 1 {
			t.Fatalf("expected position 1, got %d", first.Position)
		}
		if first.Status != domain.WaitlistStatusWaiting {
			t.Fatalf("expected waiting, got %s", first.Status)
		}

		second, err := svc.Join(context.Background(), JoinWaitlistInput{
			BusinessID: "biz-1",
			GuestEmail: "bo@example.com",
			VIP:        true,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if second.Position != 2 {
			t.Fatalf("expected position 2, got %d", second.Position)
		}
		if len(store.entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(store.entries))
		}
	})

	t.Run("requires contact", func(t *testing.T) {
		svc, _, _, _ := waitlistFixture(now, time.Hour, false)
		_, err := svc.Join(context.Background(), JoinWaitlistInput{BusinessID: "biz-1"})
		if !errors.Is(err, domain.ErrContactRequired) {
			t.Fatalf("expected ErrContactRequired, got %v", err)
		}
	})

	t.Run("rejects negative flexibility", func(t *testing.T) {
		svc, _, _, _ := waitlistFixture(now, time.Hour, false)
		_, err := svc.Join(context.Background(), JoinWaitlistInput{
			BusinessID:      "biz-1",
			GuestName:       "Ana",
			FlexibilityDays: -1,
		})
		if !errors.Is(err, domain.ErrInvalidRange) {
			t.Fatalf("expected ErrInvalidRange, got %v", err)
		}
	})

	t.Run("resource must belong to the business", func(t *testing.T) {
		svc, _, store, _ := waitlistFixture(now, time.Hour, false)
		store.resources["foreign"] = domain.Resource{ID: "foreign", BusinessID: "biz-2", Active: true}

		_, err := svc.Join(context.Background(), JoinWaitlistInput{
			BusinessID: "biz-1",
			GuestName:  "Ana",
			ResourceID: strPtr("foreign"),
		})
		if !errors.Is(err, domain.ErrResourceNotFound) {
			t.Fatalf("expected ErrResourceNotFound, got %v", err)
		}
	})
}

func TestWaitlistService_SlotFreed(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	offerWindow := 2 * time.Hour
	slotStart := time.Date(2025, 6, 3, 18, 0, 0, 0, time.UTC)
	slotEnd := slotStart.Add(time.Hour)

	addWaiting := func(store *fakeStore, id string, position int, vip bool, mutate func(*domain.WaitlistEntry)) {
		e := domain.WaitlistEntry{
			ID:         id,
			BusinessID: "biz-1",
			GuestName:  "Guest " + id,
			Position:   position,
			VIP:        vip,
			Status:     domain.WaitlistStatusWaiting,
		}
		if mutate != nil {
			mutate(&e)
		}
		store.entries[id] = e
	}

	t.Run("offers to the first entry in queue order", func(t *testing.T) {
		svc, _, store, pub := waitlistFixture(now, offerWindow, false)
		addWaiting(store, "e1", 1, false, nil)
		addWaiting(store, "e2", 2, false, nil)

		if err := svc.SlotFreed(context.Background(), "biz-1", "res-1", slotStart, slotEnd); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		offered := store.entries["e1"]
		if offered.Status != domain.WaitlistStatusOffered {
			t.Fatalf("expected e1 offered, got %s", offered.Status)
		}
		if offered.ClaimToken == nil || *offered.ClaimToken == "" {
			t.Fatalf("expected claim token to be set")
		}
		if offered.ClaimExpiresAt == nil || !offered.ClaimExpiresAt.Equal(now.Add(offerWindow)) {
			t.Fatalf("expected claim deadline %v, got %v", now.Add(offerWindow), offered.ClaimExpiresAt)
		}
		if offered.HoldID == nil {
			t.Fatalf("expected offer hold to be linked")
		}
		hold := store.holds[*offered.HoldID]
		if hold.Status != domain.HoldStatusActive {
			t.Fatalf("expected active offer hold, got %s", hold.Status)
		}
		if !hold.ExpiresAt.Equal(now.Add(offerWindow)) {
			t.Fatalf("expected hold TTL to span the offer window, got %v", hold.ExpiresAt)
		}
		if hold.HolderRef != "waitlist:e1" {
			t.Fatalf("expected holder ref waitlist:e1, got %q", hold.HolderRef)
		}
		if store.entries["e2"].Status != domain.WaitlistStatusWaiting {
			t.Fatalf("expected e2 untouched")
		}

		ev, ok := pub.last(domain.EventOfferCreated)
		if !ok {
			t.Fatalf("expected %s event, got %v", domain.EventOfferCreated, pub.names())
		}
		if ev.EntryID != "e1" || ev.ClaimToken != *offered.ClaimToken {
			t.Fatalf("expected event to carry entry and token, got %+v", ev)
		}
	})

	t.Run("vip wins over earlier non-vip", func(t *testing.T) {
		svc, _, store, _ := waitlistFixture(now, offerWindow, false)
		addWaiting(store, "e1", 1, false, nil)
		addWaiting(store, "e2", 2, true, nil)

		if err := svc.SlotFreed(context.Background(), "biz-1", "res-1", slotStart, slotEnd); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if store.entries["e2"].Status != domain.WaitlistStatusOffered {
			t.Fatalf("expected VIP e2 offered, got %s", store.entries["e2"].Status)
		}
		if store.entries["e1"].Status != domain.WaitlistStatusWaiting {
			t.Fatalf("expected e1 still waiting")
		}
	})

	t.Run("skips entries whose preferences do not match", func(t *testing.T) {
		svc, _, store, _ := waitlistFixture(now, offerWindow, false)
		addWaiting(store, "other-resource", 1, false, func(e *domain.WaitlistEntry) {
			e.ResourceID = strPtr("res-2")
		})
		addWaiting(store, "other-type", 2, false, func(e *domain.WaitlistEntry) {
			e.BookableType = strPtr("court")
		})
		addWaiting(store, "too-far", 3, false, func(e *domain.WaitlistEntry) {
			e.PreferredDate = timePtr(time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))
			e.FlexibilityDays = 2
		})
		addWaiting(store, "flexible", 4, false, func(e *domain.WaitlistEntry) {
			e.PreferredDate = timePtr(time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC))
			e.FlexibilityDays = 2
		})

		if err := svc.SlotFreed(context.Background(), "biz-1", "res-1", slotStart, slotEnd); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if store.entries["flexible"].Status != domain.WaitlistStatusOffered {
			t.Fatalf("expected flexible entry offered, got %s", store.entries["flexible"].Status)
		}
		for _, id := range []string{"other-resource", "other-type", "too-far"} {
			if store.entries[id].Status != domain.WaitlistStatusWaiting {
				t.Fatalf("expected %s still waiting, got %s", id, store.entries[id].Status)
			}
		}
	})

	t.Run("matches the preferred date in the business zone", func(t *testing.T) {
		svc, _, store, _ := waitlistFixture(now, offerWindow, false)
		store.businesses["biz-1"] = domain.Business{ID: "biz-1", Name: "Studio", Timezone: "Pacific/Auckland"}
		// 13:00 UTC on June 3 is already June 4 in Auckland.
		addWaiting(store, "e1", 1, false, func(e *domain.WaitlistEntry) {
			e.PreferredDate = timePtr(time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC))
			e.FlexibilityDays = 0
		})

		start := time.Date(2025, 6, 3, 13, 0, 0, 0, time.UTC)
		if err := svc.SlotFreed(context.Background(), "biz-1", "res-1", start, start.Add(time.Hour)); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if store.entries["e1"].Status != domain.WaitlistStatusOffered {
			t.Fatalf("expected e1 offered for its local preferred date, got %s", store.entries["e1"].Status)
		}
	})

	t.Run("no matching entry leaves the slot open", func(t *testing.T) {
		svc, _, store, pub := waitlistFixture(now, offerWindow, false)
		addWaiting(store, "e1", 1, false, func(e *domain.WaitlistEntry) {
			e.BookableType = strPtr("court")
		})

		if err := svc.SlotFreed(context.Background(), "biz-1", "res-1", slotStart, slotEnd); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(store.holds) != 0 {
			t.Fatalf("expected no hold placed, got %d", len(store.holds))
		}
		if _, ok := pub.last(domain.EventOfferCreated); ok {
			t.Fatalf("expected no offer event")
		}
	})

	t.Run("range already retaken stops quietly", func(t *testing.T) {
		svc, _, store, _ := waitlistFixture(now, offerWindow, false)
		addWaiting(store, "e1", 1, false, nil)
		store.holds["taken"] = domain.Hold{
			ID: "taken", BusinessID: "biz-1", ResourceID: "res-1",
			StartAt: slotStart, EndAt: slotEnd,
			Status: domain.HoldStatusActive, ExpiresAt: now.Add(time.Hour),
		}

		if err := svc.SlotFreed(context.Background(), "biz-1", "res-1", slotStart, slotEnd); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if store.entries["e1"].Status != domain.WaitlistStatusWaiting {
			t.Fatalf("expected e1 still waiting, got %s", store.entries["e1"].Status)
		}
	})
}

func TestWaitlistService_Claim(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	offerWindow := 2 * time.Hour
	slotStart := time.Date(2025, 6, 3, 18, 0, 0, 0, time.UTC)
	slotEnd := slotStart.Add(time.Hour)

	seedOffer := func(store *fakeStore, deadline time.Time) (entryID, token string) {
		store.holds["offer-hold"] = domain.Hold{
			ID: "offer-hold", BusinessID: "biz-1", ResourceID: "res-1",
			StartAt: slotStart, EndAt: slotEnd,
			Status: domain.HoldStatusActive, HolderRef: "waitlist:e1",
			ExpiresAt: deadline,
		}
		token = "tok-123"
		store.entries["e1"] = domain.WaitlistEntry{
			ID:             "e1",
			BusinessID:     "biz-1",
			GuestName:      "Ana",
			GuestEmail:     "ana@example.com",
			Position:       1,
			Status:         domain.WaitlistStatusOffered,
			ClaimToken:     &token,
			ClaimExpiresAt: timePtr(deadline),
			HoldID:         strPtr("offer-hold"),
			OfferStartAt:   timePtr(slotStart),
			OfferEndAt:     timePtr(slotEnd),
		}
		return "e1", token
	}

	t.Run("converts the offer into a booking", func(t *testing.T) {
		svc, _, store, pub := waitlistFixture(now, offerWindow, false)
		entryID, token := seedOffer(store, now.Add(time.Hour))

		result, err := svc.Claim(context.Background(), entryID, token)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Entry.Status != domain.WaitlistStatusClaimed {
			t.Fatalf("expected claimed entry, got %s", result.Entry.Status)
		}
		if result.Booking.Status != domain.BookingStatusConfirmed {
			t.Fatalf("expected confirmed booking, got %s", result.Booking.Status)
		}
		if result.Booking.GuestName != "Ana" {
			t.Fatalf("expected guest carried over, got %q", result.Booking.GuestName)
		}
		if store.holds["offer-hold"].Status != domain.HoldStatusConverted {
			t.Fatalf("expected offer hold converted, got %s", store.holds["offer-hold"].Status)
		}
		if _, ok := pub.last(domain.EventOfferClaimed); !ok {
			t.Fatalf("expected %s event, got %v", domain.EventOfferClaimed, pub.names())
		}
		conv, ok := pub.last(domain.EventHoldConverted)
		if !ok {
			t.Fatalf("expected %s event, got %v", domain.EventHoldConverted, pub.names())
		}
		if conv.BookingID != result.Booking.ID {
			t.Fatalf("expected conversion event to carry the booking, got %+v", conv)
		}
	})

	t.Run("failed claim update publishes no conversion", func(t *testing.T) {
		svc, _, store, pub := waitlistFixture(now, offerWindow, false)
		entryID, token := seedOffer(store, now.Add(time.Hour))

		boom := errors.New("boom")
		svc.repo = &claimUpdateFailStore{fakeStore: store, err: boom}

		_, err := svc.Claim(context.Background(), entryID, token)
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if _, ok := pub.last(domain.EventHoldConverted); ok {
			t.Fatalf("expected no conversion event on a failed claim, got %v", pub.names())
		}
		if _, ok := pub.last(domain.EventOfferClaimed); ok {
			t.Fatalf("expected no claimed event on a failed claim, got %v", pub.names())
		}
	})

	t.Run("wrong token", func(t *testing.T) {
		svc, _, store, _ := waitlistFixture(now, offerWindow, false)
		entryID, _ := seedOffer(store, now.Add(time.Hour))

		_, err := svc.Claim(context.Background(), entryID, "forged")
		if !errors.Is(err, domain.ErrInvalidClaimToken) {
			t.Fatalf("expected ErrInvalidClaimToken, got %v", err)
		}
		if store.entries["e1"].Status != domain.WaitlistStatusOffered {
			t.Fatalf("expected offer left intact, got %s", store.entries["e1"].Status)
		}
	})

	t.Run("entry without outstanding offer", func(t *testing.T) {
		svc, _, store, _ := waitlistFixture(now, offerWindow, false)
		store.entries["e1"] = domain.WaitlistEntry{
			ID: "e1", BusinessID: "biz-1", Status: domain.WaitlistStatusWaiting, Position: 1,
		}

		_, err := svc.Claim(context.Background(), "e1", "tok")
		if !errors.Is(err, domain.ErrEntryNotOffered) {
			t.Fatalf("expected ErrEntryNotOffered, got %v", err)
		}
	})

	t.Run("late claim demotes to the back of the queue", func(t *testing.T) {
		svc, _, store, pub := waitlistFixture(now, offerWindow, false)
		entryID, token := seedOffer(store, now.Add(-time.Minute))
		store.entries["e2"] = domain.WaitlistEntry{
			ID: "e2", BusinessID: "biz-1", GuestName: "Bo", Position: 5, Status: domain.WaitlistStatusWaiting,
		}

		_, err := svc.Claim(context.Background(), entryID, token)
		if !errors.Is(err, domain.ErrOfferExpired) {
			t.Fatalf("expected ErrOfferExpired, got %v", err)
		}

		demoted := store.entries["e1"]
		if demoted.Status != domain.WaitlistStatusWaiting {
			t.Fatalf("expected e1 back to waiting, got %s", demoted.Status)
		}
		if demoted.Position <= 5 {
			t.Fatalf("expected position behind the queue tail, got %d", demoted.Position)
		}
		if demoted.ClaimToken != nil || demoted.HoldID != nil || demoted.ClaimExpiresAt != nil {
			t.Fatalf("expected offer fields cleared, got %+v", demoted)
		}
		if _, ok := pub.last(domain.EventOfferExpired); !ok {
			t.Fatalf("expected %s event, got %v", domain.EventOfferExpired, pub.names())
		}
		if len(store.bookings) != 0 {
			t.Fatalf("expected no booking, got %d", len(store.bookings))
		}
	})
}

func TestWaitlistService_Decline(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	offerWindow := 2 * time.Hour
	slotStart := time.Date(2025, 6, 3, 18, 0, 0, 0, time.UTC)
	slotEnd := slotStart.Add(time.Hour)

	t.Run("declined offer cascades to the next entry", func(t *testing.T) {
		svc, holdSvc, store, _ := waitlistFixture(now, offerWindow, true)
		store.entries["e1"] = domain.WaitlistEntry{
			ID: "e1", BusinessID: "biz-1", GuestName: "Ana", Position: 1, Status: domain.WaitlistStatusWaiting,
		}
		store.entries["e2"] = domain.WaitlistEntry{
			ID: "e2", BusinessID: "biz-1", GuestName: "Bo", Position: 2, Status: domain.WaitlistStatusWaiting,
		}

		// A customer hold on the range is released, which kicks off the
		// first offer.
		hold, err := holdSvc.Acquire(context.Background(), AcquireHoldInput{
			ResourceID: "res-1",
			StartAt:    slotStart,
			EndAt:      slotEnd,
			HolderRef:  "session:abc",
		})
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if err := holdSvc.Release(context.Background(), hold.ID); err != nil {
			t.Fatalf("release: %v", err)
		}
		if store.entries["e1"].Status != domain.WaitlistStatusOffered {
			t.Fatalf("expected e1 offered after release, got %s", store.entries["e1"].Status)
		}

		entry, err := svc.Decline(context.Background(), "e1")
		if err != nil {
			t.Fatalf("decline: %v", err)
		}
		if entry.Status != domain.WaitlistStatusWaiting {
			t.Fatalf("expected e1 demoted to waiting, got %s", entry.Status)
		}
		if entry.Position <= 2 {
			t.Fatalf("expected e1 behind e2, got position %d", entry.Position)
		}
		if store.entries["e2"].Status != domain.WaitlistStatusOffered {
			t.Fatalf("expected the freed range re-offered to e2, got %s", store.entries["e2"].Status)
		}
	})

	t.Run("decline without an offer", func(t *testing.T) {
		svc, _, store, _ := waitlistFixture(now, offerWindow, false)
		store.entries["e1"] = domain.WaitlistEntry{
			ID: "e1", BusinessID: "biz-1", Position: 1, Status: domain.WaitlistStatusWaiting,
		}

		_, err := svc.Decline(context.Background(), "e1")
		if !errors.Is(err, domain.ErrEntryNotOffered) {
			t.Fatalf("expected ErrEntryNotOffered, got %v", err)
		}
	})
}

func TestWaitlistService_ExpireDueOffers(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	slotStart := time.Date(2025, 6, 3, 18, 0, 0, 0, time.UTC)
	slotEnd := slotStart.Add(time.Hour)

	svc, _, store, _ := waitlistFixture(now, 2*time.Hour, false)

	token := "tok"
	store.holds["h1"] = domain.Hold{
		ID: "h1", BusinessID: "biz-1", ResourceID: "res-1",
		StartAt: slotStart, EndAt: slotEnd,
		Status: domain.HoldStatusActive, ExpiresAt: now.Add(-time.Minute),
	}
	store.entries["due"] = domain.WaitlistEntry{
		ID: "due", BusinessID: "biz-1", Position: 1, Status: domain.WaitlistStatusOffered,
		ClaimToken: &token, ClaimExpiresAt: timePtr(now.Add(-time.Minute)), HoldID: strPtr("h1"),
	}
	store.entries["live"] = domain.WaitlistEntry{
		ID: "live", BusinessID: "biz-1", Position: 2, Status: domain.WaitlistStatusOffered,
		ClaimToken: &token, ClaimExpiresAt: timePtr(now.Add(time.Hour)),
	}

	n, err := svc.ExpireDueOffers(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired offer, got %d", n)
	}
	if store.entries["due"].Status != domain.WaitlistStatusWaiting {
		t.Fatalf("expected due entry demoted, got %s", store.entries["due"].Status)
	}
	if store.entries["due"].Position != 3 {
		t.Fatalf("expected demoted position 3, got %d", store.entries["due"].Position)
	}
	if store.entries["live"].Status != domain.WaitlistStatusOffered {
		t.Fatalf("expected live offer untouched, got %s", store.entries["live"].Status)
	}

	n, err = svc.ExpireDueOffers(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 on re-run, got %d", n)
	}
}
