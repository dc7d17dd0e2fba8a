package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookwell/engine/internal/domain"
)

// HoldRepository persists slot holds and hold-converted bookings. The
// slot_holds and bookings tables carry gist exclusion constraints over
// (resource_id, tstzrange(start_at, end_at)), so an insert that would
// double-occupy a range fails atomically with ErrSlotConflict even if two
// transactions raced past the overlap count.
type HoldRepository struct {
	pool *pgxpool.Pool
}

func NewHoldRepository(pool *pgxpool.Pool) *HoldRepository {
	return &HoldRepository{pool: pool}
}

func (r *HoldRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *HoldRepository) GetResourceForUpdate(ctx context.Context, resourceID string) (domain.Resource, error) {
	const query = `
SELECT id, business_id, bookable_type, name, capacity, active
FROM resources
WHERE id = $1
FOR UPDATE`

	var res domain.Resource
	err := r.queryRow(ctx, query, resourceID).
		Scan(&res.ID, &res.BusinessID, &res.BookableType, &res.Name, &res.Capacity, &res.Active)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Resource{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Resource{}, domain.ErrResourceNotFound
		}
		return domain.Resource{}, fmt.Errorf("get resource for update: %w", err)
	}
	return res, nil
}

func (r *HoldRepository) CountOccupying(ctx context.Context, resourceID string, start, end, now time.Time) (int, error) {
	const query = `
SELECT
	(SELECT COUNT(*) FROM bookings
	 WHERE resource_id = $1
	   AND status IN ('pending', 'confirmed', 'in_progress')
	   AND start_at < $3 AND end_at > $2)
	+
	(SELECT COUNT(*) FROM slot_holds
	 WHERE resource_id = $1
	   AND status = 'active' AND expires_at > $4
	   AND start_at < $3 AND end_at > $2)`

	var total int
	if err := r.queryRow(ctx, query, resourceID, start, end, now).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("count occupying: %w", err)
	}
	return total, nil
}

func (r *HoldRepository) CreateHold(ctx context.Context, hold domain.Hold) error {
	const stmt = `
INSERT INTO slot_holds (id, business_id, resource_id, start_at, end_at, status, holder_ref, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.exec(ctx, stmt,
		hold.ID,
		hold.BusinessID,
		hold.ResourceID,
		hold.StartAt,
		hold.EndAt,
		hold.Status,
		hold.HolderRef,
		hold.CreatedAt,
		hold.ExpiresAt,
	)
	if err != nil {
		if isExclusionViolation(err) {
			return domain.ErrSlotConflict
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create hold: %w", err)
	}
	return nil
}

func (r *HoldRepository) GetHoldForUpdate(ctx context.Context, holdID string) (domain.Hold, error) {
	const query = `
SELECT id, business_id, resource_id, start_at, end_at, status, holder_ref, created_at, expires_at
FROM slot_holds
WHERE id = $1
FOR UPDATE`

	var h domain.Hold
	err := r.queryRow(ctx, query, holdID).
		Scan(&h.ID, &h.BusinessID, &h.ResourceID, &h.StartAt, &h.EndAt, &h.Status, &h.HolderRef, &h.CreatedAt, &h.ExpiresAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Hold{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Hold{}, domain.ErrHoldNotFound
		}
		return domain.Hold{}, fmt.Errorf("get hold for update: %w", err)
	}
	return h, nil
}

func (r *HoldRepository) UpdateHold(ctx context.Context, hold domain.Hold) error {
	const stmt = `UPDATE slot_holds SET status = $2, expires_at = $3 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, hold.ID, hold.Status, hold.ExpiresAt)
	if err != nil {
		return fmt.Errorf("update hold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrHoldNotFound
	}
	return nil
}

func (r *HoldRepository) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	const query = `
SELECT id, business_id, resource_id, start_at, end_at, status, holder_ref, created_at, expires_at
FROM slot_holds
WHERE status = 'active' AND expires_at <= $1
ORDER BY expires_at
LIMIT $2`

	rows, err := r.query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired holds: %w", err)
	}
	defer rows.Close()

	var holds []domain.Hold
	for rows.Next() {
		var h domain.Hold
		if err := rows.Scan(&h.ID, &h.BusinessID, &h.ResourceID, &h.StartAt, &h.EndAt, &h.Status, &h.HolderRef, &h.CreatedAt, &h.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan hold: %w", err)
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

func (r *HoldRepository) ListActiveHolds(ctx context.Context, resourceIDs []string, from, to, now time.Time) ([]domain.Hold, error) {
	const query = `
SELECT id, business_id, resource_id, start_at, end_at, status, holder_ref, created_at, expires_at
FROM slot_holds
WHERE resource_id = ANY($1)
  AND status = 'active' AND expires_at > $4
  AND start_at < $3 AND end_at > $2`

	rows, err := r.query(ctx, query, resourceIDs, from, to, now)
	if err != nil {
		return nil, fmt.Errorf("list active holds: %w", err)
	}
	defer rows.Close()

	var holds []domain.Hold
	for rows.Next() {
		var h domain.Hold
		if err := rows.Scan(&h.ID, &h.BusinessID, &h.ResourceID, &h.StartAt, &h.EndAt, &h.Status, &h.HolderRef, &h.CreatedAt, &h.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan hold: %w", err)
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

func (r *HoldRepository) CreateBooking(ctx context.Context, booking domain.Booking) error {
	const stmt = `
INSERT INTO bookings (id, business_id, resource_id, bookable_type, start_at, end_at, status, guest_name, guest_email, party_size, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.exec(ctx, stmt,
		booking.ID,
		booking.BusinessID,
		booking.ResourceID,
		booking.BookableType,
		booking.StartAt,
		booking.EndAt,
		booking.Status,
		booking.GuestName,
		booking.GuestEmail,
		booking.PartySize,
		booking.CreatedAt,
	)
	if err != nil {
		if isExclusionViolation(err) {
			return domain.ErrSlotConflict
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

func (r *HoldRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *HoldRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *HoldRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
